package instance

import (
	"context"
	"fmt"

	"msgharness/pkg/harness"
)

// FileUpload is one file sent as a metadata placeholder followed by its data.
type FileUpload struct {
	// Original describes the file.
	Original harness.AssetOriginal
	// Data is the file content.
	Data []byte
}

type echoFunc func(cache harness.MessageCache, sent harness.MessagePayload)

// SendText sends one text message and stores it without preview image bytes.
func (r *Registry) SendText(
	ctx context.Context,
	instanceID string,
	conversationID string,
	content harness.TextContent,
) (harness.MessagePayload, error) {
	return r.send(ctx, instanceID, harness.NewPayload(conversationID, content), nil, storeSent)
}

// SendEditedText replaces a previously sent text. The replaced id is dropped from the store.
func (r *Registry) SendEditedText(
	ctx context.Context,
	instanceID string,
	conversationID string,
	content harness.EditContent,
) (harness.MessagePayload, error) {
	if content.OriginalMessageID == "" {
		return harness.MessagePayload{}, fmt.Errorf("send edited text: missing original message id: %w", harness.ErrValidation)
	}

	return r.send(ctx, instanceID, harness.NewPayload(conversationID, content), nil,
		func(cache harness.MessageCache, sent harness.MessagePayload) {
			storeSent(cache, sent)
			if sent.ID != content.OriginalMessageID {
				cache.Delete(content.OriginalMessageID)
			}
		},
	)
}

// SendLocation sends one location.
func (r *Registry) SendLocation(
	ctx context.Context,
	instanceID string,
	conversationID string,
	content harness.LocationContent,
) (harness.MessagePayload, error) {
	return r.send(ctx, instanceID, harness.NewPayload(conversationID, content), nil, storeSent)
}

// SendPing sends one knock.
func (r *Registry) SendPing(
	ctx context.Context,
	instanceID string,
	conversationID string,
	content harness.PingContent,
) (harness.MessagePayload, error) {
	return r.send(ctx, instanceID, harness.NewPayload(conversationID, content), nil, storeSent)
}

// SendImage sends one inline image.
func (r *Registry) SendImage(
	ctx context.Context,
	instanceID string,
	conversationID string,
	content harness.ImageContent,
) (harness.MessagePayload, error) {
	if len(content.Data) == 0 {
		return harness.MessagePayload{}, fmt.Errorf("send image: empty data: %w", harness.ErrValidation)
	}

	return r.send(ctx, instanceID, harness.NewPayload(conversationID, content), nil, storeSent)
}

// SendFile sends the metadata placeholder, then the data under the same message id.
//
// The stored entry keeps the file description and drops the raw bytes and cipher material.
func (r *Registry) SendFile(
	ctx context.Context,
	instanceID string,
	conversationID string,
	upload FileUpload,
) (harness.MessagePayload, error) {
	if len(upload.Data) == 0 {
		return harness.MessagePayload{}, fmt.Errorf("send file: empty data: %w", harness.ErrValidation)
	}
	if upload.Original.Size == 0 {
		upload.Original.Size = int64(len(upload.Data))
	}

	placeholder, err := r.send(ctx, instanceID,
		harness.NewPayload(conversationID, harness.AssetMetadataContent{Original: upload.Original}),
		nil,
		storeSent,
	)
	if err != nil {
		return harness.MessagePayload{}, err
	}

	original := upload.Original
	final := harness.NewPayload(conversationID, harness.AssetContent{
		Original: &original,
		Data:     upload.Data,
	})
	final.ID = placeholder.ID

	return r.send(ctx, instanceID, final, nil, storeSent)
}

// SendReaction likes or unlikes one stored message.
func (r *Registry) SendReaction(
	ctx context.Context,
	instanceID string,
	conversationID string,
	content harness.ReactionContent,
) (harness.MessagePayload, error) {
	if content.Type != harness.ReactionTypeLike && content.Type != harness.ReactionTypeNone {
		return harness.MessagePayload{}, fmt.Errorf("send reaction: unknown type %q: %w", content.Type, harness.ErrValidation)
	}

	return r.send(ctx, instanceID, harness.NewPayload(conversationID, content),
		requireStored(content.OriginalMessageID),
		storeSent,
	)
}

// SendConfirmationDelivered acknowledges delivery of stored messages.
func (r *Registry) SendConfirmationDelivered(
	ctx context.Context,
	instanceID string,
	conversationID string,
	firstMessageID string,
	moreMessageIDs []string,
) (harness.MessagePayload, error) {
	return r.sendConfirmation(ctx, instanceID, conversationID, harness.ConfirmationContent{
		FirstMessageID: firstMessageID,
		MoreMessageIDs: moreMessageIDs,
		Type:           harness.ConfirmationTypeDelivered,
	})
}

// SendConfirmationRead acknowledges reading of stored messages.
func (r *Registry) SendConfirmationRead(
	ctx context.Context,
	instanceID string,
	conversationID string,
	firstMessageID string,
	moreMessageIDs []string,
) (harness.MessagePayload, error) {
	return r.sendConfirmation(ctx, instanceID, conversationID, harness.ConfirmationContent{
		FirstMessageID: firstMessageID,
		MoreMessageIDs: moreMessageIDs,
		Type:           harness.ConfirmationTypeRead,
	})
}

func (r *Registry) sendConfirmation(
	ctx context.Context,
	instanceID string,
	conversationID string,
	content harness.ConfirmationContent,
) (harness.MessagePayload, error) {
	return r.send(ctx, instanceID, harness.NewPayload(conversationID, content),
		requireStored(content.MessageIDs()...),
		storeSent,
	)
}

// DeleteLocal deletes one message on the user's own clients and drops it from the store.
func (r *Registry) DeleteLocal(
	ctx context.Context,
	instanceID string,
	conversationID string,
	messageID string,
) (harness.MessagePayload, error) {
	return r.deleteMessage(ctx, instanceID, conversationID, messageID, false)
}

// DeleteEveryone deletes one message for every participant and drops it from the store.
func (r *Registry) DeleteEveryone(
	ctx context.Context,
	instanceID string,
	conversationID string,
	messageID string,
) (harness.MessagePayload, error) {
	return r.deleteMessage(ctx, instanceID, conversationID, messageID, true)
}

func (r *Registry) deleteMessage(
	ctx context.Context,
	instanceID string,
	conversationID string,
	messageID string,
	forEveryone bool,
) (harness.MessagePayload, error) {
	if messageID == "" {
		return harness.MessagePayload{}, fmt.Errorf("delete message: missing message id: %w", harness.ErrValidation)
	}

	content := harness.DeleteContent{MessageID: messageID, ForEveryone: forEveryone}

	return r.send(ctx, instanceID, harness.NewPayload(conversationID, content), nil,
		func(cache harness.MessageCache, _ harness.MessagePayload) {
			cache.Delete(messageID)
		},
	)
}

// ClearConversation clears one conversation and drops its messages from the store.
func (r *Registry) ClearConversation(
	ctx context.Context,
	instanceID string,
	conversationID string,
) (harness.MessagePayload, error) {
	content := harness.ClearContent{ConversationID: conversationID}

	return r.send(ctx, instanceID, harness.NewPayload(conversationID, content), nil,
		func(cache harness.MessageCache, _ harness.MessagePayload) {
			for _, stored := range cache.Snapshot() {
				if stored.ConversationID == conversationID {
					cache.Delete(stored.ID)
				}
			}
		},
	)
}

// GetFingerprint returns the instance's client fingerprint.
func (r *Registry) GetFingerprint(ctx context.Context, instanceID string) (string, error) {
	instance, err := r.readyInstance(instanceID)
	if err != nil {
		return "", err
	}

	fingerprint, err := instance.Session.Fingerprint(ctx)
	if err != nil {
		return "", fmt.Errorf("fingerprint instance %s: %w", instanceID, err)
	}

	return fingerprint, nil
}

// send runs one explicit send-then-store flow.
//
// precheck and the send run under the instance's operation lock; the echo runs
// under the store lock so it never interleaves with correlator mutations.
func (r *Registry) send(
	ctx context.Context,
	instanceID string,
	payload harness.MessagePayload,
	precheck func(store *MessageStore) error,
	echo echoFunc,
) (harness.MessagePayload, error) {
	if err := payload.Validate(); err != nil {
		return harness.MessagePayload{}, err
	}

	instance, err := r.readyInstance(instanceID)
	if err != nil {
		return harness.MessagePayload{}, err
	}

	instance.opMu.Lock()
	defer instance.opMu.Unlock()

	if precheck != nil {
		if err := precheck(instance.Messages); err != nil {
			return harness.MessagePayload{}, err
		}
	}

	sent, err := instance.Session.Send(ctx, payload)
	if err != nil {
		return harness.MessagePayload{}, fmt.Errorf("send %s via instance %s: %w", payload.Kind, instanceID, err)
	}

	instance.Messages.Update(func(cache harness.MessageCache) {
		echo(cache, sent)
	})
	r.metrics.MessagesSent.WithLabelValues(string(sent.Kind)).Inc()
	r.logger.DebugContext(ctx,
		"message sent",
		"instance_id", instanceID,
		"kind", sent.Kind,
		"message_id", sent.ID,
		"conversation_id", sent.ConversationID,
	)

	return sent.Clone(), nil
}

func (r *Registry) readyInstance(instanceID string) (*Instance, error) {
	instance, err := r.Get(instanceID)
	if err != nil {
		return nil, err
	}
	if instance.Session == nil || instance.Closing() {
		return nil, fmt.Errorf("instance %s: %w", instanceID, harness.ErrSessionNotReady)
	}

	return instance, nil
}

func requireStored(messageIDs ...string) func(store *MessageStore) error {
	return func(store *MessageStore) error {
		for _, messageID := range messageIDs {
			if messageID == "" {
				return fmt.Errorf("missing target message id: %w", harness.ErrValidation)
			}
			if !store.Contains(messageID) {
				return harness.NewMessageNotFound(messageID)
			}
		}

		return nil
	}
}

// storeSent stores the local echo of one accepted payload.
func storeSent(cache harness.MessageCache, sent harness.MessagePayload) {
	if sent.ID == "" {
		return
	}

	stored := sent.Clone()
	switch content := stored.Content.(type) {
	case harness.TextContent:
		stored.Content = content.WithoutPreviewImages()
	case harness.AssetContent:
		stored.Content = content.WithoutSecrets()
	}
	cache.Set(stored.ID, stored)
}
