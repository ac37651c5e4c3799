package correlator

import (
	"msgharness/pkg/harness"
)

// Rule mutates cache for one event. Rules never fail.
type Rule func(cache harness.MessageCache, payload harness.MessagePayload) Outcome

// defaultRules maps every kind to its mutation. ruleFor is the exhaustive switch;
// a kind added to harness without a case here is caught by TestEveryKindHasRule.
func defaultRules() map[harness.MessageKind]Rule {
	rules := make(map[harness.MessageKind]Rule)
	for _, kind := range harness.MessageKinds() {
		if rule := ruleFor(kind); rule != nil {
			rules[kind] = rule
		}
	}

	return rules
}

// HandledKinds returns the kinds with a registered rule, in declaration order.
func HandledKinds() []harness.MessageKind {
	kinds := make([]harness.MessageKind, 0)
	for _, kind := range harness.MessageKinds() {
		if ruleFor(kind) != nil {
			kinds = append(kinds, kind)
		}
	}

	return kinds
}

func ruleFor(kind harness.MessageKind) Rule {
	switch kind {
	case harness.MessageKindText:
		return storeText
	case harness.MessageKindAssetMetadata:
		return storeAsIs
	case harness.MessageKindAssetData:
		return storeAssetData
	case harness.MessageKindAssetImage, harness.MessageKindLocation, harness.MessageKindPing:
		return storeAsIs
	case harness.MessageKindEdit:
		return replaceEdited
	case harness.MessageKindClear:
		return clearConversation
	case harness.MessageKindDeleteLocal, harness.MessageKindDeleteEveryone:
		return deleteMessage
	case harness.MessageKindHide:
		return hideMessage
	case harness.MessageKindConfirmation:
		return attachConfirmation
	case harness.MessageKindReaction:
		return applyReaction
	default:
		return nil
	}
}

func storeAsIs(cache harness.MessageCache, payload harness.MessagePayload) Outcome {
	if payload.ID == "" {
		return OutcomeSkipped
	}
	cache.Set(payload.ID, payload.Clone())

	return OutcomeApplied
}

func storeText(cache harness.MessageCache, payload harness.MessagePayload) Outcome {
	content, ok := payload.Content.(harness.TextContent)
	if !ok || payload.ID == "" {
		return OutcomeSkipped
	}

	stored := payload.Clone()
	stored.Content = content.WithoutPreviewImages()
	cache.Set(stored.ID, stored)

	return OutcomeApplied
}

func storeAssetData(cache harness.MessageCache, payload harness.MessagePayload) Outcome {
	content, ok := payload.Content.(harness.AssetContent)
	if !ok || payload.ID == "" {
		return OutcomeSkipped
	}

	if placeholder, exists := cache.Get(payload.ID); exists {
		if metadata, isMetadata := placeholder.Content.(harness.AssetMetadataContent); isMetadata {
			original := metadata.Original
			content.Original = &original
		}
	}

	stored := payload.Clone()
	stored.Content = content.WithoutSecrets()
	cache.Set(stored.ID, stored)

	return OutcomeApplied
}

func replaceEdited(cache harness.MessageCache, payload harness.MessagePayload) Outcome {
	content, ok := payload.Content.(harness.EditContent)
	if !ok || payload.ID == "" {
		return OutcomeSkipped
	}

	stored := payload.Clone()
	if stored.ConversationID == "" {
		if original, exists := cache.Get(content.OriginalMessageID); exists {
			stored.ConversationID = original.ConversationID
		}
	}
	cache.Set(stored.ID, stored)
	if content.OriginalMessageID != "" && content.OriginalMessageID != stored.ID {
		cache.Delete(content.OriginalMessageID)
	}

	return OutcomeApplied
}

func clearConversation(cache harness.MessageCache, payload harness.MessagePayload) Outcome {
	conversationID := payload.ConversationID
	if content, ok := payload.Content.(harness.ClearContent); ok && content.ConversationID != "" {
		conversationID = content.ConversationID
	}
	if conversationID == "" {
		return OutcomeSkipped
	}

	removed := 0
	for _, stored := range cache.Snapshot() {
		if stored.ConversationID != conversationID {
			continue
		}
		if cache.Delete(stored.ID) {
			removed++
		}
	}
	if removed == 0 {
		return OutcomeSkipped
	}

	return OutcomeApplied
}

func deleteMessage(cache harness.MessageCache, payload harness.MessagePayload) Outcome {
	content, ok := payload.Content.(harness.DeleteContent)
	if !ok {
		return OutcomeSkipped
	}

	return deleteByID(cache, content.MessageID)
}

func hideMessage(cache harness.MessageCache, payload harness.MessagePayload) Outcome {
	content, ok := payload.Content.(harness.HideContent)
	if !ok {
		return OutcomeSkipped
	}

	return deleteByID(cache, content.MessageID)
}

func deleteByID(cache harness.MessageCache, messageID string) Outcome {
	if messageID == "" || !cache.Delete(messageID) {
		return OutcomeSkipped
	}

	return OutcomeApplied
}

func attachConfirmation(cache harness.MessageCache, payload harness.MessagePayload) Outcome {
	content, ok := payload.Content.(harness.ConfirmationContent)
	if !ok {
		return OutcomeSkipped
	}

	outcome := OutcomeSkipped
	for _, messageID := range content.MessageIDs() {
		if messageID == "" {
			continue
		}
		stored, exists := cache.Get(messageID)
		if !exists {
			continue
		}

		updated := stored.Clone()
		updated.Confirmations = append(updated.Confirmations, harness.Confirmation{
			From: payload.From,
			Type: content.Type,
		})
		cache.Set(messageID, updated)
		outcome = OutcomeApplied
	}

	return outcome
}

func applyReaction(cache harness.MessageCache, payload harness.MessagePayload) Outcome {
	content, ok := payload.Content.(harness.ReactionContent)
	if !ok || content.OriginalMessageID == "" {
		return OutcomeSkipped
	}

	stored, exists := cache.Get(content.OriginalMessageID)
	if !exists {
		return OutcomeSkipped
	}

	updated := stored.Clone()
	switch content.Type {
	case harness.ReactionTypeLike:
		// Repeated likes from one sender are appended as-is.
		updated.Reactions = append(updated.Reactions, harness.Reaction{From: payload.From})
	case harness.ReactionTypeNone:
		updated.Reactions = withoutSender(updated.Reactions, payload.From)
	default:
		return OutcomeSkipped
	}
	cache.Set(content.OriginalMessageID, updated)

	return OutcomeApplied
}

func withoutSender(reactions []harness.Reaction, senderID string) []harness.Reaction {
	kept := make([]harness.Reaction, 0, len(reactions))
	for _, reaction := range reactions {
		if reaction.From != senderID {
			kept = append(kept, reaction)
		}
	}
	if len(kept) == 0 {
		return nil
	}

	return kept
}
