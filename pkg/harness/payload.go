package harness

import (
	"fmt"
	"time"
)

// MessageKind identifies one payload variant. The set is closed.
type MessageKind string

const (
	// MessageKindText is a plain text message.
	MessageKindText MessageKind = "text"
	// MessageKindAssetMetadata is the placeholder sent before an asset upload completes.
	MessageKindAssetMetadata MessageKind = "asset-metadata"
	// MessageKindAssetData is the final part of a multi-part asset upload.
	MessageKindAssetData MessageKind = "asset-data"
	// MessageKindAssetImage is an inline image asset.
	MessageKindAssetImage MessageKind = "asset-image"
	// MessageKindLocation is a shared location.
	MessageKindLocation MessageKind = "location"
	// MessageKindPing is a ping/knock.
	MessageKindPing MessageKind = "ping"
	// MessageKindEdit replaces a previously sent text message.
	MessageKindEdit MessageKind = "edit"
	// MessageKindDeleteLocal deletes a message for the sender's own clients.
	MessageKindDeleteLocal MessageKind = "delete-local"
	// MessageKindDeleteEveryone deletes a message for every participant.
	MessageKindDeleteEveryone MessageKind = "delete-everyone"
	// MessageKindHide hides a message on the user's other clients.
	MessageKindHide MessageKind = "hide"
	// MessageKindClear clears a whole conversation.
	MessageKindClear MessageKind = "clear"
	// MessageKindConfirmation acknowledges delivery or reading of messages.
	MessageKindConfirmation MessageKind = "confirmation"
	// MessageKindReaction likes or unlikes a message.
	MessageKindReaction MessageKind = "reaction"
)

var messageKinds = []MessageKind{
	MessageKindText,
	MessageKindAssetMetadata,
	MessageKindAssetData,
	MessageKindAssetImage,
	MessageKindLocation,
	MessageKindPing,
	MessageKindEdit,
	MessageKindDeleteLocal,
	MessageKindDeleteEveryone,
	MessageKindHide,
	MessageKindClear,
	MessageKindConfirmation,
	MessageKindReaction,
}

// MessageKinds returns every known kind in declaration order.
func MessageKinds() []MessageKind {
	kinds := make([]MessageKind, len(messageKinds))
	copy(kinds, messageKinds)

	return kinds
}

// Valid reports whether k belongs to the closed kind set.
func (k MessageKind) Valid() bool {
	for _, known := range messageKinds {
		if k == known {
			return true
		}
	}

	return false
}

// ConfirmationType distinguishes delivery from read acknowledgments.
type ConfirmationType string

const (
	// ConfirmationTypeDelivered acknowledges delivery to a client.
	ConfirmationTypeDelivered ConfirmationType = "delivered"
	// ConfirmationTypeRead acknowledges that the message was read.
	ConfirmationTypeRead ConfirmationType = "read"
)

// ReactionType selects the reaction action.
type ReactionType string

const (
	// ReactionTypeLike adds the sender's like.
	ReactionTypeLike ReactionType = "like"
	// ReactionTypeNone removes the sender's like.
	ReactionTypeNone ReactionType = "none"
)

// Confirmation records one acknowledgment attached to a stored message.
type Confirmation struct {
	// From is the user id of the confirming participant.
	From string `json:"from"`
	// Type is the acknowledgment type.
	Type ConfirmationType `json:"type"`
}

// Reaction records one participant currently liking a stored message.
type Reaction struct {
	// From is the user id of the reacting participant.
	From string `json:"from"`
}

// MessagePayload is one message as sent, received, and cached per instance.
type MessagePayload struct {
	// ID is unique within one message store.
	ID string `json:"id"`
	// ConversationID groups messages.
	ConversationID string `json:"conversation"`
	// From is the sender user id.
	From string `json:"from"`
	// Timestamp is when the backend accepted the payload.
	Timestamp time.Time `json:"timestamp"`
	// Kind selects which Content variant is carried.
	Kind MessageKind `json:"type"`
	// Content is the kind-specific variant.
	Content Content `json:"content"`
	// Confirmations is absent until the first acknowledgment arrives.
	Confirmations []Confirmation `json:"confirmations,omitempty"`
	// Reactions is absent when nobody likes the message.
	Reactions []Reaction `json:"reactions,omitempty"`
}

// NewPayload builds one payload whose Kind is derived from content.
func NewPayload(conversationID string, content Content) MessagePayload {
	payload := MessagePayload{
		ConversationID: conversationID,
		Content:        content,
	}
	if content != nil {
		payload.Kind = content.Kind()
	}

	return payload
}

// Validate checks that the payload carries exactly the content variant its kind selects.
func (p MessagePayload) Validate() error {
	if !p.Kind.Valid() {
		return fmt.Errorf("validate payload %s: unknown kind %q: %w", p.ID, p.Kind, ErrValidation)
	}
	if p.Content == nil {
		return fmt.Errorf("validate payload %s kind %s: missing content: %w", p.ID, p.Kind, ErrValidation)
	}
	if contentKind := p.Content.Kind(); contentKind != p.Kind {
		return fmt.Errorf(
			"validate payload %s kind %s: content is %s: %w",
			p.ID,
			p.Kind,
			contentKind,
			ErrValidation,
		)
	}
	if p.ConversationID == "" {
		return fmt.Errorf("validate payload %s kind %s: missing conversation id: %w", p.ID, p.Kind, ErrValidation)
	}

	return nil
}

// Clone returns a deep copy that shares no mutable state with p.
func (p MessagePayload) Clone() MessagePayload {
	cloned := p
	if p.Content != nil {
		cloned.Content = p.Content.clone()
	}
	if p.Confirmations != nil {
		cloned.Confirmations = append([]Confirmation(nil), p.Confirmations...)
	}
	if p.Reactions != nil {
		cloned.Reactions = append([]Reaction(nil), p.Reactions...)
	}

	return cloned
}
