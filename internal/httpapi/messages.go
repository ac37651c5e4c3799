package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"msgharness/internal/instance"
	"msgharness/pkg/harness"
)

type sendTextRequest struct {
	ConversationID string                `json:"conversationId" validate:"required"`
	Text           string                `json:"text" validate:"required"`
	LinkPreviews   []harness.LinkPreview `json:"linkPreviews"`
	Mentions       []harness.Mention     `json:"mentions"`
	Quote          *harness.Quote        `json:"quote"`
}

type sendEditedTextRequest struct {
	ConversationID string            `json:"conversationId" validate:"required"`
	FirstMessageID string            `json:"firstMessageId" validate:"required"`
	Text           string            `json:"text" validate:"required"`
	Mentions       []harness.Mention `json:"mentions"`
	Quote          *harness.Quote    `json:"quote"`
}

type sendLocationRequest struct {
	ConversationID string  `json:"conversationId" validate:"required"`
	Latitude       float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude      float64 `json:"longitude" validate:"gte=-180,lte=180"`
	LocationName   string  `json:"locationName"`
	Zoom           int     `json:"zoom" validate:"gte=0"`
}

type sendPingRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
	HotKnock       bool   `json:"hotKnock"`
}

type sendImageRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
	Data           []byte `json:"data" validate:"required"`
	Type           string `json:"type" validate:"required"`
	Width          int    `json:"width" validate:"gte=0"`
	Height         int    `json:"height" validate:"gte=0"`
}

type sendFileRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
	Data           []byte `json:"data" validate:"required"`
	FileName       string `json:"fileName"`
	Type           string `json:"type" validate:"required"`
}

type sendReactionRequest struct {
	ConversationID    string `json:"conversationId" validate:"required"`
	OriginalMessageID string `json:"originalMessageId" validate:"required"`
	Type              string `json:"type" validate:"required,oneof=like none"`
}

type sendConfirmationRequest struct {
	ConversationID string   `json:"conversationId" validate:"required"`
	FirstMessageID string   `json:"firstMessageId" validate:"required"`
	MoreMessageIDs []string `json:"moreMessageIds" validate:"dive,required"`
}

type deleteMessageRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
	MessageID      string `json:"messageId" validate:"required"`
}

type clearConversationRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

type messageResponse struct {
	InstanceID string `json:"instanceId"`
	MessageID  string `json:"messageId"`
}

// SendText sends one text message.
func (h *Handler) SendText(w http.ResponseWriter, r *http.Request) {
	var req sendTextRequest
	h.send(w, r, &req, func(ctx context.Context, instanceID string) (harness.MessagePayload, error) {
		return h.registry.SendText(ctx, instanceID, req.ConversationID, harness.TextContent{
			Text:         req.Text,
			LinkPreviews: req.LinkPreviews,
			Mentions:     req.Mentions,
			Quote:        req.Quote,
		})
	})
}

// SendEditedText replaces a previously sent text.
func (h *Handler) SendEditedText(w http.ResponseWriter, r *http.Request) {
	var req sendEditedTextRequest
	h.send(w, r, &req, func(ctx context.Context, instanceID string) (harness.MessagePayload, error) {
		return h.registry.SendEditedText(ctx, instanceID, req.ConversationID, harness.EditContent{
			OriginalMessageID: req.FirstMessageID,
			Text:              req.Text,
			Mentions:          req.Mentions,
			Quote:             req.Quote,
		})
	})
}

// SendLocation sends one location.
func (h *Handler) SendLocation(w http.ResponseWriter, r *http.Request) {
	var req sendLocationRequest
	h.send(w, r, &req, func(ctx context.Context, instanceID string) (harness.MessagePayload, error) {
		return h.registry.SendLocation(ctx, instanceID, req.ConversationID, harness.LocationContent{
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			Name:      req.LocationName,
			Zoom:      req.Zoom,
		})
	})
}

// SendPing sends one knock.
func (h *Handler) SendPing(w http.ResponseWriter, r *http.Request) {
	var req sendPingRequest
	h.send(w, r, &req, func(ctx context.Context, instanceID string) (harness.MessagePayload, error) {
		return h.registry.SendPing(ctx, instanceID, req.ConversationID, harness.PingContent{Hotknock: req.HotKnock})
	})
}

// SendImage sends one inline image.
func (h *Handler) SendImage(w http.ResponseWriter, r *http.Request) {
	var req sendImageRequest
	h.send(w, r, &req, func(ctx context.Context, instanceID string) (harness.MessagePayload, error) {
		return h.registry.SendImage(ctx, instanceID, req.ConversationID, harness.ImageContent{
			Width:    req.Width,
			Height:   req.Height,
			MimeType: req.Type,
			Data:     req.Data,
		})
	})
}

// SendFile sends one file as placeholder plus data.
func (h *Handler) SendFile(w http.ResponseWriter, r *http.Request) {
	var req sendFileRequest
	h.send(w, r, &req, func(ctx context.Context, instanceID string) (harness.MessagePayload, error) {
		return h.registry.SendFile(ctx, instanceID, req.ConversationID, instance.FileUpload{
			Original: harness.AssetOriginal{
				Name:     req.FileName,
				MimeType: req.Type,
				Size:     int64(len(req.Data)),
			},
			Data: req.Data,
		})
	})
}

// SendReaction likes or unlikes one stored message.
func (h *Handler) SendReaction(w http.ResponseWriter, r *http.Request) {
	var req sendReactionRequest
	h.send(w, r, &req, func(ctx context.Context, instanceID string) (harness.MessagePayload, error) {
		return h.registry.SendReaction(ctx, instanceID, req.ConversationID, harness.ReactionContent{
			OriginalMessageID: req.OriginalMessageID,
			Type:              harness.ReactionType(req.Type),
		})
	})
}

// SendConfirmationDelivered acknowledges delivery of stored messages.
func (h *Handler) SendConfirmationDelivered(w http.ResponseWriter, r *http.Request) {
	var req sendConfirmationRequest
	h.send(w, r, &req, func(ctx context.Context, instanceID string) (harness.MessagePayload, error) {
		return h.registry.SendConfirmationDelivered(ctx, instanceID, req.ConversationID, req.FirstMessageID, req.MoreMessageIDs)
	})
}

// SendConfirmationRead acknowledges reading of stored messages.
func (h *Handler) SendConfirmationRead(w http.ResponseWriter, r *http.Request) {
	var req sendConfirmationRequest
	h.send(w, r, &req, func(ctx context.Context, instanceID string) (harness.MessagePayload, error) {
		return h.registry.SendConfirmationRead(ctx, instanceID, req.ConversationID, req.FirstMessageID, req.MoreMessageIDs)
	})
}

// DeleteLocal deletes one message on the user's own clients.
func (h *Handler) DeleteLocal(w http.ResponseWriter, r *http.Request) {
	var req deleteMessageRequest
	h.send(w, r, &req, func(ctx context.Context, instanceID string) (harness.MessagePayload, error) {
		return h.registry.DeleteLocal(ctx, instanceID, req.ConversationID, req.MessageID)
	})
}

// DeleteEveryone deletes one message for every participant.
func (h *Handler) DeleteEveryone(w http.ResponseWriter, r *http.Request) {
	var req deleteMessageRequest
	h.send(w, r, &req, func(ctx context.Context, instanceID string) (harness.MessagePayload, error) {
		return h.registry.DeleteEveryone(ctx, instanceID, req.ConversationID, req.MessageID)
	})
}

// ClearConversation clears one conversation.
func (h *Handler) ClearConversation(w http.ResponseWriter, r *http.Request) {
	var req clearConversationRequest
	h.send(w, r, &req, func(ctx context.Context, instanceID string) (harness.MessagePayload, error) {
		return h.registry.ClearConversation(ctx, instanceID, req.ConversationID)
	})
}

// send decodes req, runs op for the routed instance, and writes the message id.
func (h *Handler) send(
	w http.ResponseWriter,
	r *http.Request,
	req any,
	op func(ctx context.Context, instanceID string) (harness.MessagePayload, error),
) {
	if err := h.decode(w, r, req); err != nil {
		h.writeError(w, r, err)
		return
	}

	instanceID := chi.URLParam(r, "instanceID")
	sent, err := op(r.Context(), instanceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, messageResponse{InstanceID: instanceID, MessageID: sent.ID})
}
