package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"msgharness/internal/instance"
	"msgharness/pkg/harness"
)

type createInstanceRequest struct {
	Backend     string `json:"backend"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	Name        string `json:"name" validate:"max=128"`
	DeviceClass string `json:"deviceClass" validate:"omitempty,oneof=desktop phone tablet"`
	DeviceLabel string `json:"deviceLabel" validate:"max=128"`
	DeviceModel string `json:"deviceModel" validate:"max=128"`
}

type createInstanceResponse struct {
	InstanceID string `json:"instanceId"`
	Name       string `json:"name,omitempty"`
}

type instanceView struct {
	InstanceID   string          `json:"instanceId"`
	Name         string          `json:"name,omitempty"`
	Backend      harness.Backend `json:"backend"`
	ClientID     string          `json:"clientId"`
	Fingerprint  string          `json:"fingerprint,omitempty"`
	UserID       string          `json:"userId"`
	CreatedAt    time.Time       `json:"createdAt"`
	MessageCount int             `json:"messageCount"`
}

type getMessagesRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

type fingerprintResponse struct {
	InstanceID  string `json:"instanceId"`
	Fingerprint string `json:"fingerprint"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Instances int    `json:"instances"`
	Timestamp string `json:"timestamp"`
}

// Health reports liveness and the current instance count.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, healthResponse{
		Status:    "healthy",
		Instances: h.registry.Len(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// CreateInstance logs in one new instance.
func (h *Handler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	var req createInstanceRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	deviceClass := harness.DeviceClass(req.DeviceClass)
	if deviceClass == "" {
		deviceClass = harness.DeviceClassDesktop
	}
	instanceID, err := h.registry.Create(r.Context(), instance.CreateOptions{
		Name:    req.Name,
		Backend: req.Backend,
		Credentials: harness.Credentials{
			Email:    req.Email,
			Password: req.Password,
		},
		Device: harness.DeviceInfo{
			Class: deviceClass,
			Label: req.DeviceLabel,
			Model: req.DeviceModel,
		},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, createInstanceResponse{InstanceID: instanceID, Name: req.Name})
}

// ListInstances returns every registered instance keyed by id.
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	listed := h.registry.List()
	views := make(map[string]instanceView, len(listed))
	for instanceID, registered := range listed {
		views[instanceID] = viewOf(registered)
	}

	h.writeJSON(w, r, http.StatusOK, views)
}

// GetInstance returns one instance with its client fingerprint.
func (h *Handler) GetInstance(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")
	registered, err := h.registry.Get(instanceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	fingerprint, err := h.registry.GetFingerprint(r.Context(), instanceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view := viewOf(registered)
	view.Fingerprint = fingerprint
	h.writeJSON(w, r, http.StatusOK, view)
}

// DeleteInstance logs one instance out and removes it.
func (h *Handler) DeleteInstance(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")
	if err := h.registry.Delete(r.Context(), instanceID); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, struct{}{})
}

// GetMessages returns stored messages, optionally of one conversation.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	var req getMessagesRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	messages, err := h.registry.GetMessages(chi.URLParam(r, "instanceID"), req.ConversationID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, messages)
}

// GetFingerprint returns the instance's client fingerprint.
func (h *Handler) GetFingerprint(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")
	fingerprint, err := h.registry.GetFingerprint(r.Context(), instanceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, fingerprintResponse{InstanceID: instanceID, Fingerprint: fingerprint})
}

func viewOf(registered *instance.Instance) instanceView {
	view := instanceView{
		InstanceID:   registered.ID,
		Name:         registered.Name,
		Backend:      registered.Backend,
		ClientID:     registered.ClientID(),
		CreatedAt:    registered.CreatedAt,
		MessageCount: registered.Messages.Len(),
	}
	if registered.Session != nil {
		view.UserID = registered.Session.UserID()
	}

	return view
}
