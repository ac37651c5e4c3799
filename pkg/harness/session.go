package harness

import "context"

// Backend describes one messaging backend endpoint pair.
type Backend struct {
	// Name is the symbolic backend name (for example "staging").
	Name string `json:"name"`
	// RestURL is the HTTP API endpoint.
	RestURL string `json:"rest"`
	// WebSocketURL is the event stream endpoint.
	WebSocketURL string `json:"ws"`
}

// Credentials carries login secrets supplied by the caller.
type Credentials struct {
	// Email is the account login.
	Email string
	// Password is the account password.
	Password string
}

// DeviceClass categorizes the simulated client device.
type DeviceClass string

const (
	// DeviceClassDesktop is a desktop client.
	DeviceClassDesktop DeviceClass = "desktop"
	// DeviceClassPhone is a phone client.
	DeviceClassPhone DeviceClass = "phone"
	// DeviceClassTablet is a tablet client.
	DeviceClassTablet DeviceClass = "tablet"
)

// DeviceInfo describes the client registered at login.
type DeviceInfo struct {
	// Class is the device category.
	Class DeviceClass
	// Label is a user-visible client label.
	Label string
	// Model is the device model string.
	Model string
}

// PayloadHandler consumes one inbound payload.
//
// Handlers run on the session's delivery flow; a handler returning blocks
// delivery of the next payload to that session.
type PayloadHandler func(ctx context.Context, payload MessagePayload)

// Connector is the login entry point of an external messaging SDK.
type Connector interface {
	// Login authenticates and registers a client, returning an owned session.
	//
	// Rejected credentials fail with an error matching ErrAuthentication.
	Login(ctx context.Context, backend Backend, credentials Credentials, device DeviceInfo) (Session, error)
}

// Session is an opaque, exclusively owned handle into the external messaging SDK.
type Session interface {
	// ClientID returns the registered client id.
	ClientID() string
	// UserID returns the logged-in user id.
	UserID() string
	// Subscribe registers handler for one payload kind. Subscribe before Listen.
	Subscribe(kind MessageKind, handler PayloadHandler)
	// Listen starts event delivery. Payloads are delivered in order, one at a time.
	//
	// ctx bounds the start call only; delivery continues until Logout.
	Listen(ctx context.Context) error
	// Send transmits payload and returns it as accepted, with its final id.
	//
	// Calling Send before Listen fails with ErrSessionNotReady.
	Send(ctx context.Context, payload MessagePayload) (MessagePayload, error)
	// Fingerprint returns the local client's identity fingerprint.
	Fingerprint(ctx context.Context) (string, error)
	// Logout stops delivery and releases backend resources.
	Logout(ctx context.Context) error
}

// MessageCache is the store contract the correlator mutates.
//
// Implementations are not required to be concurrency-safe; callers serialize access.
type MessageCache interface {
	// Get returns the entry for id and refreshes its recency.
	Get(id string) (MessagePayload, bool)
	// Set inserts or replaces the entry for id and reports whether an eviction happened.
	Set(id string, payload MessagePayload) bool
	// Delete removes the entry for id and reports whether it was present.
	Delete(id string) bool
	// Snapshot returns all current entries.
	Snapshot() []MessagePayload
}
