package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/goleak"

	"msgharness/internal/backend"
	"msgharness/internal/instance"
	"msgharness/internal/metrics"
	"msgharness/internal/session/loopback"
	"msgharness/pkg/harness"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testAPI struct {
	server   *httptest.Server
	registry *instance.Registry
}

func newTestAPI(t *testing.T, hubOptions ...loopback.Option) *testAPI {
	t.Helper()

	selector, err := backend.NewSelector(backend.WithDefault(backend.NameLoopback))
	if err != nil {
		t.Fatalf("new selector failed: %v", err)
	}
	promRegistry := prometheus.NewRegistry()
	collectors := metrics.New(promRegistry)
	registry, err := instance.NewRegistry(selector, loopback.NewHub(hubOptions...), instance.WithMetrics(collectors))
	if err != nil {
		t.Fatalf("new registry failed: %v", err)
	}

	server := httptest.NewServer(NewRouter(registry, WithMetrics(collectors, promRegistry)))
	t.Cleanup(func() {
		server.Close()
		_ = registry.Shutdown(context.Background())
	})

	return &testAPI{server: server, registry: registry}
}

func (a *testAPI) do(t *testing.T, method string, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request failed: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, a.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response failed: %v", err)
	}

	return resp.StatusCode, payload
}

func (a *testAPI) createInstance(t *testing.T, email string) string {
	t.Helper()

	status, body := a.do(t, http.MethodPut, "/api/v1/instance", map[string]string{
		"email":    email,
		"password": "pw",
		"name":     email,
	})
	if status != http.StatusOK {
		t.Fatalf("create status = %d body = %s", status, body)
	}
	var created createInstanceResponse
	decodeBody(t, body, &created)

	return created.InstanceID
}

func TestInstanceLifecycle(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	instanceID := api.createInstance(t, "alice@example.com")

	status, body := api.do(t, http.MethodGet, "/api/v1/instance/"+instanceID, nil)
	if status != http.StatusOK {
		t.Fatalf("get status = %d body = %s", status, body)
	}
	var view instanceView
	decodeBody(t, body, &view)
	if view.InstanceID != instanceID || view.Backend.Name != backend.NameLoopback || view.ClientID == "" {
		t.Fatalf("view = %+v", view)
	}
	if len(view.Fingerprint) != 64 {
		t.Fatalf("view fingerprint = %q, want 64 hex characters", view.Fingerprint)
	}

	status, body = api.do(t, http.MethodGet, "/api/v1/instances", nil)
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	var listed map[string]instanceView
	decodeBody(t, body, &listed)
	if _, exists := listed[instanceID]; !exists || len(listed) != 1 {
		t.Fatalf("listed = %+v", listed)
	}

	status, body = api.do(t, http.MethodGet, "/api/v1/instance/"+instanceID+"/fingerprint", nil)
	if status != http.StatusOK {
		t.Fatalf("fingerprint status = %d body = %s", status, body)
	}
	var fingerprint fingerprintResponse
	decodeBody(t, body, &fingerprint)
	if len(fingerprint.Fingerprint) != 64 {
		t.Fatalf("fingerprint = %q", fingerprint.Fingerprint)
	}
	if fingerprint.Fingerprint != view.Fingerprint {
		t.Fatalf("fingerprint = %q, want %q from instance view", fingerprint.Fingerprint, view.Fingerprint)
	}

	if status, body = api.do(t, http.MethodDelete, "/api/v1/instance/"+instanceID, nil); status != http.StatusOK {
		t.Fatalf("delete status = %d body = %s", status, body)
	}
	if status, _ = api.do(t, http.MethodGet, "/api/v1/instance/"+instanceID, nil); status != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", status)
	}
}

func TestSendTextThenGetMessages(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	instanceID := api.createInstance(t, "alice@example.com")

	status, body := api.do(t, http.MethodPost, "/api/v1/instance/"+instanceID+"/sendText", map[string]string{
		"conversationId": "conv-a",
		"text":           "hello",
	})
	if status != http.StatusOK {
		t.Fatalf("send status = %d body = %s", status, body)
	}
	var sent messageResponse
	decodeBody(t, body, &sent)
	if sent.MessageID == "" {
		t.Fatal("message id is empty")
	}

	status, body = api.do(t, http.MethodPost, "/api/v1/instance/"+instanceID+"/getMessages", map[string]string{
		"conversationId": "conv-a",
	})
	if status != http.StatusOK {
		t.Fatalf("get messages status = %d body = %s", status, body)
	}
	var messages []struct {
		ID             string `json:"id"`
		ConversationID string `json:"conversation"`
		Type           string `json:"type"`
		Content        struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	decodeBody(t, body, &messages)
	if len(messages) != 1 {
		t.Fatalf("messages = %s", body)
	}
	if messages[0].ID != sent.MessageID || messages[0].Type != "text" || messages[0].Content.Text != "hello" {
		t.Fatalf("message = %+v", messages[0])
	}
}

func TestErrorStatusMapping(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, loopback.WithAccounts(loopback.Account{Email: "bob@example.com", Password: "right"}))
	status, body := api.do(t, http.MethodPut, "/api/v1/instance", map[string]string{
		"email":    "bob@example.com",
		"password": "right",
	})
	if status != http.StatusOK {
		t.Fatalf("create status = %d body = %s", status, body)
	}
	var created createInstanceResponse
	decodeBody(t, body, &created)
	instancePath := "/api/v1/instance/" + created.InstanceID

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantText   string
	}{
		{
			name:       "unknown instance",
			method:     http.MethodPost,
			path:       "/api/v1/instance/missing/sendPing",
			body:       map[string]any{"conversationId": "conv"},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing conversation",
			method:     http.MethodPost,
			path:       instancePath + "/sendText",
			body:       map[string]any{"text": "x"},
			wantStatus: http.StatusUnprocessableEntity,
			wantText:   "ConversationID",
		},
		{
			name:       "messages without conversation",
			method:     http.MethodPost,
			path:       instancePath + "/getMessages",
			body:       map[string]any{},
			wantStatus: http.StatusUnprocessableEntity,
			wantText:   "ConversationID",
		},
		{
			name:       "unknown field",
			method:     http.MethodPost,
			path:       instancePath + "/sendPing",
			body:       map[string]any{"conversationId": "conv", "bogus": true},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "invalid reaction type",
			method:     http.MethodPost,
			path:       instancePath + "/sendReaction",
			body:       map[string]any{"conversationId": "conv", "originalMessageId": "m", "type": "love"},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "confirmation of unknown message",
			method:     http.MethodPost,
			path:       instancePath + "/sendConfirmationDelivered",
			body:       map[string]any{"conversationId": "conv", "firstMessageId": "unknown"},
			wantStatus: http.StatusNotFound,
			wantText:   "message",
		},
		{
			name:       "wrong password",
			method:     http.MethodPut,
			path:       "/api/v1/instance",
			body:       map[string]any{"email": "bob@example.com", "password": "wrong"},
			wantStatus: http.StatusUnauthorized,
			wantText:   "Invalid email or password",
		},
		{
			name:       "unknown backend",
			method:     http.MethodPut,
			path:       "/api/v1/instance",
			body:       map[string]any{"email": "bob@example.com", "password": "right", "backend": "mars"},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "invalid email",
			method:     http.MethodPut,
			path:       "/api/v1/instance",
			body:       map[string]any{"email": "not-an-email", "password": "x"},
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			status, body := api.do(t, testCase.method, testCase.path, testCase.body)
			if status != testCase.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", status, testCase.wantStatus, body)
			}
			var response errorResponse
			decodeBody(t, body, &response)
			if response.Error == "" {
				t.Fatalf("error body missing: %s", body)
			}
			if testCase.wantText != "" && !strings.Contains(string(body), testCase.wantText) {
				t.Fatalf("body = %s, want containing %q", body, testCase.wantText)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{err: harness.NewInstanceNotFound("x"), want: http.StatusNotFound},
		{err: fmt.Errorf("wrapped: %w", harness.ErrValidation), want: http.StatusUnprocessableEntity},
		{err: harness.ErrSessionNotReady, want: http.StatusConflict},
		{err: &harness.BackendError{Kind: harness.BackendErrorKindAuthentication}, want: http.StatusUnauthorized},
		{err: &harness.BackendError{Kind: harness.BackendErrorKindTransport}, want: http.StatusBadGateway},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, testCase := range tests {
		if got := statusFor(testCase.err); got != testCase.want {
			t.Fatalf("statusFor(%v) = %d, want %d", testCase.err, got, testCase.want)
		}
	}
}

func TestConversationAcrossInstances(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	alice := api.createInstance(t, "alice@example.com")
	bob := api.createInstance(t, "bob@example.com")

	status, body := api.do(t, http.MethodPost, "/api/v1/instance/"+alice+"/sendText", map[string]string{
		"conversationId": "conv",
		"text":           "ping",
	})
	if status != http.StatusOK {
		t.Fatalf("send status = %d body = %s", status, body)
	}
	var sent messageResponse
	decodeBody(t, body, &sent)

	deadline := time.Now().Add(2 * time.Second)
	for {
		messages, err := api.registry.GetMessages(bob, "conv")
		if err != nil {
			t.Fatalf("get messages failed: %v", err)
		}
		if len(messages) == 1 && messages[0].ID == sent.MessageID {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("bob never received the message")
		}
		time.Sleep(5 * time.Millisecond)
	}

	status, body = api.do(t, http.MethodPost, "/api/v1/instance/"+bob+"/clear", map[string]string{
		"conversationId": "conv",
	})
	if status != http.StatusOK {
		t.Fatalf("clear status = %d body = %s", status, body)
	}
	messages, err := api.registry.GetMessages(bob, "conv")
	if err != nil {
		t.Fatalf("get messages failed: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("messages after clear = %d", len(messages))
	}
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	api.createInstance(t, "alice@example.com")

	status, body := api.do(t, http.MethodGet, "/health", nil)
	if status != http.StatusOK {
		t.Fatalf("health status = %d", status)
	}
	var health healthResponse
	decodeBody(t, body, &health)
	if health.Status != "healthy" || health.Instances != 1 {
		t.Fatalf("health = %+v", health)
	}

	status, body = api.do(t, http.MethodGet, "/metrics", nil)
	if status != http.StatusOK {
		t.Fatalf("metrics status = %d", status)
	}
	for _, want := range []string{
		"harness_instances_created_total 1",
		`harness_http_requests_total{method="PUT",route="/api/v1/instance",status="200"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}

func decodeBody(t *testing.T, body []byte, dst any) {
	t.Helper()

	if err := json.Unmarshal(body, dst); err != nil {
		t.Fatalf("decode %s failed: %v", body, err)
	}
}
