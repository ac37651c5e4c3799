package harness

import (
	"errors"
	"fmt"
	"testing"
)

func TestPayloadValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload MessagePayload
		wantErr bool
	}{
		{
			name:    "text",
			payload: NewPayload("conv", TextContent{Text: "hi"}),
		},
		{
			name:    "delete for everyone derives kind",
			payload: NewPayload("conv", DeleteContent{MessageID: "m1", ForEveryone: true}),
		},
		{
			name:    "unknown kind",
			payload: MessagePayload{ConversationID: "conv", Kind: "sticker", Content: TextContent{}},
			wantErr: true,
		},
		{
			name:    "missing content",
			payload: MessagePayload{ConversationID: "conv", Kind: MessageKindText},
			wantErr: true,
		},
		{
			name:    "kind and content disagree",
			payload: MessagePayload{ConversationID: "conv", Kind: MessageKindPing, Content: TextContent{}},
			wantErr: true,
		},
		{
			name:    "missing conversation",
			payload: NewPayload("", PingContent{}),
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := testCase.payload.Validate()
			if testCase.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("validate error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("validate: %v", err)
			}
		})
	}
}

func TestDeleteContentKind(t *testing.T) {
	t.Parallel()

	if kind := (DeleteContent{MessageID: "m1"}).Kind(); kind != MessageKindDeleteLocal {
		t.Fatalf("local delete kind = %s, want %s", kind, MessageKindDeleteLocal)
	}
	if kind := (DeleteContent{MessageID: "m1", ForEveryone: true}).Kind(); kind != MessageKindDeleteEveryone {
		t.Fatalf("everyone delete kind = %s, want %s", kind, MessageKindDeleteEveryone)
	}
}

func TestMessageKindsIsClosedSet(t *testing.T) {
	t.Parallel()

	kinds := MessageKinds()
	if len(kinds) != 13 {
		t.Fatalf("kinds = %d, want 13", len(kinds))
	}
	kinds[0] = "mutated"
	if MessageKinds()[0] != MessageKindText {
		t.Fatal("MessageKinds exposes its backing array")
	}
	if MessageKind("sticker").Valid() {
		t.Fatal("unknown kind reported valid")
	}
}

func TestCloneSharesNoMutableState(t *testing.T) {
	t.Parallel()

	original := NewPayload("conv", TextContent{
		Text:         "see link",
		LinkPreviews: []LinkPreview{{URL: "https://example.test", Image: &ImageContent{Data: []byte{1, 2}}}},
		Mentions:     []Mention{{UserID: "u1"}},
	})
	original.Confirmations = []Confirmation{{From: "u2", Type: ConfirmationTypeRead}}
	original.Reactions = []Reaction{{From: "u3"}}

	cloned := original.Clone()
	clonedText := cloned.Content.(TextContent)
	clonedText.LinkPreviews[0].Image.Data[0] = 9
	clonedText.Mentions[0].UserID = "changed"
	cloned.Confirmations[0].From = "changed"
	cloned.Reactions[0].From = "changed"

	originalText := original.Content.(TextContent)
	if originalText.LinkPreviews[0].Image.Data[0] != 1 {
		t.Fatal("preview image bytes shared with clone")
	}
	if originalText.Mentions[0].UserID != "u1" {
		t.Fatal("mentions shared with clone")
	}
	if original.Confirmations[0].From != "u2" || original.Reactions[0].From != "u3" {
		t.Fatal("attributes shared with clone")
	}
}

func TestStrippedContentKeepsOriginalIntact(t *testing.T) {
	t.Parallel()

	text := TextContent{
		Text:         "link",
		LinkPreviews: []LinkPreview{{URL: "https://example.test", Image: &ImageContent{Data: []byte{1}}}},
	}
	if stripped := text.WithoutPreviewImages(); stripped.LinkPreviews[0].Image.Data != nil {
		t.Fatal("preview image bytes kept")
	}
	if text.LinkPreviews[0].Image.Data == nil {
		t.Fatal("stripping mutated the source text")
	}

	asset := AssetContent{
		Original: &AssetOriginal{Name: "a.txt", MimeType: "text/plain", Size: 3},
		Uploaded: &AssetUploaded{Key: "k", OtrKey: []byte{1}, SHA256: []byte{2}},
		Data:     []byte("abc"),
	}
	stripped := asset.WithoutSecrets()
	if stripped.Data != nil || stripped.Uploaded.OtrKey != nil || stripped.Uploaded.SHA256 != nil {
		t.Fatalf("stripped asset = %+v, want no secrets", stripped)
	}
	if stripped.Uploaded.Key != "k" || stripped.Original.Name != "a.txt" {
		t.Fatalf("stripped asset = %+v, want locator and description kept", stripped)
	}
	if asset.Data == nil || asset.Uploaded.OtrKey == nil {
		t.Fatal("stripping mutated the source asset")
	}
}

func TestConfirmationMessageIDs(t *testing.T) {
	t.Parallel()

	content := ConfirmationContent{FirstMessageID: "m1", MoreMessageIDs: []string{"m2", "m3"}}
	ids := content.MessageIDs()
	if len(ids) != 3 || ids[0] != "m1" || ids[2] != "m3" {
		t.Fatalf("message ids = %v, want [m1 m2 m3]", ids)
	}
}

func TestBackendErrorTaxonomy(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	tests := []struct {
		name         string
		err          error
		wantAuth     bool
		wantNotReady bool
		wantMessage  string
	}{
		{
			name: "authentication with message",
			err: fmt.Errorf("login: %w", &BackendError{
				Operation: BackendOperationLogin,
				Kind:      BackendErrorKindAuthentication,
				Code:      403,
				Message:   "Invalid email or password",
			}),
			wantAuth:    true,
			wantMessage: "Invalid email or password",
		},
		{
			name: "transport wraps cause",
			err: &BackendError{
				Operation: BackendOperationSend,
				Kind:      BackendErrorKindTransport,
				Cause:     fmt.Errorf("dial: %w", ErrSessionNotReady),
			},
			wantNotReady: true,
		},
		{
			name: "plain error",
			err:  cause,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if got := errors.Is(testCase.err, ErrAuthentication); got != testCase.wantAuth {
				t.Fatalf("errors.Is(ErrAuthentication) = %v, want %v", got, testCase.wantAuth)
			}
			if got := errors.Is(testCase.err, ErrSessionNotReady); got != testCase.wantNotReady {
				t.Fatalf("errors.Is(ErrSessionNotReady) = %v, want %v", got, testCase.wantNotReady)
			}
			message, ok := UserMessage(testCase.err)
			if ok != (testCase.wantMessage != "") || message != testCase.wantMessage {
				t.Fatalf("UserMessage = %q/%v, want %q", message, ok, testCase.wantMessage)
			}
		})
	}
}

func TestNotFoundError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("get: %w", NewInstanceNotFound("abc"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("instance not found does not match ErrNotFound")
	}

	var notFound *NotFoundError
	if !errors.As(err, &notFound) || notFound.Resource != "instance" || notFound.ID != "abc" {
		t.Fatalf("not found = %+v, want instance abc", notFound)
	}
	if got := NewMessageNotFound("m1").Error(); got != `message "m1" not found` {
		t.Fatalf("message not found error = %q", got)
	}
}
