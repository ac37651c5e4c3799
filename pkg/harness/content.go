package harness

// Content is the sealed set of kind-specific payload variants.
//
// Only types declared in this package implement Content, so a type switch over
// the variants below is exhaustive.
type Content interface {
	// Kind returns the message kind this variant belongs to.
	Kind() MessageKind
	clone() Content
}

// Mention marks a user mention inside a text body.
type Mention struct {
	// UserID is the mentioned user.
	UserID string `json:"userId"`
	// Start is the zero-based offset in the text.
	Start int `json:"start"`
	// Length is the mention span.
	Length int `json:"length"`
}

// Quote references the message a text replies to.
type Quote struct {
	// MessageID is the quoted message id.
	MessageID string `json:"quotedMessageId"`
}

// LinkPreview describes one URL preview embedded in a text.
type LinkPreview struct {
	// URL is the previewed link.
	URL string `json:"url"`
	// URLOffset is the link offset inside the text.
	URLOffset int `json:"urlOffset"`
	// Title is the preview title.
	Title string `json:"title,omitempty"`
	// Summary is the preview description.
	Summary string `json:"summary,omitempty"`
	// Image is the optional preview image.
	Image *ImageContent `json:"image,omitempty"`
}

// TextContent is the body of text messages.
type TextContent struct {
	// Text is the message body.
	Text string `json:"text"`
	// LinkPreviews is optional.
	LinkPreviews []LinkPreview `json:"linkPreviews,omitempty"`
	// Mentions is optional.
	Mentions []Mention `json:"mentions,omitempty"`
	// Quote is optional.
	Quote *Quote `json:"quote,omitempty"`
}

// Kind implements Content.
func (c TextContent) Kind() MessageKind { return MessageKindText }

func (c TextContent) clone() Content {
	cloned := c
	cloned.LinkPreviews = cloneLinkPreviews(c.LinkPreviews)
	if c.Mentions != nil {
		cloned.Mentions = append([]Mention(nil), c.Mentions...)
	}
	if c.Quote != nil {
		quote := *c.Quote
		cloned.Quote = &quote
	}

	return cloned
}

// WithoutPreviewImages drops embedded link-preview image bytes.
func (c TextContent) WithoutPreviewImages() TextContent {
	stripped, _ := c.clone().(TextContent)
	for idx := range stripped.LinkPreviews {
		if stripped.LinkPreviews[idx].Image != nil {
			stripped.LinkPreviews[idx].Image.Data = nil
		}
	}

	return stripped
}

// AudioMeta describes audio assets.
type AudioMeta struct {
	// DurationMillis is the clip length.
	DurationMillis int64 `json:"durationInMillis"`
	// Normalization is the loudness preview.
	Normalization []byte `json:"normalizedLoudness,omitempty"`
}

// VideoMeta describes video assets.
type VideoMeta struct {
	// Width in pixels.
	Width int `json:"width"`
	// Height in pixels.
	Height int `json:"height"`
	// DurationMillis is the clip length.
	DurationMillis int64 `json:"durationInMillis"`
}

// AssetOriginal is the descriptive metadata of an uploaded file.
type AssetOriginal struct {
	// Name is the file name.
	Name string `json:"name,omitempty"`
	// MimeType is the file content type.
	MimeType string `json:"mimeType"`
	// Size is the plaintext size in bytes.
	Size int64 `json:"size"`
	// Audio is set for audio files.
	Audio *AudioMeta `json:"audio,omitempty"`
	// Video is set for video files.
	Video *VideoMeta `json:"video,omitempty"`
}

func (o *AssetOriginal) cloneOriginal() *AssetOriginal {
	if o == nil {
		return nil
	}

	cloned := *o
	if o.Audio != nil {
		audio := *o.Audio
		audio.Normalization = append([]byte(nil), o.Audio.Normalization...)
		cloned.Audio = &audio
	}
	if o.Video != nil {
		video := *o.Video
		cloned.Video = &video
	}

	return &cloned
}

// AssetUploaded locates the encrypted upload and carries its cipher material.
type AssetUploaded struct {
	// Key is the backend asset key.
	Key string `json:"key"`
	// Token is the optional asset access token.
	Token string `json:"token,omitempty"`
	// Domain is the backend domain owning the asset.
	Domain string `json:"domain,omitempty"`
	// OtrKey is the symmetric key of the upload.
	OtrKey []byte `json:"otrKey,omitempty"`
	// SHA256 is the ciphertext digest.
	SHA256 []byte `json:"sha256,omitempty"`
}

// AssetMetadataContent is the placeholder announcing an upload.
type AssetMetadataContent struct {
	// Original describes the file being uploaded.
	Original AssetOriginal `json:"original"`
}

// Kind implements Content.
func (c AssetMetadataContent) Kind() MessageKind { return MessageKindAssetMetadata }

func (c AssetMetadataContent) clone() Content {
	original := c.Original.cloneOriginal()

	return AssetMetadataContent{Original: *original}
}

// AssetContent is the final part of an asset upload.
type AssetContent struct {
	// Original is copied from the placeholder when one was seen.
	Original *AssetOriginal `json:"original,omitempty"`
	// Uploaded locates the encrypted upload.
	Uploaded *AssetUploaded `json:"uploaded,omitempty"`
	// Data is the raw file content when delivered inline.
	Data []byte `json:"data,omitempty"`
}

// Kind implements Content.
func (c AssetContent) Kind() MessageKind { return MessageKindAssetData }

func (c AssetContent) clone() Content {
	cloned := c
	cloned.Original = c.Original.cloneOriginal()
	if c.Uploaded != nil {
		uploaded := *c.Uploaded
		uploaded.OtrKey = append([]byte(nil), c.Uploaded.OtrKey...)
		uploaded.SHA256 = append([]byte(nil), c.Uploaded.SHA256...)
		cloned.Uploaded = &uploaded
	}
	if c.Data != nil {
		cloned.Data = append([]byte(nil), c.Data...)
	}

	return cloned
}

// WithoutSecrets drops cipher material and raw bytes.
func (c AssetContent) WithoutSecrets() AssetContent {
	stripped, _ := c.clone().(AssetContent)
	stripped.Data = nil
	if stripped.Uploaded != nil {
		stripped.Uploaded.OtrKey = nil
		stripped.Uploaded.SHA256 = nil
	}

	return stripped
}

// ImageContent is an inline image.
type ImageContent struct {
	// Width in pixels.
	Width int `json:"width"`
	// Height in pixels.
	Height int `json:"height"`
	// MimeType is the image content type.
	MimeType string `json:"type"`
	// Data is the image bytes.
	Data []byte `json:"data,omitempty"`
}

// Kind implements Content.
func (c ImageContent) Kind() MessageKind { return MessageKindAssetImage }

func (c ImageContent) clone() Content {
	cloned := c
	if c.Data != nil {
		cloned.Data = append([]byte(nil), c.Data...)
	}

	return cloned
}

// LocationContent is a shared location.
type LocationContent struct {
	// Latitude in degrees.
	Latitude float64 `json:"latitude"`
	// Longitude in degrees.
	Longitude float64 `json:"longitude"`
	// Name is an optional place label.
	Name string `json:"name,omitempty"`
	// Zoom is the suggested map zoom level.
	Zoom int `json:"zoom,omitempty"`
}

// Kind implements Content.
func (c LocationContent) Kind() MessageKind { return MessageKindLocation }

func (c LocationContent) clone() Content { return c }

// PingContent is a knock.
type PingContent struct {
	// Hotknock marks a repeated knock.
	Hotknock bool `json:"hotKnock"`
}

// Kind implements Content.
func (c PingContent) Kind() MessageKind { return MessageKindPing }

func (c PingContent) clone() Content { return c }

// EditContent replaces the text of a previously sent message.
type EditContent struct {
	// OriginalMessageID is the id being replaced.
	OriginalMessageID string `json:"originalMessageId"`
	// Text is the replacement body.
	Text string `json:"text"`
	// Mentions is optional.
	Mentions []Mention `json:"mentions,omitempty"`
	// Quote is optional.
	Quote *Quote `json:"quote,omitempty"`
}

// Kind implements Content.
func (c EditContent) Kind() MessageKind { return MessageKindEdit }

func (c EditContent) clone() Content {
	cloned := c
	if c.Mentions != nil {
		cloned.Mentions = append([]Mention(nil), c.Mentions...)
	}
	if c.Quote != nil {
		quote := *c.Quote
		cloned.Quote = &quote
	}

	return cloned
}

// DeleteContent deletes one message, locally or for everyone.
type DeleteContent struct {
	// MessageID is the deleted message.
	MessageID string `json:"messageId"`
	// ForEveryone selects delete-everyone over delete-local.
	ForEveryone bool `json:"forEveryone"`
}

// Kind implements Content.
func (c DeleteContent) Kind() MessageKind {
	if c.ForEveryone {
		return MessageKindDeleteEveryone
	}

	return MessageKindDeleteLocal
}

func (c DeleteContent) clone() Content { return c }

// HideContent hides one message on the user's other clients.
type HideContent struct {
	// MessageID is the hidden message.
	MessageID string `json:"messageId"`
	// ConversationID is the conversation holding the message.
	ConversationID string `json:"conversationId"`
}

// Kind implements Content.
func (c HideContent) Kind() MessageKind { return MessageKindHide }

func (c HideContent) clone() Content { return c }

// ClearContent clears one conversation.
type ClearContent struct {
	// ConversationID is the cleared conversation.
	ConversationID string `json:"conversationId"`
}

// Kind implements Content.
func (c ClearContent) Kind() MessageKind { return MessageKindClear }

func (c ClearContent) clone() Content { return c }

// ConfirmationContent acknowledges one or more messages.
type ConfirmationContent struct {
	// FirstMessageID is the primary acknowledged message.
	FirstMessageID string `json:"firstMessageId"`
	// MoreMessageIDs lists additional acknowledged messages.
	MoreMessageIDs []string `json:"moreMessageIds,omitempty"`
	// Type is delivered or read.
	Type ConfirmationType `json:"type"`
}

// Kind implements Content.
func (c ConfirmationContent) Kind() MessageKind { return MessageKindConfirmation }

func (c ConfirmationContent) clone() Content {
	cloned := c
	if c.MoreMessageIDs != nil {
		cloned.MoreMessageIDs = append([]string(nil), c.MoreMessageIDs...)
	}

	return cloned
}

// MessageIDs returns the primary id followed by the additional ids.
func (c ConfirmationContent) MessageIDs() []string {
	ids := make([]string, 0, 1+len(c.MoreMessageIDs))
	ids = append(ids, c.FirstMessageID)
	ids = append(ids, c.MoreMessageIDs...)

	return ids
}

// ReactionContent likes or unlikes one message.
type ReactionContent struct {
	// OriginalMessageID is the message reacted to.
	OriginalMessageID string `json:"originalMessageId"`
	// Type is like or none.
	Type ReactionType `json:"type"`
}

// Kind implements Content.
func (c ReactionContent) Kind() MessageKind { return MessageKindReaction }

func (c ReactionContent) clone() Content { return c }

func cloneLinkPreviews(previews []LinkPreview) []LinkPreview {
	if previews == nil {
		return nil
	}

	cloned := make([]LinkPreview, len(previews))
	for idx, preview := range previews {
		previewClone := preview
		if preview.Image != nil {
			image, _ := preview.Image.clone().(ImageContent)
			previewClone.Image = &image
		}
		cloned[idx] = previewClone
	}

	return cloned
}
