package models

import "strings"

// ContentKind distinguishes text from attachments inside a message.
type ContentKind string

const (
	// ContentText is a plain text fragment.
	ContentText ContentKind = "text"
	// ContentAttachment is a reference to an uploaded file.
	ContentAttachment ContentKind = "attachment"
)

// MimeCategory is the coarse type of an attachment.
type MimeCategory string

const (
	// MimeImage marks an image attachment.
	MimeImage MimeCategory = "image"
	// MimeFile marks a document attachment.
	MimeFile MimeCategory = "file"
)

// ContentItem is either {kind: text, value} or {kind: attachment, fileRef, mimeCategory}.
type ContentItem struct {
	Kind         ContentKind  `json:"kind"`
	Value        string       `json:"value,omitempty"`
	FileRef      string       `json:"fileRef,omitempty"`
	MimeCategory MimeCategory `json:"mimeCategory,omitempty"`
}

// Text builds a text content item.
func Text(value string) ContentItem {
	return ContentItem{Kind: ContentText, Value: value}
}

// Attachment builds an attachment content item.
func Attachment(fileRef string, category MimeCategory) ContentItem {
	return ContentItem{Kind: ContentAttachment, FileRef: fileRef, MimeCategory: category}
}

// Message is an ordered sequence of content items. Messages are immutable
// once appended to the execution state.
type Message struct {
	Content []ContentItem `json:"content"`
}

// NewTextMessage builds a message holding a single text item.
func NewTextMessage(text string) Message {
	return Message{Content: []ContentItem{Text(text)}}
}

// Text joins the message's text items with newlines.
func (m Message) Text() string {
	var parts []string
	for _, item := range m.Content {
		if item.Kind == ContentText && item.Value != "" {
			parts = append(parts, item.Value)
		}
	}
	return strings.Join(parts, "\n")
}

// Render flattens the message for a prompt: text items verbatim,
// attachments as [image] or [file] placeholders.
func (m Message) Render() string {
	var parts []string
	for _, item := range m.Content {
		switch item.Kind {
		case ContentText:
			if item.Value != "" {
				parts = append(parts, item.Value)
			}
		case ContentAttachment:
			category := item.MimeCategory
			if category == "" {
				category = MimeFile
			}
			parts = append(parts, "["+string(category)+"]")
		}
	}
	return strings.Join(parts, "\n")
}

// RenderMessages flattens a conversation for a prompt.
func RenderMessages(msgs []Message) string {
	var parts []string
	for _, m := range msgs {
		if r := m.Render(); r != "" {
			parts = append(parts, r)
		}
	}
	return strings.Join(parts, "\n")
}

// LastText returns the text of the most recent message that has any.
func LastText(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if t := msgs[i].Text(); t != "" {
			return t
		}
	}
	return ""
}

// HasFileAttachment reports whether any message carries a file attachment.
func HasFileAttachment(msgs []Message) bool {
	for _, m := range msgs {
		for _, item := range m.Content {
			if item.Kind == ContentAttachment && item.MimeCategory == MimeFile {
				return true
			}
		}
	}
	return false
}

// Aspect ratios accepted for generation requests.
const (
	Aspect21x9 = "21:9"
	Aspect16x9 = "16:9"
	Aspect4x3  = "4:3"
	Aspect1x1  = "1:1"
	Aspect3x4  = "3:4"
	Aspect9x16 = "9:16"
)

// DefaultAspect is used when no aspect ratio was supplied.
const DefaultAspect = Aspect16x9

// ValidAspect returns true if s is an accepted aspect ratio.
func ValidAspect(s string) bool {
	switch s {
	case Aspect21x9, Aspect16x9, Aspect4x3, Aspect1x1, Aspect3x4, Aspect9x16:
		return true
	default:
		return false
	}
}

// Config holds generation preferences. It merges field-wise, later values win.
type Config struct {
	Aspect string `json:"aspect,omitempty"`
}

// DefaultConfig returns the config a fresh execution starts with.
func DefaultConfig() Config {
	return Config{Aspect: DefaultAspect}
}

// Merge overlays the non-empty fields of other onto c.
func (c Config) Merge(other Config) Config {
	if other.Aspect != "" {
		c.Aspect = other.Aspect
	}
	return c
}
