package blocks

import (
	"encoding/json"
	"net/url"
	"strings"
	"unicode/utf8"
)

// CharBlock is a single line of plain text.
type CharBlock struct {
	Optional  bool
	MaxLength int
	BlockMeta Meta
}

func (b *CharBlock) Kind() Kind { return KindChar }
func (b *CharBlock) Meta() Meta { return b.BlockMeta }

func (b *CharBlock) Clean(raw json.RawMessage) (any, error) {
	var s string
	if !isNull(raw) {
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", invalid("Enter a valid text value.")
		}
	}
	s = strings.TrimSpace(s)
	if s == "" && !b.Optional {
		return s, invalid(msgRequired)
	}
	if b.MaxLength > 0 && utf8.RuneCountInString(s) > b.MaxLength {
		return s, invalid("Ensure this value has at most %d characters (it has %d).", b.MaxLength, utf8.RuneCountInString(s))
	}
	return s, nil
}

// RichText is Markdown source rendered through the rich text renderer.
type RichText string

// RichTextBlock is a block of rich text.
type RichTextBlock struct {
	Optional  bool
	BlockMeta Meta
}

func (b *RichTextBlock) Kind() Kind { return KindRichText }
func (b *RichTextBlock) Meta() Meta { return b.BlockMeta }

func (b *RichTextBlock) Clean(raw json.RawMessage) (any, error) {
	var s string
	if !isNull(raw) {
		if err := json.Unmarshal(raw, &s); err != nil {
			return RichText(""), invalid("Enter valid rich text.")
		}
	}
	if strings.TrimSpace(s) == "" && !b.Optional {
		return RichText(s), invalid(msgRequired)
	}
	return RichText(s), nil
}

// ImageID references an uploaded image. Zero means no image.
type ImageID int64

// ImageChooserBlock selects one uploaded image.
type ImageChooserBlock struct {
	Optional  bool
	BlockMeta Meta
}

func (b *ImageChooserBlock) Kind() Kind { return KindImage }
func (b *ImageChooserBlock) Meta() Meta { return b.BlockMeta }

func (b *ImageChooserBlock) Clean(raw json.RawMessage) (any, error) {
	var id ImageID
	if !isNull(raw) {
		if err := json.Unmarshal(raw, &id); err != nil || id < 0 {
			return ImageID(0), invalid("Select a valid image.")
		}
	}
	if id == 0 && !b.Optional {
		return id, invalid(msgRequired)
	}
	return id, nil
}

// EmbedURL is the URL of embeddable media such as a video page.
type EmbedURL string

// EmbedBlock embeds external media by URL.
type EmbedBlock struct {
	Optional  bool
	BlockMeta Meta
}

func (b *EmbedBlock) Kind() Kind { return KindEmbed }
func (b *EmbedBlock) Meta() Meta { return b.BlockMeta }

func (b *EmbedBlock) Clean(raw json.RawMessage) (any, error) {
	var s string
	if !isNull(raw) {
		if err := json.Unmarshal(raw, &s); err != nil {
			return EmbedURL(""), invalid("Enter a valid URL.")
		}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		if b.Optional {
			return EmbedURL(""), nil
		}
		return EmbedURL(""), invalid(msgRequired)
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return EmbedURL(s), invalid("Enter a valid URL.")
	}
	return EmbedURL(s), nil
}
