package imageref

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// ErrNotFound indicates a local image path does not exist.
	ErrNotFound = errors.New("image not found")
	// ErrIO indicates a local image exists but could not be read.
	ErrIO = errors.New("image could not be read")
)

// DefaultMIMEType is used when the file extension is not recognised.
const DefaultMIMEType = "image/jpeg"

var extensionMIME = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Kind distinguishes remote references from local files.
type Kind int

const (
	KindNone Kind = iota
	KindRemote
	KindLocal
)

// Source is a classified image reference. Classification happens once, at Parse time.
type Source struct {
	kind Kind
	ref  string
}

// Remote builds a source for an http(s) URL.
func Remote(url string) Source {
	return Source{kind: KindRemote, ref: strings.TrimSpace(url)}
}

// Local builds a source for a filesystem path.
func Local(path string) Source {
	return Source{kind: KindLocal, ref: strings.TrimSpace(path)}
}

// Parse classifies a raw reference: http:// and https:// prefixes are remote, everything else is a path.
func Parse(raw string) Source {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Source{}
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return Remote(trimmed)
	}
	return Local(trimmed)
}

// Kind reports how the source was classified.
func (s Source) Kind() Kind { return s.kind }

// Ref returns the URL or path.
func (s Source) Ref() string { return s.ref }

// IsZero reports whether the source is empty.
func (s Source) IsZero() bool { return s.kind == KindNone || s.ref == "" }

// IsRemote reports whether the source points to a URL.
func (s Source) IsRemote() bool { return s.kind == KindRemote }

func (s Source) String() string { return s.ref }

// Image is the payload handed to a model: either a passthrough URL or inline base64 bytes.
type Image struct {
	URL      string
	MIMEType string
	Base64   string
}

// IsInline reports whether the image carries inline bytes.
func (i Image) IsInline() bool { return i.URL == "" && i.Base64 != "" }

// DataURL renders the image the way vision chat APIs expect an image_url value.
func (i Image) DataURL() string {
	if !i.IsInline() {
		return i.URL
	}
	return "data:" + i.MIMEType + ";base64," + i.Base64
}

// Bytes decodes the inline payload.
func (i Image) Bytes() ([]byte, error) {
	if !i.IsInline() {
		return nil, fmt.Errorf("image %q is not inline", i.URL)
	}
	return base64.StdEncoding.DecodeString(i.Base64)
}

// MIMEForPath maps a file extension to its image MIME type.
func MIMEForPath(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if mime, ok := extensionMIME[ext]; ok {
		return mime, true
	}
	return DefaultMIMEType, false
}

// Encoder turns sources into model-ready images.
type Encoder struct {
	logger zerolog.Logger
}

// NewEncoder constructs an encoder.
func NewEncoder(logger zerolog.Logger) *Encoder {
	return &Encoder{logger: logger.With().Str("component", "image_encoder").Logger()}
}

// Encode passes remote URLs through untouched and inlines local files as base64.
func (e *Encoder) Encode(src Source) (Image, error) {
	switch src.kind {
	case KindRemote:
		return Image{URL: src.ref}, nil
	case KindLocal:
		return e.encodeFile(src.ref)
	default:
		return Image{}, fmt.Errorf("empty image reference: %w", ErrNotFound)
	}
}

func (e *Encoder) encodeFile(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Image{}, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return Image{}, fmt.Errorf("%s: %w: %v", path, ErrIO, err)
	}

	mime, known := MIMEForPath(path)
	if !known {
		e.logger.Warn().
			Str("path", path).
			Str("extension", filepath.Ext(path)).
			Msg("unrecognised image extension, assuming jpeg")
	}

	return Image{
		MIMEType: mime,
		Base64:   base64.StdEncoding.EncodeToString(data),
	}, nil
}
