// Package media classifies uploaded objects by extension and checks that
// their bytes are what the extension claims before they are sent upstream.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	_ "golang.org/x/image/webp"
)

var (
	// ErrUnsupported is returned for extensions the pipeline does not handle.
	ErrUnsupported = errors.New("unsupported media type")
	// ErrCorrupt is returned when the bytes do not decode as the declared type.
	ErrCorrupt = errors.New("corrupt media")
	// ErrTooLarge is returned when the object exceeds the inference API limit.
	ErrTooLarge = errors.New("media too large")
)

// Kind is the content block family an object is sent as.
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
	KindText     Kind = "text"
)

// Size limits of the Converse API per content block.
const (
	MaxImageBytes    = 3_750_000
	MaxDocumentBytes = 4_500_000
	MaxTextBytes     = 4_500_000
)

// Type describes a supported object.
type Type struct {
	Ext         string // lowercased, without the dot
	Kind        Kind
	Format      string // png, jpeg, gif, webp, pdf, txt
	ContentType string
}

var types = map[string]Type{
	"png":  {Ext: "png", Kind: KindImage, Format: "png", ContentType: "image/png"},
	"jpg":  {Ext: "jpg", Kind: KindImage, Format: "jpeg", ContentType: "image/jpeg"},
	"jpeg": {Ext: "jpeg", Kind: KindImage, Format: "jpeg", ContentType: "image/jpeg"},
	"gif":  {Ext: "gif", Kind: KindImage, Format: "gif", ContentType: "image/gif"},
	"webp": {Ext: "webp", Kind: KindImage, Format: "webp", ContentType: "image/webp"},
	"pdf":  {Ext: "pdf", Kind: KindDocument, Format: "pdf", ContentType: "application/pdf"},
	"txt":  {Ext: "txt", Kind: KindText, Format: "txt", ContentType: "text/plain"},
}

// Extensions returns the supported extensions with a leading dot, the form
// used by bucket notification suffix filters.
func Extensions() []string {
	return []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".pdf", ".txt"}
}

// Detect classifies an object key by its extension.
func Detect(key string) (Type, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(key), "."))
	t, ok := types[ext]
	if !ok {
		if ext == "" {
			return Type{}, fmt.Errorf("%w: %q has no extension", ErrUnsupported, key)
		}
		return Type{}, fmt.Errorf("%w: .%s", ErrUnsupported, ext)
	}
	return t, nil
}

// Validate checks data against t. Images must decode their header as the
// format the extension names, PDFs must parse, and text must be non-empty
// UTF-8.
func Validate(t Type, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty object", ErrCorrupt)
	}

	switch t.Kind {
	case KindImage:
		if len(data) > MaxImageBytes {
			return fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(data), MaxImageBytes)
		}
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if format != t.Format {
			return fmt.Errorf("%w: extension .%s but content is %s", ErrCorrupt, t.Ext, format)
		}
		if cfg.Width == 0 || cfg.Height == 0 {
			return fmt.Errorf("%w: zero-sized image", ErrCorrupt)
		}
	case KindDocument:
		if len(data) > MaxDocumentBytes {
			return fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(data), MaxDocumentBytes)
		}
		conf := model.NewDefaultConfiguration()
		conf.ValidationMode = model.ValidationRelaxed
		pages, err := api.PageCount(bytes.NewReader(data), conf)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if pages == 0 {
			return fmt.Errorf("%w: pdf has no pages", ErrCorrupt)
		}
	case KindText:
		if len(data) > MaxTextBytes {
			return fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(data), MaxTextBytes)
		}
		if !utf8.Valid(data) {
			return fmt.Errorf("%w: text is not valid UTF-8", ErrCorrupt)
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return fmt.Errorf("%w: text is blank", ErrCorrupt)
		}
	default:
		return fmt.Errorf("%w: kind %q", ErrUnsupported, t.Kind)
	}
	return nil
}
