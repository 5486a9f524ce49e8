package pipeline

import (
	"errors"

	"github.com/Koba-gh/bedrock-json-cdk/internal/media"
	"github.com/Koba-gh/bedrock-json-cdk/internal/providers"
	"github.com/Koba-gh/bedrock-json-cdk/internal/specs"
	"github.com/Koba-gh/bedrock-json-cdk/internal/storage"
)

var (
	// ErrUnsupportedMedia is returned for object keys with an extension the
	// pipeline does not handle. Nothing is written.
	ErrUnsupportedMedia = errors.New("unsupported media")

	// ErrUnreadableInput is returned when the object cannot be read or does
	// not decode as its extension says. Nothing is written.
	ErrUnreadableInput = errors.New("unreadable input")

	// ErrNoToolCall is returned when the model answers without calling the
	// extraction tool.
	ErrNoToolCall = errors.New("no tool call in response")

	// ErrInvalidExtraction is returned when the tool arguments fail schema
	// validation.
	ErrInvalidExtraction = specs.ErrInvalidExtraction
)

// Class groups errors by what a retry could change.
type Class string

const (
	ClassNone       Class = ""
	ClassInput      Class = "input"      // the object itself is bad
	ClassExtraction Class = "extraction" // the model answered badly
	ClassUpstream   Class = "upstream"   // an AWS or provider call failed
)

// Classify returns the class of err.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrUnsupportedMedia),
		errors.Is(err, ErrUnreadableInput),
		errors.Is(err, media.ErrUnsupported),
		errors.Is(err, media.ErrCorrupt),
		errors.Is(err, media.ErrTooLarge),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrObjectTooLarge),
		errors.Is(err, providers.ErrUnsupportedAttachment):
		return ClassInput
	case errors.Is(err, ErrNoToolCall),
		errors.Is(err, ErrInvalidExtraction):
		return ClassExtraction
	default:
		return ClassUpstream
	}
}

// Terminal reports whether retrying the same object cannot succeed.
func Terminal(err error) bool {
	c := Classify(err)
	return c == ClassInput || c == ClassExtraction
}
