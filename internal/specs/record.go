// Package specs defines the extracted PC specification record and the tool
// contract the inference provider is forced to answer with.
package specs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidExtraction is returned when tool-call arguments do not satisfy the
// tool schema. Values are never coerced: a string where a number is expected
// is a failure, not a conversion.
var ErrInvalidExtraction = errors.New("invalid extraction")

// Record is one extracted PC specification.
type Record struct {
	PCName        string  `json:"pc_name" yaml:"pc_name" dynamodbav:"pc_name"`
	CPUName       string  `json:"cpu_name" yaml:"cpu_name" dynamodbav:"cpu_name"`
	RAMGB         float64 `json:"ram_gb" yaml:"ram_gb" dynamodbav:"ram_gb"`
	StorageGB     float64 `json:"storage_gb" yaml:"storage_gb" dynamodbav:"storage_gb"`
	Resolution    string  `json:"resolution" yaml:"resolution" dynamodbav:"resolution"`
	MonitorSizeIn float64 `json:"monitor_size_in" yaml:"monitor_size_in" dynamodbav:"monitor_size_in"`
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("pc_specs.json", strings.NewReader(toolSchema)); err != nil {
			compileErr = fmt.Errorf("failed to load tool schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("pc_specs.json")
		if compileErr != nil {
			compileErr = fmt.Errorf("failed to compile tool schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

// ParseArguments validates raw tool-call arguments against the tool schema and
// decodes them into a Record.
func ParseArguments(raw json.RawMessage) (*Record, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty arguments", ErrInvalidExtraction)
	}

	s, err := schema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExtraction, err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExtraction, err)
	}

	var rec Record
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExtraction, err)
	}
	rec.PCName = strings.TrimSpace(rec.PCName)
	rec.CPUName = strings.TrimSpace(rec.CPUName)
	// The schema pattern only rejects ASCII whitespace.
	if rec.PCName == "" {
		return nil, fmt.Errorf("%w: blank pc_name", ErrInvalidExtraction)
	}
	if rec.CPUName == "" {
		return nil, fmt.Errorf("%w: blank cpu_name", ErrInvalidExtraction)
	}
	return &rec, nil
}

// KeyFor returns the table key for an object key as delivered in a bucket
// notification. Notification keys are form-encoded ("my+file.png"), so the
// same object always maps to the same key whether it arrived via an event or
// was named directly.
func KeyFor(objectKey string) string {
	if decoded, err := url.QueryUnescape(objectKey); err == nil {
		return decoded
	}
	return objectKey
}
