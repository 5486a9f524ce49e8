// Package table persists extracted records, one row per source object.
package table

import (
	"context"
	"errors"
	"time"

	"github.com/Koba-gh/bedrock-json-cdk/internal/specs"
)

// KeyAttribute is the partition key of the table.
const KeyAttribute = "name"

// ErrEmptyKey is returned when an item has no key.
var ErrEmptyKey = errors.New("item key is empty")

// Item is one stored row: the six extracted fields plus where they came from.
type Item struct {
	Name string `json:"name" yaml:"name" dynamodbav:"name"`

	specs.Record `yaml:",inline"`

	Bucket      string    `json:"bucket" yaml:"bucket" dynamodbav:"bucket"`
	Provider    string    `json:"provider" yaml:"provider" dynamodbav:"provider"`
	ModelID     string    `json:"model_id" yaml:"model_id" dynamodbav:"model_id"`
	ExtractedAt time.Time `json:"extracted_at" yaml:"extracted_at" dynamodbav:"extracted_at"`
}

// RecordStore writes items. Writing an existing key replaces the row.
type RecordStore interface {
	Put(ctx context.Context, item Item) error
}
