// Package objectdata holds the partially populated object values that
// resolvers and checkers read their required selections from.
package objectdata

import (
	"context"
	"fmt"
)

// EngineObjectData is a keyed view of one object in the result graph. Keys
// are response keys. A key that was never populated is distinct from a key
// populated with nil: the former is an *UnsetSelectionError.
type EngineObjectData interface {
	TypeName() string
	Fetch(ctx context.Context, key string) (any, error)
	// FetchOrNull is like Fetch but returns nil for unset keys.
	FetchOrNull(ctx context.Context, key string) (any, error)
	FetchSelections(ctx context.Context) ([]string, error)
}

// Sync is implemented by object data whose values are already materialized.
// Callers can read it without blocking.
type Sync interface {
	EngineObjectData
	Get(key string) (any, error)
	GetOrNull(key string) any
	GetSelections() []string
}

// UnsetSelectionError reports a read of a key that was never populated.
type UnsetSelectionError struct {
	TypeName string
	Key      string
	Message  string
}

func (e *UnsetSelectionError) Error() string {
	msg := fmt.Sprintf("unset selection %s.%s", e.TypeName, e.Key)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}
