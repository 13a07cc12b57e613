// Package oracle talks to the language model that identifies page elements
// and reads postings. Its output is untrusted: callers parse it through
// ParseVerdict, ParseIndex or DecodeJSON.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"
)

var (
	// ErrRateLimited is retried with the configured policy.
	ErrRateLimited = errors.New("oracle rate limited")
	// ErrUnauthorized is fatal for the whole run.
	ErrUnauthorized = errors.New("oracle rejected credentials")
	// ErrTransient covers 5xx answers and dropped connections.
	ErrTransient = errors.New("oracle temporarily unavailable")
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("oracle circuit open")
)

// Schema asks for output matching a JSON schema (typed mode).
type Schema struct {
	Name       string
	Definition *jsonschema.Definition
}

// SchemaFor derives a schema from a Go type's json tags.
func SchemaFor(name string, v any) (*Schema, error) {
	def, err := jsonschema.GenerateSchemaForType(v)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return &Schema{Name: name, Definition: def}, nil
}

// MustSchema is SchemaFor for package-level schemas.
func MustSchema(name string, v any) *Schema {
	s, err := SchemaFor(name, v)
	if err != nil {
		panic(err)
	}
	return s
}

type Request struct {
	Prompt      string
	Temperature *float64
	Schema      *Schema
}

type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

// Fatal reports errors that should stop a run rather than a single step.
func Fatal(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// classifyStatus maps an HTTP status from a provider to a sentinel.
func classifyStatus(status int, err error) error {
	switch {
	case status == 429:
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case status == 401 || status == 403:
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case status >= 500:
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}
