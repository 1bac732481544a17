// Package ai defines the vendor-neutral contract for language-model calls.
// Every call declares the JSON shape it expects back; providers are
// responsible for honoring it, callers for rejecting anything that does not
// decode into it.
package ai

import "context"

// Schema is a portable subset of JSON Schema, rich enough for structured
// extraction. Providers map it to their native representation.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// Request is a single structured-output generation.
type Request struct {
	System      string
	Prompt      string
	Schema      *Schema
	Temperature float32
}

// Client generates a JSON document conforming to the request schema.
// Implementations must honor the context deadline.
type Client interface {
	GenerateJSON(ctx context.Context, req Request) ([]byte, error)
}

// Object is a convenience constructor for an object schema.
func Object(properties map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: "object", Properties: properties, Required: required}
}

// String returns a string schema with a description.
func String(description string) *Schema {
	return &Schema{Type: "string", Description: description}
}

// StringEnum returns a string schema restricted to the given values.
func StringEnum(description string, values ...string) *Schema {
	return &Schema{Type: "string", Description: description, Enum: values}
}

// Integer returns an integer schema with a description.
func Integer(description string) *Schema {
	return &Schema{Type: "integer", Description: description}
}

// Boolean returns a boolean schema with a description.
func Boolean(description string) *Schema {
	return &Schema{Type: "boolean", Description: description}
}
