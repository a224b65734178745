// Package openapi indexes the JSON Schemas of the server's tools and
// validates tool call arguments against them before a handler runs.
package openapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pitabwire/jiramcp/model"
)

// Field error codes.
const (
	CodeRequired = "REQUIRED"
	CodeInvalid  = "INVALID"
)

// IndexedTool holds a tool's resolved input schema.
type IndexedTool struct {
	Name        string
	Description string
	Schema      *openapi3.Schema
}

// Index is an in-memory index of tool input schemas keyed by tool name.
type Index struct {
	tools map[string]IndexedTool
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{tools: make(map[string]IndexedTool)}
}

// Load converts each tool's input schema and indexes it. A tool registered
// twice keeps the last schema.
func (idx *Index) Load(tools []mcp.Tool) error {
	for _, tool := range tools {
		schema, err := inputSchema(tool)
		if err != nil {
			return fmt.Errorf("openapi: loading %s: %w", tool.Name, err)
		}
		if err := schema.Validate(context.Background()); err != nil {
			return fmt.Errorf("openapi: validating %s: %w", tool.Name, err)
		}
		idx.tools[tool.Name] = IndexedTool{
			Name:        tool.Name,
			Description: tool.Description,
			Schema:      schema,
		}
	}
	return nil
}

// inputSchema round-trips the tool through its wire form so that both
// InputSchema and RawInputSchema are honoured.
func inputSchema(tool mcp.Tool) (*openapi3.Schema, error) {
	raw, err := json.Marshal(tool)
	if err != nil {
		return nil, err
	}
	var wire struct {
		InputSchema json.RawMessage `json:"inputSchema"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	schema := openapi3.NewSchema()
	if len(wire.InputSchema) == 0 {
		return schema, nil
	}
	if err := schema.UnmarshalJSON(wire.InputSchema); err != nil {
		return nil, err
	}
	return schema, nil
}

// Get returns the indexed tool with the given name.
func (idx *Index) Get(name string) (IndexedTool, bool) {
	t, ok := idx.tools[name]
	return t, ok
}

// Names returns all indexed tool names, sorted.
func (idx *Index) Names() []string {
	names := make([]string, 0, len(idx.tools))
	for name := range idx.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks args against the named tool's input schema. It returns
// an empty slice when the arguments are valid or the tool is not indexed.
func (idx *Index) Validate(name string, args map[string]any) []model.FieldError {
	t, ok := idx.tools[name]
	if !ok || t.Schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}

	err := t.Schema.VisitJSON(args, openapi3.MultiErrors())
	if err == nil {
		return nil
	}

	var errs []model.FieldError
	collect(err, &errs)
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

func collect(err error, out *[]model.FieldError) {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		for _, e := range multi {
			collect(e, out)
		}
		return
	}

	var schemaErr *openapi3.SchemaError
	if !errors.As(err, &schemaErr) {
		*out = append(*out, model.FieldError{Code: CodeInvalid, Message: err.Error()})
		return
	}

	code := CodeInvalid
	if schemaErr.SchemaField == "required" {
		code = CodeRequired
	}
	*out = append(*out, model.FieldError{
		Field:   strings.Join(schemaErr.JSONPointer(), "."),
		Code:    code,
		Message: schemaErr.Reason,
	})
}
