package config

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for document validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a schema registry with the built-in
// schemas registered.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	sr.registerBuiltInSchemas()
	return sr
}

func (sr *SchemaRegistry) registerBuiltInSchemas() {
	// Registration of built-ins cannot fail; the schemas are constants.
	_ = sr.RegisterSchema("containerTree", builtinContainerTreeSchema)
	_ = sr.RegisterSchema("module", builtinModuleSchema)
}

// RegisterSchema compiles and registers a CUE schema under a name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// Validate validates decoded JSON data against a named schema.
func (sr *SchemaRegistry) Validate(schemaName string, data any) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#" + titleCase(schemaName)))
	if !def.Exists() {
		return fmt.Errorf("schema %s has no matching definition", schemaName)
	}

	unified := def.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	head := s[0]
	if head >= 'a' && head <= 'z' {
		head -= 'a' - 'A'
	}
	return string(head) + s[1:]
}

// Built-in schema definitions

const builtinContainerTreeSchema = `
// Container tree schema for the root configuration document
#Container: {
	// Name is the module's unique tag name
	name: string & =~"^[a-z][a-z0-9-]*$"

	// Version selects the bundle and config revision
	version?: string

	// LoadOnInit marks the module for automatic startup load
	loadOnInit?: bool

	// MicroFrontEnds is the nested module subtree
	microFrontEnds?: [...#Container]
}

#ContainerTree: {
	// MicroFrontEnds is the root list of container configurations
	microFrontEnds?: [...#Container]
}
`

const builtinModuleSchema = `
// Module schema for per-module detail configuration documents
#MenuItem: {
	title?: string
	route?: string
}

#Module: {
	// Name echoes the module's tag name
	name?: string & =~"^[a-z][a-z0-9-]*$"

	// LoadOnInit requests automatic loading at startup
	loadOnInit?: bool

	// Context is an optional external routing key
	context?: string

	// Placement selects the document region
	placement?: "default" | "userProfile"

	// Dependencies are module names loaded after this bundle
	dependencies?: [...string & =~"^[a-z][a-z0-9-]*$"]

	// NavigationBarItem carries navigation metadata
	navigationBarItem?: {
		title?: string
		route?: string
		menuItems?: [...#MenuItem]
	}
}
`
