package config

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/openmosaic/openmosaic/pkg/orchestrator"
)

// Decoder decodes and validates the fetched configuration documents.
type Decoder struct {
	schemas   *SchemaRegistry
	validator *validator.Validate
}

// NewDecoder creates a decoder with the built-in schemas.
func NewDecoder() *Decoder {
	return &Decoder{
		schemas:   NewSchemaRegistry(),
		validator: validator.New(),
	}
}

// DecodeContainerTree decodes the root configuration document into the
// container configuration list.
func (d *Decoder) DecodeContainerTree(raw []byte) ([]*orchestrator.ContainerConfig, error) {
	if err := d.validateRaw("containerTree", raw); err != nil {
		return nil, err
	}

	var tree orchestrator.ContainerTree
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode container tree: %w", err)
	}

	if err := d.validator.Struct(&tree); err != nil {
		return nil, fmt.Errorf("container tree validation failed: %w", err)
	}

	return tree.MicroFrontEnds, nil
}

// DecodeModuleConfig decodes one module's detail configuration
// document.
func (d *Decoder) DecodeModuleConfig(raw []byte) (*orchestrator.MicroFrontEndConfig, error) {
	if err := d.validateRaw("module", raw); err != nil {
		return nil, err
	}

	var detail orchestrator.MicroFrontEndConfig
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, fmt.Errorf("failed to decode module configuration: %w", err)
	}

	if err := d.validator.Struct(&detail); err != nil {
		return nil, fmt.Errorf("module configuration validation failed: %w", err)
	}

	return &detail, nil
}

// validateRaw runs the CUE schema layer over the raw document.
func (d *Decoder) validateRaw(schema string, raw []byte) error {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("invalid JSON document: %w", err)
	}
	if err := d.schemas.Validate(schema, data); err != nil {
		return err
	}
	return nil
}
