// Package validation provides the pluggable activity validation capability
// applied at the ingestion boundary.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/epnlabs/sitrep/pkg/models"
)

// ErrValidationFailure marks an inbound event rejected by a validator. The
// rejection is per-event; the rest of the batch continues.
var ErrValidationFailure = errors.New("activity event rejected")

// ActivityValidator validates an activity event before it enters the
// network. A non-nil error halts that event's ingestion only.
type ActivityValidator interface {
	Validate(event *models.ActivityEvent) error
}

// StructValidator checks the structural invariants of an event (id, type,
// timestamp present) using validator tags on the model.
type StructValidator struct {
	validate *validator.Validate
}

// NewStructValidator creates a struct-tag based validator.
func NewStructValidator() *StructValidator {
	return &StructValidator{validate: validator.New()}
}

func (v *StructValidator) Validate(event *models.ActivityEvent) error {
	if event == nil {
		return fmt.Errorf("%w: event is nil", ErrValidationFailure)
	}

	err := v.validate.Struct(event)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidationFailure, err)
	}

	return nil
}

// SchemaValidator validates events against a JSON schema, so deployments can
// constrain event shapes without recompiling.
type SchemaValidator struct {
	schema *gojsonschema.Schema
}

// NewSchemaValidator compiles the given JSON schema document.
func NewSchemaValidator(schemaJSON []byte) (*SchemaValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to compile activity schema: %w", err)
	}

	return &SchemaValidator{schema: schema}, nil
}

func (v *SchemaValidator) Validate(event *models.ActivityEvent) error {
	document, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidationFailure, err)
	}

	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidationFailure, err)
	}

	if !result.Valid() {
		return fmt.Errorf("%w: %v", ErrValidationFailure, result.Errors())
	}

	return nil
}

// Chain runs validators in order, stopping at the first rejection.
type Chain []ActivityValidator

func (c Chain) Validate(event *models.ActivityEvent) error {
	for _, v := range c {
		err := v.Validate(event)
		if err != nil {
			return err
		}
	}

	return nil
}
