package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed config.schema.json
var schemaData []byte

const schemaURL = "vnime-config.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func (e ValidationErrors) Unwrap() error {
	return ErrInvalidConfig
}

// ValidateConfig checks the configuration against the embedded JSON schema
// and the cross-field rules the schema cannot express.
func ValidateConfig(c *Config) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateSchema(c)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaData)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
	})
	return schema, schemaErr
}

// validateSchema round-trips the config through JSON so every source
// format is checked against the same document model.
func validateSchema(c *Config) ValidationErrors {
	sch, err := compiledSchema()
	if err != nil {
		return ValidationErrors{{Field: "schema", Message: err.Error()}}
	}

	data, err := json.Marshal(c)
	if err != nil {
		return ValidationErrors{{Field: "schema", Message: err.Error()}}
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return ValidationErrors{{Field: "schema", Message: err.Error()}}
	}

	err = sch.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return ValidationErrors{{Field: "schema", Message: err.Error()}}
	}

	var errs ValidationErrors
	for _, leaf := range leafErrors(ve) {
		errs = append(errs, ValidationError{
			Field:   fieldName(leaf.InstanceLocation),
			Message: leaf.Message,
		})
	}
	return errs
}

func leafErrors(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, cause := range ve.Causes {
		out = append(out, leafErrors(cause)...)
	}
	return out
}

// fieldName converts a JSON pointer ("/input/method") to "input.method".
func fieldName(pointer string) string {
	name := strings.ReplaceAll(strings.TrimPrefix(pointer, "/"), "/", ".")
	if name == "" {
		return "config"
	}
	return name
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors
	if l.Output == "file" && l.FilePath == "" {
		errs = append(errs, ValidationError{
			Field:   "logging.file_path",
			Message: "file path is required when output is 'file'",
		})
	}
	return errs
}
