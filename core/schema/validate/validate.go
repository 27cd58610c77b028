// Package validate checks serialized ledger records against the embedded JSON
// Schemas for the closed v1 record variants.
package validate

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

//go:embed pulse.schema.json
var pulseSchemaJSON []byte

//go:embed descriptor.schema.json
var descriptorSchemaJSON []byte

var (
	compileOnce      sync.Once
	pulseSchema      *jsonschema.Schema
	descriptorSchema *jsonschema.Schema
	compileErr       error
)

func compiled() error {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		if pulseSchema, compileErr = compiler.Compile(pulseSchemaJSON); compileErr != nil {
			compileErr = fmt.Errorf("compile pulse schema: %w", compileErr)
			return
		}
		if descriptorSchema, compileErr = compiler.Compile(descriptorSchemaJSON); compileErr != nil {
			compileErr = fmt.Errorf("compile descriptor schema: %w", compileErr)
		}
	})
	return compileErr
}

// PulseJSON validates one serialized pulse record.
func PulseJSON(data []byte) error {
	if err := compiled(); err != nil {
		return err
	}
	return validateJSON(pulseSchema, data)
}

// DescriptorJSON validates one serialized descriptor record.
func DescriptorJSON(data []byte) error {
	if err := compiled(); err != nil {
		return err
	}
	return validateJSON(descriptorSchema, data)
}

// PulseJSONL validates every line of a pulse chain log.
func PulseJSONL(data []byte) error {
	if err := compiled(); err != nil {
		return err
	}
	return validateJSONL(pulseSchema, data)
}

// DescriptorJSONL validates every line of a descriptor chain log.
func DescriptorJSONL(data []byte) error {
	if err := compiled(); err != nil {
		return err
	}
	return validateJSONL(descriptorSchema, data)
}

func validateJSON(schema *jsonschema.Schema, data []byte) error {
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("schema validation failed: %v", result.Errors)
}

func validateJSONL(schema *jsonschema.Schema, data []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		if err := validateJSON(schema, b); err != nil {
			return fmt.Errorf("jsonl line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read jsonl: %w", err)
	}
	return nil
}
