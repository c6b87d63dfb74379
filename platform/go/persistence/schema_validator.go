package persistence

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CollectionSchema is the JSON Schema attached to a collection.
type CollectionSchema struct {
	Collection string
	Definition json.RawMessage
}

// SchemaValidator validates payloads against JSON Schemas compiled via santhosh-tekuri/jsonschema.
type SchemaValidator struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewSchemaValidator returns a validator with an empty schema cache.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		cache: make(map[string]*jsonschema.Schema),
	}
}

// Validate ensures the payload matches the provided schema definition.
func (v *SchemaValidator) Validate(ctx context.Context, schema CollectionSchema, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("payload is required for validation")
	}

	compiled, err := v.getOrCompile(schema)
	if err != nil {
		return err
	}

	var document any
	if err := json.Unmarshal(payload, &document); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	if err := compiled.Validate(document); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	return nil
}

// Check compiles schema without validating a payload.
func (v *SchemaValidator) Check(schema CollectionSchema) error {
	_, err := v.getOrCompile(schema)
	return err
}

func (v *SchemaValidator) getOrCompile(schema CollectionSchema) (*jsonschema.Schema, error) {
	key := v.cacheKey(schema)

	v.mu.RLock()
	compiled, ok := v.cache[key]
	v.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// another goroutine may have populated the cache while we were waiting
	if compiled, ok = v.cache[key]; ok {
		return compiled, nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(key, bytes.NewReader(schema.Definition)); err != nil {
		return nil, fmt.Errorf("register schema %s: %w", key, err)
	}

	newCompiled, err := compiler.Compile(key)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", key, err)
	}

	v.cache[key] = newCompiled
	return newCompiled, nil
}

// cacheKey includes a digest of the definition so a replaced schema is recompiled.
func (v *SchemaValidator) cacheKey(schema CollectionSchema) string {
	sum := sha256.Sum256(schema.Definition)
	return fmt.Sprintf("memory://collections/%s/%s", schema.Collection, hex.EncodeToString(sum[:8]))
}
