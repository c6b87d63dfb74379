// Package contracts embeds the public HTTP contract served and enforced by the API.
package contracts

import (
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed voxcampus.yaml
var apiYAML []byte

// Raw returns the contract bytes.
func Raw() []byte { return apiYAML }

// Load parses and validates the embedded contract. Servers are dropped so the
// request router matches the absolute paths declared under paths.
func Load() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(apiYAML)
	if err != nil {
		return nil, fmt.Errorf("load contract: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate contract: %w", err)
	}
	doc.Servers = nil
	return doc, nil
}
