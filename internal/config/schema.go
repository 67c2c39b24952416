package config

import (
	_ "embed"
	"encoding/json"
	"strings"

	dserrors "github.com/systmms/dsenc/internal/errors"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// validateSchema checks the raw YAML document against schema.json
func validateSchema(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}

	jsonData, err := json.Marshal(doc)
	if err != nil {
		return dserrors.ConfigError{
			Message:    "configuration must be a mapping with string keys",
			Suggestion: "Quote keys that are numbers or booleans",
		}
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return dserrors.UserError{
			Message: "Schema validation error",
			Details: err.Error(),
			Err:     err,
		}
	}
	if result.Valid() {
		return nil
	}

	var messages []string
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}
	first := result.Errors()[0]
	return dserrors.ConfigError{
		Field:      first.Field(),
		Message:    "schema validation failed:\n  - " + strings.Join(messages, "\n  - "),
		Suggestion: "Compare your dsenc.yaml with the documented configuration keys",
	}
}
