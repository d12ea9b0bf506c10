package core

import (
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// DetectionSchema is the fixed structure the classifier model must produce
var DetectionSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"isSpam": {
			Type:        jsonschema.Boolean,
			Description: "true if the email is spam, phishing or otherwise malicious",
		},
		"confidence": {
			Type:        jsonschema.Number,
			Description: "confidence in the verdict, between 0 and 1 inclusive",
		},
		"reasoning": {
			Type:        jsonschema.String,
			Description: "short explanation of the verdict",
		},
		"references": {
			Type:        jsonschema.Array,
			Description: "specific indicators found in the headers or body, most important first",
			Items:       &jsonschema.Definition{Type: jsonschema.String},
		},
	},
	Required:             []string{"isSpam", "confidence", "reasoning", "references"},
	AdditionalProperties: false,
}

// DecodeDetectionResult verifies raw model output against DetectionSchema and
// returns the typed result. Nothing leaves this function unless it is valid.
func DecodeDetectionResult(raw []byte) (*DetectionResult, error) {
	var result DetectionResult
	if err := jsonschema.VerifySchemaAndUnmarshal(DetectionSchema, raw, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDetection, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDetection, err)
	}
	for name := range fields {
		if _, ok := DetectionSchema.Properties[name]; !ok {
			return nil, fmt.Errorf("%w: unexpected property %q", ErrInvalidDetection, name)
		}
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return &result, nil
}
