package llm

import (
	"encoding/json"

	openai "github.com/sashabaranov/go-openai"
)

// schemaDocument adapts a schema map to json.Marshaler.
type schemaDocument map[string]any

func (s schemaDocument) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(s))
}

// JSONSchemaFormat requests a strict structured answer matching schema.
func JSONSchemaFormat(name string, schema map[string]any) *openai.ChatCompletionResponseFormat {
	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   name,
			Schema: schemaDocument(schema),
			Strict: true,
		},
	}
}
