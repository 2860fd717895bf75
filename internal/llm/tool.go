package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
	openai "github.com/sashabaranov/go-openai"
)

// Tool is a function the model may call while composing its answer.
type Tool struct {
	Name        string
	Description string
	// Parameters is the JSON schema of the arguments object.
	Parameters map[string]any
	// Invoke runs the tool with the raw JSON arguments from the model.
	Invoke func(ctx context.Context, arguments string) (string, error)
}

// NewFunctionTool creates a tool whose arguments are decoded into T.
// The parameter schema is reflected from T's json and jsonschema tags.
func NewFunctionTool[T any](name, description string, fn func(ctx context.Context, args T) (string, error)) Tool {
	return Tool{
		Name:        name,
		Description: description,
		Parameters:  SchemaFor[T](),
		Invoke: func(ctx context.Context, arguments string) (string, error) {
			var args T
			if err := json.Unmarshal([]byte(arguments), &args); err != nil {
				return "", fmt.Errorf("decode %s arguments: %w", name, err)
			}
			return fn(ctx, args)
		},
	}
}

// SchemaFor reflects a strict JSON schema for T with no definitions section.
func SchemaFor[T any]() map[string]any {
	reflector := &jsonschema.Reflector{
		ExpandedStruct:             true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: false,
		AllowAdditionalProperties:  false,
	}
	schema := reflector.ReflectFromType(reflect.TypeFor[T]())

	b, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("llm: marshal schema for %T: %v", *new(T), err))
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		panic(fmt.Sprintf("llm: unmarshal schema for %T: %v", *new(T), err))
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}

func (t Tool) definition() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		},
	}
}

// toolErrorMessage is returned to the model when a tool fails so it can
// recover instead of aborting the run.
func toolErrorMessage(err error) string {
	return fmt.Sprintf("An error occurred while running the tool. Please try again. Error: %s", err)
}
