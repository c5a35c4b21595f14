package tools

import "github.com/invopop/jsonschema"

// GenerateSchema derives a JSON Schema for a tool's input struct.
// Schemas are inlined (no $ref) and closed (no additional properties)
// so the model sees exactly the declared parameters.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}
