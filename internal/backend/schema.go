package backend

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// statesSchema constrains a fetch_episode_states response: every feature
// must be a non-empty matrix of numbers. The bridge is an external process;
// its output is validated before it reaches the metric reductions.
const statesSchema = `{
	"type": "object",
	"required": ["states"],
	"properties": {
		"states": {
			"type": "object",
			"additionalProperties": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "array",
					"items": {"type": "number"}
				}
			}
		}
	}
}`

var statesSchemaLoader = gojsonschema.NewStringLoader(statesSchema)

func validateStatesPayload(raw []byte) error {
	result, err := gojsonschema.Validate(statesSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validate states payload: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid states payload: %s", strings.Join(msgs, "; "))
}
