package engine

import (
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// WorldSchema reflects the JSON Schema of a world file.
func WorldSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.ReflectFromType(reflect.TypeOf(WorldConfig{}))
	if schema == nil {
		return nil, fmt.Errorf("failed to reflect world schema")
	}
	schema.Title = "spawnlord world"
	schema.Description = "Spawn schedulers, their milestones and the pools they draw from."
	return schema, nil
}
