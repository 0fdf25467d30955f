package environment

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/jfarrimo/frycook/pkg/errdefs"
)

const environmentSchema = `
#Component: {
	kind: "recipe" | "cookbook"
	name: string & !=""
} | [ "recipe" | "cookbook", string & !=""]

#Computer: null | {
	address?:    string
	host_group?: string
	components?: [...#Component]
	...
}

#Group: {
	computers: [...string]
	...
}

#Environment: {
	users: [string]: _
	computers: [string]: #Computer
	groups: [string]: #Group
	...
}
`

// Schema validates environment documents against the structural CUE schema.
type Schema struct {
	ctx *cue.Context
	def cue.Value
	mu  sync.Mutex
}

// NewSchema compiles the environment schema.
func NewSchema() (*Schema, error) {
	ctx := cuecontext.New()
	val := ctx.CompileString(environmentSchema)
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile environment schema: %w", err)
	}

	def := val.LookupPath(cue.ParsePath("#Environment"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("environment schema has no #Environment: %w", err)
	}
	return &Schema{ctx: ctx, def: def}, nil
}

// Validate unifies the environment with the schema and requires a concrete
// result.
func (s *Schema) Validate(env *Environment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.ctx.Encode(env.Doc())
	if err := data.Err(); err != nil {
		return errdefs.NewConfigLoadError("environment", fmt.Errorf("failed to encode: %w", err)).WithStage("schema")
	}

	unified := s.def.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return errdefs.NewConfigLoadError("environment", err).WithStage("schema")
	}
	return nil
}

// ValidateEnvironment checks env against the environment schema.
func ValidateEnvironment(env *Environment) error {
	schema, err := NewSchema()
	if err != nil {
		return err
	}
	return schema.Validate(env)
}
