package artifact

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/conclave-dev/conclave/core"
)

// schemaKey addresses one registered schema.
type schemaKey struct {
	t       core.ArtifactType
	version string
}

// Gate is the validation checkpoint in front of artifact acceptance. A run
// cannot reach DONE while any required artifact is missing or fails its
// gate check; the engine grants exactly one automated repair attempt before
// failing the run with FATAL_ARTIFACT.
type Gate struct {
	validate *validator.Validate
	schemas  map[schemaKey]func() any
}

// NewGate builds a gate with the v1 schemas for every known artifact type.
func NewGate() *Gate {
	g := &Gate{
		validate: validator.New(),
		schemas:  make(map[schemaKey]func() any),
	}
	g.RegisterSchema(core.ArtifactADR, "v1", func() any { return &DecisionRecord{} })
	g.RegisterSchema(core.ArtifactTasks, "v1", func() any { return &TaskList{} })
	g.RegisterSchema(core.ArtifactRisks, "v1", func() any { return &RiskList{} })
	g.RegisterSchema(core.ArtifactConsensus, "v1", func() any { return &Consensus{} })
	g.RegisterSchema(core.ArtifactMinutes, "v1", func() any { return &Minutes{} })
	g.RegisterSchema(core.ArtifactFlowchart, "v1", func() any { return &Flowchart{} })
	g.RegisterSchema(core.ArtifactSummary, "v1", func() any { return &SummaryRecord{} })
	g.RegisterSchema(core.ArtifactSummary, "v2", func() any { return &SummaryRecord{} })
	return g
}

// RegisterSchema binds a content prototype to a type/version pair. The
// factory must return a pointer to a fresh struct carrying validate tags.
func (g *Gate) RegisterSchema(t core.ArtifactType, version string, proto func() any) {
	g.schemas[schemaKey{t: t, version: version}] = proto
}

// Check validates the candidate against its declared schema version.
// Schema violations come back as *core.ValidationError with per-field
// problems; an unregistered type/version is ErrUnknownSchema.
func (g *Gate) Check(a core.Artifact) error {
	proto, ok := g.schemas[schemaKey{t: a.Type, version: a.Version}]
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrUnknownSchema, a.Type, a.Version)
	}
	subject := fmt.Sprintf("artifact %s %s", a.Type, a.Version)
	raw, err := json.Marshal(a.Content)
	if err != nil {
		return core.NewValidationError(subject, err.Error())
	}
	dst := proto()
	if err := json.Unmarshal(raw, dst); err != nil {
		return core.NewValidationError(subject, err.Error())
	}
	if err := g.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			problems := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				problems = append(problems, fmt.Sprintf("field %s failed %q", fe.Namespace(), fe.Tag()))
			}
			return core.NewValidationError(subject, problems...)
		}
		return core.NewValidationError(subject, err.Error())
	}
	return nil
}
