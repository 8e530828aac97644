// Package output defines the structured contracts role and recorder
// completions must satisfy, and parses free-form model text into them.
// Schema checks run through go-playground/validator after a JSON round-trip,
// so a violation reports the exact fields at fault — those field lists feed
// the engine's single repair re-prompt.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/conclave-dev/conclave/core"
	"github.com/conclave-dev/conclave/internal/jsonx"
)

var validate = validator.New()

// Risk is one structured risk entry inside a role output.
type Risk struct {
	Risk         string `json:"risk" validate:"required"`
	Impact       string `json:"impact" validate:"required"`
	Mitigation   string `json:"mitigation" validate:"required"`
	Verification string `json:"verification" validate:"required"`
}

// BlockingQuestion signals that a role cannot proceed without external
// input; any blocking question after a round pauses the run.
type BlockingQuestion struct {
	Key      string `json:"key" validate:"required"`
	Ask      string `json:"ask" validate:"required"`
	Why      string `json:"why,omitempty"`
	Required bool   `json:"required"`
}

// RoleOutput is the JSON contract every non-recorder speaker must produce.
type RoleOutput struct {
	Assumptions            []string           `json:"assumptions" validate:"required"`
	Proposal               string             `json:"proposal" validate:"required"`
	Tradeoffs              []string           `json:"tradeoffs" validate:"required"`
	Risks                  []Risk             `json:"risks" validate:"required,dive"`
	Questions              []string           `json:"questions" validate:"required"`
	DecisionRecommendation string             `json:"decision_recommendation" validate:"required"`
	BlockingQuestions      []BlockingQuestion `json:"blocking_questions,omitempty" validate:"omitempty,dive"`
}

// Conclusion returns the role's declared decision statement, the only part
// of its reasoning other roles may see under layered mode.
func (o RoleOutput) Conclusion() string {
	return strings.TrimSpace(o.DecisionRecommendation)
}

// TopRisks returns up to k risk statements for excerpt selection.
func (o RoleOutput) TopRisks(k int) []string {
	if k <= 0 || len(o.Risks) == 0 {
		return nil
	}
	if k > len(o.Risks) {
		k = len(o.Risks)
	}
	out := make([]string, 0, k)
	for _, r := range o.Risks[:k] {
		out = append(out, r.Risk)
	}
	return out
}

// ParseRoleOutput extracts and validates a RoleOutput from model text.
// Failures are *core.ValidationError carrying per-field problems.
func ParseRoleOutput(text string) (RoleOutput, error) {
	var out RoleOutput
	payload, err := jsonx.ExtractObject(text)
	if err != nil {
		return out, core.NewValidationError("role output", err.Error())
	}
	if err := decodeInto(payload, &out); err != nil {
		return out, core.NewValidationError("role output", err.Error())
	}
	if err := validate.Struct(out); err != nil {
		return out, validationProblems("role output", err)
	}
	return out, nil
}

// RoundSummary is the recorder's per-round synthesis retained by layered
// context mode.
type RoundSummary struct {
	Round         int      `json:"round" validate:"min=1"`
	Summary       string   `json:"summary" validate:"required"`
	OpenQuestions []string `json:"open_questions" validate:"required"`
	Decisions     []string `json:"decisions" validate:"required"`
	Risks         []string `json:"risks" validate:"required"`
	NextSteps     []string `json:"next_steps" validate:"required"`
}

// ParseRoundSummary extracts and validates a RoundSummary, defaulting the
// round number when the model omits it.
func ParseRoundSummary(text string, round int) (RoundSummary, error) {
	var out RoundSummary
	payload, err := jsonx.ExtractObject(text)
	if err != nil {
		return out, core.NewValidationError("round summary", err.Error())
	}
	if _, ok := payload["round"]; !ok {
		payload["round"] = round
	}
	if err := decodeInto(payload, &out); err != nil {
		return out, core.NewValidationError("round summary", err.Error())
	}
	if err := validate.Struct(out); err != nil {
		return out, validationProblems("round summary", err)
	}
	return out, nil
}

// RecorderBundle is the recorder's final output: one content map per
// required artifact type, still unvalidated (the Artifact Gate owns schema
// checking).
type RecorderBundle struct {
	ADR   map[string]any
	Tasks map[string]any
	Risks map[string]any
}

// ParseRecorderBundle locates the ADR / TASKS / RISKS sections in recorder
// text. Keys match case-insensitively; a TASKS list is normalized into the
// object shape the gate expects.
func ParseRecorderBundle(text string) (RecorderBundle, error) {
	var bundle RecorderBundle
	payload, err := jsonx.ExtractObject(text)
	if err != nil {
		return bundle, core.NewValidationError("recorder output", err.Error())
	}
	adr, ok := jsonx.Lookup(payload, "ADR")
	if !ok {
		return bundle, core.NewValidationError("recorder output", "missing key: ADR")
	}
	tasks, ok := jsonx.Lookup(payload, "TASKS")
	if !ok {
		return bundle, core.NewValidationError("recorder output", "missing key: TASKS")
	}
	risks, ok := jsonx.Lookup(payload, "RISKS")
	if !ok {
		return bundle, core.NewValidationError("recorder output", "missing key: RISKS")
	}
	bundle.ADR, ok = adr.(map[string]any)
	if !ok {
		return bundle, core.NewValidationError("recorder output", "ADR must be an object")
	}
	// Accept a bare task list and normalize it to the object shape.
	if list, isList := tasks.([]any); isList {
		tasks = map[string]any{"tasks": list}
	}
	bundle.Tasks, ok = tasks.(map[string]any)
	if !ok {
		return bundle, core.NewValidationError("recorder output", "TASKS must be an object or list")
	}
	bundle.Risks, ok = risks.(map[string]any)
	if !ok {
		return bundle, core.NewValidationError("recorder output", "RISKS must be an object")
	}
	return bundle, nil
}

// decodeInto round-trips a payload map into a typed struct.
func decodeInto(payload map[string]any, dst any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// validationProblems converts validator field errors into the engine's
// ValidationError shape.
func validationProblems(subject string, err error) error {
	var fieldErrs validator.ValidationErrors
	problems := []string{err.Error()}
	if errors.As(err, &fieldErrs) {
		problems = problems[:0]
		for _, fe := range fieldErrs {
			problems = append(problems, fmt.Sprintf("field %s failed %q", fe.Namespace(), fe.Tag()))
		}
	}
	return core.NewValidationError(subject, problems...)
}
