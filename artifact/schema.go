package artifact

// Typed content schemas, one per artifact family. The Gate decodes a
// candidate's content map into the matching struct and runs the validate
// tags; anything that survives is structurally sound for its version.

// DecisionRecord is the ADR content schema.
type DecisionRecord struct {
	Context                string   `json:"context" validate:"required"`
	Decision               string   `json:"decision" validate:"required"`
	AlternativesConsidered []string `json:"alternatives_considered" validate:"required"`
	Consequences           []string `json:"consequences" validate:"required"`
	RisksSummary           []string `json:"risks_summary" validate:"required"`
	OpenQuestions          []string `json:"open_questions" validate:"required"`
	NextSteps              []string `json:"next_steps" validate:"required"`
}

// Task is one entry of a TaskList.
type Task struct {
	TaskID       string   `json:"task_id" validate:"required"`
	Title        string   `json:"title" validate:"required"`
	OwnerRole    string   `json:"owner_role" validate:"required"`
	Priority     string   `json:"priority" validate:"required"`
	Estimate     string   `json:"estimate" validate:"required"`
	Dependencies []string `json:"dependencies" validate:"required"`
}

// TaskList is the TASKS content schema.
type TaskList struct {
	Tasks []Task `json:"tasks" validate:"required,dive"`
}

// RiskEntry is one entry of a RiskList.
type RiskEntry struct {
	Risk         string `json:"risk" validate:"required"`
	Impact       string `json:"impact" validate:"required"`
	Probability  string `json:"probability" validate:"required"`
	Mitigation   string `json:"mitigation" validate:"required"`
	Verification string `json:"verification" validate:"required"`
	OwnerRole    string `json:"owner_role" validate:"required"`
}

// RiskList is the RISKS content schema.
type RiskList struct {
	Risks []RiskEntry `json:"risks" validate:"required,dive"`
}

// Consensus is the per-round majority-vote artifact written in parallel
// mode. Winner may be empty when no role cast a valid vote.
type Consensus struct {
	Round     int            `json:"round" validate:"min=1"`
	Votes     map[string]int `json:"votes" validate:"required"`
	Winner    string         `json:"winner"`
	Rationale string         `json:"rationale" validate:"required"`
}

// MinuteEntry is one transcript line in the MINUTES artifact.
type MinuteEntry struct {
	Round   int    `json:"round" validate:"min=1"`
	Speaker string `json:"speaker" validate:"required"`
	Excerpt string `json:"excerpt" validate:"required"`
}

// Minutes is the MINUTES content schema.
type Minutes struct {
	Topic   string        `json:"topic" validate:"required"`
	Entries []MinuteEntry `json:"entries" validate:"required,dive"`
}

// Flowchart is the FLOWCHART content schema: a mermaid sequence diagram of
// the completed meeting.
type Flowchart struct {
	Mermaid string   `json:"mermaid" validate:"required"`
	Rounds  int      `json:"rounds" validate:"min=1"`
	Roles   []string `json:"roles" validate:"required"`
}

// SummaryRecord is the per-round SUMMARY content schema (layered mode).
type SummaryRecord struct {
	Round         int      `json:"round" validate:"min=1"`
	Summary       string   `json:"summary" validate:"required"`
	OpenQuestions []string `json:"open_questions" validate:"required"`
	Decisions     []string `json:"decisions" validate:"required"`
	Risks         []string `json:"risks" validate:"required"`
	NextSteps     []string `json:"next_steps" validate:"required"`
}
