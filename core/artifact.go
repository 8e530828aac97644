package core

import "time"

// ArtifactType identifies the schema family of a structured output.
type ArtifactType string

// Artifact types the recorder or the engine may produce.
const (
	ArtifactADR       ArtifactType = "ADR"
	ArtifactTasks     ArtifactType = "TASKS"
	ArtifactRisks     ArtifactType = "RISKS"
	ArtifactMinutes   ArtifactType = "MINUTES"
	ArtifactSummary   ArtifactType = "SUMMARY"
	ArtifactFlowchart ArtifactType = "FLOWCHART"
	ArtifactConsensus ArtifactType = "CONSENSUS"
)

// RequiredArtifacts are the types a run must produce, validated, before it
// may reach DONE.
var RequiredArtifacts = []ArtifactType{ArtifactADR, ArtifactTasks, ArtifactRisks}

// Artifact is a finalized structured output versioned against a schema.
// Immutable once written; a given run/type/version is accepted at most once.
type Artifact struct {
	RunID     string         `json:"run_id"`
	Type      ArtifactType   `json:"type"`
	Version   string         `json:"version"`
	Content   map[string]any `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewArtifact creates an artifact stamped with the current time.
func NewArtifact(runID string, t ArtifactType, version string, content map[string]any) Artifact {
	return Artifact{RunID: runID, Type: t, Version: version, Content: content, CreatedAt: time.Now().UTC()}
}
