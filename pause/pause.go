// Package pause implements the pause/resume protocol: typed questions, the
// single-use ResumeToken capability, and the controller that validates
// resume attempts. A run has at most one outstanding token; minting a newer
// pause supersedes any previous token, and a failed resume never mutates
// state.
package pause

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/conclave-dev/conclave/core"
)

// Reason categorizes why a run paused.
type Reason string

const (
	// ReasonMissingInfo means a role signaled it cannot proceed without
	// information only the user can supply.
	ReasonMissingInfo Reason = "missing_info"
	// ReasonApproval means the meeting configuration requested an explicit
	// user checkpoint after a round.
	ReasonApproval Reason = "user_approval"
	// ReasonBudget means the run breached its resource ceiling.
	ReasonBudget Reason = "budget_exceeded"
)

// Question is one typed item the user must address before the run resumes.
// Role, when set, routes the answer into that role's private memory in
// addition to the public context.
type Question struct {
	Key       string `json:"key"`
	Prompt    string `json:"prompt"`
	Rationale string `json:"rationale,omitempty"`
	Required  bool   `json:"required"`
	Role      string `json:"role,omitempty"`
}

// Snapshot describes an outstanding pause: the capability token, the
// reason, and the pending question set it is bound to.
type Snapshot struct {
	Token     string     `json:"token"`
	Reason    Reason     `json:"reason"`
	Questions []Question `json:"questions"`
}

// NewToken mints an opaque resume token.
func NewToken() string {
	return "resume-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Controller tracks the outstanding pause per run. It owns token validity;
// the engine owns the actual suspension.
type Controller struct {
	mu          sync.Mutex
	outstanding map[string]Snapshot // runID -> current pause
}

// NewController creates an empty controller.
func NewController() *Controller {
	return &Controller{outstanding: make(map[string]Snapshot)}
}

// Pause mints a token bound to the question set and registers it as the
// run's outstanding pause, superseding any previous token.
func (c *Controller) Pause(runID string, reason Reason, questions []Question) Snapshot {
	snap := Snapshot{Token: NewToken(), Reason: reason, Questions: questions}
	c.mu.Lock()
	c.outstanding[runID] = snap
	c.mu.Unlock()
	return snap
}

// Outstanding returns the run's current pause snapshot, if any.
func (c *Controller) Outstanding(runID string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.outstanding[runID]
	return snap, ok
}

// Resume validates a resume attempt. On success the outstanding token is
// consumed and the bound question set is returned so the caller can merge
// answers. Failure returns *core.TokenError (stale/consumed/superseded
// token) or *core.ValidationError (required question unanswered) and leaves
// the outstanding pause untouched.
func (c *Controller) Resume(runID, token string, answers map[string]any) ([]Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.outstanding[runID]
	if !ok {
		return nil, &core.TokenError{RunID: runID, Reason: "no outstanding pause"}
	}
	if snap.Token != token {
		return nil, &core.TokenError{RunID: runID, Reason: "token consumed or superseded"}
	}
	var missing []string
	for _, q := range snap.Questions {
		if !q.Required {
			continue
		}
		if v, ok := answers[q.Key]; !ok || isEmptyAnswer(v) {
			missing = append(missing, fmt.Sprintf("required question %q has no answer", q.Key))
		}
	}
	if len(missing) > 0 {
		return nil, core.NewValidationError("resume answers", missing...)
	}
	delete(c.outstanding, runID)
	return snap.Questions, nil
}

// Invalidate discards any outstanding token for the run (abandon path).
func (c *Controller) Invalidate(runID string) {
	c.mu.Lock()
	delete(c.outstanding, runID)
	c.mu.Unlock()
}

func isEmptyAnswer(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
