package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/conclave-dev/conclave/core"
)

// ScriptRunner replays canned responses keyed by speaker, in registration
// order, one per invocation. It implements core.Runner for tests, examples
// and offline dry runs of a meeting configuration.
type ScriptRunner struct {
	mu      sync.Mutex
	scripts map[string][]string
	cursor  map[string]int
	// Fail maps a speaker to the number of initial invocations that should
	// error before scripted responses resume.
	fail map[string]int
}

var _ core.Runner = (*ScriptRunner)(nil)

// NewScriptRunner creates an empty ScriptRunner.
func NewScriptRunner() *ScriptRunner {
	return &ScriptRunner{
		scripts: make(map[string][]string),
		cursor:  make(map[string]int),
		fail:    make(map[string]int),
	}
}

// Script appends responses to a speaker's playback queue. The last response
// repeats once the queue is exhausted.
func (r *ScriptRunner) Script(speaker string, responses ...string) *ScriptRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts[speaker] = append(r.scripts[speaker], responses...)
	return r
}

// FailFirst makes the speaker's next n invocations produce an error event
// before scripted playback resumes.
func (r *ScriptRunner) FailFirst(speaker string, n int) *ScriptRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[speaker] = n
	return r
}

// Run implements core.Runner.
func (r *ScriptRunner) Run(ctx context.Context, ec core.ExecutionContext) (<-chan core.Event, error) {
	events := make(chan core.Event, 2)

	r.mu.Lock()
	if n := r.fail[ec.Speaker]; n > 0 {
		r.fail[ec.Speaker] = n - 1
		r.mu.Unlock()
		go func() {
			defer close(events)
			err := fmt.Errorf("scripted failure for %s", ec.Speaker)
			emit(ctx, events, core.NewErrorEvent(ec.RunID, ec.Speaker, "speaker_invocation", err))
		}()
		return events, nil
	}

	queue := r.scripts[ec.Speaker]
	if len(queue) == 0 {
		r.mu.Unlock()
		return nil, fmt.Errorf("no script registered for speaker %q", ec.Speaker)
	}
	idx := r.cursor[ec.Speaker]
	if idx >= len(queue) {
		idx = len(queue) - 1
	}
	text := queue[idx]
	r.cursor[ec.Speaker]++
	r.mu.Unlock()

	go func() {
		defer close(events)
		msg := core.NewMessage(core.RoleAssistant, ec.Speaker, text)
		msg.Meta = map[string]any{"round": ec.Round}
		emit(ctx, events, core.NewAgentMessageEvent(ec.RunID, ec.Speaker, msg))
	}()

	return events, nil
}
