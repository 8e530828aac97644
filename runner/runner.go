package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/conclave-dev/conclave/core"
	"github.com/conclave-dev/conclave/logging"
	"github.com/conclave-dev/conclave/model"
)

// Options holds configuration overrides passed to NewModelRunner.
type Options struct {
	// Stream toggles token-level streaming from the model.
	Stream bool
	// EventBufferSize sets channel buffering for emitted events.
	EventBufferSize int
	// MaxRetries bounds transparent retries of transient model errors. A
	// retry only happens while no partial output has been forwarded yet.
	MaxRetries uint64
	// InitialRetryInterval seeds the exponential backoff between retries.
	InitialRetryInterval time.Duration
	// Logging services.
	Logger logging.Logger
}

// ModelRunner is the built-in agent adapter: it turns an execution context
// into a single model call and adapts the provider stream into the event
// protocol (zero or more token events, then exactly one agent_message or
// error event, then channel close). Safe for concurrent use; each Run call
// owns its own channel.
type ModelRunner struct {
	model model.Model

	stream          bool
	eventBufferSize int
	maxRetries      uint64
	retryInterval   time.Duration
	logger          logging.Logger
}

var _ core.Runner = (*ModelRunner)(nil)

// NewModelRunner constructs a ModelRunner with optional overrides.
func NewModelRunner(m model.Model, optFns ...func(o *Options)) *ModelRunner {
	opts := Options{
		Stream:               true,
		EventBufferSize:      100,
		MaxRetries:           2,
		InitialRetryInterval: 500 * time.Millisecond,
		Logger:               logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelRunner{
		model:           m,
		stream:          opts.Stream,
		eventBufferSize: opts.EventBufferSize,
		maxRetries:      opts.MaxRetries,
		retryInterval:   opts.InitialRetryInterval,
		logger:          opts.Logger,
	}
}

// Run implements core.Runner.
func (r *ModelRunner) Run(ctx context.Context, ec core.ExecutionContext) (<-chan core.Event, error) {
	if ec.Speaker == "" {
		return nil, fmt.Errorf("execution context has no speaker")
	}

	events := make(chan core.Event, r.eventBufferSize)

	go func() {
		defer close(events)

		req := r.buildRequest(ec)
		start := time.Now()

		text, tokens, err := r.generate(ctx, ec, req, events)
		r.logCall(tokens, time.Since(start), err, ec)
		if err != nil {
			emit(ctx, events, core.NewErrorEvent(ec.RunID, ec.Speaker, "speaker_invocation", err))
			return
		}

		msg := core.NewMessage(core.RoleAssistant, ec.Speaker, text)
		msg.Meta = map[string]any{"round": ec.Round}
		emit(ctx, events, core.NewAgentMessageEvent(ec.RunID, ec.Speaker, msg))
	}()

	return events, nil
}

// generate drives one model call, forwarding partial tokens as they arrive.
// Transient failures are retried with exponential backoff, but only as long
// as nothing has been forwarded; once tokens are out, a failure is permanent
// so observers never see a replayed stream.
func (r *ModelRunner) generate(
	ctx context.Context,
	ec core.ExecutionContext,
	req model.Request,
	events chan<- core.Event,
) (string, int, error) {
	var final string
	var tokens int

	op := func() error {
		respCh, errCh := r.model.Generate(ctx, req)

		var full string
		streamed := false
		for resp := range respCh {
			if resp.Partial {
				streamed = true
				emit(ctx, events, core.NewTokenEvent(ec.RunID, ec.Speaker, resp.Text))
				continue
			}
			full = resp.Text
			if resp.Usage != nil {
				tokens = resp.Usage.TotalTokens
			}
		}
		if err := <-errCh; err != nil {
			if streamed {
				return backoff.Permanent(err)
			}
			return err
		}
		if full == "" {
			return backoff.Permanent(fmt.Errorf("model returned empty response"))
		}
		final = full
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.retryInterval
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, r.maxRetries), ctx))
	return final, tokens, err
}

// callLogger is the structured model call surface a logger may offer beyond
// the basic Logger contract.
type callLogger interface {
	LogModelCall(model string, tokens int, dur time.Duration, success bool, err error)
}

// logCall records one model call, through the richer logger surface when one
// is configured.
func (r *ModelRunner) logCall(tokens int, dur time.Duration, err error, ec core.ExecutionContext) {
	if cl, ok := r.logger.(callLogger); ok {
		cl.LogModelCall(r.model.Info().Name, tokens, dur, err == nil, err)
		return
	}
	if err != nil {
		r.logger.Error("model call failed speaker=%s run_id=%s: %v", ec.Speaker, ec.RunID, err)
		return
	}
	r.logger.Debug("model call completed speaker=%s run_id=%s duration=%s", ec.Speaker, ec.RunID, dur)
}

// buildRequest assembles the model request: the public context in order, the
// user task up front, and the speaker's private memory synthesis (layered
// mode only) as a trailing system note.
func (r *ModelRunner) buildRequest(ec core.ExecutionContext) model.Request {
	messages := make([]core.Message, 0, len(ec.PublicMessages)+2)
	if ec.UserTask != "" {
		messages = append(messages, core.NewUserMessage(ec.UserTask))
	}
	messages = append(messages, ec.PublicMessages...)
	if synthesis := ec.PrivateMemory.Synthesis(); synthesis != "" {
		messages = append(messages, core.NewSystemMessage("memory", synthesis))
	}
	return model.Request{
		Instructions: ec.SystemInstructions,
		Messages:     messages,
		MaxTokens:    ec.Limits.MaxTokens,
		Stream:       r.stream,
	}
}

func emit(ctx context.Context, events chan<- core.Event, ev core.Event) {
	select {
	case <-ctx.Done():
	case events <- ev:
	}
}
