package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/conclave-dev/conclave/config"
	"github.com/conclave-dev/conclave/core"
	"github.com/conclave-dev/conclave/engine"
	"github.com/conclave-dev/conclave/logging"
	"github.com/conclave-dev/conclave/model"
	"github.com/conclave-dev/conclave/model/anthropic"
	"github.com/conclave-dev/conclave/model/openai"
	"github.com/conclave-dev/conclave/runner"
)

type runFlags struct {
	meetingPath  string
	maxRounds    int
	layered      bool
	pauseOnRound int
	maxCalls     int
	quiet        bool
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a meeting to completion",
		Long: "run loads a meeting definition from a JSON file, drives it through " +
			"discussion rounds and prints the final artifacts. When the run pauses " +
			"for missing information or approval, the pending questions are asked " +
			"on the terminal and the run resumes with the answers.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMeeting(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.meetingPath, "meeting", "m", "", "path to the meeting definition JSON (required)")
	cmd.Flags().IntVar(&flags.maxRounds, "rounds", 0, "override the meeting's round cap")
	cmd.Flags().BoolVar(&flags.layered, "layered", false, "force layered context mode")
	cmd.Flags().IntVar(&flags.pauseOnRound, "pause-on-round", 0, "pause for approval after this round")
	cmd.Flags().IntVar(&flags.maxCalls, "max-calls", 0, "model call budget for the run (0 = unlimited)")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "suppress streamed tokens, print turn results only")
	_ = cmd.MarkFlagRequired("meeting")

	return cmd
}

func runMeeting(cmd *cobra.Command, flags runFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	meeting, err := config.LoadMeeting(flags.meetingPath)
	if err != nil {
		return err
	}

	logger := logging.NewSlogLogger(cfg.LoggerLevel(), cfg.LogFormat, false)
	defer logger.WithComponent("cli").StartTimer("meeting")()
	mdl, err := buildModel(cfg)
	if err != nil {
		return err
	}
	r := runner.NewModelRunner(mdl, func(o *runner.Options) {
		o.Stream = cfg.Stream && !flags.quiet
		o.MaxRetries = cfg.MaxRetries
		o.Logger = logger.WithComponent("runner")
	})
	eng := engine.New(r,
		engine.WithLogger(logger.WithComponent("engine")),
		engine.WithConfig(engine.Config{SpeakerTimeout: cfg.SpeakerTimeout}),
	)

	runID, events, errs, err := eng.Start(cmd.Context(), meeting, buildOverrides(flags))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s started: %s\n", runID, meeting.Topic)
	streamTokens := cfg.Stream && !flags.quiet

	for ev := range events {
		if err := renderEvent(out, ev, streamTokens); err != nil {
			return err
		}
		if ev.Type == core.EventPause {
			if err := resumeInteractively(cmd, eng, runID, ev); err != nil {
				return err
			}
		}
	}
	if err := <-errs; err != nil {
		return err
	}

	return printArtifacts(out, eng, runID)
}

// renderEvent writes one event to the terminal. Token events stream inline;
// everything else gets its own line.
func renderEvent(out io.Writer, ev core.Event, streamTokens bool) error {
	switch ev.Type {
	case core.EventRoundStarted:
		fmt.Fprintf(out, "\n== round %v ==\n", ev.Payload["round"])
	case core.EventSpeakerSelected:
		fmt.Fprintf(out, "\n[%s]\n", ev.Actor)
	case core.EventToken:
		if streamTokens {
			if text, ok := ev.Payload["text"].(string); ok {
				fmt.Fprint(out, text)
			}
		}
	case core.EventAgentMessage:
		if !streamTokens {
			if msg, ok := ev.AgentMessage(); ok {
				fmt.Fprintln(out, msg.Content)
			}
		} else {
			fmt.Fprintln(out)
		}
	case core.EventSummaryWritten:
		fmt.Fprintf(out, "\n-- summary: %v\n", ev.Payload["summary"])
	case core.EventArtifactWritten:
		fmt.Fprintf(out, "artifact accepted: %v %v\n", ev.Payload["type"], ev.Payload["version"])
	case core.EventMetric:
		fmt.Fprintf(out, "-- open questions: %v, disagreements: %v\n",
			ev.Payload["open_questions_count"], ev.Payload["disagreements_count"])
	case core.EventError:
		fmt.Fprintf(out, "!! %v error at %v: %v\n", ev.Actor, ev.Payload["stage"], ev.Payload["message"])
	case core.EventResume:
		fmt.Fprintf(out, "resumed at round %v\n", ev.Payload["round"])
	case core.EventFinished:
		fmt.Fprintf(out, "\nrun finished: %v (%v) after %v round(s)\n",
			ev.Payload["status"], ev.Payload["reason"], ev.Payload["rounds"])
	}
	return nil
}

// resumeInteractively prompts for each pending question on the terminal and
// resumes the run with the collected answers.
func resumeInteractively(cmd *cobra.Command, eng *engine.Engine, runID string, ev core.Event) error {
	token, _ := ev.Payload["resume_token"].(string)
	questions, _ := ev.Payload["questions"].([]map[string]any)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n== run paused (%v) ==\n", ev.Payload["reason"])

	reader := bufio.NewReader(cmd.InOrStdin())
	answers := make(map[string]any, len(questions))
	for _, q := range questions {
		key, _ := q["key"].(string)
		prompt, _ := q["prompt"].(string)
		required, _ := q["required"].(bool)
		for {
			fmt.Fprintf(out, "%s\n> ", prompt)
			line, err := reader.ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("input closed while run %s is paused", runID)
			}
			line = strings.TrimSpace(line)
			if line == "" && required {
				fmt.Fprintln(out, "an answer is required")
				continue
			}
			if line != "" {
				answers[key] = line
			}
			break
		}
	}
	return eng.Resume(runID, token, answers)
}

func printArtifacts(out io.Writer, eng *engine.Engine, runID string) error {
	artifacts, err := eng.Artifacts(runID)
	if err != nil {
		return err
	}
	for _, a := range artifacts {
		raw, err := json.MarshalIndent(a.Content, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n### %s %s\n%s\n", a.Type, a.Version, raw)
	}
	return nil
}

func buildOverrides(flags runFlags) *core.Overrides {
	o := &core.Overrides{}
	set := false
	if flags.maxRounds > 0 {
		o.MaxRounds = &flags.maxRounds
		set = true
	}
	if flags.layered {
		mode := core.ContextLayered
		o.ContextMode = &mode
		set = true
	}
	if flags.pauseOnRound > 0 {
		o.PauseOnRound = &flags.pauseOnRound
		set = true
	}
	if flags.maxCalls > 0 {
		o.MaxModelCalls = &flags.maxCalls
		set = true
	}
	if !set {
		return nil
	}
	return o
}

func buildModel(cfg *config.Config) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = sdkanthropic.Model(cfg.Model)
			}
			o.Temperature = cfg.Temperature
			o.MaxTokens = cfg.MaxTokens
		}), nil
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = cfg.MaxTokens
		}), nil
	case config.ProviderMock:
		return model.NewMockModel("mock", "mock"), nil
	default:
		return nil, &core.ConfigError{Field: "provider", Reason: fmt.Sprintf("unknown provider %q", cfg.Provider)}
	}
}
