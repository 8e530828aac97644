// Package runner provides the built-in agent adapters for Conclave.
//
// An adapter takes one execution context (the speaker's view of the meeting
// for a single turn) and produces a finite event stream: zero or more token
// events followed by exactly one agent_message or error event, after which
// the channel closes. The engine never talks to a model provider directly;
// it only consumes this protocol.
//
// Two implementations ship here:
//   - ModelRunner drives a model.Model (OpenAI, Anthropic, MockModel) with
//     streaming and transparent retry of transient failures
//   - ScriptRunner replays canned responses for tests and dry runs
package runner
