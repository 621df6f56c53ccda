// Package llm asks the hosted language model to turn a user message into
// an intent envelope. The model's answer is never trusted; it goes through
// intent.ParseEnvelope here and intent.Validator downstream.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"agenda/pkg/calendar"
	"agenda/pkg/event"
	"agenda/pkg/intent"
	"agenda/pkg/journal"
	"agenda/pkg/task"
)

// ErrUnavailable means the model could not be reached or failed to answer.
var ErrUnavailable = errors.New("model unavailable")

// Request is one user message plus the context the model needs.
type Request struct {
	Text     string
	Now      time.Time
	Location *time.Location
	Tasks    []task.Task
	Events   []event.Event
	Calendar []calendar.Entry
	History  []journal.Entry
}

// Interpreter turns a message into an envelope.
type Interpreter interface {
	Interpret(ctx context.Context, req Request) (intent.Envelope, error)
}

// ClaudeInterpreter runs the Claude CLI.
type ClaudeInterpreter struct {
	Command string
	Model   string
	Run     RunFunc
	log     zerolog.Logger
}

// NewClaudeInterpreter creates an interpreter running command (usually
// "claude"), optionally pinned to model.
func NewClaudeInterpreter(command, model string, log zerolog.Logger) *ClaudeInterpreter {
	if command == "" {
		command = "claude"
	}
	return &ClaudeInterpreter{
		Command: command,
		Model:   model,
		Run:     runCommand,
		log:     log.With().Str("component", "llm").Logger(),
	}
}

// Interpret asks the model about req.Text. Failures to get an answer wrap
// ErrUnavailable; answers of the wrong shape wrap
// intent.ErrMalformedEnvelope.
func (c *ClaudeInterpreter) Interpret(ctx context.Context, req Request) (intent.Envelope, error) {
	if req.Location == nil {
		req.Location = time.UTC
	}
	res, err := invoke(ctx, c.Run, c.Command, c.Model, BuildPrompt(req))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return intent.Envelope{}, fmt.Errorf("%w: %v", ErrUnavailable, ctxErr)
		}
		return intent.Envelope{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res.ExitCode != 0 {
		c.log.Warn().Int("exit_code", res.ExitCode).Str("stderr", res.Stderr).Msg("model call failed")
		return intent.Envelope{}, fmt.Errorf("%w: exit code %d", ErrUnavailable, res.ExitCode)
	}
	c.log.Debug().Dur("duration", res.Duration).Msg("model answered")

	env, err := intent.ParseEnvelope(res.Result)
	if err != nil {
		c.log.Warn().Err(err).Str("raw", res.Result).Msg("unusable model output")
		return intent.Envelope{}, err
	}
	return env, nil
}
