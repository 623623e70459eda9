// Package plan implements a two-phase action pipeline: validate every
// action before running any of them, then execute in order, running any
// registered compensator for an already-executed action if a later one
// fails. The snapshot engine uses the validation pass for its precheck
// phase.
package plan

import (
	"context"
	"fmt"
)

// Action is one unit of work against one resource: a description for
// logging/errors, a validator run in the precheck pass, the work itself,
// and an optional compensator run (in reverse order, across all actions
// already executed) if a later action in the same plan fails.
type Action struct {
	Description string
	Validate    func(ctx context.Context) error
	Run         func(ctx context.Context) error
	Compensate  func(ctx context.Context) error
}

// Plan is an ordered, immutable list of actions. It carries no mutable
// state of its own; Execute takes everything it needs as arguments so two
// callers running the same Plan never share hidden state.
type Plan struct {
	actions []Action
}

// New builds a Plan from actions, in the order given.
func New(actions ...Action) Plan {
	return Plan{actions: actions}
}

// Validate runs every action's Validate in order, stopping at the first
// failure. No action's Run has been called at this point regardless of
// where validation stops.
func (p Plan) Validate(ctx context.Context) error {
	for _, a := range p.actions {
		if a.Validate == nil {
			continue
		}

		if err := a.Validate(ctx); err != nil {
			return fmt.Errorf("validate %q: %w", a.Description, err)
		}
	}

	return nil
}

// Execute runs every action's Run in order. If one fails, Execute runs the
// Compensate function of every already-executed action, most-recent first,
// and returns the original error (compensation failures are reported via
// onCompensateError rather than replacing it, since the original failure is
// what the caller needs to act on).
func (p Plan) Execute(ctx context.Context, onCompensateError func(description string, err error)) error {
	var executed []Action

	for _, a := range p.actions {
		if err := a.Run(ctx); err != nil {
			compensate(ctx, executed, onCompensateError)

			return fmt.Errorf("run %q: %w", a.Description, err)
		}

		executed = append(executed, a)
	}

	return nil
}

func compensate(ctx context.Context, executed []Action, onError func(description string, err error)) {
	for i := len(executed) - 1; i >= 0; i-- {
		a := executed[i]
		if a.Compensate == nil {
			continue
		}

		if err := a.Compensate(ctx); err != nil && onError != nil {
			onError(a.Description, err)
		}
	}
}

// Run is the common case: validate the whole plan, then execute it.
func Run(ctx context.Context, p Plan, onCompensateError func(description string, err error)) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}

	return p.Execute(ctx, onCompensateError)
}
