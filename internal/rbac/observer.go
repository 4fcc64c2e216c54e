package rbac

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Observer follows the session event stream with a long-lived evaluator,
// producing an audit trail of sign-ins, sign-outs and permission
// refreshes together with the role each one resolved to.
type Observer struct {
	eval   *Evaluator
	logger *slog.Logger
}

// NewObserver constructs an Observer over the given profile source.
func NewObserver(source ProfileSource, logger *slog.Logger) *Observer {
	return &Observer{eval: NewEvaluator(source), logger: logger}
}

// Evaluator exposes the tracked evaluator.
func (o *Observer) Evaluator() *Evaluator {
	return o.eval
}

// Run consumes session events until the channel closes or the context is
// cancelled. Every event re-evaluates the identity it names.
func (o *Observer) Run(ctx context.Context, events <-chan SessionEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			o.handle(ctx, ev)
		}
	}
}

func (o *Observer) handle(ctx context.Context, ev SessionEvent) {
	o.eval.HandleEvent(ctx, ev)
	if o.logger == nil {
		return
	}
	attrs := []any{slog.String("kind", ev.Kind.String())}
	if ev.AccountID != uuid.Nil {
		attrs = append(attrs, slog.String("account", ev.AccountID.String()))
	}
	if err := o.eval.Err(); err != nil {
		attrs = append(attrs, slog.Any("error", err))
		o.logger.Warn("session event resolution failed", attrs...)
		return
	}
	if role := o.eval.Role(); role != "" {
		attrs = append(attrs, slog.String("role", string(role)))
	}
	o.logger.Info("session event", attrs...)
}
