package service

import (
	"context"

	"go.uber.org/zap"
)

// sagaStep is one forward action with an optional compensation.
type sagaStep struct {
	name       string
	run        func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

// saga runs steps in order. When a step fails, the compensations of the
// steps that already succeeded run in reverse order and the step's error is
// returned. Compensation failures are logged only.
type saga struct {
	steps  []sagaStep
	logger *zap.Logger
}

func newSaga(logger *zap.Logger) *saga {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &saga{logger: logger}
}

func (s *saga) add(step sagaStep) *saga {
	s.steps = append(s.steps, step)
	return s
}

func (s *saga) execute(ctx context.Context) error {
	for i, step := range s.steps {
		if err := step.run(ctx); err != nil {
			s.rollback(ctx, i-1, step.name)
			return err
		}
	}
	return nil
}

func (s *saga) rollback(ctx context.Context, from int, failed string) {
	ctx = context.WithoutCancel(ctx)
	for i := from; i >= 0; i-- {
		step := s.steps[i]
		if step.compensate == nil {
			continue
		}
		if err := step.compensate(ctx); err != nil {
			s.logger.Error("saga compensation failed",
				zap.String("step", step.name),
				zap.String("failed_step", failed),
				zap.Error(err),
			)
		}
	}
}
