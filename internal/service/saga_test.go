package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSagaCompensatesInReverse(t *testing.T) {
	var trail []string
	step := func(name string, fail bool) sagaStep {
		return sagaStep{
			name: name,
			run: func(context.Context) error {
				trail = append(trail, "run:"+name)
				if fail {
					return errors.New(name + " failed")
				}
				return nil
			},
			compensate: func(context.Context) error {
				trail = append(trail, "undo:"+name)
				return nil
			},
		}
	}

	err := newSaga(nil).add(step("a", false)).add(step("b", false)).add(step("c", true)).execute(context.Background())

	assert.EqualError(t, err, "c failed")
	assert.Equal(t, []string{"run:a", "run:b", "run:c", "undo:b", "undo:a"}, trail)
}

func TestSagaLogsCompensationFailures(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	original := errors.New("create failed")

	err := newSaga(zap.New(core)).add(sagaStep{
		name:       "upload",
		run:        func(context.Context) error { return nil },
		compensate: func(context.Context) error { return errors.New("remove failed") },
	}).add(sagaStep{
		name: "create",
		run:  func(context.Context) error { return original },
	}).execute(context.Background())

	assert.ErrorIs(t, err, original)
	assert.Equal(t, 1, logs.FilterMessage("saga compensation failed").Len())
}

func TestSagaSuccessRunsNoCompensation(t *testing.T) {
	undone := false
	err := newSaga(nil).add(sagaStep{
		name:       "only",
		run:        func(context.Context) error { return nil },
		compensate: func(context.Context) error { undone = true; return nil },
	}).execute(context.Background())

	assert.NoError(t, err)
	assert.False(t, undone)
}
