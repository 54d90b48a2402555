// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resilience provides the saga executor and file-integrity helpers
// used by the self-update procedure.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SagaExecutor defines the interface for saga pattern execution.
//
// # Description
//
// A saga is a sequence of steps where each step has a compensating action.
// If any step fails, the compensating actions of all completed steps run in
// reverse order. The self-update procedure uses it so a failed download or
// replace always leaves the original artifact in place.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type SagaExecutor interface {
	// AddStep appends a step to the saga.
	AddStep(step SagaStep)

	// Execute runs all steps in order, compensating on failure.
	Execute(ctx context.Context) error

	// Reset clears steps and results for reuse.
	Reset()

	// CompletedSteps returns names of successfully completed steps.
	CompletedSteps() []string

	// LastError returns the error from the last execution, if any.
	LastError() error
}

// SagaStep defines a single step with optional compensation.
//
// # Example
//
//	SagaStep{
//	    Name:       "backup artifact",
//	    Execute:    func(ctx context.Context) error { return backup.Create() },
//	    Compensate: func(ctx context.Context) error { return backup.Restore() },
//	}
type SagaStep struct {
	// Name identifies the step for logging and debugging.
	Name string

	// Execute performs the step's action. It must honor ctx cancellation.
	Execute func(ctx context.Context) error

	// Compensate undoes the step's action. Nil means nothing to undo.
	Compensate func(ctx context.Context) error

	// Timeout overrides SagaConfig.StepTimeout when positive.
	Timeout time.Duration
}

// SagaConfig configures saga execution behavior.
type SagaConfig struct {
	// StepTimeout is the default timeout for each step.
	StepTimeout time.Duration

	// CompensationTimeout bounds each compensation action.
	CompensationTimeout time.Duration

	// CompensateOnFail runs compensations when a step fails.
	CompensateOnFail bool

	// Logger receives step progress. Default: slog.Default().
	Logger *slog.Logger

	// OnStepFail is called when a step fails, before compensation.
	OnStepFail func(step SagaStep, err error)

	// OnCompensate is called after each compensation attempt.
	OnCompensate func(step SagaStep, err error)
}

// DefaultSagaConfig returns sensible defaults.
func DefaultSagaConfig() SagaConfig {
	return SagaConfig{
		StepTimeout:         60 * time.Second,
		CompensationTimeout: 30 * time.Second,
		CompensateOnFail:    true,
		Logger:              slog.Default(),
	}
}

// Saga implements SagaExecutor.
type Saga struct {
	config    SagaConfig
	steps     []SagaStep
	completed []SagaStep
	compErrs  []CompensationError
	lastError error
	mu        sync.Mutex
}

// CompensationError records a compensation that failed.
type CompensationError struct {
	StepName string
	Err      error
}

var _ SagaExecutor = (*Saga)(nil)

// NewSaga creates a saga. Zero timeouts and a nil logger take defaults.
func NewSaga(config SagaConfig) *Saga {
	if config.StepTimeout <= 0 {
		config.StepTimeout = 60 * time.Second
	}
	if config.CompensationTimeout <= 0 {
		config.CompensationTimeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Saga{
		config:    config,
		steps:     make([]SagaStep, 0),
		completed: make([]SagaStep, 0),
	}
}

// AddStep appends a step to the saga.
func (s *Saga) AddStep(step SagaStep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step)
}

// Execute runs all steps in order, compensating on failure.
//
// # Description
//
// Steps run sequentially. When a step fails (error, timeout or ctx
// cancellation) the completed steps are compensated in reverse order. The
// failed step itself is not compensated; it must clean up after itself.
//
// A timed-out step is cancelled through its context and Execute waits for it
// to return before compensating, so a step never races its own undo.
//
// # Outputs
//
//   - error: nil if every step succeeded, otherwise the failing step's error
func (s *Saga) Execute(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.completed = make([]SagaStep, 0, len(s.steps))
	s.compErrs = nil
	s.lastError = nil

	for _, step := range s.steps {
		if ctx.Err() != nil {
			s.lastError = fmt.Errorf("saga cancelled: %w", ctx.Err())
			s.compensate()
			return s.lastError
		}

		timeout := step.Timeout
		if timeout <= 0 {
			timeout = s.config.StepTimeout
		}

		if err := s.executeStep(ctx, step, timeout); err != nil {
			s.lastError = fmt.Errorf("saga failed at step %q: %w", step.Name, err)

			if s.config.OnStepFail != nil {
				s.config.OnStepFail(step, err)
			}
			if s.config.CompensateOnFail {
				s.compensate()
			}
			return s.lastError
		}

		s.completed = append(s.completed, step)
	}

	return nil
}

func (s *Saga) executeStep(ctx context.Context, step SagaStep, timeout time.Duration) error {
	s.config.Logger.Debug("Executing step", "step", step.Name)
	start := time.Now()

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- step.Execute(stepCtx)
	}()

	select {
	case err := <-done:
		duration := time.Since(start)
		if err != nil {
			s.config.Logger.Warn("Step failed", "step", step.Name, "duration", duration, "error", err)
			return err
		}
		s.config.Logger.Debug("Step completed", "step", step.Name, "duration", duration)
		return nil

	case <-stepCtx.Done():
		<-done
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("step timed out after %v", timeout)
	}
}

// compensate undoes completed steps in reverse order. It runs on a fresh
// context so a cancelled parent cannot prevent rollback.
func (s *Saga) compensate() {
	if len(s.completed) == 0 {
		return
	}

	s.config.Logger.Info("Compensating completed steps", "count", len(s.completed))

	for i := len(s.completed) - 1; i >= 0; i-- {
		step := s.completed[i]
		if step.Compensate == nil {
			continue
		}

		stepCtx, cancel := context.WithTimeout(context.Background(), s.config.CompensationTimeout)
		err := step.Compensate(stepCtx)
		cancel()

		if err != nil {
			s.config.Logger.Error("Compensation failed", "step", step.Name, "error", err)
			s.compErrs = append(s.compErrs, CompensationError{StepName: step.Name, Err: err})
		} else {
			s.config.Logger.Info("Compensated step", "step", step.Name)
		}
		if s.config.OnCompensate != nil {
			s.config.OnCompensate(step, err)
		}
	}
}

// Reset clears steps and results for reuse.
func (s *Saga) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = make([]SagaStep, 0)
	s.completed = make([]SagaStep, 0)
	s.compErrs = nil
	s.lastError = nil
}

// CompletedSteps returns names of the steps that completed in the last run.
func (s *Saga) CompletedSteps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, len(s.completed))
	for i, step := range s.completed {
		names[i] = step.Name
	}
	return names
}

// CompensationErrors returns the compensations that failed in the last run.
func (s *Saga) CompensationErrors() []CompensationError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CompensationError(nil), s.compErrs...)
}

// LastError returns the error from the last execution, if any.
func (s *Saga) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// StepCount returns the number of steps in the saga.
func (s *Saga) StepCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}
