package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Supervisor runs one goroutine per asset, each under its own cancellable
// context. A unit that fails or panics is stopped alone; the others keep
// running.
type Supervisor struct {
	log    *zap.Logger
	onExit func(asset string, err error)

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	errs    error
	wg      sync.WaitGroup
}

// NewSupervisor returns a supervisor. onExit, when set, is called once for
// every unit that stops with an error other than cancellation.
func NewSupervisor(log *zap.Logger, onExit func(asset string, err error)) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Supervisor{
		log:     log,
		onExit:  onExit,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Go starts run for asset under a child of ctx.
func (s *Supervisor) Go(ctx context.Context, asset string, run func(context.Context) error) {
	unitCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancels[asset] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.forget(asset, cancel)
		err := s.runUnit(unitCtx, asset, run)
		if err == nil || errors.Is(err, context.Canceled) {
			s.log.Info("unit stopped", zap.String("asset", asset))
			return
		}
		s.log.Error("unit failed", zap.String("asset", asset), zap.Error(err))
		s.mu.Lock()
		s.errs = multierr.Append(s.errs, fmt.Errorf("%s: %w", asset, err))
		s.mu.Unlock()
		if s.onExit != nil {
			s.onExit(asset, err)
		}
	}()
}

// Stop cancels one unit. It reports whether the unit was running.
func (s *Supervisor) Stop(asset string) bool {
	s.mu.Lock()
	cancel, ok := s.cancels[asset]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Running lists the assets whose units have not returned yet.
func (s *Supervisor) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.cancels))
	for asset := range s.cancels {
		out = append(out, asset)
	}
	return out
}

// Wait blocks until every unit has returned and joins their failures.
func (s *Supervisor) Wait() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs
}

func (s *Supervisor) runUnit(ctx context.Context, asset string, run func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("unit panicked",
				zap.String("asset", asset),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return run(ctx)
}

func (s *Supervisor) forget(asset string, cancel context.CancelFunc) {
	cancel()
	s.mu.Lock()
	delete(s.cancels, asset)
	s.mu.Unlock()
}
