// Package checker drives records through a graph of states against a
// running phonebook and verifies every step.
package checker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotInitialized = errors.New("not initialized")
	ErrStateNotFound  = errors.New("state not found")
)

type DataToBeVerified struct {
	CurrentState string
	NextState    string
	Data         any
}

func (d DataToBeVerified) String() string {
	return fmt.Sprintf("(%s) -> (%s) %v", d.CurrentState, d.NextState, d.Data)
}

type DoFunc func(context.Context, DataToBeVerified) (DataToBeVerified, error)
type CheckFunc func(DataToBeVerified, DataToBeVerified) error
type DataSourceFunc func(context.Context) (DataToBeVerified, error)

type State struct {
	Id      string
	GoCount uint

	doFunc    DoFunc
	checkFunc CheckFunc
	inChan    chan DataToBeVerified

	passed atomic.Int64
	failed atomic.Int64

	sugar *zap.SugaredLogger
}

func NewState(id string, goCount uint, logger *zap.Logger) *State {
	return &State{
		Id:      id,
		GoCount: goCount,
		sugar:   logger.Sugar(),
		inChan:  make(chan DataToBeVerified),
	}
}

func (s *State) String() string {
	return fmt.Sprintf("%s goroutines=%d passed=%d failed=%d", s.Id, s.GoCount, s.passed.Load(), s.failed.Load())
}

func (s *State) SetDoFunc(f DoFunc) {
	s.doFunc = f
}

func (s *State) SetCheckFunc(f CheckFunc) {
	s.checkFunc = f
}

// Passed and Failed count the data handled by the state.
func (s *State) Passed() int64 { return s.passed.Load() }
func (s *State) Failed() int64 { return s.failed.Load() }

func (s *State) job(ctx context.Context, route func(context.Context, DataToBeVerified)) {
	const msg = "job"
	s.sugar.Debugw(msg+" started", "state", s.Id)
	for {
		select {
		case <-ctx.Done():
			return
		case before := <-s.inChan:
			before.CurrentState = s.Id
			after, err := s.doFunc(ctx, before)
			if err == nil && s.checkFunc != nil {
				err = s.checkFunc(before, after)
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.failed.Add(1)
				s.sugar.Errorw(msg+" failed", "state", s.Id, "data", before, "err", err)
				continue
			}
			s.passed.Add(1)
			if after.NextState != "" {
				route(ctx, after)
			}
		}
	}
}

// Push hands data to one of the state jobs.
func (s *State) Push(ctx context.Context, data DataToBeVerified) error {
	select {
	case s.inChan <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type StateSupervisor struct {
	mu sync.RWMutex

	states map[string]*State

	sourceFunc DataSourceFunc
	interval   time.Duration

	wg sync.WaitGroup

	sugar *zap.SugaredLogger
}

func NewStateSupervisor(logger *zap.Logger) *StateSupervisor {
	return &StateSupervisor{
		sugar:  logger.Sugar(),
		states: make(map[string]*State),
	}
}

func (sv *StateSupervisor) Add(s ...*State) error {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	for _, state := range s {
		if state == nil {
			return errors.New("input param is nil")
		}
		sv.states[state.Id] = state
		sv.sugar.Infof("added %v", state)
	}
	return nil
}

func (sv *StateSupervisor) SetGenDataFunc(f DataSourceFunc) {
	sv.sourceFunc = f
}

// SetInterval paces the data source, 0 means as fast as the states take it.
func (sv *StateSupervisor) SetInterval(d time.Duration) {
	sv.interval = d
}

// States in no particular order.
func (sv *StateSupervisor) States() []*State {
	sv.mu.RLock()
	defer sv.mu.RUnlock()

	out := make([]*State, 0, len(sv.states))
	for _, s := range sv.states {
		out = append(out, s)
	}
	return out
}

// Go starts the jobs, they run until ctx is done. A job blocks until the
// next state takes its data, so the state graph must be acyclic.
func (sv *StateSupervisor) Go(ctx context.Context) error {
	sv.mu.RLock()
	defer sv.mu.RUnlock()

	if sv.sourceFunc == nil || len(sv.states) == 0 {
		return ErrNotInitialized
	}
	for id, state := range sv.states {
		if state.doFunc == nil {
			return fmt.Errorf("%w: %s has no doFunc", ErrNotInitialized, id)
		}
	}
	sv.sugar.Infoln("starting ...")

	sv.wg.Add(1)
	go func() {
		defer sv.wg.Done()
		sv.sourceJob(ctx)
	}()

	for _, state := range sv.states {
		for i := uint(0); i < state.GoCount; i++ {
			sv.wg.Add(1)
			go func(state *State) {
				defer sv.wg.Done()
				state.job(ctx, sv.route)
			}(state)
		}
		sv.sugar.Infof("%v started", state)
	}
	return nil
}

func (sv *StateSupervisor) route(ctx context.Context, data DataToBeVerified) {
	sv.mu.RLock()
	state, ok := sv.states[data.NextState]
	sv.mu.RUnlock()
	if !ok {
		sv.sugar.Errorw("route", "err", ErrStateNotFound, "state", data.NextState)
		return
	}
	if err := state.Push(ctx, data); err != nil && ctx.Err() == nil {
		sv.sugar.Errorw("route push", "err", err)
	}
}

func (sv *StateSupervisor) sourceJob(ctx context.Context) {
	const msg = "sourceJob"
	sv.sugar.Infoln(msg, "started")

	var tick <-chan time.Time
	if sv.interval > 0 {
		ticker := time.NewTicker(sv.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				sv.sugar.Infoln(msg + " done")
				return
			case <-tick:
			}
		} else if ctx.Err() != nil {
			sv.sugar.Infoln(msg + " done")
			return
		}

		data, err := sv.sourceFunc(ctx)
		if err != nil {
			if ctx.Err() == nil {
				sv.sugar.Errorw(msg, "err", err)
			}
			continue
		}
		if data.NextState != "" {
			sv.route(ctx, data)
		}
	}
}

// Wait returns once every job has seen the end of the Go context.
func (sv *StateSupervisor) Wait() {
	sv.wg.Wait()
	sv.sugar.Infoln("ALL graceful shutdown")
}
