// Package service exposes the reconciliation core's operation surface to its
// host: session creation, table attachment, loop start, status and result
// polling, feedback ingestion, and deletion. It owns the volatile session
// registry; nothing here survives the process.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/WeiKhjan/reconciliation-agent/internal/logging"
	"github.com/WeiKhjan/reconciliation-agent/internal/reconcile"
	"github.com/WeiKhjan/reconciliation-agent/internal/table"
)

// ErrNotFound reports an unknown session id.
var ErrNotFound = errors.New("session not found")

// ErrNotReady reports an operation attempted before the session can serve
// it: tables missing, no execution outcome yet, or a loop still in flight.
var ErrNotReady = errors.New("session not ready")

// entry pairs a session with its loop lifecycle handles.
type entry struct {
	session *reconcile.Session
	cancel  context.CancelFunc
	ctx     context.Context
	active  bool // a loop goroutine is currently driving this session
}

// Service is the host-facing façade. All methods are safe for concurrent
// use; the registry mutex covers insert/lookup/delete atomically while each
// session's state is guarded by its own lock.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*entry

	orch *reconcile.Orchestrator
	sem  *semaphore.Weighted
}

// New creates a service around an orchestrator. concurrency bounds how many
// session loops may run at once.
func New(orch *reconcile.Orchestrator, concurrency int64) *Service {
	if concurrency < 1 {
		concurrency = 8
	}
	return &Service{
		sessions: make(map[string]*entry),
		orch:     orch,
		sem:      semaphore.NewWeighted(concurrency),
	}
}

// CreateSession registers a new session and returns its id.
func (s *Service) CreateSession() string {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.sessions[id] = &entry{
		session: reconcile.NewSession(id, s.orch.MaxIterations()),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.mu.Unlock()

	logging.Session("session %s created", id)
	return id
}

// AttachTables stores the two parsed input tables on the session.
func (s *Service) AttachTables(id string, a, b *table.Table) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := e.session.AttachTables(a, b); err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	logging.Session("session %s: tables attached (%d x %d rows)", id, a.Len(), b.Len())
	return nil
}

// Start launches the reconciliation loop asynchronously. Returns ErrNotReady
// when tables are missing or a loop is already driving the session.
func (s *Service) Start(id, hint string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if e.active {
		s.mu.Unlock()
		return fmt.Errorf("%w: loop already running", ErrNotReady)
	}
	if !e.session.HasTables() {
		s.mu.Unlock()
		return fmt.Errorf("%w: no tables attached", ErrNotReady)
	}
	if e.session.Status() != reconcile.StatusUploaded {
		status := e.session.Status()
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot start in %s state", ErrNotReady, status)
	}
	e.active = true
	s.mu.Unlock()

	if hint != "" {
		e.session.SetHint(hint)
	}

	go s.drive(e, func(ctx context.Context) error {
		return s.orch.Run(ctx, e.session)
	})
	return nil
}

// SubmitFeedback ingests corrective text on a halted session and resumes the
// loop asynchronously.
func (s *Service) SubmitFeedback(id, feedback string) error {
	if feedback == "" {
		return fmt.Errorf("feedback text is required")
	}
	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if e.active {
		s.mu.Unlock()
		return fmt.Errorf("%w: loop still running", ErrNotReady)
	}
	status := e.session.Status()
	if status != reconcile.StatusAwaitingFeedback && status != reconcile.StatusComplete {
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot accept feedback in %s state", ErrNotReady, status)
	}
	e.active = true
	s.mu.Unlock()

	go s.drive(e, func(ctx context.Context) error {
		return s.orch.Resume(ctx, e.session, feedback)
	})
	return nil
}

// drive runs one loop invocation under the concurrency bound and clears the
// active flag when done.
func (s *Service) drive(e *entry, run func(context.Context) error) {
	defer func() {
		s.mu.Lock()
		e.active = false
		s.mu.Unlock()
	}()

	if err := s.sem.Acquire(e.ctx, 1); err != nil {
		// Session deleted while queued.
		return
	}
	defer s.sem.Release(1)

	if err := run(e.ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.APIWarn("session %s: loop ended with error: %v", e.session.ID(), err)
	}
}

// GetStatus returns the session's last known good state plus any error text.
func (s *Service) GetStatus(id string) (reconcile.Snapshot, error) {
	e, err := s.lookup(id)
	if err != nil {
		return reconcile.Snapshot{}, err
	}
	return e.session.Snapshot(), nil
}

// GetResults returns the most recent execution results. ErrNotReady until
// the loop has produced at least one outcome.
func (s *Service) GetResults(id string) (*reconcile.Results, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	res, ok := e.session.Results()
	if !ok {
		return nil, fmt.Errorf("%w: no execution outcome yet", ErrNotReady)
	}
	return res, nil
}

// DeleteSession removes the session and cancels its loop. An in-flight
// sandbox execution finishes on its own timeout; the loop stops at the next
// step boundary without mutating the trace further.
func (s *Service) DeleteSession(id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	e.cancel()
	logging.Session("session %s deleted", id)
	return nil
}

// Len returns the number of registered sessions.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Service) lookup(id string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}
