package leads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Operation names a Store action for pending flags and metrics.
type Operation string

const (
	OpRefresh Operation = "refresh"
	OpToggle  Operation = "toggle"
	OpDelete  Operation = "delete"
	OpAssign  Operation = "assign"
)

// Notification kinds emitted by the Store.
const (
	NotifySuccess = "success"
	NotifyError   = "error"
)

var (
	// ErrLeadNotFound is returned for ids that are not in the loaded list.
	ErrLeadNotFound = errors.New("leads: lead not found")
	// ErrOperationInProgress is returned while another action runs on the same lead.
	ErrOperationInProgress = errors.New("leads: operation already in progress")
)

const (
	msgLoadFailed   = "Não foi possível carregar a lista de leads. Tente novamente."
	msgToggleFailed = "Não foi possível atualizar o status do lead."
	msgDeleteFailed = "Não foi possível excluir o lead."
	msgAssignFailed = "Não foi possível atribuir o consultor."
)

// Notifier delivers user-facing messages about Store actions.
type Notifier interface {
	Notify(ctx context.Context, kind, title, message string)
}

// Observer records the outcome of upstream calls.
type Observer interface {
	ObserveOperation(op string, duration time.Duration, err error)
}

// StoreConfig groups Store dependencies.
type StoreConfig struct {
	API       API
	Directory ConsultantDirectory
	Notifier  Notifier
	Observer  Observer
	Logger    *slog.Logger
	// RefreshTimeout bounds a shared refresh. Defaults to 30s.
	RefreshTimeout time.Duration
}

// State is a point-in-time copy of the Store.
type State struct {
	Leads    []Lead
	Total    int
	Loading  bool
	Loaded   bool
	Selected *Lead
	LastSync time.Time
}

// Store holds the authoritative in-memory lead list for the dashboard.
type Store struct {
	api       API
	directory ConsultantDirectory
	notifier  Notifier
	observer  Observer
	logger    *slog.Logger

	refreshGroup   singleflight.Group
	refreshTimeout time.Duration

	mu       sync.RWMutex
	leads    []Lead
	total    int
	loading  bool
	loaded   bool
	selected *Lead
	pending  map[string]Operation
	lastSync time.Time
}

// NewStore constructs an empty Store.
func NewStore(cfg StoreConfig) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	refreshTimeout := cfg.RefreshTimeout
	if refreshTimeout <= 0 {
		refreshTimeout = 30 * time.Second
	}
	return &Store{
		api:            cfg.API,
		directory:      cfg.Directory,
		notifier:       cfg.Notifier,
		observer:       cfg.Observer,
		logger:         logger,
		refreshTimeout: refreshTimeout,
		pending:        make(map[string]Operation),
	}
}

// Directory exposes the consultant directory used for assignments.
func (s *Store) Directory() ConsultantDirectory {
	return s.directory
}

// Refresh reloads every lead from the API. Concurrent callers share one
// upstream request. On failure the previous list is kept. The shared request
// is detached from ctx, so a caller that gives up only stops waiting.
func (s *Store) Refresh(ctx context.Context) error {
	ch := s.refreshGroup.DoChan(string(OpRefresh), func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout)
		defer cancel()
		return nil, s.refresh(fetchCtx)
	})
	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case res := <-ch:
		err = res.Err
	}
	if err != nil {
		s.notify(ctx, NotifyError, "Erro ao carregar leads", msgLoadFailed)
	}
	return err
}

func (s *Store) refresh(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	start := time.Now()
	resp, err := s.api.FetchAll(ctx)
	s.observe(OpRefresh, start, err)
	if err != nil {
		s.logger.Error("refresh leads", slog.Any("error", err))
		return fmt.Errorf("refresh leads: %w", err)
	}

	fresh := s.dedupe(resp.Leads)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads = fresh
	s.total = resp.Total
	s.loaded = true
	s.lastSync = time.Now()
	if s.selected != nil {
		if idx := s.indexOf(s.selected.ID); idx >= 0 {
			lead := s.leads[idx]
			s.selected = &lead
		} else {
			s.selected = nil
		}
	}
	return nil
}

// EnsureLoaded performs the initial load once.
func (s *Store) EnsureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.Refresh(ctx)
}

// ToggleStatus flips the active flag of a lead upstream and merges the result.
func (s *Store) ToggleStatus(ctx context.Context, leadID string) error {
	if err := s.begin(leadID, OpToggle); err != nil {
		s.notify(ctx, NotifyError, "Erro", msgToggleFailed)
		return fmt.Errorf("toggle lead %s: %w", leadID, err)
	}
	defer s.finish(leadID)

	start := time.Now()
	echo, err := s.api.SetActive(ctx, leadID)
	s.observe(OpToggle, start, err)
	if err != nil {
		s.logger.Error("toggle lead status", slog.String("lead_id", leadID), slog.Any("error", err))
		s.notify(ctx, NotifyError, "Erro", msgToggleFailed)
		return fmt.Errorf("toggle lead %s: %w", leadID, err)
	}

	updated, ok := s.mutate(leadID, func(lead *Lead) {
		if echo != nil && echo.ID == leadID {
			lead.Active = echo.Active
			mergeUpdatedAt(lead, echo)
			return
		}
		lead.Active = !lead.Active
	})
	if !ok {
		return nil
	}
	state := "desativado"
	if updated.Active {
		state = "ativado"
	}
	s.notify(ctx, NotifySuccess, "Status atualizado", fmt.Sprintf("Lead %s com sucesso.", state))
	return nil
}

// DeleteLead removes a lead upstream and drops it from the local list.
func (s *Store) DeleteLead(ctx context.Context, leadID string) error {
	if err := s.begin(leadID, OpDelete); err != nil {
		s.notify(ctx, NotifyError, "Erro", msgDeleteFailed)
		return fmt.Errorf("delete lead %s: %w", leadID, err)
	}
	defer s.finish(leadID)

	start := time.Now()
	err := s.api.Delete(ctx, leadID)
	s.observe(OpDelete, start, err)
	if err != nil {
		s.logger.Error("delete lead", slog.String("lead_id", leadID), slog.Any("error", err))
		s.notify(ctx, NotifyError, "Erro", msgDeleteFailed)
		return fmt.Errorf("delete lead %s: %w", leadID, err)
	}

	s.mu.Lock()
	if idx := s.indexOf(leadID); idx >= 0 {
		next := make([]Lead, 0, len(s.leads)-1)
		next = append(next, s.leads[:idx]...)
		next = append(next, s.leads[idx+1:]...)
		s.leads = next
		if s.total > 0 {
			s.total--
		}
	}
	if s.selected != nil && s.selected.ID == leadID {
		s.selected = nil
	}
	s.mu.Unlock()

	s.notify(ctx, NotifySuccess, "Lead excluído", "Lead foi excluído com sucesso.")
	return nil
}

// AssignConsultant makes consultantID the owner of a lead.
func (s *Store) AssignConsultant(ctx context.Context, leadID, consultantID string) error {
	var consultant Consultant
	var known bool
	if s.directory != nil {
		consultant, known = s.directory.Lookup(consultantID)
	}
	if !known {
		s.notify(ctx, NotifyError, "Erro", msgAssignFailed)
		return fmt.Errorf("assign consultant %s: %w", consultantID, ErrUnknownConsultant)
	}

	if err := s.begin(leadID, OpAssign); err != nil {
		s.notify(ctx, NotifyError, "Erro", msgAssignFailed)
		return fmt.Errorf("assign lead %s: %w", leadID, err)
	}
	defer s.finish(leadID)

	start := time.Now()
	echo, err := s.api.AssignConsultant(ctx, leadID, consultantID)
	s.observe(OpAssign, start, err)
	if err != nil {
		s.logger.Error("assign consultant",
			slog.String("lead_id", leadID),
			slog.String("consultant_id", consultantID),
			slog.Any("error", err),
		)
		s.notify(ctx, NotifyError, "Erro", msgAssignFailed)
		return fmt.Errorf("assign lead %s: %w", leadID, err)
	}

	s.mutate(leadID, func(lead *Lead) {
		if echo != nil && echo.ID == leadID {
			mergeUpdatedAt(lead, echo)
		}
		lead.ConsultantID = ptr(consultant.ID)
		lead.ConsultantName = ptr(consultant.Name)
	})
	s.notify(ctx, NotifySuccess, "Consultor atribuído", fmt.Sprintf("Lead atribuído para %s com sucesso.", consultant.Name))
	return nil
}

// Select marks a lead as the one being viewed.
func (s *Store) Select(leadID string) (Lead, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(leadID)
	if idx < 0 {
		return Lead{}, false
	}
	lead := s.leads[idx]
	s.selected = &lead
	return lead, true
}

// ClearSelection closes the detail view.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
}

// Selected returns the lead being viewed.
func (s *Store) Selected() (Lead, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return Lead{}, false
	}
	return *s.selected, true
}

// Lead looks a lead up by id.
func (s *Store) Lead(leadID string) (Lead, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOf(leadID)
	if idx < 0 {
		return Lead{}, false
	}
	return s.leads[idx], true
}

// Loading reports whether a refresh is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// LastSync returns the time of the last successful refresh.
func (s *Store) LastSync() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync
}

// Pending reports the action currently running on a lead.
func (s *Store) Pending(leadID string) (Operation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.pending[leadID]
	return op, ok
}

// Snapshot copies the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{
		Leads:    make([]Lead, len(s.leads)),
		Total:    s.total,
		Loading:  s.loading,
		Loaded:   s.loaded,
		LastSync: s.lastSync,
	}
	copy(st.Leads, s.leads)
	if s.selected != nil {
		sel := *s.selected
		st.Selected = &sel
	}
	return st
}

func (s *Store) begin(leadID string, op Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(leadID) < 0 {
		return ErrLeadNotFound
	}
	if _, busy := s.pending[leadID]; busy {
		return ErrOperationInProgress
	}
	s.pending[leadID] = op
	return nil
}

func (s *Store) finish(leadID string) {
	s.mu.Lock()
	delete(s.pending, leadID)
	s.mu.Unlock()
}

// mutate applies fn to the lead with leadID, keeping the selection in sync.
func (s *Store) mutate(leadID string, fn func(*Lead)) (Lead, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(leadID)
	if idx < 0 {
		return Lead{}, false
	}
	lead := s.leads[idx]
	fn(&lead)
	lead.ID = leadID
	s.leads[idx] = lead
	if s.selected != nil && s.selected.ID == leadID {
		sel := lead
		s.selected = &sel
	}
	return lead, true
}

// mergeUpdatedAt copies the server timestamp from an echo when it has one.
func mergeUpdatedAt(lead, echo *Lead) {
	if echo.UpdatedAt != nil && *echo.UpdatedAt != "" {
		lead.UpdatedAt = ptr(*echo.UpdatedAt)
	}
}

func (s *Store) dedupe(in []Lead) []Lead {
	seen := make(map[string]struct{}, len(in))
	out := make([]Lead, 0, len(in))
	for _, lead := range in {
		if _, dup := seen[lead.ID]; dup {
			s.logger.Warn("duplicate lead id from api", slog.String("lead_id", lead.ID))
			continue
		}
		seen[lead.ID] = struct{}{}
		out = append(out, lead)
	}
	return out
}

// indexOf must be called with mu held.
func (s *Store) indexOf(leadID string) int {
	for i := range s.leads {
		if s.leads[i].ID == leadID {
			return i
		}
	}
	return -1
}

func (s *Store) notify(ctx context.Context, kind, title, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, kind, title, message)
}

func (s *Store) observe(op Operation, start time.Time, err error) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveOperation(string(op), time.Since(start), err)
}
