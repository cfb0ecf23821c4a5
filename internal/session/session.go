package session

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/astrikos/mapstream/internal/catalog"
	"github.com/astrikos/mapstream/internal/events"
	"github.com/astrikos/mapstream/internal/metrics"
	"github.com/astrikos/mapstream/internal/poller"
	"github.com/astrikos/mapstream/internal/service"
)

// RealtimeData is the payload delivered for each completed poll cycle.
type RealtimeData struct {
	SourceID   string      `json:"sourceId"`
	Data       interface{} `json:"data"`
	SourceName string      `json:"sourceName"`
}

// Session is the per-connection runtime state: at most one active
// project pointer and one poller per subscribed source id. It is
// created on connect and closed on disconnect, never persisted.
type Session struct {
	id       string
	catalog  *catalog.Catalog
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	emit     func(event string, payload interface{})

	mu            sync.Mutex
	activeProject string
	pollers       map[string]*poller.Poller
	closed        bool
}

// New creates a session. emit delivers subscription data to the owning
// connection only; it is never used for catalog broadcasts.
func New(id string, cat *catalog.Catalog, interval, timeout time.Duration, logger *zap.Logger, emit func(event string, payload interface{})) *Session {
	return &Session{
		id:       id,
		catalog:  cat,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		emit:     emit,
		pollers:  make(map[string]*poller.Poller),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) ActiveProject() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeProject
}

// SetActiveProject replaces the session's project pointer. It does not
// unsubscribe pollers bound to another project; switching projects
// without unsubscribing leaves those subscriptions running. That is the
// documented behavior of this surface, not an oversight of the caller.
func (s *Session) SetActiveProject(projectID string) error {
	if _, ok := s.catalog.Project(projectID); !ok {
		return &service.NotFoundError{Message: "Invalid or non-existent project ID"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeProject = projectID
	return nil
}

// ClearActiveProject drops the project pointer if it matches projectID,
// used when the active project is deleted.
func (s *Session) ClearActiveProject(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeProject == projectID {
		s.activeProject = ""
	}
}

// Subscribe starts a poller bound to the source's current url and name.
// Subscribing twice to the same id is a no-op. The first fetch happens
// asynchronously; Subscribe returns immediately.
func (s *Session) Subscribe(sourceID string) error {
	source, ok := s.catalog.Source(sourceID)
	if !ok {
		return &service.NotFoundError{Message: fmt.Sprintf("Source with ID %s not found", sourceID)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	if _, active := s.pollers[sourceID]; active {
		s.logger.Debug("already subscribed", zap.String("session", s.id), zap.String("source_id", sourceID))
		return nil
	}

	// snapshot at subscribe time: later edits to the source require a
	// resubscribe to take effect
	snapshot := *source
	p := poller.New(snapshot, s.interval, s.timeout, s.logger, func(payload interface{}) {
		s.emit(events.EventRealtimeData, RealtimeData{
			SourceID:   snapshot.ID,
			Data:       payload,
			SourceName: snapshot.Name,
		})
	})

	s.pollers[sourceID] = p
	p.Start()
	metrics.PollersActive.Inc()

	s.logger.Info("subscribed to source",
		zap.String("session", s.id),
		zap.String("source_id", sourceID))

	return nil
}

// Unsubscribe stops the poller for sourceID. Calling it when not
// subscribed, or repeatedly, is a no-op.
func (s *Session) Unsubscribe(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, active := s.pollers[sourceID]
	if !active {
		return
	}

	p.Stop()
	delete(s.pollers, sourceID)
	metrics.PollersActive.Dec()

	s.logger.Info("unsubscribed from source",
		zap.String("session", s.id),
		zap.String("source_id", sourceID))
}

// Close cancels every active poller. After Close returns no recurring
// task remains and no further realtime data is emitted, even for
// fetches that were in flight.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	for sourceID, p := range s.pollers {
		p.Stop()
		delete(s.pollers, sourceID)
		metrics.PollersActive.Dec()
	}
}

// SubscriptionCount reports the number of active pollers.
func (s *Session) SubscriptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pollers)
}
