package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"bot-builder-go/internal/database"
	"bot-builder-go/internal/metrics"
	"bot-builder-go/internal/program"
	"bot-builder-go/internal/runstate"
	"bot-builder-go/internal/surface"
	"bot-builder-go/internal/workspace"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned for unknown or closed session ids.
var ErrSessionNotFound = errors.New("session not found")

// DocumentStore persists named workspace documents.
type DocumentStore interface {
	Load(name string) ([]byte, error)
	Save(name string, content []byte) error
}

// Session is one mounted editing workspace.
type Session struct {
	ID        string
	Document  string
	CreatedAt time.Time
	Workspace *workspace.Controller
	Surface   *surface.Headless
}

// Manager opens, tracks and closes editing sessions. Every session shares the
// manager's coordinator and metrics.
type Manager struct {
	logger      *zap.Logger
	store       DocumentStore
	coordinator runstate.Coordinator
	metrics     *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager. store may be nil, in which case every session
// starts from the blank document and cannot be saved.
func NewManager(logger *zap.Logger, store DocumentStore, coordinator runstate.Coordinator, m *metrics.Metrics) *Manager {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Manager{
		logger:      logger.Named("session"),
		store:       store,
		coordinator: coordinator,
		metrics:     m,
		sessions:    make(map[string]*Session),
	}
}

// Open mounts a workspace for the named document. A document that does not
// exist yet starts blank. A stored document that fails to load is replaced by
// the blank document and the session shows the load-failure notice.
func (m *Manager) Open(document string) (*Session, error) {
	source, err := m.load(document)
	if err != nil {
		return nil, err
	}

	surf := surface.NewHeadless(m.logger)
	ctrl := workspace.NewController(m.logger, surf, m.coordinator, workspace.WithMetrics(m.metrics))

	if _, err := ctrl.Initialize(source); err != nil {
		var loadErr *program.LoadError
		if !errors.As(err, &loadErr) {
			return nil, fmt.Errorf("open session: %w", err)
		}
		m.logger.Warn("Stored document is unreadable, opening blank workspace",
			zap.String("document", document), zap.Error(err))
		if _, err := ctrl.Initialize(nil); err != nil {
			return nil, fmt.Errorf("open blank session: %w", err)
		}
	}

	s := &Session{
		ID:        uuid.NewString(),
		Document:  document,
		CreatedAt: time.Now(),
		Workspace: ctrl,
		Surface:   surf,
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("Session opened", zap.String("session", s.ID), zap.String("document", document))
	return s, nil
}

func (m *Manager) load(document string) ([]byte, error) {
	if document == "" || m.store == nil {
		return nil, nil
	}
	source, err := m.store.Load(document)
	if errors.Is(err, database.ErrDocumentNotFound) {
		m.logger.Info("Document not found, starting blank", zap.String("document", document))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return source, nil
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Save writes the session's program under name, or under the document it was
// opened from when name is empty.
func (m *Manager) Save(id, name string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if m.store == nil {
		return errors.New("no document store configured")
	}
	if name == "" {
		name = s.Document
	}
	if name == "" {
		return errors.New("document name is required")
	}
	snapshot, err := s.Workspace.Snapshot()
	if err != nil {
		return err
	}
	if err := m.store.Save(name, snapshot); err != nil {
		return err
	}
	m.logger.Info("Session saved", zap.String("session", id), zap.String("document", name))
	return nil
}

// Close tears a session down and forgets it.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.Workspace.Teardown()
	m.logger.Info("Session closed", zap.String("session", id))
	return nil
}

// CloseAll tears down every open session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Workspace.Teardown()
	}
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
