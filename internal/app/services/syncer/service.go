package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tradevault/platform/internal/app/domain/exchange"
	syncdomain "github.com/tradevault/platform/internal/app/domain/sync"
	"github.com/tradevault/platform/internal/app/storage"
	"github.com/tradevault/platform/pkg/logger"
)

// EventPublisher pushes session state changes to connected clients. A nil
// publisher disables notifications.
type EventPublisher interface {
	Publish(accountID, event string, payload interface{})
}

// Service manages sync sessions against exchange connections.
type Service struct {
	sessions    storage.SyncStore
	connections storage.ConnectionStore
	events      EventPublisher
	log         *logger.Logger
}

// New constructs a syncer service.
func New(sessions storage.SyncStore, connections storage.ConnectionStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("syncer")
	}
	return &Service{
		sessions:    sessions,
		connections: connections,
		log:         log,
	}
}

// SetEventPublisher attaches a realtime publisher. Call before Start.
func (s *Service) SetEventPublisher(pub EventPublisher) {
	s.events = pub
}

func (s *Service) publish(sess syncdomain.Session) {
	if s.events != nil {
		s.events.Publish(sess.AccountID, "sync.updated", sess)
	}
}

// StartSession queues a sync run for a connection. The session starts in
// pending state; the runner picks it up.
func (s *Service) StartSession(ctx context.Context, accountID, connectionID string, kind syncdomain.Kind) (syncdomain.Session, error) {
	accountID = strings.TrimSpace(accountID)
	connectionID = strings.TrimSpace(connectionID)

	if accountID == "" {
		return syncdomain.Session{}, fmt.Errorf("account_id is required")
	}
	if connectionID == "" {
		return syncdomain.Session{}, fmt.Errorf("connection_id is required")
	}
	if kind != syncdomain.KindHistorical && kind != syncdomain.KindRealtime {
		return syncdomain.Session{}, fmt.Errorf("kind must be historical or realtime")
	}

	conn, err := s.connections.GetConnection(ctx, connectionID)
	if err != nil {
		return syncdomain.Session{}, fmt.Errorf("connection lookup failed: %w", err)
	}
	if conn.AccountID != accountID {
		return syncdomain.Session{}, fmt.Errorf("connection %s does not belong to account", connectionID)
	}
	if conn.Status == exchange.StatusDisabled {
		return syncdomain.Session{}, fmt.Errorf("connection %s is disabled", connectionID)
	}

	// One live session per connection at a time.
	existing, err := s.sessions.ListSessions(ctx, connectionID)
	if err != nil {
		return syncdomain.Session{}, err
	}
	for _, sess := range existing {
		if !sess.Terminal() {
			return syncdomain.Session{}, fmt.Errorf("connection %s already has an active sync session", connectionID)
		}
	}

	sess, err := s.sessions.CreateSession(ctx, syncdomain.Session{
		AccountID:    accountID,
		ConnectionID: connectionID,
		Kind:         kind,
		Status:       syncdomain.StatusPending,
	})
	if err != nil {
		return syncdomain.Session{}, err
	}

	s.log.WithField("session_id", sess.ID).
		WithField("connection_id", connectionID).
		WithField("kind", string(kind)).
		Info("sync session queued")
	s.publish(sess)
	return sess, nil
}

// Get returns one session.
func (s *Service) Get(ctx context.Context, id string) (syncdomain.Session, error) {
	return s.sessions.GetSession(ctx, id)
}

// List returns sessions for a connection, newest first.
func (s *Service) List(ctx context.Context, connectionID string) ([]syncdomain.Session, error) {
	return s.sessions.ListSessions(ctx, connectionID)
}

// MarkRunning moves a pending session to running. Transitions only move
// forward; a terminal session never leaves its state.
func (s *Service) MarkRunning(ctx context.Context, id string) (syncdomain.Session, error) {
	sess, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return syncdomain.Session{}, err
	}
	if sess.Status != syncdomain.StatusPending {
		return syncdomain.Session{}, fmt.Errorf("session %s is %s, not pending", id, sess.Status)
	}
	sess.Status = syncdomain.StatusRunning
	sess.StartedAt = time.Now().UTC()
	updated, err := s.sessions.UpdateSession(ctx, sess)
	if err == nil {
		s.publish(updated)
	}
	return updated, err
}

// Complete finishes a running session with its import count.
func (s *Service) Complete(ctx context.Context, id string, tradesImported int) (syncdomain.Session, error) {
	sess, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return syncdomain.Session{}, err
	}
	if sess.Terminal() {
		return syncdomain.Session{}, fmt.Errorf("session %s already finished", id)
	}
	sess.Status = syncdomain.StatusCompleted
	sess.TradesImported = tradesImported
	sess.FinishedAt = time.Now().UTC()
	updated, err := s.sessions.UpdateSession(ctx, sess)
	if err == nil {
		s.publish(updated)
	}
	return updated, err
}

// Fail finishes a session with an error message.
func (s *Service) Fail(ctx context.Context, id string, cause error) (syncdomain.Session, error) {
	sess, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return syncdomain.Session{}, err
	}
	if sess.Terminal() {
		return syncdomain.Session{}, fmt.Errorf("session %s already finished", id)
	}
	sess.Status = syncdomain.StatusFailed
	if cause != nil {
		sess.Error = cause.Error()
	}
	sess.FinishedAt = time.Now().UTC()
	updated, err := s.sessions.UpdateSession(ctx, sess)
	if err == nil {
		s.publish(updated)
	}
	return updated, err
}

// ListPending returns sessions waiting for the runner.
func (s *Service) ListPending(ctx context.Context) ([]syncdomain.Session, error) {
	return s.sessions.ListPendingSessions(ctx)
}
