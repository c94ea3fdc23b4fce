package storage

import (
	"context"
	"time"

	"github.com/appana-ai/appana-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Recorder receives storage timings
type Recorder interface {
	RecordStorageOperation(operation, status string, duration time.Duration)
}

// Manager owns the per-user session state: conversation memory and streaks.
// Every read-modify-write runs under a lock scoped to the uid.
type Manager struct {
	storage Storage
	locks   *keyLock
	budget  int
	metrics Recorder
	logger  *logrus.Logger
}

// NewManager creates a new storage manager with the given memory budget
// in characters
func NewManager(storage Storage, budget int, metrics Recorder, logger *logrus.Logger) *Manager {
	return &Manager{
		storage: storage,
		locks:   newKeyLock(),
		budget:  budget,
		metrics: metrics,
		logger:  logger,
	}
}

// Budget returns the memory budget in characters
func (m *Manager) Budget() int {
	return m.budget
}

// Read returns the stored history for uid, or "" when there is none
func (m *Manager) Read(ctx context.Context, uid string) (string, error) {
	start := time.Now()
	session, err := m.storage.GetSession(ctx, uid)
	m.record("read", err, start)
	if err != nil || session == nil {
		return "", err
	}
	return session.History, nil
}

// Append adds a Q/A exchange to uid's history, keeps only the trailing
// budget characters and returns the new history
func (m *Manager) Append(ctx context.Context, uid, question, answer string) (string, error) {
	var history string
	err := m.update(ctx, "append", uid, func(s *models.ChatSession) {
		s.History = TrimToBudget(s.History+"\nQ: "+question+"\nA: "+answer, m.budget)
		history = s.History
	})
	return history, err
}

// Save replaces uid's history with text, trimmed to the budget
func (m *Manager) Save(ctx context.Context, uid, text string) error {
	return m.update(ctx, "save", uid, func(s *models.ChatSession) {
		s.History = TrimToBudget(text, m.budget)
	})
}

// TouchStreak records today's visit for uid and returns the streak transition
func (m *Manager) TouchStreak(ctx context.Context, uid string, now time.Time) (models.StreakEvent, error) {
	var ev models.StreakEvent
	err := m.update(ctx, "streak", uid, func(s *models.ChatSession) {
		ev = s.AdvanceStreak(now)
	})
	return ev, err
}

// Clear removes uid's session
func (m *Manager) Clear(ctx context.Context, uid string) error {
	unlock := m.locks.Lock(uid)
	defer unlock()

	start := time.Now()
	err := m.storage.DeleteSession(ctx, uid)
	m.record("delete", err, start)
	return err
}

// CountSessions returns the number of stored sessions
func (m *Manager) CountSessions(ctx context.Context) (int, error) {
	return m.storage.CountSessions(ctx)
}

// Close releases the backend
func (m *Manager) Close() error {
	return m.storage.Close()
}

func (m *Manager) update(ctx context.Context, op, uid string, fn func(*models.ChatSession)) error {
	unlock := m.locks.Lock(uid)
	defer unlock()

	start := time.Now()

	session, err := m.storage.GetSession(ctx, uid)
	if err != nil {
		m.record(op, err, start)
		return err
	}
	if session == nil {
		session = &models.ChatSession{UserID: uid}
	}

	fn(session)
	session.UpdatedAt = time.Now()

	err = m.storage.SaveSession(ctx, session)
	m.record(op, err, start)
	if err != nil {
		m.logger.WithError(err).WithFields(logrus.Fields{
			"uid":       uid,
			"operation": op,
		}).Error("Failed to save session")
	}
	return err
}

func (m *Manager) record(op string, err error, start time.Time) {
	if m.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.metrics.RecordStorageOperation(op, status, time.Since(start))
}

// TrimToBudget keeps the trailing budget characters of s. The cut is not
// line aware and may fall mid-word.
func TrimToBudget(s string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if len(s) <= budget {
		return s
	}
	runes := []rune(s)
	if len(runes) <= budget {
		return s
	}
	return string(runes[len(runes)-budget:])
}
