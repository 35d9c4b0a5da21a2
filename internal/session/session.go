// Package session keeps per-client chat history in cookie-keyed server-side
// sessions.
package session

import (
	"context"
	"encoding/gob"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"

	"rag-backend/internal/models"
)

const (
	CookieName      = "session_id"
	DefaultLifetime = 24 * time.Hour

	historyKey = "chat_history"
)

func init() {
	// Session values are gob encoded by the store.
	gob.Register([]models.ChatEntry{})
}

// Manager stores chat history per session. Its methods must run inside a
// request handled by LoadAndSave.
type Manager struct {
	sm *scs.SessionManager
}

// New returns a Manager backed by an in-process store. Sessions expire
// lifetime after they are created; zero means DefaultLifetime.
func New(lifetime time.Duration) *Manager {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	sm := scs.New()
	sm.Store = memstore.New()
	sm.Lifetime = lifetime
	sm.Cookie.Name = CookieName
	sm.Cookie.Path = "/"
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	return &Manager{sm: sm}
}

// LoadAndSave loads the caller's session and writes it back, with its
// cookie, when the handler changed it.
func (m *Manager) LoadAndSave(next http.Handler) http.Handler {
	return m.sm.LoadAndSave(next)
}

// History returns a copy of the session's entries, oldest first.
func (m *Manager) History(ctx context.Context) []models.ChatEntry {
	entries, _ := m.sm.Get(ctx, historyKey).([]models.ChatEntry)
	return append([]models.ChatEntry{}, entries...)
}

// Append adds an entry and returns the updated history.
func (m *Manager) Append(ctx context.Context, entry models.ChatEntry) []models.ChatEntry {
	entries := append(m.History(ctx), entry)
	m.sm.Put(ctx, historyKey, entries)
	return append([]models.ChatEntry{}, entries...)
}

// Clear destroys the session and expires its cookie.
func (m *Manager) Clear(ctx context.Context) error {
	return m.sm.Destroy(ctx)
}
