package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-backend/internal/models"
)

func newHandler(m *Manager) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/append", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		json.NewEncoder(w).Encode(m.Append(r.Context(), models.ChatEntry{Query: q, Response: "re: " + q}))
	})
	mux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(m.History(r.Context()))
	})
	mux.HandleFunc("/clear", func(w http.ResponseWriter, r *http.Request) {
		if err := m.Clear(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return m.LoadAndSave(mux)
}

func call(t *testing.T, h http.Handler, target string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return rec
}

func history(t *testing.T, rec *httptest.ResponseRecorder) []models.ChatEntry {
	t.Helper()
	var entries []models.ChatEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	return entries
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", CookieName)
	return nil
}

func TestManager_History(t *testing.T) {
	h := newHandler(New(0))

	rec := call(t, h, "/history", nil)
	assert.Empty(t, history(t, rec))
	assert.Empty(t, rec.Result().Cookies(), "reading does not start a session")

	rec = call(t, h, "/append?q=q1", nil)
	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, []models.ChatEntry{{Query: "q1", Response: "re: q1"}}, history(t, rec))

	rec = call(t, h, "/append?q=q2", cookie)
	assert.Equal(t, []models.ChatEntry{
		{Query: "q1", Response: "re: q1"},
		{Query: "q2", Response: "re: q2"},
	}, history(t, rec))

	assert.Len(t, history(t, call(t, h, "/history", cookie)), 2)
	assert.Empty(t, history(t, call(t, h, "/history", nil)), "other clients have their own session")
}

func TestManager_Clear(t *testing.T) {
	h := newHandler(New(0))

	cookie := sessionCookie(t, call(t, h, "/append?q=q1", nil))

	rec := call(t, h, "/clear", cookie)
	expired := sessionCookie(t, rec)
	assert.Less(t, expired.MaxAge, 0)

	assert.Empty(t, history(t, call(t, h, "/history", cookie)))
}

func TestManager_Lifetime(t *testing.T) {
	h := newHandler(New(time.Hour))

	cookie := sessionCookie(t, call(t, h, "/append?q=q1", nil))
	assert.Greater(t, cookie.MaxAge, 0)
	assert.LessOrEqual(t, cookie.MaxAge, int(time.Hour/time.Second)+1)
}
