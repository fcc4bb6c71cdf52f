package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"tradeledger/data/session"
	"tradeledger/internal/model"
)

type fakeSession struct {
	sessions map[string]model.Session
}

func (s *fakeSession) GetSession(_ context.Context, token string) (model.Session, error) {
	sess, ok := s.sessions[token]
	if !ok {
		return model.Session{}, session.ErrNotFound
	}
	return sess, nil
}

func newTestRouter(sessions map[string]model.Session) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", Logger(), Auth(&fakeSession{sessions: sessions}), func(c *gin.Context) {
		sess, _ := c.MustGet(SessionKey).(model.Session)
		if sess.UserID == 0 {
			c.String(http.StatusInternalServerError, "no session in context")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	return r
}

func TestAuthRedirectsWithoutCookie(t *testing.T) {
	r := newTestRouter(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("location = %q, want /login", loc)
	}
}

func TestAuthRedirectsOnUnknownToken(t *testing.T) {
	r := newTestRouter(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "stale-token"})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
}

func TestAuthPassesBoundSession(t *testing.T) {
	r := newTestRouter(map[string]model.Session{"good-token": {UserID: 42}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "good-token"})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
