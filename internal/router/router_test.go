package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/helpdesk-client/internal/backend"
)

func newRouter(t *testing.T) (http.Handler, *backend.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := backend.NewStore(backend.Options{Secret: []byte("k")})
	return New(store, nil), store
}

func serve(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return body.Detail
}

func login(t *testing.T, h http.Handler, store *backend.Store) string {
	t.Helper()
	if _, err := store.Register("ana@example.com", "secret-pass", nil); err != nil {
		t.Fatal(err)
	}
	w := serve(h, http.MethodPost, "/api/auth/login", "", `{"email":"ana@example.com","password":"secret-pass"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &tok); err != nil {
		t.Fatal(err)
	}
	return tok.AccessToken
}

func TestHealth(t *testing.T) {
	h, _ := newRouter(t)
	for _, path := range []string{PathHealth, PathReady} {
		if w := serve(h, http.MethodGet, path, "", ""); w.Code != http.StatusOK {
			t.Errorf("%s: %d", path, w.Code)
		}
	}
}

func TestUnauthenticated(t *testing.T) {
	h, _ := newRouter(t)
	w := serve(h, http.MethodGet, "/api/tickets/", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); got != "Bearer" {
		t.Errorf("WWW-Authenticate = %q", got)
	}
	if w := serve(h, http.MethodGet, "/api/tickets/", "garbage", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: %d", w.Code)
	}
}

func TestBadLogin(t *testing.T) {
	h, store := newRouter(t)
	store.Register("ana@example.com", "secret-pass", nil)
	w := serve(h, http.MethodPost, "/api/auth/login", "", `{"email":"ana@example.com","password":"nope"}`)
	if w.Code != http.StatusUnauthorized || detail(t, w) != "Email o contraseña incorrectos" {
		t.Errorf("login: %d %s", w.Code, w.Body)
	}
	if w := serve(h, http.MethodPost, "/api/auth/login", "", `{`); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("malformed body: %d", w.Code)
	}
}

func TestTicketFlow(t *testing.T) {
	h, store := newRouter(t)
	token := login(t, h, store)

	w := serve(h, http.MethodPost, "/api/tickets/", token, `{"title":"VPN issue","category":"technical"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body)
	}
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	json.Unmarshal(w.Body.Bytes(), &created)
	if created.Status != "open" {
		t.Errorf("status = %q", created.Status)
	}

	if w := serve(h, http.MethodGet, "/api/tickets/?status_filter=open,closed&page=1&page_size=5", token, ""); w.Code != http.StatusOK {
		t.Errorf("list: %d %s", w.Code, w.Body)
	}
	if w := serve(h, http.MethodGet, "/api/tickets/?status_filter=archived", token, ""); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad filter: %d", w.Code)
	}
	if w := serve(h, http.MethodGet, "/api/tickets/?page=0", token, ""); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad page: %d", w.Code)
	}

	if w := serve(h, http.MethodPost, "/api/tickets/"+created.ID+"/close", token, ""); w.Code != http.StatusOK {
		t.Fatalf("close: %d", w.Code)
	}
	w = serve(h, http.MethodPost, "/api/tickets/"+created.ID+"/close", token, "")
	if w.Code != http.StatusConflict || detail(t, w) != "El ticket ya está cerrado" {
		t.Errorf("second close: %d %s", w.Code, w.Body)
	}
	w = serve(h, http.MethodPost, "/api/chat/"+created.ID+"/messages", token, `{"content":"hola"}`)
	if w.Code != http.StatusBadRequest || detail(t, w) != "No puedes enviar mensajes en un ticket cerrado" {
		t.Errorf("send on closed: %d %s", w.Code, w.Body)
	}
	if w := serve(h, http.MethodGet, "/api/tickets/missing", token, ""); w.Code != http.StatusNotFound {
		t.Errorf("missing: %d", w.Code)
	}
}

func TestOperatorRoutesForbidden(t *testing.T) {
	h, store := newRouter(t)
	token := login(t, h, store)
	for _, path := range []string{"/api/operator/stats", "/api/operator/tickets"} {
		if w := serve(h, http.MethodGet, path, token, ""); w.Code != http.StatusForbidden {
			t.Errorf("%s: %d", path, w.Code)
		}
	}
}
