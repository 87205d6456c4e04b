// Package testserver runs the development API on an httptest server
// for package tests, with request counting and fault injection.
package testserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/helpdesk-client/internal/backend"
	"github.com/psds-microservice/helpdesk-client/internal/clock"
	"github.com/psds-microservice/helpdesk-client/internal/router"
)

// Epoch is the start time of the backend clock in tests.
var Epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fault struct {
	status int
	detail string
	times  int
}

type Server struct {
	*httptest.Server
	Store *backend.Store
	Clock *clock.FakeClock

	mu       sync.Mutex
	counts   map[string]int
	faults   map[string]*fault
	block    map[string]chan struct{}
	inFlight map[string]chan struct{}
}

func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	clk := clock.Fake(Epoch)
	s := &Server{
		Store:    backend.NewStore(backend.Options{Secret: []byte("test-secret"), Clock: clk}),
		Clock:    clk,
		counts:   make(map[string]int),
		faults:   make(map[string]*fault),
		block:    make(map[string]chan struct{}),
		inFlight: make(map[string]chan struct{}),
	}
	s.Server = httptest.NewServer(s.wrap(router.New(s.Store, nil)))
	t.Cleanup(s.Close)
	return s
}

func key(method, path string) string { return method + " " + path }

func (s *Server) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		k := key(r.Method, r.URL.Path)
		s.mu.Lock()
		s.counts[k]++
		f := s.faults[k]
		if f != nil {
			f.times--
			if f.times <= 0 {
				delete(s.faults, k)
			}
		}
		gate := s.block[k]
		arrived := s.inFlight[k]
		s.mu.Unlock()

		if arrived != nil {
			arrived <- struct{}{}
		}
		if gate != nil {
			<-gate
		}
		if f != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": f.detail})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Count returns how many requests hit method and path.
func (s *Server) Count(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key(method, path)]
}

// Total returns the number of requests served.
func (s *Server) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.counts {
		n += c
	}
	return n
}

// Fail makes the next times requests to method and path answer status
// with detail instead of reaching the router.
func (s *Server) Fail(method, path string, status int, detail string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[key(method, path)] = &fault{status: status, detail: detail, times: times}
}

// Hold blocks requests to method and path until the returned release
// is called. Each held request is announced on arrived.
func (s *Server) Hold(method, path string) (arrived <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	in := make(chan struct{}, 16)
	k := key(method, path)
	s.block[k] = gate
	s.inFlight[k] = in
	var once sync.Once
	return in, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.block, k)
			delete(s.inFlight, k)
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Seed registers an account, optionally as an operator.
func (s *Server) Seed(t testing.TB, email, password string, operator bool) {
	t.Helper()
	if _, err := s.Store.Register(email, password, nil); err != nil {
		t.Fatalf("seed %s: %v", email, err)
	}
	if operator {
		if err := s.Store.Promote(email); err != nil {
			t.Fatalf("promote %s: %v", email, err)
		}
	}
}
