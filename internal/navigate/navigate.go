// Package navigate carries navigation requests from the client core to
// whatever front end hosts it (a CLI, a TUI, tests).
package navigate

import "sync"

// RouteLogin is the login entry point.
const RouteLogin = "/login"

func ChatRoute(ticketID string) string { return "/chat/" + ticketID }

type Navigator interface {
	Navigate(route string)
}

// Func adapts a plain function to Navigator.
type Func func(route string)

func (f Func) Navigate(route string) { f(route) }

// Discard ignores navigation requests.
var Discard Navigator = Func(func(string) {})

// Recorder remembers every route it was asked to visit.
type Recorder struct {
	mu     sync.Mutex
	routes []string
}

func (r *Recorder) Navigate(route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
}

// Routes returns a copy of the recorded routes.
func (r *Recorder) Routes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.routes...)
}

// Count returns how many times route was visited.
func (r *Recorder) Count(route string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rt := range r.routes {
		if rt == route {
			n++
		}
	}
	return n
}
