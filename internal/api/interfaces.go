// interfaces.go - Dependencies of the dashboard handlers
package api

import "github.com/chemviz/dashboard/internal/session"

// SessionManager defines the session operations the handlers need.
// This allows swapping the manager in tests.
type SessionManager interface {
	GetOrCreate(id string) (*session.SessionState, bool)
	GetSession(id string) (*session.SessionState, bool)
	TouchSession(id string) bool
	Attach(id string) (func(), bool)
	Len() int
}

var _ SessionManager = (*session.Manager)(nil)
