// Package session defines the entities and update tasks committed through
// sessiontx: user sessions, login failure counters, pre-authentication
// sessions and single-use objects.
package session

import (
	"maps"
	"time"

	"github.com/unkn0wn-root/sessiontx"
)

// State of a user session.
type State string

const (
	StateStarted    State = "started"
	StateLoggingOut State = "logging_out"
	StateLoggedOut  State = "logged_out"
)

// UserSession is a logged-in browser or client session.
type UserSession struct {
	ID          string            `msgpack:"id" json:"id"`
	Realm       string            `msgpack:"realm" json:"realm"`
	UserID      string            `msgpack:"user" json:"user"`
	State       State             `msgpack:"state" json:"state"`
	RememberMe  bool              `msgpack:"rm,omitempty" json:"rm,omitempty"`
	Started     int64             `msgpack:"started" json:"started"` // unix seconds
	LastRefresh int64             `msgpack:"refresh" json:"refresh"` // unix seconds
	Notes       map[string]string `msgpack:"notes,omitempty" json:"notes,omitempty"`
}

var _ sessiontx.Entity[*UserSession] = (*UserSession)(nil)
var _ sessiontx.Timestamped = (*UserSession)(nil)

// NewUserSession starts a session at now.
func NewUserSession(id, realm, userID string, now time.Time) *UserSession {
	return &UserSession{
		ID:          id,
		Realm:       realm,
		UserID:      userID,
		State:       StateStarted,
		Started:     now.Unix(),
		LastRefresh: now.Unix(),
		Notes:       map[string]string{},
	}
}

func (s *UserSession) RealmID() string { return s.Realm }

func (s *UserSession) Clone() *UserSession {
	c := *s
	c.Notes = maps.Clone(s.Notes)
	return &c
}

func (s *UserSession) StartedAt() time.Time     { return time.Unix(s.Started, 0) }
func (s *UserSession) LastRefreshAt() time.Time { return time.Unix(s.LastRefresh, 0) }
func (s *UserSession) IsRememberMe() bool       { return s.RememberMe }

// Task is a user session update.
type Task = sessiontx.Task[*UserSession]

// Create registers a new session; the transaction writes it with ADD.
func Create() Task { return sessiontx.Create(func(*UserSession) {}) }

// SetState moves the session to st.
func SetState(st State) Task {
	return sessiontx.Update(func(s *UserSession) { s.State = st })
}

// Refresh bumps the last refresh time, which restarts the idle window.
func Refresh(now time.Time) Task {
	return sessiontx.Update(func(s *UserSession) { s.LastRefresh = now.Unix() })
}

// SetNote stores a session note.
func SetNote(name, value string) Task {
	return sessiontx.Update(func(s *UserSession) {
		if s.Notes == nil {
			s.Notes = map[string]string{}
		}
		s.Notes[name] = value
	})
}

// RemoveNote deletes a session note.
func RemoveNote(name string) Task {
	return sessiontx.Update(func(s *UserSession) { delete(s.Notes, name) })
}

// Logout marks the session logged out. Once logged out the key is removed;
// the operation is decided on the final state, so a later task that revives
// the session keeps it.
func Logout() Task {
	return sessiontx.Decide(
		func(s *UserSession) { s.State = StateLoggedOut },
		func(s *UserSession) sessiontx.Operation {
			if s.State == StateLoggedOut {
				return sessiontx.OpRemove
			}
			return sessiontx.OpReplace
		},
	)
}
