package session

import (
	"maps"

	"github.com/unkn0wn-root/sessiontx"
)

// AuthSession is pre-authentication workflow state. Callers register it as
// sessiontx.Transient when it only has to live for the current request.
type AuthSession struct {
	TabID     string            `msgpack:"tab" json:"tab"`
	Realm     string            `msgpack:"realm" json:"realm"`
	ClientID  string            `msgpack:"client" json:"client"`
	Execution string            `msgpack:"exec,omitempty" json:"exec,omitempty"`
	Notes     map[string]string `msgpack:"notes,omitempty" json:"notes,omitempty"`
}

var _ sessiontx.Entity[*AuthSession] = (*AuthSession)(nil)

func (a *AuthSession) RealmID() string { return a.Realm }

func (a *AuthSession) Clone() *AuthSession {
	c := *a
	c.Notes = maps.Clone(a.Notes)
	return &c
}

// SetAuthNote stores a note on the authentication session.
func SetAuthNote(name, value string) sessiontx.Task[*AuthSession] {
	return sessiontx.Update(func(a *AuthSession) {
		if a.Notes == nil {
			a.Notes = map[string]string{}
		}
		a.Notes[name] = value
	})
}

// SetExecution records the authenticator step currently running.
func SetExecution(id string) sessiontx.Task[*AuthSession] {
	return sessiontx.Update(func(a *AuthSession) { a.Execution = id })
}
