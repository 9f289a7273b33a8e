package session

import (
	"maps"

	"github.com/unkn0wn-root/sessiontx"
)

// SingleUseObject is a one-shot token (action tokens, revoked codes). Its
// notes are fixed at creation.
type SingleUseObject struct {
	Realm string            `msgpack:"realm" json:"realm"`
	Notes map[string]string `msgpack:"notes,omitempty" json:"notes,omitempty"`
}

var _ sessiontx.Entity[*SingleUseObject] = (*SingleUseObject)(nil)

// NewSingleUseObject copies notes; a nil map becomes empty.
func NewSingleUseObject(realm string, notes map[string]string) *SingleUseObject {
	n := maps.Clone(notes)
	if n == nil {
		n = map[string]string{}
	}
	return &SingleUseObject{Realm: realm, Notes: n}
}

func (o *SingleUseObject) RealmID() string { return o.Realm }

func (o *SingleUseObject) Clone() *SingleUseObject {
	return &SingleUseObject{Realm: o.Realm, Notes: maps.Clone(o.Notes)}
}

// Note returns a single note value.
func (o *SingleUseObject) Note(name string) string { return o.Notes[name] }

// PutOnce creates the object unless another node stored it first; in that
// case the existing object is kept as is.
func PutOnce() sessiontx.Task[*SingleUseObject] {
	return sessiontx.CreateIfAbsent(func(*SingleUseObject) {})
}
