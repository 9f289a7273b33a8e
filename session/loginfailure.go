package session

import (
	"time"

	"github.com/unkn0wn-root/sessiontx"
)

// LoginFailureKey addresses the failure counter of one user in one realm.
type LoginFailureKey struct {
	Realm  string
	UserID string
}

func (k LoginFailureKey) String() string { return k.Realm + "/" + k.UserID }

// LoginFailure counts consecutive failed logins for brute force detection.
type LoginFailure struct {
	Realm         string `msgpack:"realm" json:"realm"`
	UserID        string `msgpack:"user" json:"user"`
	NumFailures   int    `msgpack:"n" json:"n"`
	LastFailure   int64  `msgpack:"last" json:"last"` // unix millis
	LastIPFailure string `msgpack:"ip,omitempty" json:"ip,omitempty"`
}

var _ sessiontx.Entity[*LoginFailure] = (*LoginFailure)(nil)

func NewLoginFailure(key LoginFailureKey) *LoginFailure {
	return &LoginFailure{Realm: key.Realm, UserID: key.UserID}
}

func (f *LoginFailure) RealmID() string { return f.Realm }

func (f *LoginFailure) Clone() *LoginFailure {
	c := *f
	return &c
}

// RecordFailure increments the counter. Replayed on conflict, so concurrent
// failures from different nodes all count.
func RecordFailure(ip string, now time.Time) sessiontx.Task[*LoginFailure] {
	return sessiontx.Update(func(f *LoginFailure) {
		f.NumFailures++
		f.LastFailure = now.UnixMilli()
		f.LastIPFailure = ip
	})
}

// ClearFailures drops the counter after a successful login.
func ClearFailures() sessiontx.Task[*LoginFailure] {
	return sessiontx.Decide(
		func(f *LoginFailure) { f.NumFailures = 0 },
		func(*LoginFailure) sessiontx.Operation { return sessiontx.OpRemove },
	)
}

// LoginFailureExpiration keeps a counter for the realm's max wait after the
// last failure.
func LoginFailureExpiration(now func() time.Time) sessiontx.ExpirationPolicy[*LoginFailure] {
	return sessiontx.ExpirationFuncs[*LoginFailure]{
		Lifespan: func(r *sessiontx.Realm, f *LoginFailure) int64 {
			if r == nil || r.LoginFailureMaxWait <= 0 {
				return sessiontx.NoExpiration
			}
			return sessiontx.RemainingMs(time.UnixMilli(f.LastFailure).Add(r.LoginFailureMaxWait).Sub(now()))
		},
	}
}
