package app

import (
	"net/http"

	"github.com/metinatakli/cinema-booking-core/internal/domain"
)

type sessionKey string

// The identity service writes these keys into the shared session store at login.
const (
	SessionKeyUserId = sessionKey("userID")
	SessionKeyRole   = sessionKey("role")
)

func (s sessionKey) String() string {
	return string(s)
}

type contextKey string

const (
	identityContextKey = contextKey("identity")
	loggerContextKey   = contextKey("logger")
)

// contextGetIdentity returns the caller set by requireAuthentication.
func (app *Application) contextGetIdentity(r *http.Request) domain.Identity {
	identity, ok := r.Context().Value(identityContextKey).(domain.Identity)
	if !ok {
		panic("missing identity from context")
	}

	return identity
}

// contextLookupIdentity is for routes that also serve anonymous callers.
func (app *Application) contextLookupIdentity(r *http.Request) (domain.Identity, bool) {
	identity, ok := r.Context().Value(identityContextKey).(domain.Identity)
	return identity, ok
}
