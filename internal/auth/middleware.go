package auth

import (
	"net/http"
	"time"
)

// CookieName is the session cookie set on login.
const CookieName = "bizdesk_session"

// DenyFunc renders an access refusal.
type DenyFunc func(w http.ResponseWriter, r *http.Request, err error)

// Gate loads sessions from the request cookie and guards routes.
type Gate struct {
	auth   *Authenticator
	deny   DenyFunc
	secure bool
}

// NewGate builds a gate. secure marks issued cookies Secure.
func NewGate(a *Authenticator, deny DenyFunc, secure bool) *Gate {
	return &Gate{auth: a, deny: deny, secure: secure}
}

// Token returns the session token carried by r, if any.
func Token(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// SetCookie writes the session cookie for sess.
func (g *Gate) SetCookie(w http.ResponseWriter, sess Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (g *Gate) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.secure,
	})
}

// RequireSession rejects requests without a live session with 401 and
// attaches the session to the request context otherwise.
func (g *Gate) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := g.auth.Sessions().Get(Token(r))
		if !ok {
			g.deny(w, r, ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// BlockDemo rejects demo sessions with err. It must run after RequireSession.
func (g *Gate) BlockDemo(err error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := FromContext(r.Context())
			if !ok {
				g.deny(w, r, ErrUnauthenticated)
				return
			}
			if sess.IsDemo {
				g.deny(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireWriter blocks demo sessions from write routes.
func (g *Gate) RequireWriter(next http.Handler) http.Handler {
	return g.BlockDemo(ErrDemoReadOnly)(next)
}
