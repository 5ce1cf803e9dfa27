package core

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const sessionName = "auth_session"

const (
	ctxSessionKey = "session"
	ctxUserKey    = "user"
)

// SessionMiddleware loads the signed session cookie, resolves its opaque
// token against the registry and exposes the authenticated user (if any)
// to downstream handlers. A missing, superseded or idle-expired token
// simply yields an anonymous request.
func SessionMiddleware(cfg Config, store *sessions.CookieStore, registry SessionRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := store.Get(c.Request, sessionName)
		if err != nil {
			// Undecodable cookies (tampered, or signed with a rotated
			// key) fall back to an anonymous session.
			session, _ = store.New(c.Request, sessionName)
			if session == nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "session error")
				c.Abort()
				return
			}
			delete(session.Values, "token")
		}
		applySessionOptions(cfg, session)
		c.Set(ctxSessionKey, session)

		if token, _ := session.Values["token"].(string); token != "" {
			user, ok, err := registry.Resolve(c.Request.Context(), token)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "session error")
				c.Abort()
				return
			}
			if ok {
				c.Set(ctxUserKey, user)
			}
		}

		c.Next()
	}
}

// AuthorizeMiddleware evaluates every request against the rule table.
// Unauthenticated denials redirect to the login page; an authenticated
// user lacking the required role gets a forbidden response.
func AuthorizeMiddleware(rules *RuleTable) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		switch rules.Authorize(c.Request.URL.Path, user) {
		case DenyNotAuthenticated:
			c.Redirect(http.StatusFound, "/auth/login")
			c.Abort()
		case DenyInsufficientRole:
			respondError(c, http.StatusForbidden, "FORBIDDEN", "insufficient role for this resource")
			c.Abort()
		default:
			c.Next()
		}
	}
}

// currentUser returns the resolved user for this request, or nil.
func currentUser(c *gin.Context) *User {
	if v, ok := c.Get(ctxUserKey); ok {
		if u, ok := v.(User); ok {
			return &u
		}
	}
	return nil
}

// currentSession returns the gorilla session attached by SessionMiddleware.
func currentSession(c *gin.Context) *sessions.Session {
	if v, ok := c.Get(ctxSessionKey); ok {
		if s, ok := v.(*sessions.Session); ok {
			return s
		}
	}
	return nil
}

func applySessionOptions(cfg Config, session *sessions.Session) {
	if session.Options == nil {
		session.Options = &sessions.Options{}
	}
	session.Options.Path = "/"
	session.Options.MaxAge = int(cfg.SessionIdleTimeout.Seconds())
	session.Options.HttpOnly = true
	session.Options.Secure = cfg.CookieSecure
	session.Options.SameSite = sameSiteFromString(cfg.CookieSameSite)
}

func sameSiteFromString(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}
