// Package gate implements the two-region routing policy: auth screens are
// reachable only without a full session, everything else only with one.
package gate

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"lisst-auth/internal/config"
	"lisst-auth/internal/session"
	"lisst-auth/internal/util"
)

// Action is the gate's decision for one navigation evaluation.
type Action int

const (
	// ActionNone lets the current route render unchanged.
	ActionNone Action = iota
	// ActionRedirectSignup sends an unauthenticated user to the signup entry.
	ActionRedirectSignup
	// ActionRedirectHome sends an authenticated user out of the auth region.
	ActionRedirectHome
)

// Decide is the pure routing decision over the 2x2 matrix of authentication
// and region membership. It redirects exactly in the two disagreeing cases.
func Decide(authenticated, inAuthRegion bool) Action {
	switch {
	case !authenticated && !inAuthRegion:
		return ActionRedirectSignup
	case authenticated && inAuthRegion:
		return ActionRedirectHome
	default:
		return ActionNone
	}
}

// Gate guards navigation against the session store. It holds no state of its
// own; every evaluation reads the store and the requested path.
type Gate struct {
	sessions   *session.Store
	authRegion string
	signupPath string
	homePath   string
	logger     *zap.Logger
}

func New(sessions *session.Store, cfg *config.Config, logger *zap.Logger) *Gate {
	return &Gate{
		sessions:   sessions,
		authRegion: cfg.Gate.AuthRegion,
		signupPath: cfg.Gate.SignupPath,
		homePath:   cfg.Gate.HomePath,
		logger:     logger,
	}
}

// InAuthRegion reports whether the path's first segment is the reserved auth
// region marker.
func (g *Gate) InAuthRegion(path string) bool {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	return len(segments) > 0 && segments[0] == g.authRegion
}

// Middleware evaluates the routing policy on every request. While the session
// store is still restoring it serves a neutral loading response instead of
// redirecting, so a cached session is never flash-redirected to signup.
// Redirects use 303 with no-store, the HTTP analog of replace-not-push.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.sessions.Loading() {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"loading"}`))
			return
		}

		authenticated := g.sessions.Authenticated()
		inAuthRegion := g.InAuthRegion(r.URL.Path)

		switch Decide(authenticated, inAuthRegion) {
		case ActionRedirectSignup:
			g.redirect(w, r, g.signupPath)
		case ActionRedirectHome:
			g.redirect(w, r, g.homePath)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (g *Gate) redirect(w http.ResponseWriter, r *http.Request, target string) {
	g.logger.Debug("Gate redirect",
		util.String("from", r.URL.Path),
		util.String("to", target),
	)
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, target, http.StatusSeeOther)
}
