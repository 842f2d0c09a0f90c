package guard

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sentriview/go-session-core/rbac"
	"github.com/sentriview/go-session-core/session"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySession stores the resolved session for downstream handlers
const ContextKeySession ContextKey = "session"

// ReturnParam is the query parameter on the login redirect carrying the
// originally requested path.
const ReturnParam = "next"

// Middleware adapts the guard state machine to HTTP routing. One Middleware
// serves any number of routes; each route supplies its own RouteConfig.
type Middleware struct {
	store  session.Store
	logger zerolog.Logger
}

// MiddlewareOption defines a function type to modify the Middleware instance.
type MiddlewareOption func(*Middleware)

// WithMiddlewareLogger sets the middleware's logger.
func WithMiddlewareLogger(logger zerolog.Logger) MiddlewareOption {
	return func(m *Middleware) {
		m.logger = logger
	}
}

// NewMiddleware initializes guard middleware over the given store.
func NewMiddleware(store session.Store, options ...MiddlewareOption) (*Middleware, error) {
	if store == nil {
		return nil, errors.New("[NewMiddleware] store is required")
	}

	middleware := &Middleware{
		store:  store,
		logger: zerolog.Nop(),
	}

	for _, opt := range options {
		opt(middleware)
	}

	return middleware, nil
}

// Protect returns middleware enforcing cfg for the wrapped routes. While the
// session loads the attempt is in Loading; if the request is torn down
// during that load no verdict is applied at all.
func (m *Middleware) Protect(cfg RouteConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			sess, err := m.store.Load(ctx)
			if err != nil {
				// Ambiguous session state fails closed to logged-out.
				m.logger.Error().Err(err).Msg("session load failed, treating as unauthenticated")
				sess = session.Empty()
			}

			// The navigation may have been abandoned while loading. Applying
			// a verdict now would act on a dead request.
			if ctx.Err() != nil {
				return
			}

			verdict := Evaluate(sess, cfg)

			if verdict.ClearCredentials {
				if err := m.store.ClearAll(ctx); err != nil {
					m.logger.Error().Err(err).Msg("credential wipe for corrupted session failed")
				} else {
					m.logger.Warn().Msg("corrupted session cleared")
				}
			}

			switch verdict.State {
			case StateAuthorized:
				next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, ContextKeySession, sess)))
			case StateUnauthenticated:
				target := verdict.RedirectTo
				if verdict.PreserveReturn {
					target = loginRedirect(verdict.RedirectTo, r.URL)
				}
				http.Redirect(w, r, target, http.StatusSeeOther)
			case StateUnauthorized:
				m.logger.Debug().
					Str("role", string(sess.Role())).
					Str("path", r.URL.Path).
					Msg("role not allowed on route, redirecting to landing page")
				http.Redirect(w, r, verdict.RedirectTo, http.StatusSeeOther)
			default:
				// Loading never reaches the switch; anything else is a bug.
				http.Error(w, "unexpected guard state", http.StatusInternalServerError)
			}
		})
	}
}

// SessionFromContext returns the session injected by an Authorized verdict.
func SessionFromContext(ctx context.Context) (session.Session, bool) {
	sess, ok := ctx.Value(ContextKeySession).(session.Session)
	return sess, ok
}

// ReturnPath extracts the preserved original path from a login request.
// Only same-site absolute paths are honored; anything else collapses to the
// root path so the login screen can never be used as an open redirect.
func ReturnPath(r *http.Request) string {
	next := r.URL.Query().Get(ReturnParam)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return rbac.PathRoot
	}
	return next
}

func loginRedirect(loginPath string, original *url.URL) string {
	requested := original.Path
	if original.RawQuery != "" {
		requested += "?" + original.RawQuery
	}
	return loginPath + "?" + ReturnParam + "=" + url.QueryEscape(requested)
}
