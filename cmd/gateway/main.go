package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sentriview/go-session-core/auth"
	"github.com/sentriview/go-session-core/client"
	"github.com/sentriview/go-session-core/guard"
	"github.com/sentriview/go-session-core/internal/config"
	inerrors "github.com/sentriview/go-session-core/internal/errors"
	"github.com/sentriview/go-session-core/rbac"
	"github.com/sentriview/go-session-core/session/redisstore"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running gateway: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Gateway stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", "gateway").Logger().Level(zerolog.InfoLevel)
	if c.GetEnv() == "DEV" {
		logger = logger.Level(zerolog.DebugLevel)
	}

	handler, err := buildHandler(c, logger)
	if err != nil {
		return err
	}

	server := &http.Server{Addr: c.GetPort(), Handler: handler}
	go listenAndServe(server)
	waitForStopSignal()
	returnError = shutdown(server)
	return returnError
}

func buildHandler(c config.Config, logger zerolog.Logger) (http.Handler, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     c.GetRedisAddr(),
		Password: c.GetRedisPassword(),
	})

	store, err := redisstore.New(redisClient, c.GetStorageNamespace())
	if err != nil {
		return nil, fmt.Errorf("redisstore.New: %w", err)
	}

	// Fail fast: a role without a permission set must stop the process, not
	// surface as a runtime default.
	matrix, err := rbac.NewMatrix()
	if err != nil {
		return nil, fmt.Errorf("rbac.NewMatrix: %w", err)
	}

	sessions, err := auth.NewService(store, c.GetIdentityBaseURL(),
		auth.WithLogger(logger),
		auth.WithHTTPClient(&http.Client{Timeout: c.GetRequestTimeout()}),
	)
	if err != nil {
		return nil, fmt.Errorf("auth.NewService: %w", err)
	}

	coordinator, err := client.NewCoordinator(store, c.GetIdentityBaseURL()+"/auth/refresh",
		client.WithRefreshTimeout(c.GetRefreshTimeout()),
		client.WithRefreshLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("client.NewCoordinator: %w", err)
	}

	apiClient, err := client.New(store, coordinator,
		client.WithExpirySkew(c.GetExpirySkew()),
		client.WithLogger(logger),
		client.WithHTTPClient(&http.Client{Timeout: c.GetRequestTimeout()}),
	)
	if err != nil {
		return nil, fmt.Errorf("client.New: %w", err)
	}

	guardMw, err := guard.NewMiddleware(store, guard.WithMiddlewareLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("guard.NewMiddleware: %w", err)
	}

	// Bootstrap resolves (and if necessary wipes) whatever session the last
	// run left behind before any request is served.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := sessions.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("sessions.Bootstrap: %w", err)
	}

	gw := &gateway{
		sessions:    sessions,
		matrix:      matrix,
		apiClient:   apiClient,
		platformURL: c.GetPlatformBaseURL(),
		logger:      logger,
	}
	return gw.routes(guardMw), nil
}

type gateway struct {
	sessions    *auth.Service
	matrix      *rbac.Matrix
	apiClient   *client.SessionClient
	platformURL string
	logger      zerolog.Logger
}

func (g *gateway) routes(guardMw *guard.Middleware) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Post(rbac.PathLogin, g.handleLogin)
	r.Post("/logout", g.handleLogout)

	adminOnly := guard.RouteConfig{
		RequireAuth:  true,
		AllowedRoles: []rbac.Role{rbac.RoleAdminMaster, rbac.RoleAdmin},
	}
	fieldwork := guard.RouteConfig{
		RequireAuth:  true,
		AllowedRoles: []rbac.Role{rbac.RoleAdminMaster, rbac.RoleAdmin, rbac.RoleTechnician},
	}
	tenantStaff := guard.RouteConfig{
		RequireAuth:  true,
		AllowedRoles: []rbac.Role{rbac.RoleClientMaster, rbac.RoleClientManager},
	}
	anyAuthenticated := guard.RouteConfig{RequireAuth: true}

	r.Group(func(r chi.Router) {
		r.Use(guardMw.Protect(adminOnly))
		r.Get(rbac.PathAdminDashboard, g.handlePage("admin dashboard"))
	})
	r.Group(func(r chi.Router) {
		r.Use(guardMw.Protect(fieldwork))
		r.Get(rbac.PathInstallations, g.handlePage("installations"))
	})
	r.Group(func(r chi.Router) {
		r.Use(guardMw.Protect(tenantStaff))
		r.Get(rbac.PathDashboard, g.handlePage("tenant dashboard"))
	})
	r.Group(func(r chi.Router) {
		r.Use(guardMw.Protect(anyAuthenticated))
		r.Get(rbac.PathLiveView, g.handlePage("live view"))
		r.Get("/whoami", g.handleWhoami)
		r.Get("/api/alerts", g.handleAlerts)
		r.Post("/api/alerts/{alertID}/ack", g.handleAlertAck)
	})

	return r
}

func (g *gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
		return
	}

	sess, err := g.sessions.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, auth.InvalidCredentialsErr) {
			http.Error(w, `{"error":"invalid_credentials"}`, http.StatusUnauthorized)
			return
		}
		g.logger.Error().Err(err).Msg("login failed")
		http.Error(w, `{"error":"login_failed"}`, http.StatusBadGateway)
		return
	}

	// Send the user back where they were headed, or to their landing page.
	target := guard.ReturnPath(r)
	if target == rbac.PathRoot {
		target = rbac.LandingPath(sess.Role())
	}
	writeJSON(w, map[string]string{"redirect": target})
}

func (g *gateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := g.sessions.Logout(r.Context()); err != nil {
		g.logger.Error().Err(err).Msg("logout failed")
		http.Error(w, `{"error":"logout_failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"redirect": rbac.PathLogin})
}

func (g *gateway) handleWhoami(w http.ResponseWriter, r *http.Request) {
	sess, ok := guard.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"no_session"}`, http.StatusUnauthorized)
		return
	}

	perms := g.matrix.Permissions(sess.Role())
	writeJSON(w, map[string]any{
		"user":        sess.User,
		"platform":    sess.Role().IsPlatform(),
		"scope":       perms.Scope,
		"permissions": perms.Capabilities,
	})
}

// handleAlerts proxies the alert list through the session client, which owns
// bearer attachment, refresh, and the single 401 retry.
func (g *gateway) handleAlerts(w http.ResponseWriter, r *http.Request) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, g.platformURL+"/v1/alerts", http.NoBody)
	if err != nil {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}

	resp, err := g.apiClient.Do(req)
	if err != nil {
		if errors.Is(err, inerrors.ErrRefreshFailed) {
			http.Redirect(w, r, rbac.PathLogin, http.StatusSeeOther)
			return
		}
		g.logger.Error().Err(err).Msg("alerts request failed")
		http.Error(w, `{"error":"upstream_unavailable"}`, http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body) //nolint:errcheck
}

// handleAlertAck consults the permission matrix before proxying: roles whose
// alert:acknowledge qualifier is denied never reach the platform API.
func (g *gateway) handleAlertAck(w http.ResponseWriter, r *http.Request) {
	sess, ok := guard.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"no_session"}`, http.StatusUnauthorized)
		return
	}
	if !g.matrix.Permissions(sess.Role()).Allows(rbac.CapAlertAcknowledge) {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}

	alertID := chi.URLParam(r, "alertID")
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, g.platformURL+"/v1/alerts/"+alertID+"/ack", http.NoBody)
	if err != nil {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}

	resp, err := g.apiClient.Do(req)
	if err != nil {
		if errors.Is(err, inerrors.ErrRefreshFailed) {
			http.Redirect(w, r, rbac.PathLogin, http.StatusSeeOther)
			return
		}
		g.logger.Error().Err(err).Msg("alert ack failed")
		http.Error(w, `{"error":"upstream_unavailable"}`, http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body) //nolint:errcheck
}

func (g *gateway) handlePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"page": name})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func listenAndServe(server *http.Server) error {
	log.Printf("Gateway listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
