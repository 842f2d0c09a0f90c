// Package auth owns the session lifecycle: bootstrap from storage, login
// against the external identity service, and logout through the one
// credential-wipe primitive. The service replaces what would otherwise be a
// global mutable session singleton with an explicitly constructed object
// passed by injection.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	inerrors "github.com/sentriview/go-session-core/internal/errors"
	"github.com/sentriview/go-session-core/session"
)

const (
	loginPath  = "/auth/login"
	logoutPath = "/auth/logout"

	// KeyDeviceID is the namespaced storage key holding the per-install
	// device identifier. It is wiped with everything else on logout.
	KeyDeviceID = "device:id"
	// KeyLastLogin is the session-scoped key recording the last login time.
	KeyLastLogin = "login:at"
)

// loginRequest is the wire format of POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the identity service's answer to a successful login.
type loginResponse struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	User         *session.UserProfile `json:"user"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Service manages the single client session. All mutation goes through
// Login, Logout, and (elsewhere) the refresh success path; every other
// component only reads.
type Service struct {
	store       session.Store
	identityURL string
	httpClient  *http.Client
	logger      zerolog.Logger
	nowTime     func() time.Time // nowTime function (injectable for testing)
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithHTTPClient sets the HTTP client used for identity service calls.
func WithHTTPClient(httpClient *http.Client) ServiceOption {
	return func(s *Service) {
		s.httpClient = httpClient
	}
}

// WithLogger sets the service's logger.
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService initializes a session Service with required dependencies.
// identityURL is the base URL of the external identity service.
func NewService(store session.Store, identityURL string, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("[NewService] store is required")
	}
	if identityURL == "" {
		return nil, errors.New("[NewService] identityURL is required")
	}

	service := &Service{
		store:       store,
		identityURL: identityURL,
		httpClient:  http.DefaultClient,
		logger:      zerolog.Nop(),
		nowTime:     time.Now,
	}

	for _, opt := range options {
		opt(service)
	}

	return service, nil
}

// Bootstrap resolves the session persisted by a previous run. A corrupted
// session (authenticated without a role) is wiped before the empty session
// is returned — ambiguous state is always treated as logged out.
func (s *Service) Bootstrap(ctx context.Context) (session.Session, error) {
	sess, err := s.store.Load(ctx)
	if err != nil {
		return session.Empty(), errors.Wrap(err, "[Service.Bootstrap] load session")
	}

	if sess.Corrupted() {
		s.logger.Warn().Msg("corrupted session found at bootstrap, clearing credentials")
		if err := s.store.ClearAll(ctx); err != nil {
			return session.Empty(), errors.Wrap(err, "[Service.Bootstrap] clear corrupted session")
		}
		return session.Empty(), nil
	}

	return sess, nil
}

// Login authenticates against the identity service and persists the
// resulting session. A response missing the role is rejected without being
// stored: a session that would be corrupted on arrival never reaches the
// store.
func (s *Service) Login(ctx context.Context, email, password string) (session.Session, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return session.Empty(), errors.Wrap(err, "[Service.Login] marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.identityURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return session.Empty(), errors.Wrap(err, "[Service.Login] build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return session.Empty(), errors.Wrap(err, IdentityUnreachableErr.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return session.Empty(), InvalidCredentialsErr
	case resp.StatusCode != http.StatusOK:
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return session.Empty(), errors.Wrapf(InvalidLoginResponseErr, "[Service.Login] identity service returned %d", resp.StatusCode)
	}

	var login loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return session.Empty(), errors.Wrap(err, InvalidLoginResponseErr.Error())
	}
	if login.AccessToken == "" || login.RefreshToken == "" {
		return session.Empty(), errors.Wrap(InvalidLoginResponseErr, "[Service.Login] missing tokens")
	}
	if login.User == nil || login.User.Role == "" {
		return session.Empty(), errors.Wrap(inerrors.ErrSessionCorrupted, "[Service.Login] response carries no role")
	}
	if !login.User.Role.Valid() {
		return session.Empty(), errors.Wrapf(inerrors.ErrSessionCorrupted, "[Service.Login] unknown role %q", login.User.Role)
	}

	sess := session.Session{
		User:            login.User,
		AccessToken:     login.AccessToken,
		RefreshToken:    login.RefreshToken,
		IsAuthenticated: true,
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return session.Empty(), errors.Wrap(err, "[Service.Login] save session")
	}

	if err := s.ensureDeviceID(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("device id not persisted")
	}
	if err := s.store.PutScoped(ctx, KeyLastLogin, s.nowTime().UTC().Format(time.RFC3339)); err != nil {
		s.logger.Warn().Err(err).Msg("last login timestamp not persisted")
	}

	s.logger.Info().Str("role", string(login.User.Role)).Msg("login succeeded")
	return sess, nil
}

// Logout ends the session. The server-side revoke is best effort; the local
// credential wipe happens regardless, on the normal and the error path
// alike, and is what actually terminates the session.
func (s *Service) Logout(ctx context.Context) error {
	sess, err := s.store.Load(ctx)
	if err == nil && sess.RefreshToken != "" {
		if revokeErr := s.revoke(ctx, sess.RefreshToken); revokeErr != nil {
			s.logger.Warn().Err(revokeErr).Msg("server-side logout failed, clearing locally anyway")
		}
	}

	if err := s.store.ClearAll(ctx); err != nil {
		return errors.Wrap(err, "[Service.Logout] clear credentials")
	}

	s.logger.Info().Msg("session cleared")
	return nil
}

// Current returns the session, enforcing the corruption invariant on every
// read: a corrupted session is wiped and reported, never handed out.
func (s *Service) Current(ctx context.Context) (session.Session, error) {
	sess, err := s.store.Load(ctx)
	if err != nil {
		return session.Empty(), errors.Wrap(err, "[Service.Current] load session")
	}

	if sess.Corrupted() {
		if err := s.store.ClearAll(ctx); err != nil {
			return session.Empty(), errors.Wrap(err, "[Service.Current] clear corrupted session")
		}
		return session.Empty(), inerrors.ErrSessionCorrupted
	}

	return sess, nil
}

func (s *Service) revoke(ctx context.Context, refreshToken string) error {
	body, err := json.Marshal(logoutRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.identityURL+logoutPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	return nil
}

func (s *Service) ensureDeviceID(ctx context.Context) error {
	existing, err := s.store.Get(ctx, KeyDeviceID)
	if err != nil {
		return err
	}
	if existing != "" {
		return nil
	}
	return s.store.Put(ctx, KeyDeviceID, uuid.New().String())
}
