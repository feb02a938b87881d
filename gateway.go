package sessionkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/verinews/sessionkit/record"
)

// HTTPGateway is the production [Gateway]: it speaks the backend's REST
// surface and owns the coupling between backend responses and the persisted
// session record.
type HTTPGateway struct {
	baseURL   string
	userAgent string
	client    *http.Client
	records   record.Store
	log       zerolog.Logger
}

// GatewayOption customizes an [HTTPGateway].
type GatewayOption func(*HTTPGateway)

// WithGatewayHTTPClient replaces the default HTTP client. The configured
// BackendConfig.Timeout is ignored when a custom client is supplied.
func WithGatewayHTTPClient(client *http.Client) GatewayOption {
	return func(g *HTTPGateway) {
		if client != nil {
			g.client = client
		}
	}
}

// WithGatewayLogger sets the gateway's logger. Defaults to a no-op logger.
func WithGatewayLogger(log zerolog.Logger) GatewayOption {
	return func(g *HTTPGateway) {
		g.log = log
	}
}

// NewHTTPGateway creates a gateway for the backend at cfg.BaseURL, writing
// through to records on every state-changing call.
func NewHTTPGateway(cfg BackendConfig, records record.Store, options ...GatewayOption) (*HTTPGateway, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("backend base URL is required")
	}
	if records == nil {
		return nil, errors.New("record store is required")
	}

	g := &HTTPGateway{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: cfg.Timeout},
		records:   records,
		log:       zerolog.Nop(),
	}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

// backendRejection is the backend's error body. Older builds send only
// detail; newer ones add the structured code.
type backendRejection struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Login exchanges credentials for the authenticated user and persists the
// record before returning, so the caller's in-memory assignment and the
// durable copy change as one step.
func (g *HTTPGateway) Login(ctx context.Context, creds Credentials) (*User, error) {
	resp, err := g.do(ctx, http.MethodPost, "/auth/login", loginRequest{
		Email:    creds.Email,
		Password: creds.Password,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rej := decodeRejection(resp)
		sentinel := error(ErrInvalidCredentials)
		if isEmailNotConfirmed(rej) {
			sentinel = errors.Join(ErrInvalidCredentials, ErrEmailNotConfirmed)
		}
		detail := rej.Detail
		if detail == "" {
			detail = "Invalid email or password"
		}
		g.log.Debug().Int("status", resp.StatusCode).Str("detail", detail).Msg("login rejected")
		return nil, &BackendError{Status: resp.StatusCode, Code: rej.Code, Detail: detail, err: sentinel}
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}

	if err := g.persist(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Signup creates an account. When the backend answers with an active user,
// the record is persisted; a pending-confirmation answer (no user identity
// in the body) persists nothing. The session payload is passed through
// unchanged either way.
func (g *HTTPGateway) Signup(ctx context.Context, data SignupData) (SignupResult, error) {
	resp, err := g.do(ctx, http.MethodPost, "/auth/signup", signupRequest{
		Email:     data.Email,
		Password:  data.Password,
		FirstName: data.FirstName,
		LastName:  data.LastName,
	})
	if err != nil {
		return SignupResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rej := decodeRejection(resp)
		detail := rej.Detail
		if detail == "" {
			detail = fmt.Sprintf("Signup failed: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		g.log.Debug().Int("status", resp.StatusCode).Str("detail", detail).Msg("signup rejected")
		return SignupResult{}, &BackendError{Status: resp.StatusCode, Code: rej.Code, Detail: detail, err: ErrSignupFailed}
	}

	var body struct {
		User
		Session json.RawMessage `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return SignupResult{}, fmt.Errorf("decode signup response: %w", err)
	}

	result := SignupResult{Session: body.Session}
	if body.ID == "" {
		// Account created but pending confirmation; no session to persist.
		return result, nil
	}

	user := body.User
	if err := g.persist(ctx, &user); err != nil {
		return SignupResult{}, err
	}
	result.User = &user
	return result, nil
}

// Logout notifies the backend on a best-effort basis and always clears the
// persisted record. From the caller's perspective logout cannot fail on the
// network: only a local clear failure surfaces.
func (g *HTTPGateway) Logout(ctx context.Context) error {
	resp, err := g.do(ctx, http.MethodPost, "/auth/logout", nil)
	if err != nil {
		g.log.Debug().Err(err).Msg("logout notify failed")
	} else {
		_ = resp.Body.Close()
	}

	if err := g.records.Clear(ctx); err != nil {
		return fmt.Errorf("clear session record: %w", err)
	}
	return nil
}

// CurrentUser is the restore-and-validate step: read the cached record, ask
// the backend whether that identity is still valid, and re-persist the
// freshened copy (the backend may have updated fields such as role).
//
// Absent record, unparseable record, backend rejection, and connectivity
// failure all resolve to (nil, nil) with the record cleared where it was
// present — a cached session that cannot be re-validated is not trusted.
func (g *HTTPGateway) CurrentUser(ctx context.Context) (*User, error) {
	payload, err := g.records.Load(ctx)
	if errors.Is(err, record.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cached User
	if err := json.Unmarshal(payload, &cached); err != nil || cached.ID == "" {
		g.log.Warn().Msg("persisted session record unparseable, discarding")
		_ = g.records.Clear(ctx)
		return nil, nil
	}

	resp, err := g.do(ctx, http.MethodGet, "/auth/me?userId="+url.QueryEscape(cached.ID), nil)
	if err != nil {
		g.log.Warn().Err(err).Msg("session re-validation unreachable, discarding cached session")
		_ = g.records.Clear(ctx)
		return nil, nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = g.records.Clear(ctx)
		return nil, nil
	}

	var verified *User
	if err := json.NewDecoder(resp.Body).Decode(&verified); err != nil || verified == nil || verified.ID == "" {
		_ = g.records.Clear(ctx)
		return nil, nil
	}

	if err := g.persist(ctx, verified); err != nil {
		return nil, err
	}
	return verified, nil
}

func (g *HTTPGateway) persist(ctx context.Context, user *User) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}
	if err := g.records.Save(ctx, payload); err != nil {
		return fmt.Errorf("persist session record: %w", err)
	}
	return nil
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}
	requestID := requestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Debug().Err(err).Str("path", path).Dur("elapsed", time.Since(start)).Msg("backend call failed")
		return nil, &UnreachableError{Endpoint: g.baseURL, cause: err}
	}
	g.log.Debug().Str("path", path).Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("backend call")
	return resp, nil
}

func decodeRejection(resp *http.Response) backendRejection {
	var rej backendRejection
	if err := json.NewDecoder(resp.Body).Decode(&rej); err != nil {
		return backendRejection{}
	}
	return rej
}

// isEmailNotConfirmed prefers the structured code; the substring match on
// the human-readable detail remains for backend builds that predate it.
func isEmailNotConfirmed(rej backendRejection) bool {
	if rej.Code == codeEmailNotConfirmed {
		return true
	}
	return strings.Contains(rej.Detail, detailEmailNotConfirmed)
}
