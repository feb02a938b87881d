package gatewaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type account struct {
	ID        string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
	Confirmed bool
}

// Server is a fake verification backend exposing the four auth routes under
// /api/auth. All toggles are safe for concurrent use.
type Server struct {
	httpServer *httptest.Server
	signingKey []byte

	mu                  sync.Mutex
	byEmail             map[string]*account
	byID                map[string]*account
	pendingConfirmation bool
	unavailable         bool

	meCalls      atomic.Int64
	logoutCalls  atomic.Int64
	lastMeUserID atomic.Value
}

// Option tweaks a new Server.
type Option func(*Server)

// WithPendingConfirmation makes signup create accounts that require email
// confirmation instead of an immediate session.
func WithPendingConfirmation() Option {
	return func(s *Server) { s.pendingConfirmation = true }
}

// NewServer starts the fake backend. Callers must Close it.
func NewServer(opts ...Option) *Server {
	s := &Server{
		signingKey: []byte(uuid.NewString()),
		byEmail:    make(map[string]*account),
		byID:       make(map[string]*account),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/auth/me", s.handleMe)

	s.httpServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.isUnavailable() {
			writeRejection(w, http.StatusServiceUnavailable, "service_unavailable", "Backend unavailable")
			return
		}
		mux.ServeHTTP(w, r)
	}))

	return s
}

// URL is the API base, including the /api prefix.
func (s *Server) URL() string {
	return s.httpServer.URL + "/api"
}

func (s *Server) Close() {
	s.httpServer.Close()
}

// Seed registers a confirmed account and returns its generated ID.
func (s *Server) Seed(email, password, firstName, lastName string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := &account{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  password,
		FirstName: firstName,
		LastName:  lastName,
		Role:      "user",
		Confirmed: true,
	}
	s.byEmail[email] = acct
	s.byID[acct.ID] = acct
	return acct.ID
}

// SetRole changes an account's role, as a backend admin action would.
func (s *Server) SetRole(email, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.byEmail[email]; ok {
		acct.Role = role
	}
}

// Confirm marks a pending account as email-confirmed.
func (s *Server) Confirm(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.byEmail[email]; ok {
		acct.Confirmed = true
	}
}

// SetUnavailable makes every route answer 503 until reset.
func (s *Server) SetUnavailable(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = down
}

// MeCalls reports how many times /auth/me was hit.
func (s *Server) MeCalls() int64 {
	return s.meCalls.Load()
}

// LogoutCalls reports how many times /auth/logout was hit.
func (s *Server) LogoutCalls() int64 {
	return s.logoutCalls.Load()
}

// LastMeUserID reports the decoded userId of the most recent /auth/me call.
func (s *Server) LastMeUserID() string {
	id, _ := s.lastMeUserID.Load().(string)
	return id
}

func (s *Server) isUnavailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unavailable
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRejection(w, http.StatusBadRequest, "bad_request", "Malformed request body")
		return
	}

	s.mu.Lock()
	acct, ok := s.byEmail[req.Email]
	s.mu.Unlock()

	if !ok || acct.Password != req.Password {
		writeRejection(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}
	if !acct.Confirmed {
		writeRejection(w, http.StatusUnauthorized, "email_not_confirmed", "Email not confirmed")
		return
	}

	writeJSON(w, http.StatusOK, payloadFor(acct))
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRejection(w, http.StatusBadRequest, "bad_request", "Malformed request body")
		return
	}

	s.mu.Lock()
	if _, exists := s.byEmail[req.Email]; exists {
		s.mu.Unlock()
		writeRejection(w, http.StatusConflict, "email_taken", "Email already registered")
		return
	}
	acct := &account{
		ID:        uuid.NewString(),
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      "user",
		Confirmed: !s.pendingConfirmation,
	}
	s.byEmail[req.Email] = acct
	s.byID[acct.ID] = acct
	pending := s.pendingConfirmation
	s.mu.Unlock()

	if pending {
		// No identity in the body until the email is confirmed.
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": "Confirmation email sent",
			"session": nil,
		})
		return
	}

	body := payloadFor(acct)
	body["session"] = map[string]string{
		"access_token": s.mintToken(acct),
		"token_type":   "bearer",
	}
	writeJSON(w, http.StatusCreated, body)
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.logoutCalls.Add(1)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.meCalls.Add(1)

	userID := r.URL.Query().Get("userId")
	s.lastMeUserID.Store(userID)
	s.mu.Lock()
	acct, ok := s.byID[userID]
	s.mu.Unlock()

	if !ok {
		writeRejection(w, http.StatusNotFound, "unknown_user", "User not found")
		return
	}
	writeJSON(w, http.StatusOK, payloadFor(acct))
}

// mintToken signs a short-lived HS256 JWT, like the production backend's
// session tokens. Clients must never parse these.
func (s *Server) mintToken(acct *account) string {
	claims := jwt.MapClaims{
		"sub":   acct.ID,
		"email": acct.Email,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return ""
	}
	return signed
}

func payloadFor(acct *account) map[string]any {
	return map[string]any{
		"id":        acct.ID,
		"email":     acct.Email,
		"firstName": acct.FirstName,
		"lastName":  acct.LastName,
		"role":      acct.Role,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeRejection(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{"code": code, "detail": detail})
}
