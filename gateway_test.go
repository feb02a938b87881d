package sessionkit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/verinews/sessionkit/gatewaytest"
	"github.com/verinews/sessionkit/record"
)

func newTestGateway(t *testing.T, backend *gatewaytest.Server) (*HTTPGateway, record.Store) {
	t.Helper()

	records := record.NewMemory()
	gw, err := NewHTTPGateway(BackendConfig{
		BaseURL: backend.URL(),
		Timeout: 5 * time.Second,
	}, records)
	if err != nil {
		t.Fatalf("NewHTTPGateway failed: %v", err)
	}
	return gw, records
}

func TestLoginPersistsRecordAndReturnsUser(t *testing.T) {
	backend := gatewaytest.NewServer()
	defer backend.Close()
	id := backend.Seed("alice@example.com", "pw123", "Alice", "Ng")

	gw, records := newTestGateway(t, backend)

	user, err := gw.Login(context.Background(), Credentials{Email: "alice@example.com", Password: "pw123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user.ID != id || user.Email != "alice@example.com" || user.FirstName != "Alice" {
		t.Fatalf("unexpected user %+v", user)
	}

	payload, err := records.Load(context.Background())
	if err != nil {
		t.Fatalf("record load failed: %v", err)
	}
	var persisted User
	if err := json.Unmarshal(payload, &persisted); err != nil {
		t.Fatalf("persisted record unparseable: %v", err)
	}
	if persisted.ID != id {
		t.Fatalf("expected persisted record for %s, got %+v", id, persisted)
	}
}

func TestLoginRejectionCarriesBackendDetail(t *testing.T) {
	backend := gatewaytest.NewServer()
	defer backend.Close()
	backend.Seed("alice@example.com", "pw123", "Alice", "Ng")

	gw, records := newTestGateway(t, backend)

	_, err := gw.Login(context.Background(), Credentials{Email: "alice@example.com", Password: "nope"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if errors.Is(err, ErrEmailNotConfirmed) {
		t.Fatal("plain rejection must not carry ErrEmailNotConfirmed")
	}

	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected BackendError, got %T", err)
	}
	if be.Detail != "Invalid email or password" {
		t.Fatalf("expected backend detail passed through, got %q", be.Detail)
	}

	if _, err := records.Load(context.Background()); !errors.Is(err, record.ErrNotFound) {
		t.Fatal("failed login must not persist a record")
	}
}

func TestLoginUnconfirmedEmailJoinsBothSentinels(t *testing.T) {
	backend := gatewaytest.NewServer(gatewaytest.WithPendingConfirmation())
	defer backend.Close()

	gw, _ := newTestGateway(t, backend)

	if _, err := gw.Signup(context.Background(), SignupData{Email: "bob@example.com", Password: "pw"}); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	_, err := gw.Login(context.Background(), Credentials{Email: "bob@example.com", Password: "pw"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if !errors.Is(err, ErrEmailNotConfirmed) {
		t.Fatalf("expected ErrEmailNotConfirmed joined in, got %v", err)
	}

	var be *BackendError
	if !errors.As(err, &be) || be.Code != "email_not_confirmed" {
		t.Fatalf("expected structured code, got %v", err)
	}
}

func TestEmailNotConfirmedDetection(t *testing.T) {
	tests := []struct {
		name string
		rej  backendRejection
		want bool
	}{
		{"structured code", backendRejection{Code: "email_not_confirmed"}, true},
		{"legacy detail substring", backendRejection{Detail: "Login rejected: Email not confirmed yet"}, true},
		{"unrelated rejection", backendRejection{Code: "invalid_credentials", Detail: "Invalid email or password"}, false},
		{"empty body", backendRejection{}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isEmailNotConfirmed(tc.rej); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestSignupPassesSessionPayloadThrough(t *testing.T) {
	backend := gatewaytest.NewServer()
	defer backend.Close()

	gw, _ := newTestGateway(t, backend)

	result, err := gw.Signup(context.Background(), SignupData{
		Email: "carol@example.com", Password: "pw", FirstName: "Carol",
	})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if result.User == nil || result.User.Email != "carol@example.com" {
		t.Fatalf("expected active user, got %+v", result.User)
	}

	var session struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(result.Session, &session); err != nil {
		t.Fatalf("session payload unparseable: %v", err)
	}
	if session.AccessToken == "" || session.TokenType != "bearer" {
		t.Fatalf("expected opaque token passed through, got %+v", session)
	}
}

func TestSignupPendingConfirmationReturnsNoUser(t *testing.T) {
	backend := gatewaytest.NewServer(gatewaytest.WithPendingConfirmation())
	defer backend.Close()

	gw, records := newTestGateway(t, backend)

	result, err := gw.Signup(context.Background(), SignupData{Email: "dave@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if result.User != nil {
		t.Fatalf("expected no user for pending signup, got %+v", result.User)
	}
	if _, err := records.Load(context.Background()); !errors.Is(err, record.ErrNotFound) {
		t.Fatal("pending signup must not persist a record")
	}
}

func TestSignupDuplicateEmailWrapsSignupFailed(t *testing.T) {
	backend := gatewaytest.NewServer()
	defer backend.Close()
	backend.Seed("alice@example.com", "pw123", "Alice", "Ng")

	gw, _ := newTestGateway(t, backend)

	_, err := gw.Signup(context.Background(), SignupData{Email: "alice@example.com", Password: "pw"})
	if !errors.Is(err, ErrSignupFailed) {
		t.Fatalf("expected ErrSignupFailed, got %v", err)
	}
	var be *BackendError
	if !errors.As(err, &be) || be.Detail != "Email already registered" {
		t.Fatalf("expected backend detail, got %v", err)
	}
}

func TestCurrentUserWithNoRecordSkipsNetwork(t *testing.T) {
	backend := gatewaytest.NewServer()
	defer backend.Close()

	gw, _ := newTestGateway(t, backend)

	user, err := gw.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if user != nil {
		t.Fatalf("expected nil user, got %+v", user)
	}
	if backend.MeCalls() != 0 {
		t.Fatalf("expected no network call, got %d", backend.MeCalls())
	}
}

func TestCurrentUserMalformedRecordResolvesNil(t *testing.T) {
	backend := gatewaytest.NewServer()
	defer backend.Close()

	gw, records := newTestGateway(t, backend)
	if err := records.Save(context.Background(), []byte("{not json")); err != nil {
		t.Fatalf("seed record failed: %v", err)
	}

	user, err := gw.CurrentUser(context.Background())
	if err != nil || user != nil {
		t.Fatalf("expected (nil, nil), got (%+v, %v)", user, err)
	}
	if _, err := records.Load(context.Background()); !errors.Is(err, record.ErrNotFound) {
		t.Fatal("malformed record must be cleared")
	}
	if backend.MeCalls() != 0 {
		t.Fatal("malformed record must not trigger re-validation")
	}
}

func TestCurrentUserEscapesRecordIDInQuery(t *testing.T) {
	backend := gatewaytest.NewServer()
	defer backend.Close()

	gw, records := newTestGateway(t, backend)
	corrupted := "alice&role=admin"
	payload, err := json.Marshal(User{ID: corrupted, Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("marshal record failed: %v", err)
	}
	if err := records.Save(context.Background(), payload); err != nil {
		t.Fatalf("seed record failed: %v", err)
	}

	user, err := gw.CurrentUser(context.Background())
	if err != nil || user != nil {
		t.Fatalf("expected (nil, nil), got (%+v, %v)", user, err)
	}
	if got := backend.LastMeUserID(); got != corrupted {
		t.Fatalf("expected backend to see the full ID %q, got %q", corrupted, got)
	}
}

func TestCurrentUserRejectedIdentityClearsRecord(t *testing.T) {
	backend := gatewaytest.NewServer()
	defer backend.Close()

	gw, records := newTestGateway(t, backend)
	payload, _ := json.Marshal(User{ID: "ghost", Email: "ghost@example.com"})
	if err := records.Save(context.Background(), payload); err != nil {
		t.Fatalf("seed record failed: %v", err)
	}

	user, err := gw.CurrentUser(context.Background())
	if err != nil || user != nil {
		t.Fatalf("expected (nil, nil) for rejected identity, got (%+v, %v)", user, err)
	}
	if _, err := records.Load(context.Background()); !errors.Is(err, record.ErrNotFound) {
		t.Fatal("rejected identity must clear the record")
	}
}

func TestCurrentUserRefreshesPersistedFields(t *testing.T) {
	backend := gatewaytest.NewServer()
	defer backend.Close()
	id := backend.Seed("alice@example.com", "pw123", "Alice", "Ng")

	gw, records := newTestGateway(t, backend)
	if _, err := gw.Login(context.Background(), Credentials{Email: "alice@example.com", Password: "pw123"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	// Role changed server-side since the record was persisted.
	backend.SetRole("alice@example.com", "moderator")

	user, err := gw.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if user == nil || user.ID != id || user.Role != "moderator" {
		t.Fatalf("expected freshened user, got %+v", user)
	}

	payload, err := records.Load(context.Background())
	if err != nil {
		t.Fatalf("record load failed: %v", err)
	}
	var persisted User
	if err := json.Unmarshal(payload, &persisted); err != nil {
		t.Fatalf("persisted record unparseable: %v", err)
	}
	if persisted.Role != "moderator" {
		t.Fatalf("expected re-persisted role, got %q", persisted.Role)
	}
}

func TestCurrentUserUnreachableBackendDiscardsSession(t *testing.T) {
	backend := gatewaytest.NewServer()
	records := record.NewMemory()
	gw, err := NewHTTPGateway(BackendConfig{BaseURL: backend.URL(), Timeout: time.Second}, records)
	if err != nil {
		t.Fatalf("NewHTTPGateway failed: %v", err)
	}

	payload, _ := json.Marshal(User{ID: "u1", Email: "alice@example.com"})
	if err := records.Save(context.Background(), payload); err != nil {
		t.Fatalf("seed record failed: %v", err)
	}
	backend.Close()

	user, err := gw.CurrentUser(context.Background())
	if err != nil || user != nil {
		t.Fatalf("expected (nil, nil) when unreachable, got (%+v, %v)", user, err)
	}
	if _, err := records.Load(context.Background()); !errors.Is(err, record.ErrNotFound) {
		t.Fatal("unreachable re-validation must clear the record")
	}
}

func TestLoginUnreachableBackendNamesEndpoint(t *testing.T) {
	records := record.NewMemory()
	gw, err := NewHTTPGateway(BackendConfig{
		BaseURL: "http://127.0.0.1:1/api",
		Timeout: 500 * time.Millisecond,
	}, records)
	if err != nil {
		t.Fatalf("NewHTTPGateway failed: %v", err)
	}

	_, err = gw.Login(context.Background(), Credentials{Email: "a@example.com", Password: "pw"})
	if !errors.Is(err, ErrBackendUnreachable) {
		t.Fatalf("expected ErrBackendUnreachable, got %v", err)
	}

	var ue *UnreachableError
	if !errors.As(err, &ue) || ue.Endpoint != "http://127.0.0.1:1/api" {
		t.Fatalf("expected endpoint in error, got %v", err)
	}
}

func TestLogoutBestEffortAgainstDownBackend(t *testing.T) {
	backend := gatewaytest.NewServer()
	records := record.NewMemory()
	gw, err := NewHTTPGateway(BackendConfig{BaseURL: backend.URL(), Timeout: time.Second}, records)
	if err != nil {
		t.Fatalf("NewHTTPGateway failed: %v", err)
	}

	payload, _ := json.Marshal(User{ID: "u1"})
	if err := records.Save(context.Background(), payload); err != nil {
		t.Fatalf("seed record failed: %v", err)
	}
	backend.Close()

	if err := gw.Logout(context.Background()); err != nil {
		t.Fatalf("logout must not fail on network errors, got %v", err)
	}
	if _, err := records.Load(context.Background()); !errors.Is(err, record.ErrNotFound) {
		t.Fatal("logout must always clear the record")
	}
}

func TestLogoutNotifiesBackend(t *testing.T) {
	backend := gatewaytest.NewServer()
	defer backend.Close()

	gw, _ := newTestGateway(t, backend)
	if err := gw.Logout(context.Background()); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if backend.LogoutCalls() != 1 {
		t.Fatalf("expected 1 logout call, got %d", backend.LogoutCalls())
	}
}

func TestFullRoundTripLoginRestoreLogout(t *testing.T) {
	backend := gatewaytest.NewServer()
	defer backend.Close()
	backend.Seed("alice@example.com", "pw123", "Alice", "Ng")

	gw, records := newTestGateway(t, backend)

	if _, err := gw.Login(context.Background(), Credentials{Email: "alice@example.com", Password: "pw123"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	user, err := gw.CurrentUser(context.Background())
	if err != nil || user == nil {
		t.Fatalf("restore failed: (%+v, %v)", user, err)
	}

	if err := gw.Logout(context.Background()); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	user, err = gw.CurrentUser(context.Background())
	if err != nil || user != nil {
		t.Fatalf("expected logged out after logout, got (%+v, %v)", user, err)
	}
	if _, err := records.Load(context.Background()); !errors.Is(err, record.ErrNotFound) {
		t.Fatal("expected record cleared at end of round trip")
	}
}
