package sessionkit

// Decision is the outcome of evaluating a protected surface against the
// current session state.
type Decision int

const (
	// DecisionPending means the restore pass has not settled yet; render
	// nothing and wait for the next snapshot.
	DecisionPending Decision = iota
	// DecisionRedirect means no authenticated user; send the visitor to the
	// login path.
	DecisionRedirect
	// DecisionAllow means an authenticated user is present.
	DecisionAllow
)

func (d Decision) String() string {
	switch d {
	case DecisionPending:
		return "pending"
	case DecisionRedirect:
		return "redirect"
	case DecisionAllow:
		return "allow"
	default:
		return "unknown"
	}
}

// Gate guards protected surfaces using the session store's state. The
// decision logic itself is pure; [Gate.Watch] re-evaluates it on every
// session change so a logout elsewhere revokes access here without any
// polling.
type Gate struct {
	store     *SessionStore
	loginPath string
}

// NewGate builds a gate over store. loginPath falls back to the store's
// configured Gate.LoginPath, then "/login".
func NewGate(store *SessionStore, loginPath string) *Gate {
	if loginPath == "" {
		loginPath = store.cfg.Gate.LoginPath
	}
	if loginPath == "" {
		loginPath = "/login"
	}
	return &Gate{store: store, loginPath: loginPath}
}

// Decide maps a snapshot to a decision. Loading wins over everything:
// while the restore pass runs, no verdict is issued either way.
func Decide(s Snapshot) Decision {
	switch {
	case s.Loading:
		return DecisionPending
	case !s.Authenticated:
		return DecisionRedirect
	default:
		return DecisionAllow
	}
}

// Decide evaluates the store's current snapshot.
func (g *Gate) Decide() Decision {
	return Decide(g.store.Snapshot())
}

// RedirectPath is where redirected visitors go.
func (g *Gate) RedirectPath() string {
	return g.loginPath
}

// Watch invokes fn with the current decision immediately and again on every
// session change. The returned cancel func stops the watch.
func (g *Gate) Watch(fn func(Decision)) (cancel func()) {
	fn(g.Decide())
	return g.store.Subscribe(func(s Snapshot) {
		fn(Decide(s))
	})
}
