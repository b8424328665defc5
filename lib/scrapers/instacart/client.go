package instacart

import (
	"fmt"
	"time"

	"ordersync/lib/htmlutil"
	"ordersync/lib/renderer"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/instacart")

const (
	DefaultAccountURL = "https://www.instacart.ca/store/account"
	DefaultOrdersURL  = "https://www.instacart.ca/store/account/orders"
)

var (
	ErrAuthTimeout = fmt.Errorf("authentication was not completed within budget")
	// returned instead of waiting out the auth budget when no human can
	// finish the login
	ErrManualAuthRequired = fmt.Errorf("manual authentication required but the session is not interactive")
)

type AuthState int

const (
	Unauthenticated AuthState = iota
	AwaitingManualAuth
	Authenticated
)

func (s AuthState) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case AwaitingManualAuth:
		return "awaiting_manual_auth"
	case Authenticated:
		return "authenticated"
	}
	return "unknown"
}

type ClientOptions struct {
	AccountURL string
	OrdersURL  string
	// CredentialHint is typed into the login form to kick off the
	// continuation step. Empty means a fully manual login.
	CredentialHint string
	// Interactive reports whether a human can complete multi-factor or
	// challenge steps in the rendered window.
	Interactive bool
	// OnAuthState surfaces session state transitions to the caller,
	// typically so an interactive frontend can prompt the user.
	OnAuthState func(AuthState)

	// AuthTimeout bounds the manual part of the login. It is large
	// (an hour) because the human on the other end may be slow, but it
	// is never unbounded.
	AuthTimeout time.Duration
	// ChallengeTimeout bounds the wait on detail pages, which sit
	// behind the same bot-detection interstitial as login.
	ChallengeTimeout time.Duration
	// ElementTimeout bounds ordinary render waits.
	ElementTimeout time.Duration
	PollInterval   time.Duration

	// PaceMin/PaceMax jitter successive load-more triggers.
	PaceMin time.Duration
	PaceMax time.Duration
}

// Client scrapes the order history of one authenticated account
// through a renderer it does not own. All methods are sequential, the
// renderer is a single browser session.
type Client struct {
	renderer renderer.Renderer
	parser   htmlutil.Parser
	opts     ClientOptions
}

func NewClient(r renderer.Renderer, p htmlutil.Parser, opts ClientOptions) *Client {
	if opts.AccountURL == "" {
		opts.AccountURL = DefaultAccountURL
	}
	if opts.OrdersURL == "" {
		opts.OrdersURL = DefaultOrdersURL
	}
	if opts.AuthTimeout == 0 {
		opts.AuthTimeout = time.Hour
	}
	if opts.ChallengeTimeout == 0 {
		opts.ChallengeTimeout = time.Hour
	}
	if opts.ElementTimeout == 0 {
		opts.ElementTimeout = time.Second * 10
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Millisecond * 500
	}
	if opts.PaceMin == 0 && opts.PaceMax == 0 {
		opts.PaceMin = time.Second * 2
		opts.PaceMax = time.Second * 5
	}
	return &Client{
		renderer: r,
		parser:   p,
		opts:     opts,
	}
}
