package instacart

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
)

func (c *Client) setAuthState(ctx context.Context, state AuthState) {
	slog.DebugContext(ctx, "auth state", "state", state.String())
	if c.opts.OnAuthState != nil {
		c.opts.OnAuthState(state)
	}
}

// EnsureSession makes sure the renderer holds an authenticated session
// before any data operation runs. Idempotent: a browser profile that is
// already logged in short-circuits immediately.
//
// The login continuation (password, multi-factor, bot challenge) is
// deliberately left to a human; the client only types the credential
// hint when one is configured, then waits for the location to land on
// the canonical account page.
func (c *Client) EnsureSession(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "EnsureSession")
	defer span.End()

	err := c.renderer.Navigate(ctx, c.opts.AccountURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("navigate to account page: %w", err)
	}

	// give client-side redirects a moment to settle before deciding
	// whether a login is needed
	loc, err := c.waitForLocation(ctx, c.opts.ElementTimeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if c.atAccountPage(loc) {
		c.setAuthState(ctx, Authenticated)
		return nil
	}

	c.setAuthState(ctx, Unauthenticated)
	if c.opts.CredentialHint != "" {
		err := c.submitCredentialHint(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("submit credential hint: %w", err)
		}
	}

	c.setAuthState(ctx, AwaitingManualAuth)
	if !c.opts.Interactive {
		span.SetStatus(codes.Error, ErrManualAuthRequired.Error())
		return ErrManualAuthRequired
	}

	slog.InfoContext(ctx, "waiting for login to be completed manually", "budget", c.opts.AuthTimeout)
	loc, err = c.waitForLocation(ctx, c.opts.AuthTimeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if !c.atAccountPage(loc) {
		span.SetStatus(codes.Error, ErrAuthTimeout.Error())
		return ErrAuthTimeout
	}

	c.setAuthState(ctx, Authenticated)
	return nil
}

func (c *Client) submitCredentialHint(ctx context.Context) error {
	emailInput, err := c.renderer.WaitForElement(ctx, selLoginEmail, c.opts.ElementTimeout)
	if err != nil {
		return err
	}
	if emailInput == nil {
		return fmt.Errorf("login form never appeared")
	}
	continueButton, err := c.renderer.WaitForElement(ctx, selLoginContinue, c.opts.ElementTimeout)
	if err != nil {
		return err
	}
	if continueButton == nil {
		return fmt.Errorf("continue button never appeared")
	}

	err = c.renderer.TypeInto(ctx, emailInput, c.opts.CredentialHint)
	if err != nil {
		return err
	}
	return c.renderer.Click(ctx, continueButton)
}

// atAccountPage reports whether loc is the canonical account page,
// tolerating the trailing slash or query string the storefront's
// redirects sometimes append.
func (c *Client) atAccountPage(loc string) bool {
	loc = strings.TrimSuffix(strings.SplitN(loc, "?", 2)[0], "/")
	return loc == strings.TrimSuffix(c.opts.AccountURL, "/")
}

// waitForLocation polls the renderer until its location is the
// canonical account page or the budget elapses, returning the last
// observed location either way.
func (c *Client) waitForLocation(ctx context.Context, budget time.Duration) (string, error) {
	deadline := time.Now().Add(budget)
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		loc, err := c.renderer.CurrentURL(ctx)
		if err != nil {
			return "", err
		}
		if c.atAccountPage(loc) || time.Now().After(deadline) {
			return loc, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}
