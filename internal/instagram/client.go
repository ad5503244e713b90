// Package instagram drives a controlled browser session against the
// Instagram web surface: credential login with optional second-factor
// handling, session capture/restore, and authenticated page fetches for
// the collector.
package instagram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/gramwatch/gramwatch/internal/sessioncrypto"
	"github.com/gramwatch/gramwatch/pkg/config"
	"github.com/gramwatch/gramwatch/pkg/logging"
)

const (
	navigationTimeout = 45 * time.Second
	stepTimeout       = 30 * time.Second
	settleDelay       = 5 * time.Second
	loggedInWait      = 30 * time.Second
	manualPollTick    = 2 * time.Second
)

// Credentials holds login input for one attempt
type Credentials struct {
	Username         string
	Password         string
	VerificationCode string
	AllowManual      bool
}

// Client owns one browser context. A client is created per job and must
// not be shared across jobs.
type Client struct {
	ctx           context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	userAgent     string
	logger        *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewClient creates a new browser client. The browser process launches
// lazily on the first operation.
func NewClient(cfg *config.BrowserConfig) *Client {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("lang", "en-US"),
		chromedp.UserAgent(cfg.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	return &Client{
		ctx:           browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		userAgent:     cfg.UserAgent,
		logger:        logging.WithComponent("instagram"),
	}
}

// Close releases the browser. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.browserCancel()
	c.allocCancel()
}

// run executes browser actions with a bounded per-step deadline, bailing
// out early if the caller's context is done.
func (c *Client) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()
	return chromedp.Run(tctx, actions...)
}

// Login submits credentials and walks the login state machine:
// Unauthenticated -> CredentialsSubmitted -> {AwaitingSecondFactor |
// Authenticated | Failed}. On success the captured session payload is
// returned. On ErrTwoFactorRequired the browser stays open for a manual
// completion attempt; the caller must not Close it.
func (c *Client) Login(ctx context.Context, creds Credentials, twoFactorWait time.Duration) (*sessioncrypto.SessionPayload, error) {
	c.logger.Info("Starting login", zap.String("username", creds.Username))

	err := c.run(ctx, navigationTimeout,
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible(usernameInputSel, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: login page did not load: %v", ErrLoginFailed, err)
	}

	err = c.run(ctx, stepTimeout,
		chromedp.SendKeys(usernameInputSel, creds.Username, chromedp.ByQuery),
		chromedp.SendKeys(passwordInputSel, creds.Password, chromedp.ByQuery),
		chromedp.Click(loginSubmitSel, chromedp.ByQuery),
		chromedp.Sleep(settleDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: could not submit credentials: %v", ErrLoginFailed, err)
	}

	challenged, err := c.detectTwoFactor(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: challenge detection failed: %v", ErrLoginFailed, err)
	}

	if challenged {
		if creds.VerificationCode != "" {
			if err := c.submitVerificationCode(ctx, creds.VerificationCode); err != nil {
				return nil, err
			}
		} else {
			if !creds.AllowManual {
				return nil, ErrTwoFactorRequired
			}
			if err := c.awaitManualCompletion(ctx, twoFactorWait); err != nil {
				return nil, err
			}
		}
	}

	if err := c.waitLoggedIn(ctx, loggedInWait); err != nil {
		inline := c.inlineErrorText(ctx)
		if inline != "" {
			return nil, fmt.Errorf("%w: %s", ErrLoginFailed, inline)
		}
		return nil, fmt.Errorf("%w: no authenticated-home markers appeared", ErrLoginFailed)
	}

	c.logger.Info("Login succeeded", zap.String("username", creds.Username))
	return c.CaptureSession(ctx)
}

// detectTwoFactor checks for a second-factor challenge. Both a
// structural marker (the code input) and a textual phrase must match.
func (c *Client) detectTwoFactor(ctx context.Context) (bool, error) {
	var hasInput bool
	expr := fmt.Sprintf("document.querySelector(%q) !== null", twoFactorInputSel)
	if err := c.run(ctx, stepTimeout, chromedp.Evaluate(expr, &hasInput)); err != nil {
		return false, err
	}
	if !hasInput {
		return false, nil
	}

	var bodyText string
	if err := c.run(ctx, stepTimeout,
		chromedp.Evaluate("document.body ? document.body.innerText.toLowerCase() : ''", &bodyText),
	); err != nil {
		return false, err
	}
	for _, phrase := range twoFactorPhrases {
		if strings.Contains(bodyText, phrase) {
			return true, nil
		}
	}
	return false, nil
}

// submitVerificationCode fills in a supplied second-factor code
func (c *Client) submitVerificationCode(ctx context.Context, code string) error {
	c.logger.Info("Submitting second-factor code")
	err := c.run(ctx, stepTimeout,
		chromedp.SendKeys(twoFactorInputSel, code, chromedp.ByQuery),
		chromedp.Click(loginSubmitSel, chromedp.ByQuery),
		chromedp.Sleep(settleDelay),
	)
	if err != nil {
		return fmt.Errorf("%w: could not submit verification code: %v", ErrLoginFailed, err)
	}
	return nil
}

// awaitManualCompletion polls for a human completing the challenge in
// the open browser window: either the page navigated away from the
// challenge surface onto an authenticated view, or the challenge input
// disappeared. Times out with ErrTwoFactorRequired after the ceiling.
func (c *Client) awaitManualCompletion(ctx context.Context, ceiling time.Duration) error {
	c.logger.Info("Waiting for manual second-factor completion",
		zap.Duration("ceiling", ceiling))

	deadline := time.Now().Add(ceiling)
	ticker := time.NewTicker(manualPollTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				c.logger.Warn("Manual second-factor wait expired")
				return ErrTwoFactorRequired
			}

			var url string
			if err := c.run(ctx, stepTimeout, chromedp.Evaluate("window.location.href", &url)); err != nil {
				continue
			}
			offChallenge := !strings.Contains(url, challengePath) && !strings.Contains(url, twoFactorPath)

			loggedIn, err := c.isLoggedIn(ctx)
			if err != nil {
				continue
			}
			if offChallenge && loggedIn {
				c.logger.Info("Manual second-factor completed")
				return nil
			}

			var inputGone bool
			expr := fmt.Sprintf("document.querySelector(%q) === null", twoFactorInputSel)
			if err := c.run(ctx, stepTimeout, chromedp.Evaluate(expr, &inputGone)); err == nil && inputGone && offChallenge {
				c.logger.Info("Second-factor challenge dismissed")
				return nil
			}
		}
	}
}

// isLoggedIn evaluates the authenticated-home markers
func (c *Client) isLoggedIn(ctx context.Context) (bool, error) {
	var quoted []string
	for _, sel := range loggedInSelectors {
		quoted = append(quoted, strconv.Quote(sel))
	}
	expr := fmt.Sprintf("[%s].some(s => document.querySelector(s) !== null)", strings.Join(quoted, ","))

	var loggedIn bool
	if err := c.run(ctx, stepTimeout, chromedp.Evaluate(expr, &loggedIn)); err != nil {
		return false, err
	}
	return loggedIn, nil
}

// waitLoggedIn polls the home markers until they appear or the wait expires
func (c *Client) waitLoggedIn(ctx context.Context, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		loggedIn, err := c.isLoggedIn(ctx)
		if err == nil && loggedIn {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLoginFailed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(manualPollTick):
		}
	}
}

// inlineErrorText scrapes any visible login error message; best effort
func (c *Client) inlineErrorText(ctx context.Context) string {
	var text string
	expr := fmt.Sprintf("(() => { const el = document.querySelector(%q); return el ? el.innerText : ''; })()", loginErrorSel)
	if err := c.run(ctx, stepTimeout, chromedp.Evaluate(expr, &text)); err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// CaptureSession reads the browser's cookies and user agent into a
// session payload
func (c *Client) CaptureSession(ctx context.Context) (*sessioncrypto.SessionPayload, error) {
	var cookies []*network.Cookie
	err := c.run(ctx, stepTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to capture cookies: %w", err)
	}

	payload := &sessioncrypto.SessionPayload{
		UserAgent:  c.userAgent,
		CapturedAt: time.Now().UTC(),
	}
	for _, cookie := range cookies {
		payload.Cookies = append(payload.Cookies, sessioncrypto.Cookie{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Domain:   cookie.Domain,
			Path:     cookie.Path,
			Expires:  cookie.Expires,
			HTTPOnly: cookie.HTTPOnly,
			Secure:   cookie.Secure,
			SameSite: cookie.SameSite.String(),
		})
	}
	return payload, nil
}

// RestoreSession loads a payload's cookies into the browser and opens
// the authenticated surface
func (c *Client) RestoreSession(ctx context.Context, payload *sessioncrypto.SessionPayload) error {
	err := c.run(ctx, stepTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, cookie := range payload.Cookies {
			sameSite := network.CookieSameSiteLax
			switch cookie.SameSite {
			case "Strict":
				sameSite = network.CookieSameSiteStrict
			case "None":
				sameSite = network.CookieSameSiteNone
			}

			err := network.SetCookie(cookie.Name, cookie.Value).
				WithDomain(cookie.Domain).
				WithPath(cookie.Path).
				WithHTTPOnly(cookie.HTTPOnly).
				WithSecure(cookie.Secure).
				WithSameSite(sameSite).
				Do(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("failed to restore cookies: %w", err)
	}

	return c.run(ctx, navigationTimeout,
		chromedp.Navigate(baseURL),
		chromedp.Sleep(settleDelay),
	)
}

// CheckSession reports whether a stored payload still yields an
// authenticated session. Any navigation or detection error counts as
// "not valid" rather than a hard failure.
func (c *Client) CheckSession(ctx context.Context, payload *sessioncrypto.SessionPayload) bool {
	if err := c.RestoreSession(ctx, payload); err != nil {
		c.logger.Debug("Session restore failed during check", zap.Error(err))
		return false
	}
	loggedIn, err := c.isLoggedIn(ctx)
	if err != nil {
		c.logger.Debug("Logged-in check failed", zap.Error(err))
		return false
	}
	return loggedIn
}
