package instagram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// appID is sent with in-page API fetches; the web client requires it
const appID = "936619743392459"

// Navigate opens a page and waits a fixed settle period for scripts to run
func (c *Client) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, navigationTimeout,
		chromedp.Navigate(url),
		chromedp.Sleep(settleDelay),
	)
}

// CurrentURL returns the page's current location
func (c *Client) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := c.run(ctx, stepTimeout, chromedp.Evaluate("window.location.href", &url))
	return url, err
}

// FetchJSON performs an authenticated fetch from within the page context
// and returns the raw response body. Running the request inside the page
// keeps it under the session's cookies and the site's own TLS
// fingerprint.
func (c *Client) FetchJSON(ctx context.Context, url string) ([]byte, error) {
	expr := fmt.Sprintf(`fetch(%q, {
		credentials: 'include',
		headers: {'X-IG-App-ID': %q, 'X-Requested-With': 'XMLHttpRequest'}
	}).then(r => { if (!r.ok) throw new Error('status ' + r.status); return r.text(); })`, url, appID)

	var body string
	err := c.run(ctx, navigationTimeout,
		chromedp.Evaluate(expr, &body, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("in-page fetch failed: %w", err)
	}
	return []byte(body), nil
}

// EmbeddedJSON scans the page's script tags for one containing the given
// marker and returns its JSON body. Pages embed their data either as a
// raw JSON script or as a `window.X = {...};` assignment; both are
// reduced to the outermost object literal.
func (c *Client) EmbeddedJSON(ctx context.Context, marker string) ([]byte, error) {
	expr := fmt.Sprintf(`(() => {
		for (const s of document.scripts) {
			const t = s.text || '';
			if (!t.includes(%q)) continue;
			const start = t.indexOf('{');
			const end = t.lastIndexOf('}');
			if (start >= 0 && end > start) return t.slice(start, end + 1);
		}
		return '';
	})()`, marker)

	var doc string
	if err := c.run(ctx, stepTimeout, chromedp.Evaluate(expr, &doc)); err != nil {
		return nil, fmt.Errorf("embedded data scan failed: %w", err)
	}
	if doc == "" {
		return nil, nil
	}
	return []byte(doc), nil
}

// Hrefs collects anchor targets on the current page matching any of the
// given path prefixes, in document order, de-duplicated
func (c *Client) Hrefs(ctx context.Context, prefixes ...string) ([]string, error) {
	var quoted []string
	for _, p := range prefixes {
		quoted = append(quoted, strconv.Quote(p))
	}
	expr := fmt.Sprintf(`(() => {
		const prefixes = [%s];
		const seen = new Set();
		const out = [];
		for (const a of document.querySelectorAll('a[href]')) {
			const h = a.getAttribute('href');
			if (!h || !prefixes.some(p => h.startsWith(p))) continue;
			if (seen.has(h)) continue;
			seen.add(h);
			out.push(h);
		}
		return out;
	})()`, strings.Join(quoted, ","))

	var hrefs []string
	if err := c.run(ctx, stepTimeout, chromedp.Evaluate(expr, &hrefs)); err != nil {
		return nil, fmt.Errorf("href scan failed: %w", err)
	}
	return hrefs, nil
}

// ScrollDown scrolls the page once to trigger lazy loading
func (c *Client) ScrollDown(ctx context.Context) error {
	return c.run(ctx, stepTimeout,
		chromedp.Evaluate("window.scrollTo(0, document.body.scrollHeight)", nil),
		chromedp.Sleep(2*time.Second),
	)
}
