// Package collector pulls paginated relation lists and content items out
// of an authenticated browser session, with a fixed inter-request delay
// to stay under the platform's rate limits.
package collector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gramwatch/gramwatch/internal/instagram"
	"github.com/gramwatch/gramwatch/pkg/logging"
)

// Relation kinds
const (
	KindFollowers = "followers"
	KindFollowing = "following"
)

const relationPageSize = 50

// Collector retrieves paginated lists through an authenticated client
type Collector struct {
	client       *instagram.Client
	requestDelay time.Duration
	logger       *zap.Logger
}

// New creates a collector bound to one job's browser client
func New(client *instagram.Client, requestDelay time.Duration) *Collector {
	return &Collector{
		client:       client,
		requestDelay: requestDelay,
		logger:       logging.WithComponent("collector"),
	}
}

// CollectRelations paginates a followers or following list with a cursor.
// maxCount of 0 means no cap. A failed page fetch ends the pagination
// and returns what was collected so far; partial results are preferred
// over total failure.
func (c *Collector) CollectRelations(ctx context.Context, igUserID, kind string, maxCount int) ([]RelationEntry, error) {
	if kind != KindFollowers && kind != KindFollowing {
		return nil, fmt.Errorf("unknown relation kind %q", kind)
	}
	if igUserID == "" {
		return nil, fmt.Errorf("missing platform user id")
	}

	var entries []RelationEntry
	cursor := ""

	for {
		pageURL := fmt.Sprintf("https://www.instagram.com/api/v1/friendships/%s/%s/?count=%d",
			igUserID, kind, relationPageSize)
		if cursor != "" {
			pageURL += "&max_id=" + url.QueryEscape(cursor)
		}

		data, err := c.client.FetchJSON(ctx, pageURL)
		if err != nil {
			c.logger.Warn("Relation page fetch failed, returning partial results",
				zap.String("kind", kind),
				zap.Int("collected", len(entries)),
				zap.Error(err))
			return entries, nil
		}

		page, nextCursor, err := parseRelationPage(data)
		if err != nil {
			c.logger.Warn("Relation page parse failed, returning partial results",
				zap.String("kind", kind),
				zap.Int("collected", len(entries)),
				zap.Error(err))
			return entries, nil
		}

		if len(page) == 0 {
			break
		}
		entries = append(entries, page...)

		if maxCount > 0 && len(entries) >= maxCount {
			entries = entries[:maxCount]
			break
		}
		if nextCursor == "" {
			break
		}
		cursor = nextCursor

		if err := c.pause(ctx); err != nil {
			return entries, nil
		}
	}

	c.logger.Info("Collected relations",
		zap.String("kind", kind),
		zap.Int("count", len(entries)))
	return entries, nil
}

// CollectProfile fetches the tracked account's public profile counters
func (c *Collector) CollectProfile(ctx context.Context, username string) (*Profile, error) {
	if err := c.client.Navigate(ctx, profileURL(username)); err != nil {
		return nil, fmt.Errorf("profile page navigation failed: %w", err)
	}

	// Primary: data embedded in the profile page
	if data, err := c.client.EmbeddedJSON(ctx, "edge_owner_to_timeline_media"); err == nil && data != nil {
		if profile, _, err := parseProfileDoc(data); err == nil {
			return profile, nil
		}
	}

	// Fallback: the web profile endpoint
	data, err := c.client.FetchJSON(ctx,
		"https://www.instagram.com/api/v1/users/web_profile_info/?username="+url.QueryEscape(username))
	if err != nil {
		return nil, fmt.Errorf("profile fetch failed: %w", err)
	}
	profile, _, err := parseProfileDoc(data)
	if err != nil {
		return nil, fmt.Errorf("profile parse failed: %w", err)
	}
	return profile, nil
}

// CollectContent retrieves up to maxItems content items. The primary
// strategy reads the structured timeline embedded in the profile page;
// when that yields nothing it falls back to discovering permalinks from
// the rendered grid and visiting each one, at the same request cadence
// as pagination.
func (c *Collector) CollectContent(ctx context.Context, username string, maxItems int) ([]ContentItem, error) {
	if err := c.client.Navigate(ctx, profileURL(username)); err != nil {
		return nil, fmt.Errorf("profile page navigation failed: %w", err)
	}

	if data, err := c.client.EmbeddedJSON(ctx, "edge_owner_to_timeline_media"); err == nil && data != nil {
		if _, items, err := parseProfileDoc(data); err == nil && len(items) > 0 {
			if maxItems > 0 && len(items) > maxItems {
				items = items[:maxItems]
			}
			c.logger.Info("Collected content from embedded data",
				zap.String("username", username),
				zap.Int("count", len(items)))
			return items, nil
		}
	}

	c.logger.Info("Embedded content extraction empty, falling back to permalink discovery",
		zap.String("username", username))
	return c.collectContentFromPermalinks(ctx, maxItems)
}

// collectContentFromPermalinks is the fallback content strategy
func (c *Collector) collectContentFromPermalinks(ctx context.Context, maxItems int) ([]ContentItem, error) {
	// One scroll pulls lazily loaded grid entries into the DOM
	if err := c.client.ScrollDown(ctx); err != nil {
		c.logger.Debug("Grid scroll failed", zap.Error(err))
	}

	hrefs, err := c.client.Hrefs(ctx, "/p/", "/reel/")
	if err != nil {
		return nil, fmt.Errorf("permalink discovery failed: %w", err)
	}
	if maxItems > 0 && len(hrefs) > maxItems {
		hrefs = hrefs[:maxItems]
	}

	var items []ContentItem
	for _, href := range hrefs {
		if err := c.pause(ctx); err != nil {
			return items, nil
		}

		permalink := href
		if strings.HasPrefix(permalink, "/") {
			permalink = "https://www.instagram.com" + permalink
		}

		if err := c.client.Navigate(ctx, permalink); err != nil {
			c.logger.Warn("Permalink navigation failed", zap.String("permalink", permalink), zap.Error(err))
			continue
		}
		data, err := c.client.EmbeddedJSON(ctx, "shortcode_media")
		if err != nil || data == nil {
			c.logger.Warn("No embedded data on permalink page", zap.String("permalink", permalink))
			continue
		}
		item, err := parseItemDoc(data)
		if err != nil {
			c.logger.Warn("Permalink item parse failed", zap.String("permalink", permalink), zap.Error(err))
			continue
		}
		items = append(items, *item)
	}

	c.logger.Info("Collected content from permalinks", zap.Int("count", len(items)))
	return items, nil
}

// pause waits the fixed inter-request delay, honoring cancellation
func (c *Collector) pause(ctx context.Context) error {
	timer := time.NewTimer(c.requestDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func profileURL(username string) string {
	return "https://www.instagram.com/" + url.PathEscape(username) + "/"
}
