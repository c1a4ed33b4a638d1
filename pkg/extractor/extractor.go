package extractor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"birdwatcher/pkg/auth"
	"birdwatcher/pkg/browser"
	"birdwatcher/pkg/config"
	errs "birdwatcher/pkg/errors"
	"birdwatcher/pkg/logger"
	"birdwatcher/pkg/models"
	"birdwatcher/pkg/retry"
)

// IdentityFunc computes the dedup key for an extracted item. The default is
// the item's content; if the feed ever exposes a stable per-item identifier,
// swapping this function is the only change needed.
type IdentityFunc func(models.FeedItem) string

// Extractor runs one crawl of one account's live feed through a browser
// session and returns an ordered, deduplicated batch of posts.
type Extractor struct {
	sessions browser.Opener
	creds    *auth.FileStore
	cfg      *config.CrawlConfig
	logger   logger.Logger
	identity IdentityFunc
}

// New creates a feed extractor
func New(sessions browser.Opener, creds *auth.FileStore, cfg *config.CrawlConfig, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Extractor{
		sessions: sessions,
		creds:    creds,
		cfg:      cfg,
		logger:   log,
		identity: func(item models.FeedItem) string { return item.Content },
	}
}

// SetIdentity overrides the dedup key function
func (e *Extractor) SetIdentity(fn IdentityFunc) {
	if fn != nil {
		e.identity = fn
	}
}

// Extract loads the account's reverse-chronological live feed and collects up
// to maxItems distinct posts, most-recent-first. It fails with a typed error
// for missing/malformed credentials, a login or verification challenge, or a
// feed that never renders any items.
func (e *Extractor) Extract(username string, maxItems int) ([]models.FeedItem, error) {
	if maxItems <= 0 {
		maxItems = e.cfg.MaxPosts
	}
	log := e.logger.WithField("username", username)

	state, err := e.creds.Load()
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrSessionFileMissing):
			return nil, errs.Wrap(errs.ErrorTypeCredentialsMissing, "session file not found", err)
		case errors.Is(err, auth.ErrSessionMalformed):
			return nil, errs.Wrap(errs.ErrorTypeCredentialsMalformed, "session file is malformed", err)
		default:
			return nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to load session state", err)
		}
	}

	sess, err := e.sessions.Open(state)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to open browser session", err)
	}
	defer sess.Close()

	feedURL := strings.ReplaceAll(e.cfg.FeedURLTemplate, "{username}", username)
	log.DebugWithFields("navigating to live feed", map[string]interface{}{
		"url": feedURL,
	})

	// Navigate, retrying once after a brief pause
	err = retry.Do(func() error {
		return sess.Navigate(feedURL, e.cfg.NavigationTimeout)
	}, &retry.Config{
		MaxAttempts: 2,
		Delay:       e.cfg.NavigationRetryDelay,
		RetryIf:     func(error) bool { return true },
		Logger:      log,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNavigation, "navigation failed after retry", err)
	}

	// Let late client-side rendering finish before trusting the URL or DOM
	time.Sleep(e.cfg.SettleDelay)

	resolved, err := sess.URL()
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to resolve page URL", err)
	}
	if strings.Contains(resolved, "login") || strings.Contains(resolved, "challenge") {
		prefix := e.dumpDiagnostics(sess, username, "redirect", log)
		return nil, errs.New(errs.ErrorTypeAuthChallenge,
			fmt.Sprintf("redirected to login/challenge page (%s), session cookies expired or invalid; diagnostics at %s.{html,png}", resolved, prefix))
	}

	if err := sess.WaitFor(e.cfg.ItemSelector, e.cfg.SelectorTimeout); err != nil {
		prefix := e.dumpDiagnostics(sess, username, "no_posts", log)
		return nil, errs.Wrap(errs.ErrorTypeNoContent,
			fmt.Sprintf("no feed items appeared within %s; diagnostics at %s.{html,png}", e.cfg.SelectorTimeout, prefix), err)
	}

	return e.collect(sess, username, maxItems, log)
}

// collect runs the scroll-and-scan pagination loop until maxItems distinct
// posts are gathered or a scroll fails to grow the page
func (e *Extractor) collect(sess browser.Session, username string, maxItems int, log logger.Logger) ([]models.FeedItem, error) {
	lastHeight, err := sess.PageHeight()
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to measure page height", err)
	}

	items := make([]models.FeedItem, 0, maxItems)
	seen := make(map[string]bool)

	for len(items) < maxItems {
		containers, err := sess.QueryAll(e.cfg.ItemSelector)
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to query feed items", err)
		}

		skipped := 0
		for _, el := range containers {
			item, ok := e.extractItem(el)
			if !ok {
				skipped++
				continue
			}
			key := e.identity(item)
			if !seen[key] {
				seen[key] = true
				items = append(items, item)
			}
			if len(items) >= maxItems {
				break
			}
		}

		log.DebugWithFields("scanned visible feed items", map[string]interface{}{
			"visible":   len(containers),
			"collected": len(items),
			"skipped":   skipped,
		})

		if len(items) >= maxItems {
			break
		}

		if err := sess.ScrollToBottom(); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to scroll feed", err)
		}
		time.Sleep(e.cfg.ScrollDelay)

		newHeight, err := sess.PageHeight()
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to measure page height", err)
		}
		if newHeight == lastHeight {
			// The feed stopped growing; there is no more content to load
			log.DebugWithFields("feed height stalled, ending pagination", map[string]interface{}{
				"height":    newHeight,
				"collected": len(items),
			})
			break
		}
		lastHeight = newHeight
	}

	log.InfoWithFields("feed extraction finished", map[string]interface{}{
		"collected": len(items),
		"requested": maxItems,
	})
	return items, nil
}

// extractItem pulls text and timestamp out of one feed-item container. Any
// failure makes the item skippable rather than aborting the fetch.
func (e *Extractor) extractItem(el browser.Element) (models.FeedItem, bool) {
	text, err := el.Text(e.cfg.TextSelector)
	if err != nil || strings.TrimSpace(text) == "" {
		text, err = el.Text(e.cfg.TextFallbackSelector)
		if err != nil {
			return models.FeedItem{}, false
		}
	}
	content := strings.TrimSpace(text)
	if content == "" {
		return models.FeedItem{}, false
	}

	raw, err := el.Attr(e.cfg.TimeSelector, "datetime")
	if err != nil {
		return models.FeedItem{}, false
	}
	timestamp, err := dateparse.ParseAny(raw)
	if err != nil {
		return models.FeedItem{}, false
	}

	return models.FeedItem{Content: content, Timestamp: timestamp}, true
}

// dumpDiagnostics captures an HTML snapshot and screenshot named by the
// username and failure kind; capture failures are logged, not escalated
func (e *Extractor) dumpDiagnostics(sess browser.Session, username, kind string, log logger.Logger) string {
	prefix := filepath.Join(e.cfg.DiagnosticsDir, fmt.Sprintf("%s_%s", username, kind))
	if err := sess.DumpDiagnostics(prefix); err != nil {
		log.WithError(err).Warn("failed to write crawl diagnostics")
	}
	return prefix
}
