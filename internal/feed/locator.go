// File: internal/feed/locator.go
package feed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/engager-cli/api/schemas"
	"github.com/xkilldash9x/engager-cli/internal/browser"
	"github.com/xkilldash9x/engager-cli/internal/config"
)

// ErrNoContent signals that no eligible item exists in the current view;
// the caller should scroll and retry.
var ErrNoContent = errors.New("feed: no eligible content item in view")

// containerSelectors is the prioritized cascade for post containers.
// The first selector yielding matches wins.
var containerSelectors = []string{
	`article[data-testid="tweet"]`,
	`article[role="article"]`,
	`div[data-testid="tweet"]`,
	`[data-testid="cellInnerDiv"] article`,
}

const (
	// textSelector locates the inline text node inside a container.
	textSelector = `div[lang], [data-testid="tweetText"]`
	// permalinkSelector yields the canonical status link.
	permalinkSelector = `a[href*="/status/"]`
	authorSelector    = `[data-testid="User-Name"] a`
	verifiedSelector  = `[data-testid="icon-verified"]`

	// processedAttr flags containers already handled this session.
	processedAttr = "data-engager-processed"

	// minTextLength rejects media-only items.
	minTextLength = 10
	// dedupeRadius treats overlapping boxes as the same rendered entity.
	dedupeRadius = 10.0
)

var statusIDPattern = regexp.MustCompile(`/status/(\d+)`)

// SearchURL builds the live-search feed URL for a configured query.
func SearchURL(query string) string {
	return fmt.Sprintf("https://x.com/search?q=%s&src=typed_query&f=live", url.QueryEscape(query))
}

// Locator discovers eligible content items in the current document.
type Locator struct {
	drv    browser.Driver
	filter config.FilterConfig
	logger *zap.Logger
}

// NewLocator wires a locator to the driver.
func NewLocator(drv browser.Driver, filter config.FilterConfig, logger *zap.Logger) *Locator {
	return &Locator{
		drv:    drv,
		filter: filter,
		logger: logger.Named("feed"),
	}
}

// FindNext returns the first eligible unprocessed item in view, or
// ErrNoContent when none exists. isProcessed consults the session's
// processed set; items failing author filters are flagged processed so
// they are not re-examined.
func (l *Locator) FindNext(ctx context.Context, isProcessed func(id string) bool) (*schemas.ContentItem, error) {
	containers, err := l.containers(ctx)
	if err != nil {
		return nil, err
	}
	if len(containers) == 0 {
		return nil, ErrNoContent
	}

	var accepted []browser.Element
	for _, el := range containers {
		if el.Attrs[processedAttr] != "" {
			continue
		}
		if isDuplicate(el, accepted) {
			continue
		}
		accepted = append(accepted, el)

		text, err := l.extractText(ctx, el.Handle)
		if err != nil {
			if errors.Is(err, browser.ErrStaleElement) {
				continue
			}
			return nil, err
		}
		if text == "" {
			// Media-only item; skipped without flagging so a late text
			// render gets another look.
			continue
		}

		item := &schemas.ContentItem{Handle: el.Handle, Text: text}
		l.identify(ctx, item)
		if isProcessed(item.ID) {
			continue
		}

		if reason := l.filterReason(ctx, item); reason != "" {
			l.logger.Debug("Item filtered.",
				zap.String("item_id", item.ID), zap.String("reason", reason))
			if err := l.MarkProcessed(ctx, item.Handle); err != nil && !errors.Is(err, browser.ErrStaleElement) {
				return nil, err
			}
			continue
		}

		return item, nil
	}
	return nil, ErrNoContent
}

// MarkProcessed flags a container so later scans skip it.
func (l *Locator) MarkProcessed(ctx context.Context, handle string) error {
	return l.drv.SetAttribute(ctx, handle, processedAttr, "1")
}

// ReplyControl finds the reply control inside an item container.
func (l *Locator) ReplyControl(ctx context.Context, itemHandle string) (string, error) {
	controls, err := l.drv.Query(ctx, itemHandle, `[data-testid="reply"]`)
	if err != nil {
		return "", err
	}
	if len(controls) == 0 {
		return "", browser.ErrNotFound
	}
	return controls[0].Handle, nil
}

// containers walks the selector cascade and returns the first non-empty
// result set.
func (l *Locator) containers(ctx context.Context) ([]browser.Element, error) {
	for _, sel := range containerSelectors {
		els, err := l.drv.Query(ctx, "", sel)
		if err != nil {
			return nil, fmt.Errorf("query containers: %w", err)
		}
		if len(els) > 0 {
			l.logger.Debug("Containers found.",
				zap.String("selector", sel), zap.Int("count", len(els)))
			return els, nil
		}
	}
	return nil, nil
}

// extractText reads the item's inline text node. Empty means media-only
// or below the minimum length.
func (l *Locator) extractText(ctx context.Context, handle string) (string, error) {
	nodes, err := l.drv.Query(ctx, handle, textSelector)
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		return "", nil
	}
	text := strings.TrimSpace(nodes[0].Text)
	if len([]rune(text)) < minTextLength {
		return "", nil
	}
	return text, nil
}

// identify fills the item's ID and author metadata. Items without a
// status permalink get a synthetic session-local ID.
func (l *Locator) identify(ctx context.Context, item *schemas.ContentItem) {
	if links, err := l.drv.Query(ctx, item.Handle, permalinkSelector); err == nil && len(links) > 0 {
		href := links[0].Attrs["href"]
		if m := statusIDPattern.FindStringSubmatch(href); m != nil {
			item.ID = m[1]
			item.Permalink = href
		}
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
		item.Synthetic = true
	}

	if authors, err := l.drv.Query(ctx, item.Handle, authorSelector); err == nil && len(authors) > 0 {
		item.AuthorHandle = strings.TrimPrefix(strings.TrimSpace(authors[0].Text), "@")
	}
	if badges, err := l.drv.Query(ctx, item.Handle, verifiedSelector); err == nil && len(badges) > 0 {
		item.AuthorVerified = true
	}
}

// filterReason returns a non-empty reason when the item fails the
// configured author filters.
func (l *Locator) filterReason(ctx context.Context, item *schemas.ContentItem) string {
	handle := strings.ToLower(item.AuthorHandle)
	if handle != "" {
		if own := strings.ToLower(strings.TrimPrefix(l.filter.OwnHandle, "@")); own != "" && handle == own {
			return "own post"
		}
		for _, skip := range l.filter.SkipHandles {
			if handle == strings.ToLower(strings.TrimPrefix(skip, "@")) {
				return "author on skip list"
			}
		}
	}
	if l.filter.RequireVerified && !item.AuthorVerified {
		return "author not verified"
	}
	return ""
}

func isDuplicate(el browser.Element, accepted []browser.Element) bool {
	for _, a := range accepted {
		if math.Abs(el.Top-a.Top) < dedupeRadius && math.Abs(el.Left-a.Left) < dedupeRadius {
			return true
		}
	}
	return false
}
