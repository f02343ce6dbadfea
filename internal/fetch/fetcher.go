// Package fetch tails RSS and Atom feeds into conversation messages.
//
// Each feed entry becomes one feed.Item whose body is the entry title and
// its description with markup removed. Fetching does not store anything;
// the caller decides where the items go.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/abelbrown/tailfeed/internal/feed"
)

// maxBodyRunes caps message bodies taken from long-form entries.
const maxBodyRunes = 2000

// Source is a feed tailed into one conversation.
type Source struct {
	Name         string
	URL          string
	Conversation string // target conversation ID
}

// ConversationID returns the target conversation, derived from the name
// when unset.
func (s Source) ConversationID() string {
	if s.Conversation != "" {
		return s.Conversation
	}
	return Slug(s.Name)
}

// Fetcher retrieves items from feed sources. Requests share one limiter,
// so concurrent fetches are paced globally.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewFetcher creates a Fetcher with the given HTTP client timeout and a
// request budget per minute. A non-positive budget disables pacing.
func NewFetcher(timeout time.Duration, perMinute int) *Fetcher {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Fetch retrieves items from a source, oldest first.
//
// The function respects context cancellation, including while waiting
// for the rate limiter.
func (f *Fetcher) Fetch(ctx context.Context, src Source) ([]feed.Item, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "tailfeed/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	now := time.Now()
	items := make([]feed.Item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		items = append(items, convertEntry(entry, src, now))
	}

	// Feeds list newest first; conversations grow at the tail.
	slices.SortStableFunc(items, func(a, b feed.Item) int {
		return a.Created.Compare(b.Created)
	})
	return items, nil
}

func convertEntry(entry *gofeed.Item, src Source, fetchTime time.Time) feed.Item {
	created := fetchTime
	if entry.PublishedParsed != nil {
		created = *entry.PublishedParsed
	} else if entry.UpdatedParsed != nil {
		created = *entry.UpdatedParsed
	}

	author := src.Name
	if entry.Author != nil && entry.Author.Name != "" {
		author = entry.Author.Name
	}

	markup := entry.Description
	if markup == "" {
		markup = entry.Content
	}
	text, hasImg := scanHTML(markup)

	body := strings.TrimSpace(entry.Title)
	if text != "" && text != body {
		if body != "" {
			body += "\n\n"
		}
		body += text
	}

	return feed.Item{
		ID:       generateID(entry),
		Created:  created,
		Author:   author,
		Body:     truncate(body, maxBodyRunes),
		HasImage: hasImg || entryHasImage(entry),
	}
}

// entryHasImage reports an image attached to the entry itself.
func entryHasImage(entry *gofeed.Item) bool {
	if entry.Image != nil && entry.Image.URL != "" {
		return true
	}
	for _, enc := range entry.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return true
		}
	}
	return false
}

// scanHTML returns the visible text of an HTML fragment with whitespace
// collapsed, and whether it embeds an <img>.
func scanHTML(markup string) (string, bool) {
	if strings.TrimSpace(markup) == "" {
		return "", false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return strings.Join(strings.Fields(markup), " "), false
	}
	text := strings.Join(strings.Fields(doc.Text()), " ")
	return text, doc.Find("img").Length() > 0
}

// generateID creates a deterministic ID for a feed entry.
// Uses the GUID if available, otherwise hashes the URL.
func generateID(entry *gofeed.Item) string {
	if entry.GUID != "" {
		return hashString(entry.GUID)
	}
	if entry.Link != "" {
		return hashString(entry.Link)
	}
	key := entry.Title
	if entry.PublishedParsed != nil {
		key += entry.PublishedParsed.String()
	}
	return hashString(key)
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:8])
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// Slug lowercases name and replaces runs of non-alphanumerics with '-'.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
