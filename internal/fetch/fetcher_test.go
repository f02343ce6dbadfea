package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>Newer article</title>
      <link>http://example.com/article2</link>
      <description><![CDATA[<p>Second <b>article</b></p><img src="http://example.com/a.png"/>]]></description>
      <pubDate>Mon, 01 Jan 2024 12:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Older article</title>
      <link>http://example.com/article1</link>
      <description>First article</description>
      <pubDate>Mon, 01 Jan 2024 11:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Photo post</title>
      <guid>photo-1</guid>
      <enclosure url="http://example.com/p.jpg" type="image/jpeg" length="100"/>
      <pubDate>Mon, 01 Jan 2024 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func serve(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetch(t *testing.T) {
	server := serve(t, testRSS)

	f := NewFetcher(5*time.Second, 0)
	items, err := f.Fetch(context.Background(), Source{Name: "Test Feed", URL: server.URL})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	// Oldest first
	if !strings.HasPrefix(items[0].Body, "Photo post") {
		t.Errorf("first item body %q, want the oldest entry", items[0].Body)
	}
	if !strings.HasPrefix(items[2].Body, "Newer article") {
		t.Errorf("last item body %q, want the newest entry", items[2].Body)
	}

	newer := items[2]
	if newer.Body != "Newer article\n\nSecond article" {
		t.Errorf("markup not stripped: %q", newer.Body)
	}
	if !newer.HasImage {
		t.Error("inline <img> should set HasImage")
	}
	if items[1].HasImage {
		t.Error("plain entry should not have an image")
	}
	if !items[0].HasImage {
		t.Error("image enclosure should set HasImage")
	}
	if newer.Author != "Test Feed" {
		t.Errorf("author should fall back to source name, got %q", newer.Author)
	}
}

func TestFetchDeterministicIDs(t *testing.T) {
	server := serve(t, testRSS)
	f := NewFetcher(5*time.Second, 0)
	src := Source{Name: "Test", URL: server.URL}

	items1, err := f.Fetch(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	items2, err := f.Fetch(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	for i := range items1 {
		if items1[i].ID != items2[i].ID {
			t.Errorf("ID %d not deterministic: %s vs %s", i, items1[i].ID, items2[i].ID)
		}
	}
	if items1[0].ID == items1[1].ID {
		t.Error("distinct entries share an ID")
	}
}

func TestFetchErrors(t *testing.T) {
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer notFound.Close()

	garbage := serve(t, "not valid xml")

	tests := []struct {
		name string
		url  string
	}{
		{"404", notFound.URL},
		{"invalid feed", garbage.URL},
		{"unreachable", "http://localhost:99999/nonexistent"},
	}

	f := NewFetcher(2*time.Second, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.Fetch(context.Background(), Source{Name: "bad", URL: tt.url}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFetchHonorsCancelledLimiterWait(t *testing.T) {
	server := serve(t, testRSS)
	f := NewFetcher(5*time.Second, 1) // one request per minute

	if _, err := f.Fetch(context.Background(), Source{URL: server.URL}); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := f.Fetch(ctx, Source{URL: server.URL}); err == nil {
		t.Error("second fetch should be refused by the limiter")
	}
	if time.Since(start) > time.Second {
		t.Error("limiter wait ignored context")
	}
}

func TestScanHTML(t *testing.T) {
	tests := []struct {
		in     string
		text   string
		hasImg bool
	}{
		{"", "", false},
		{"plain   text\n here", "plain text here", false},
		{"<p>a <i>b</i></p>", "a b", false},
		{`<div><img src="x.png"> caption</div>`, "caption", true},
	}
	for _, tt := range tests {
		text, img := scanHTML(tt.in)
		if text != tt.text || img != tt.hasImg {
			t.Errorf("scanHTML(%q) = (%q,%v), want (%q,%v)", tt.in, text, img, tt.text, tt.hasImg)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo world", 8); got != "héllo..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
}

func TestSlugAndConversationID(t *testing.T) {
	tests := map[string]string{
		"Hacker News":      "hacker-news",
		"  Lobsters!! ":    "lobsters",
		"BBC / World 2024": "bbc-world-2024",
	}
	for in, want := range tests {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}

	if got := (Source{Name: "Hacker News"}).ConversationID(); got != "hacker-news" {
		t.Errorf("ConversationID = %q", got)
	}
	if got := (Source{Name: "x", Conversation: "custom"}).ConversationID(); got != "custom" {
		t.Errorf("ConversationID = %q", got)
	}
}
