package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/abelbrown/tailfeed/internal/feed"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func msgs(prefix string, n int) []feed.Item {
	now := time.Now()
	items := make([]feed.Item, n)
	for i := range items {
		items[i] = feed.Item{
			ID:      fmt.Sprintf("%s-%d", prefix, i),
			Author:  "tester",
			Body:    fmt.Sprintf("message %d", i),
			Created: now.Add(time.Duration(i) * time.Second),
		}
	}
	return items
}

func TestOpen(t *testing.T) {
	st := openTest(t)

	for _, table := range []string{"conversations", "messages"} {
		var name string
		err := st.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Fatalf("%s table not created: %v", table, err)
		}
	}
}

func TestOpenFileUsesWAL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tailfeed.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()

	var mode string
	if err := st.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode=%q, want wal", mode)
	}
}

func TestEnsureConversation(t *testing.T) {
	st := openTest(t)

	if err := st.EnsureConversation("general", "General"); err != nil {
		t.Fatalf("EnsureConversation: %v", err)
	}
	// Second call keeps the original title
	if err := st.EnsureConversation("general", "Renamed"); err != nil {
		t.Fatalf("EnsureConversation again: %v", err)
	}
	if err := st.EnsureConversation("ops", ""); err != nil {
		t.Fatalf("EnsureConversation without title: %v", err)
	}
	if err := st.EnsureConversation("", "x"); err == nil {
		t.Error("expected error for empty id")
	}

	convs, err := st.Conversations()
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}
	byID := map[string]string{}
	for _, c := range convs {
		byID[c.ID] = c.Title
	}
	if byID["general"] != "General" {
		t.Errorf("title=%q, want General", byID["general"])
	}
	if byID["ops"] != "ops" {
		t.Errorf("empty title should default to id, got %q", byID["ops"])
	}
}

func TestAppendMessages(t *testing.T) {
	st := openTest(t)

	count, err := st.AppendMessages("general", msgs("a", 3))
	if err != nil {
		t.Fatalf("AppendMessages: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 new messages, got %d", count)
	}

	got, err := st.Messages("general", 0)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Seq <= got[i-1].Seq {
			t.Errorf("seq not ascending at %d: %d after %d", i, got[i].Seq, got[i-1].Seq)
		}
	}
	if got[0].ID != "a-0" || got[0].Author != "tester" || got[0].Body != "message 0" {
		t.Errorf("unexpected first message: %+v", got[0])
	}
}

func TestAppendMessagesDuplicate(t *testing.T) {
	st := openTest(t)

	first := feed.Item{ID: "dup", Body: "original", HasImage: true}
	if n, err := st.AppendMessages("general", []feed.Item{first}); err != nil || n != 1 {
		t.Fatalf("first append: n=%d err=%v", n, err)
	}

	second := first
	second.Body = "changed"
	n, err := st.AppendMessages("general", []feed.Item{second})
	if err != nil {
		t.Fatalf("duplicate append: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 new messages, got %d", n)
	}

	got, _ := st.Messages("general", 0)
	if len(got) != 1 || got[0].Body != "original" || !got[0].HasImage {
		t.Errorf("INSERT OR IGNORE should keep original: %+v", got)
	}
}

func TestAppendMessagesEmpty(t *testing.T) {
	st := openTest(t)

	n, err := st.AppendMessages("general", nil)
	if err != nil || n != 0 {
		t.Errorf("empty append: n=%d err=%v", n, err)
	}
}

func TestMessagesReturnsTail(t *testing.T) {
	st := openTest(t)

	if _, err := st.AppendMessages("general", msgs("m", 10)); err != nil {
		t.Fatal(err)
	}

	got, err := st.Messages("general", 3)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	want := []string{"m-7", "m-8", "m-9"}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("got[%d]=%s, want %s", i, got[i].ID, id)
		}
	}
}

func TestMessagesIsolatedByConversation(t *testing.T) {
	st := openTest(t)

	st.AppendMessages("a", msgs("a", 2))
	st.AppendMessages("b", msgs("b", 5))

	got, err := st.Messages("a", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("conversation a has %d messages, want 2", len(got))
	}

	empty, err := st.Messages("missing", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("unknown conversation returned %d messages", len(empty))
	}
}

func TestMessageCount(t *testing.T) {
	st := openTest(t)
	st.AppendMessages("a", msgs("a", 4))
	st.AppendMessages("b", msgs("b", 1))

	tests := []struct {
		conv string
		want int
	}{
		{"a", 4},
		{"b", 1},
		{"missing", 0},
	}
	for _, tt := range tests {
		got, err := st.MessageCount(tt.conv)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("MessageCount(%q)=%d, want %d", tt.conv, got, tt.want)
		}
	}
}

func TestDeleteMessage(t *testing.T) {
	st := openTest(t)
	st.AppendMessages("general", msgs("d", 3))

	ok, err := st.DeleteMessage("d-1")
	if err != nil || !ok {
		t.Fatalf("DeleteMessage: ok=%v err=%v", ok, err)
	}
	ok, err = st.DeleteMessage("d-1")
	if err != nil || ok {
		t.Errorf("second delete: ok=%v err=%v", ok, err)
	}

	got, _ := st.Messages("general", 0)
	if len(got) != 2 {
		t.Errorf("expected 2 messages after delete, got %d", len(got))
	}
}

func TestLatestSeqAndWatermark(t *testing.T) {
	st := openTest(t)

	seq, err := st.LatestSeq("general")
	if err != nil || seq != 0 {
		t.Fatalf("empty LatestSeq=%d err=%v", seq, err)
	}
	w0, err := st.Watermark()
	if err != nil {
		t.Fatal(err)
	}

	st.AppendMessages("general", msgs("w", 2))
	seq, _ = st.LatestSeq("general")
	if seq == 0 {
		t.Error("LatestSeq did not advance")
	}
	w1, _ := st.Watermark()
	if w1 == w0 || w1.Count != 2 {
		t.Errorf("watermark after append: %+v (before %+v)", w1, w0)
	}

	// A delete must move the watermark even though max seq may not change.
	st.DeleteMessage("w-0")
	w2, _ := st.Watermark()
	if w2 == w1 {
		t.Error("watermark unchanged after delete")
	}
}

func TestConcurrentAccess(t *testing.T) {
	st := openTest(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := st.AppendMessages("general", msgs(fmt.Sprintf("c%d", i), 5)); err != nil {
				errs <- err
			}
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := st.Messages("general", 20); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent operation failed: %v", err)
	}

	got, _ := st.Messages("general", 0)
	if len(got) != 50 {
		t.Errorf("expected 50 messages, got %d", len(got))
	}
}
