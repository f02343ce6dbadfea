package main

import (
	"bufio"
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/abelbrown/tailfeed/internal/otel"
)

var levelRank = map[otel.Level]int{
	otel.LevelDebug: 0,
	otel.LevelInfo:  1,
	otel.LevelWarn:  2,
	otel.LevelError: 3,
}

type eventsCommand struct {
	Tail    int           `short:"n" long:"tail" default:"50" description:"Show the last N matching events"`
	Follow  bool          `short:"f" long:"follow" description:"Keep streaming events as tailfeed writes them"`
	Since   time.Duration `long:"since" description:"Only events newer than this, e.g. 10m"`
	Kind    string        `long:"kind" description:"Kind prefix, e.g. follow or follow.scroll"`
	Level   string        `long:"level" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Minimum level"`
	Comp    string        `long:"comp" description:"Component: follow, ui, coord, main"`
	Feed    string        `long:"feed" description:"Conversation ID"`
	Session string        `long:"session" description:"Session ID"`
	JSON    bool          `long:"json" description:"Print events as JSON lines"`
	Path    string        `long:"file" description:"Event log (default ~/.tailfeed/events.jsonl)"`

	now func() time.Time
}

func (c *eventsCommand) Execute([]string) error {
	path := cmp.Or(c.Path, eventLogPath())
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open event log %s (has tailfeed run yet?): %w", path, err)
	}
	defer f.Close()

	r := newJSONLReader(f)
	events, err := c.lastMatches(r)
	if err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Println(c.format(ev))
	}
	if !c.Follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return c.stream(ctx, r, os.Stdout)
}

// lastMatches reads r to its current end and returns the newest Tail
// matching events, oldest first.
func (c *eventsCommand) lastMatches(r *jsonlReader) ([]otel.Event, error) {
	ring := otel.NewRingBuffer(max(c.Tail, 1))
	for {
		ev, ok, err := r.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if c.match(ev) {
			ring.Push(ev)
		}
	}
	if c.Tail <= 0 {
		return nil, nil
	}
	return ring.Recent(otel.Query{}), nil
}

// stream prints matching events as they are appended until ctx ends.
func (c *eventsCommand) stream(ctx context.Context, r *jsonlReader, w io.Writer) error {
	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()
	for {
		ev, ok, err := r.next()
		if err != nil {
			return err
		}
		if ok {
			if c.match(ev) {
				fmt.Fprintln(w, c.format(ev))
			}
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-poll.C:
		}
	}
}

func (c *eventsCommand) match(ev otel.Event) bool {
	switch {
	case c.Kind != "" && !strings.HasPrefix(string(ev.Kind), c.Kind):
		return false
	case c.Level != "" && levelRank[ev.Level] < levelRank[otel.Level(c.Level)]:
		return false
	case c.Comp != "" && ev.Comp != c.Comp:
		return false
	case c.Feed != "" && ev.Feed != c.Feed:
		return false
	case c.Session != "" && ev.SessionID != c.Session:
		return false
	case c.Since > 0 && ev.Time.Before(c.clock().Add(-c.Since)):
		return false
	}
	return true
}

func (c *eventsCommand) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// format renders one event as a log line, or as JSON with --json.
func (c *eventsCommand) format(ev otel.Event) string {
	if c.JSON {
		b, err := json.Marshal(ev)
		if err != nil {
			return fmt.Sprintf(`{"kind":%q,"err":%q}`, ev.Kind, err)
		}
		return string(b)
	}

	level := strings.ToUpper(string(ev.Level))
	if level == "" {
		level = "-"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %-6s %-26s", ev.Time.Local().Format("15:04:05.000"), level, ev.Comp, ev.Kind)
	if ev.Feed != "" {
		b.WriteString(" @" + ev.Feed)
	}
	if state, ok := ev.Extra["state"]; ok {
		fmt.Fprintf(&b, " state=%v", state)
	}
	if fraction, ok := ev.Extra["fraction"].(float64); ok {
		fmt.Fprintf(&b, " at=%.0f%%", fraction*100)
	}
	if ev.Count != 0 {
		fmt.Fprintf(&b, " n=%d", ev.Count)
	}
	if ev.DurMs > 0 {
		b.WriteString(" " + formatMs(ev.DurMs))
	}
	if ev.Source != "" {
		fmt.Fprintf(&b, " src=%q", ev.Source)
	}
	if ev.Msg != "" {
		b.WriteString(" " + ev.Msg)
	}
	if ev.Err != "" {
		b.WriteString(" err=" + ev.Err)
	}
	return b.String()
}

func formatMs(ms float64) string {
	switch {
	case ms >= 1000:
		return fmt.Sprintf("%.2fs", ms/1000)
	case ms >= 100:
		return fmt.Sprintf("%.0fms", ms)
	case ms >= 1:
		return fmt.Sprintf("%.1fms", ms)
	default:
		return fmt.Sprintf("%.2fms", ms)
	}
}

// jsonlReader yields events from a JSONL stream that may still be growing.
// A trailing line without its newline is held back until it is completed.
// Blank and undecodable lines are skipped.
type jsonlReader struct {
	r       *bufio.Reader
	partial []byte
}

func newJSONLReader(r io.Reader) *jsonlReader {
	return &jsonlReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// next returns the next event, or false at the current end of input.
func (j *jsonlReader) next() (otel.Event, bool, error) {
	for {
		chunk, err := j.r.ReadBytes('\n')
		j.partial = append(j.partial, chunk...)
		if err == io.EOF {
			return otel.Event{}, false, nil
		}
		if err != nil {
			return otel.Event{}, false, err
		}

		line := bytes.TrimSpace(j.partial)
		j.partial = j.partial[:0]
		if len(line) == 0 {
			continue
		}
		var decoded otel.Event
		if json.Unmarshal(line, &decoded) != nil {
			continue
		}
		return decoded, true, nil
	}
}
