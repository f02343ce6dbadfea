package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abelbrown/tailfeed/internal/feed"
)

var seedWords = strings.Fields(`the quick brown fox jumps over a lazy dog while
every terminal redraws its tail and readers scroll back through history to find
what they missed before new messages arrive at the bottom of the feed`)

var seedAuthors = []string{"ada", "grace", "linus", "ken", "barbara", "dennis"}

type seedCommand struct {
	Count      int    `short:"n" long:"count" default:"400" description:"Messages to generate"`
	ImageEvery int    `long:"image-every" default:"10" description:"Every Nth message carries an image (0 for none)"`
	Title      string `long:"title" description:"Conversation title when it is created"`

	Args struct {
		Conversation string `positional-arg-name:"conversation"`
	} `positional-args:"yes" required:"yes"`
}

func (c *seedCommand) Execute([]string) error {
	if c.Count <= 0 {
		return fmt.Errorf("count must be positive")
	}

	st, err := openDB()
	if err != nil {
		return err
	}
	defer st.Close()

	conv := c.Args.Conversation
	if err := st.EnsureConversation(conv, c.Title); err != nil {
		return err
	}

	start := time.Now().Add(-time.Duration(c.Count) * time.Minute)
	items := make([]feed.Item, c.Count)
	for i := range items {
		items[i] = feed.Item{
			ID:       uuid.NewString(),
			Author:   seedAuthors[i%len(seedAuthors)],
			Body:     seedBody(i),
			HasImage: c.ImageEvery > 0 && i%c.ImageEvery == c.ImageEvery-1,
			Created:  start.Add(time.Duration(i) * time.Minute),
		}
	}

	n, err := st.AppendMessages(conv, items)
	if err != nil {
		return err
	}
	total, err := st.MessageCount(conv)
	if err != nil {
		return err
	}
	fmt.Printf("seeded %d messages into %s (%d total)\n", n, conv, total)
	return nil
}

// seedBody returns a body whose length cycles between one and several
// estimated lines.
func seedBody(i int) string {
	target := 12 + (i*53)%420
	var b strings.Builder
	for w := i; b.Len() < target; w++ {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(seedWords[w%len(seedWords)])
	}
	return b.String()
}
