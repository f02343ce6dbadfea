package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abelbrown/tailfeed/internal/feed"
)

type postCommand struct {
	Author string `short:"a" long:"author" env:"USER" default:"anonymous" description:"Message author"`
	Title  string `long:"title" description:"Conversation title when it is created"`
	Image  bool   `long:"image" description:"Mark the message as carrying an embedded image"`

	Args struct {
		Conversation string   `positional-arg-name:"conversation"`
		Text         []string `positional-arg-name:"text" required:"1"`
	} `positional-args:"yes" required:"yes"`
}

func (c *postCommand) Execute([]string) error {
	body := strings.Join(c.Args.Text, " ")
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("empty message")
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

	item := feed.Item{
		ID:       uuid.NewString(),
		Author:   c.Author,
		Body:     body,
		HasImage: c.Image,
		Created:  time.Now(),
	}
	if _, err := st.AppendMessages(conv, []feed.Item{item}); err != nil {
		return err
	}

	seq, err := st.LatestSeq(conv)
	if err != nil {
		return err
	}
	fmt.Printf("%s  seq=%d  %s\n", item.ID, seq, conv)
	return nil
}
