package main

import (
	"fmt"
	"os"
	"text/tabwriter"
)

type lsCommand struct{}

func (c *lsCommand) Execute([]string) error {
	st, err := openDB()
	if err != nil {
		return err
	}
	defer st.Close()

	convs, err := st.Conversations()
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Println("no conversations")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tMESSAGES\tLATEST SEQ\tCREATED")
	for _, conv := range convs {
		n, err := st.MessageCount(conv.ID)
		if err != nil {
			return err
		}
		seq, err := st.LatestSeq(conv.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", conv.ID, conv.Title, n, seq, conv.Created.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

type rmCommand struct {
	Args struct {
		IDs []string `positional-arg-name:"message-id" required:"1"`
	} `positional-args:"yes" required:"yes"`
}

func (c *rmCommand) Execute([]string) error {
	st, err := openDB()
	if err != nil {
		return err
	}
	defer st.Close()

	for _, id := range c.Args.IDs {
		ok, err := st.DeleteMessage(id)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(os.Stderr, "%s: not found\n", id)
			continue
		}
		fmt.Printf("deleted %s\n", id)
	}
	return nil
}
