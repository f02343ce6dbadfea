// Command tfctl is the tailfeed maintenance CLI.
//
// Usage:
//
//	tfctl post <conversation> <text...>   Append a message
//	tfctl seed <conversation> -n 400      Bulk-generate messages
//	tfctl ls                              List conversations
//	tfctl rm <message-id>                 Delete a message
//	tfctl plan <conversation>             Print the render plan summary
//	tfctl events                          JSONL event log viewer
package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type globalOptions struct {
	DB     string `long:"db" env:"TAILFEED_DB" description:"SQLite database (default ~/.tailfeed/tailfeed.db)"`
	Config string `long:"config" env:"TAILFEED_CONFIG" description:"Config file (default ~/.tailfeed/config.json)"`
}

var global globalOptions

func main() {
	parser := flags.NewParser(&global, flags.Default)
	parser.ShortDescription = "tailfeed maintenance CLI"

	mustAdd(parser, "post", "Append a message", "Append a message to a conversation, creating it if needed.", &postCommand{})
	mustAdd(parser, "seed", "Bulk-generate messages", "Append generated messages of varied length, enough to cross the virtualization threshold.", &seedCommand{})
	mustAdd(parser, "ls", "List conversations", "List conversations with their message counts.", &lsCommand{})
	mustAdd(parser, "rm", "Delete a message", "Delete a message by ID.", &rmCommand{})
	mustAdd(parser, "plan", "Print the render plan", "Plan a conversation's tail with the configured tuning and summarize the result.", &planCommand{})
	mustAdd(parser, "events", "JSONL event log viewer", "Pretty-print ~/.tailfeed/events.jsonl.", &eventsCommand{})

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		os.Exit(1)
	}
}

func mustAdd(p *flags.Parser, name, short, long string, data any) {
	if _, err := p.AddCommand(name, short, long, data); err != nil {
		panic(err)
	}
}
