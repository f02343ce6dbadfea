// Command tailfeed is a terminal viewer that follows the tail of chat-style
// conversations stored in SQLite, optionally fed by RSS/Atom sources.
package main

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/jessevdk/go-flags"

	"github.com/abelbrown/tailfeed/internal/config"
	"github.com/abelbrown/tailfeed/internal/coord"
	"github.com/abelbrown/tailfeed/internal/fetch"
	"github.com/abelbrown/tailfeed/internal/logging"
	"github.com/abelbrown/tailfeed/internal/otel"
	"github.com/abelbrown/tailfeed/internal/store"
	"github.com/abelbrown/tailfeed/internal/ui"
)

type options struct {
	Config       string `long:"config" env:"TAILFEED_CONFIG" description:"Config file (default ~/.tailfeed/config.json)"`
	DB           string `long:"db" env:"TAILFEED_DB" description:"SQLite database (default ~/.tailfeed/tailfeed.db)"`
	Conversation string `short:"c" long:"conversation" env:"TAILFEED_CONVERSATION" description:"Conversation to open first"`
	NoFetch      bool   `long:"no-fetch" env:"TAILFEED_NO_FETCH" description:"Do not tail configured RSS sources"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		log.Error("tailfeed failed", "err", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	dataDir := config.DataDir()
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	cfg, err := config.LoadFrom(cmp.Or(opts.Config, config.ConfigPath()))
	if err != nil {
		return err
	}

	if err := logging.Init(filepath.Join(dataDir, "logs"), cfg.UI.LogLevel); err != nil {
		return err
	}
	defer logging.Close()

	ring := otel.NewRingBuffer(otel.DefaultRingSize)
	events, err := otel.OpenFile(filepath.Join(dataDir, "events.jsonl"))
	if err != nil {
		logging.Warn("event log disabled", "err", err)
		events = otel.NewNullLogger()
	}
	events.SetRingBuffer(ring)
	defer events.Close()
	events.Info(otel.KindStartup, "main", "tailfeed started")

	st, err := store.Open(cmp.Or(opts.DB, filepath.Join(dataDir, "tailfeed.db")))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	var sources []fetch.Source
	if !opts.NoFetch {
		for _, sc := range cfg.EnabledSources() {
			src := fetch.Source{Name: sc.Name, URL: sc.URL}
			if err := st.EnsureConversation(src.ConversationID(), src.Name); err != nil {
				return err
			}
			sources = append(sources, src)
		}
	}

	fetcher := fetch.NewFetcher(cfg.FetchTimeout(), cfg.Fetch.RequestsPerMinute)
	coordinator := coord.NewCoordinator(st, fetcher, sources, coord.Options{
		FetchInterval: cfg.FetchInterval(),
		FetchTimeout:  cfg.FetchTimeout(),
	})
	coordinator.SetEvents(events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The fetch command needs the program as its Sender; it is only invoked
	// after Run starts, by which time program is set.
	var program *tea.Program

	app := ui.NewApp(ui.AppConfig{
		LoadConversations: loadConversations(st),
		LoadMessages:      loadMessages(st, cfg.UI.MessageLimit),
		TriggerFetch: func() tea.Cmd {
			return func() tea.Msg {
				if len(sources) == 0 {
					return ui.FetchComplete{}
				}
				coordinator.FetchAll(ctx, program)
				return nil
			}
		},
		View: ui.ViewOptions{
			Follow: cfg.FollowSettings(),
			Render: cfg.RenderSettings(),
			Events: events,
		},
		Ring:    ring,
		Initial: opts.Conversation,
	})

	program = tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())

	coordinator.Start(ctx, program)
	coordinator.Watch(ctx, program)

	_, runErr := program.Run()

	cancel()
	coordinator.Wait()
	events.Info(otel.KindShutdown, "main", "tailfeed stopped")

	if runErr != nil {
		return fmt.Errorf("run program: %w", runErr)
	}
	return nil
}
