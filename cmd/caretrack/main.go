package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/gmsas95/caretrack/internal/api"
	"github.com/gmsas95/caretrack/internal/config"
	"github.com/gmsas95/caretrack/internal/medications"
	"github.com/gmsas95/caretrack/internal/notify"
	"github.com/gmsas95/caretrack/internal/recordstore"
	"github.com/gmsas95/caretrack/internal/reminder"
	"github.com/gmsas95/caretrack/internal/session"
	"github.com/gmsas95/caretrack/internal/store"
)

var (
	configPath = flag.String("config", "", "path to config file")
	dataDir    = flag.String("data", "", "path to data directory")
	version    = "dev"
)

// App holds the running server components
type App struct {
	Config     *config.Config
	Store      *store.Store
	Records    recordstore.Store
	Session    *session.Session
	Dispatcher *notify.Dispatcher
	Hub        *notify.Hub
	Poller     *reminder.Poller
	Server     *api.Server
	Discord    *notify.DiscordSink
	Logger     *zap.Logger
}

func main() {
	// Subcommands are dispatched before flag parsing so that
	// "caretrack status" works without a leading dash
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("caretrack %s\n", version)
			return
		case "status":
			handleStatusCommand(os.Args[2:])
			return
		case "export":
			handleExportCommand(os.Args[2:])
			return
		case "purge":
			handlePurgeCommand(os.Args[2:])
			return
		case "help", "-h", "--help":
			printUsage()
			return
		}
	}

	flag.Parse()
	runServer()
}

func printUsage() {
	fmt.Println(`caretrack - personal appointment and medication tracker

Usage:
  caretrack [flags]            start the server
  caretrack status [flags]     print the effective configuration
  caretrack export [flags]     dump all records as YAML to stdout
  caretrack purge [flags]      delete all stored records
  caretrack version            print the version

Flags:
  -config string   path to config file
  -data string     path to data directory`)
}

func runServer() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath, *dataDir)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	app, err := buildApp(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer app.Store.Close()

	if app.Poller != nil {
		if err := app.Poller.Start(); err != nil {
			logger.Fatal("Failed to start reminder poller", zap.Error(err))
		}
		logger.Info("Reminder poller started",
			zap.Int("tick_seconds", cfg.Reminder.TickSeconds),
			zap.Int("debounce_seconds", cfg.Reminder.DebounceSeconds))
	}

	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.Server.Address),
			zap.Int("port", cfg.Server.Port),
			zap.String("backend", cfg.Storage.Backend))
		if err := app.Server.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	if app.Poller != nil {
		app.Poller.Stop()
	}
	if app.Discord != nil {
		if err := app.Discord.Stop(); err != nil {
			logger.Error("Failed to stop Discord sink", zap.Error(err))
		}
	}
	if err := app.Server.Shutdown(); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	if err := app.Records.Close(); err != nil {
		logger.Error("Record store close error", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

func buildApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	st, err := store.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	app := &App{
		Config: cfg,
		Store:  st,
		Logger: logger,
	}

	app.Hub = notify.NewHub(logger)
	app.Dispatcher = notify.NewDispatcher(logger, notify.NewLogSink(logger), app.Hub)

	if cfg.Channels.Telegram.Enabled {
		tg, err := notify.NewTelegramSink(cfg.Channels.Telegram.BotToken, cfg.Channels.Telegram.ChatID, logger)
		if err != nil {
			logger.Error("Failed to create Telegram sink", zap.Error(err))
		} else {
			app.Dispatcher.AddSink(tg)
			logger.Info("Telegram sink enabled")
		}
	}

	if cfg.Channels.Discord.Enabled {
		dc, err := notify.NewDiscordSink(cfg.Channels.Discord.Token, cfg.Channels.Discord.ChannelID, logger)
		if err != nil {
			logger.Error("Failed to create Discord sink", zap.Error(err))
		} else if err := dc.Start(); err != nil {
			logger.Error("Failed to start Discord sink", zap.Error(err))
		} else {
			app.Discord = dc
			app.Dispatcher.AddSink(dc)
			logger.Info("Discord sink enabled")
		}
	}

	// The file backend watches for external edits and reloads the
	// session; the closure is late-bound because the session does not
	// exist yet when the store is built
	onChange := func() {
		if app.Session == nil {
			return
		}
		if err := app.Session.Load(context.Background()); err != nil {
			logger.Error("Failed to reload records after file change", zap.Error(err))
		} else {
			logger.Info("Records reloaded after external file change")
		}
	}

	records, err := buildRecordStore(cfg, st, logger, onChange)
	if err != nil {
		st.Close()
		return nil, err
	}
	app.Records = records

	app.Session = session.New(records, app.Dispatcher, logger)
	if err := app.Session.Load(context.Background()); err != nil {
		records.Close()
		st.Close()
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	if cfg.Reminder.Enabled {
		app.Poller = reminder.New(app.Session, st, app.Dispatcher, logger,
			time.Duration(cfg.Reminder.TickSeconds)*time.Second,
			time.Duration(cfg.Reminder.DebounceSeconds)*time.Second,
			time.Now)
	}

	app.Server = api.New(cfg, app.Session, app.Hub, logger)
	return app, nil
}

func buildRecordStore(cfg *config.Config, st *store.Store, logger *zap.Logger, onChange func()) (recordstore.Store, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return recordstore.NewSQLiteStore(st, logger), nil
	case "file":
		return recordstore.NewFileStore(cfg.Storage.FilePath, logger, onChange)
	case "rest":
		return recordstore.NewRESTStore(cfg.Storage.RestURL, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}

func handleStatusCommand(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to config file")
	data := fs.String("data", "", "path to data directory")
	fs.Parse(args)

	cfg, err := config.Load(*cfgPath, *data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("CareTrack Status")
	fmt.Println("================")
	fmt.Printf("Version:        %s\n", version)
	fmt.Printf("Data directory: %s\n", cfg.Storage.DataDir)
	fmt.Printf("Backend:        %s\n", cfg.Storage.Backend)
	switch cfg.Storage.Backend {
	case "sqlite":
		fmt.Printf("SQLite path:    %s\n", cfg.Storage.SQLitePath)
	case "file":
		fmt.Printf("File path:      %s\n", cfg.Storage.FilePath)
	case "rest":
		fmt.Printf("Remote URL:     %s\n", cfg.Storage.RestURL)
	}
	fmt.Printf("Listen:         %s:%d\n", cfg.Server.Address, cfg.Server.Port)
	fmt.Printf("Reminders:      %v (tick %ds, debounce %ds)\n",
		cfg.Reminder.Enabled, cfg.Reminder.TickSeconds, cfg.Reminder.DebounceSeconds)
	fmt.Printf("Telegram:       %v\n", cfg.Channels.Telegram.Enabled)
	fmt.Printf("Discord:        %v\n", cfg.Channels.Discord.Enabled)
	fmt.Printf("Auth password:  %v\n", cfg.Security.Password != "")

	printRecordSummary(cfg)
}

func printRecordSummary(cfg *config.Config) {
	logger := zap.NewNop()
	st, err := store.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	records, err := buildRecordStore(cfg, st, logger, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer records.Close()

	recs, err := records.Load(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load records: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	ratio := medications.SameDayRatio(recs.Medications, now)
	strip := medications.WeeklyStrip(recs.Medications, now)

	fmt.Println()
	fmt.Printf("Appointments:   %d\n", len(recs.Appointments))
	fmt.Printf("Medications:    %d\n", len(recs.Medications))
	if ratio.Active == 0 {
		fmt.Println("Today's doses:  no active medications")
	} else {
		fmt.Printf("Today's doses:  %d/%d taken\n", ratio.Taken, ratio.Active)
	}

	fmt.Print("This week:      ")
	for i, day := range strip {
		if i > 0 {
			fmt.Print(" ")
		}
		fmt.Printf("%s:%s", day.Label, stripGlyph(day.Status))
	}
	fmt.Println()

	upcoming := 0
	for _, a := range recs.Appointments {
		start, err := a.Start()
		if err != nil || !start.After(now) {
			continue
		}
		if upcoming == 0 {
			fmt.Println("Upcoming:")
		}
		fmt.Printf("  %s %s  %s\n", a.Date, a.Time, a.Title)
		upcoming++
		if upcoming == 3 {
			break
		}
	}
}

func stripGlyph(s medications.DayStatus) string {
	switch s {
	case medications.StatusFull:
		return "●"
	case medications.StatusPartial:
		return "◐"
	case medications.StatusNone:
		return "○"
	default:
		return "·"
	}
}

// exportDoc is the YAML shape written by "caretrack export"
type exportDoc struct {
	ExportedAt   string      `yaml:"exported_at"`
	Backend      string      `yaml:"backend"`
	Appointments interface{} `yaml:"appointments"`
	Medications  interface{} `yaml:"medications"`
}

func handleExportCommand(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to config file")
	data := fs.String("data", "", "path to data directory")
	out := fs.String("o", "", "write to file instead of stdout")
	fs.Parse(args)

	cfg, err := config.Load(*cfgPath, *data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := zap.NewNop()
	st, err := store.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	records, err := buildRecordStore(cfg, st, logger, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer records.Close()

	recs, err := records.Load(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load records: %v\n", err)
		os.Exit(1)
	}

	doc := exportDoc{
		ExportedAt:   time.Now().Format(time.RFC3339),
		Backend:      cfg.Storage.Backend,
		Appointments: recs.Appointments,
		Medications:  recs.Medications,
	}

	payload, err := yaml.Marshal(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal records: %v\n", err)
		os.Exit(1)
	}

	if *out == "" {
		os.Stdout.Write(payload)
		return
	}
	if err := os.WriteFile(*out, payload, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("Exported %d appointments and %d medications to %s\n",
		len(recs.Appointments), len(recs.Medications), *out)
}

func handlePurgeCommand(args []string) {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to config file")
	data := fs.String("data", "", "path to data directory")
	force := fs.Bool("force", false, "skip the confirmation prompt")
	fs.Parse(args)

	cfg, err := config.Load(*cfgPath, *data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if !*force {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stderr, "Refusing to purge without a terminal; use -force to override")
			os.Exit(1)
		}
		fmt.Printf("This deletes ALL records under %s. Type 'purge' to confirm: ", cfg.Storage.DataDir)
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		if strings.TrimSpace(line) != "purge" {
			fmt.Println("Aborted")
			return
		}
	}

	logger := zap.NewNop()
	st, err := store.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	records, err := buildRecordStore(cfg, st, logger, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer records.Close()

	ctx := context.Background()
	if err := records.SaveAppointments(ctx, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to purge appointments: %v\n", err)
		os.Exit(1)
	}
	if err := records.SaveMedications(ctx, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to purge medications: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("All records deleted")
}
