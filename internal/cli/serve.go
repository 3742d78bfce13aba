package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/TheBase/TheBase/internal/bus"
	"github.com/TheBase/TheBase/internal/config"
	"github.com/TheBase/TheBase/internal/dashboard"
	"github.com/TheBase/TheBase/internal/ingest"
	"github.com/TheBase/TheBase/internal/notify"
	"github.com/TheBase/TheBase/internal/session"
	"github.com/TheBase/TheBase/internal/status"
	"github.com/TheBase/TheBase/internal/store"
)

var (
	serveSignalNotify = signal.Notify
	serveSignalStop   = signal.Stop
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion endpoints and the dashboard API",
	RunE:  runServe,
}

// app is the wired server: one mux carries the ingestion endpoints and the
// dashboard API.
type app struct {
	cfg       *config.Config
	store     *store.Store
	bus       *bus.EventBus
	mirror    *bus.KafkaMirror
	indicator *status.Indicator
	sessions  *session.Manager
	dashboard *dashboard.Server
	handler   http.Handler
}

// newApp wires the server around st. A nil st still serves: ingestion
// answers 500 and the dashboard its missing-store banner.
func newApp(cfg *config.Config, st *store.Store) *app {
	a := &app{cfg: cfg, store: st, bus: bus.New()}

	if cfg.Kafka.Enabled {
		a.mirror = bus.NewKafkaMirror(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.mirror.Attach(a.bus)
	}

	opts := dashboard.Options{
		Location:      time.Local,
		AllowOrigin:   cfg.Gateway.AllowOrigin,
		AllowSignUp:   cfg.Gateway.AllowSignUp,
		CalendarLimit: cfg.Status.CalendarLimit,
		StaleAfter:    cfg.Status.StaleAfter,
	}
	var ingestStore ingest.Store
	if st != nil {
		ingestStore = st

		a.indicator = status.NewIndicator(st, status.Config{
			PollInterval: cfg.Status.PollInterval,
			TickInterval: cfg.Status.TickInterval,
			StaleAfter:   cfg.Status.StaleAfter,
		})
		a.indicator.Attach(a.bus)
		a.indicator.OnChange(func(prev, next status.Display) {
			slog.Info("Status changed", "from", prev.Label, "to", next.Label)
		})
		if cfg.Slack.Enabled {
			a.indicator.OnChange(notify.NewSlack(cfg.Slack.WebhookURL, cfg.Slack.Channel).StatusChanged)
		}

		a.sessions = session.NewManager(st, time.Duration(cfg.Gateway.SessionHours)*time.Hour)
		a.sessions.Subscribe(func(s *session.Session, ev session.Event) {
			slog.Info("Session event", "type", ev.Type, "email", ev.Email)
		})

		opts.Store = st
		opts.Sessions = a.sessions
		opts.Indicator = a.indicator
		opts.Documents = dashboard.NewDocumentSaver(st, cfg.Autosave.Quiet)
		opts.Files = dashboard.NewFileSaver(st, cfg.Autosave.Quiet)
	}
	a.dashboard = dashboard.NewServer(opts)

	mux := http.NewServeMux()
	ingest.NewHandler(ingest.Config{
		Secret:        cfg.Ingest.Secret,
		DefaultSource: cfg.Ingest.DefaultSource,
		MaxBodyBytes:  cfg.Ingest.MaxBodyBytes,
	}, ingestStore, a.bus).Register(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"ok":true,"version":%q,"store":%t}`, version, st != nil)
	})
	a.dashboard.Register(mux)
	a.handler = a.dashboard.CORS(mux)
	return a
}

// start launches the background loops. They stop when ctx ends.
func (a *app) start(ctx context.Context) {
	go a.bus.Run(ctx)
	if a.indicator != nil {
		go a.indicator.Run(ctx)
	}
	if a.mirror != nil {
		go a.mirror.Run(ctx)
	}
}

// shutdown writes pending editor changes.
func (a *app) shutdown(ctx context.Context) {
	if err := a.dashboard.Shutdown(ctx); err != nil {
		slog.Warn("Autosave flush incomplete", "error", err)
	}
}

// serveStore opens the store for serve. Invalid Kafka or Slack settings
// switch those integrations off instead of stopping the server, and missing
// store settings leave the store nil.
func serveStore(cfg *config.Config) (*store.Store, error) {
	if err := cfg.Validate(); err != nil {
		slog.Warn("Invalid configuration", "error", err)
		if cfg.Kafka.Enabled && strings.TrimSpace(cfg.Kafka.Brokers) == "" {
			cfg.Kafka.Enabled = false
		}
		if cfg.Slack.Enabled && strings.TrimSpace(cfg.Slack.WebhookURL) == "" {
			cfg.Slack.Enabled = false
		}
	}
	switch {
	case cfg.Store.Driver == store.DriverPostgres && strings.TrimSpace(cfg.Store.DSN) == "",
		cfg.Store.Driver == store.DriverSQLite && strings.TrimSpace(cfg.Store.Path) == "":
		return nil, errors.New(dashboard.MissingStoreMessage)
	}
	return openStore(cfg)
}

func runServe(cmd *cobra.Command, args []string) error {
	printHeader("🛰️  The Base")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	out := cmd.OutOrStdout()
	st, err := serveStore(cfg)
	if err != nil {
		// Keep serving so the dashboard can show the configuration error.
		slog.Error("Store unavailable", "driver", cfg.Store.Driver, "error", err)
		printCheck(out, false, "Store", err.Error())
	} else {
		defer st.Close()
		printCheck(out, true, "Store", st.Driver())
	}
	if cfg.Ingest.Secret != "" {
		printCheck(out, true, "Ingest", "shared secret set")
	} else {
		printCheck(out, false, "Ingest", "THEBASE_INGEST_SECRET missing; ingestion answers 500")
	}
	printCheck(out, cfg.Kafka.Enabled, "Kafka", cfg.Kafka.Topic)
	printCheck(out, cfg.Slack.Enabled, "Slack", "status notifications")

	a := newApp(cfg, st)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.start(ctx)

	addr := net.JoinHostPort(cfg.Gateway.Host, strconv.Itoa(cfg.Gateway.Port))
	server := &http.Server{Addr: addr, Handler: a.handler, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(out, "🖥️  Listening on http://%s\n", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	serveSignalNotify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer serveSignalStop(sigChan)

	select {
	case <-sigChan:
	case err := <-errCh:
		fmt.Fprintln(out, color.RedString("❌ Server failed: %v", err))
		return err
	}

	fmt.Fprintln(out, "Shutting down...")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := server.Shutdown(stopCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	a.shutdown(stopCtx)
	cancel()
	return nil
}
