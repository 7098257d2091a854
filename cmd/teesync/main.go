// Teesync is a macOS daemon that mirrors Three Putt tee-time postings and
// reservations into the device calendar via EventKit.
//
// Usage:
//
//	teesync login                          # save backend credentials
//	teesync daemon [--config <path>]       # start the polling daemon
//	teesync sync-once [--config ...]       # single reconcile pass then exit
//	teesync add posting <id>               # sync one posting now (may prompt for calendar access)
//	teesync add reservation <id>           # sync one reservation now
//	teesync remove posting <id>            # remove a posting's calendar event
//	teesync remove reservation <id>        # remove a reservation's calendar event
//	teesync status                         # show daemon & config state
//	teesync logout                         # forget session and mappings
//	teesync install                        # install binary + launchd agent
//	teesync uninstall [--purge]            # stop daemon and remove files
//	teesync version                        # print version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/threeputt/teesync/internal/authstore"
	"github.com/threeputt/teesync/internal/calendar"
	"github.com/threeputt/teesync/internal/config"
	"github.com/threeputt/teesync/internal/events"
	"github.com/threeputt/teesync/internal/model"
	"github.com/threeputt/teesync/internal/setup"
	"github.com/threeputt/teesync/internal/state"
	syncp "github.com/threeputt/teesync/internal/sync"
	"github.com/threeputt/teesync/internal/telemetry"
	"github.com/threeputt/teesync/internal/threeputt"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// run dispatches to the appropriate subcommand.
func run() error {
	if len(os.Args) < 2 {
		return printUsage()
	}

	switch cmd := os.Args[1]; cmd {
	case "login":
		return runLogin(os.Args[2:])
	case "daemon":
		return runSync(os.Args[2:], true)
	case "sync-once":
		return runSync(os.Args[2:], false)
	case "add":
		return runAdd(os.Args[2:])
	case "remove":
		return runRemove(os.Args[2:])
	case "status":
		return runStatus()
	case "logout":
		return runLogout()
	case "install":
		return runInstall()
	case "uninstall":
		return runUninstall(os.Args[2:])
	case "version":
		fmt.Println("teesync", version)
		return nil
	default:
		return fmt.Errorf("unknown command %q: run 'teesync' for usage", cmd)
	}
}

// printUsage shows help and suggests login if no session exists.
func printUsage() error {
	fmt.Fprintln(os.Stderr, "Teesync: mirror Three Putt tee times into your calendar")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  teesync login                         Save backend credentials")
	fmt.Fprintln(os.Stderr, "  teesync daemon [--config ...]         Run as continuous daemon")
	fmt.Fprintln(os.Stderr, "  teesync sync-once [--config ...]      Single reconcile pass then exit")
	fmt.Fprintln(os.Stderr, "  teesync add posting|reservation <id>  Sync one entity now")
	fmt.Fprintln(os.Stderr, "  teesync remove posting|reservation <id>  Remove its calendar event")
	fmt.Fprintln(os.Stderr, "  teesync status                        Show daemon & config state")
	fmt.Fprintln(os.Stderr, "  teesync logout                        Forget session and mappings")
	fmt.Fprintln(os.Stderr, "  teesync install                       Install binary + launchd agent")
	fmt.Fprintln(os.Stderr, "  teesync uninstall [--purge]           Stop daemon and remove files")
	fmt.Fprintln(os.Stderr, "  teesync version                       Print version")
	fmt.Fprintln(os.Stderr, "")

	if path, err := authstore.DefaultDBPath(); err == nil {
		if _, statErr := os.Stat(path); statErr != nil {
			fmt.Fprintln(os.Stderr, "No saved session found. Run 'teesync login' to get started.")
		}
	}

	os.Exit(1)
	return nil // unreachable
}

// --- Subcommands -------------------------------------------------------------

// runLogin prompts for credentials, exchanges them for a session token, and
// persists it.
func runLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := newLogger(false)
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("loading config from %q: %w", *cfgPath, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	fmt.Println("Log in to Three Putt")
	prompter := setup.NewPrompter(os.Stdin, os.Stdout)
	email := prompter.String("Email", "")
	password := prompter.Secret("Password")

	client := threeputt.NewClient(cfg.APIURL, "", logger)
	token, err := client.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, threeputt.ErrUnauthorized) {
			return fmt.Errorf("login failed: check your email and password")
		}
		return fmt.Errorf("login: %w", err)
	}

	auth, err := openAuthStore()
	if err != nil {
		return err
	}
	defer func() { _ = auth.Close() }()

	if err := auth.Save(authstore.Session{Token: token, Email: email, SavedAt: time.Now().UTC()}); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	fmt.Printf("✓ Logged in as %s\n", email)
	return nil
}

// runLogout forgets the saved session and all calendar mappings. Calendar
// events themselves are left in place.
func runLogout() error {
	auth, err := openAuthStore()
	if err != nil {
		return err
	}
	defer func() { _ = auth.Close() }()

	if err := auth.Clear(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}

	dbPath, err := state.DefaultDBPath()
	if err != nil {
		return fmt.Errorf("resolving mapping DB path: %w", err)
	}
	if _, statErr := os.Stat(dbPath); statErr == nil {
		store, err := state.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening mapping DB: %w", err)
		}
		defer func() { _ = store.Close() }()
		if err := store.ClearAll(context.Background()); err != nil {
			return fmt.Errorf("clearing mappings: %w", err)
		}
	}

	fmt.Println("✓ Logged out. Calendar events were left in place.")
	return nil
}

// runSync handles both "daemon" and "sync-once" subcommands.
func runSync(args []string, daemon bool) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return startSync(*cfgPath, *verbose, daemon)
}

// runAdd syncs a single posting or reservation immediately, prompting for
// calendar access if needed.
func runAdd(args []string) error {
	ref, rest, err := parseRef(args)
	if err != nil {
		return err
	}

	app, err := buildApp(rest, true)
	if err != nil {
		return err
	}
	defer app.close()

	entity, err := app.findEntity(ref)
	if err != nil {
		return err
	}

	outcome := app.mgr.Sync(app.ctx, entity, true)
	switch outcome {
	case syncp.OutcomeCreated:
		fmt.Printf("✓ Calendar event created for %s\n", ref)
	case syncp.OutcomeUpToDate:
		fmt.Printf("✓ Calendar event for %s is up to date\n", ref)
	default:
		return fmt.Errorf("could not sync %s: see log output above", ref)
	}
	return nil
}

// runRemove deletes the calendar event for a single posting or reservation.
func runRemove(args []string) error {
	ref, rest, err := parseRef(args)
	if err != nil {
		return err
	}

	app, err := buildApp(rest, false)
	if err != nil {
		return err
	}
	defer app.close()

	app.mgr.Remove(app.ctx, ref)
	fmt.Printf("✓ Calendar event for %s removed\n", ref)
	return nil
}

// runStatus prints the current daemon and configuration state.
func runStatus() error {
	cfgPath, _ := config.DefaultPath()
	homeDir, _ := os.UserHomeDir()
	dbPath, _ := state.DefaultDBPath()

	fmt.Println("Teesync Status")
	fmt.Println("──────────────")

	// Daemon state.
	if setup.IsDaemonLoaded() {
		fmt.Println("  Daemon:    running (launchd)")
	} else {
		fmt.Println("  Daemon:    not loaded")
	}

	// Config state.
	if _, err := os.Stat(cfgPath); err == nil {
		if cfg, loadErr := config.Load(cfgPath); loadErr == nil {
			fmt.Printf("  Config:    %s ✓\n", cfgPath)
			fmt.Printf("  API URL:   %s\n", cfg.APIURL)
			fmt.Printf("  Poll:      %s\n", cfg.PollInterval)
			if cfg.CalendarName != "" {
				fmt.Printf("  Calendar:  %s\n", cfg.CalendarName)
			} else {
				fmt.Printf("  Calendar:  (system default)\n")
			}
		} else {
			fmt.Printf("  Config:    %s (invalid: %v)\n", cfgPath, loadErr)
		}
	} else {
		fmt.Printf("  Config:    not found (%s)\n", cfgPath)
	}

	// Session.
	if auth, err := openAuthStore(); err == nil {
		if sess, sessErr := auth.Session(); sessErr == nil {
			fmt.Printf("  Session:   %s (since %s)\n", sess.Email, sess.SavedAt.Format("2006-01-02"))
		} else {
			fmt.Println("  Session:   not logged in")
		}
		_ = auth.Close()
	}

	// Mapping DB.
	if info, err := os.Stat(dbPath); err == nil {
		fmt.Printf("  Mappings:  %s (%s)\n", dbPath, humanSize(info.Size()))
	} else {
		fmt.Printf("  Mappings:  not found\n")
	}

	// Plist.
	plistPath := setup.PlistPath(homeDir)
	if _, err := os.Stat(plistPath); err == nil {
		fmt.Printf("  Plist:     %s\n", plistPath)
	} else {
		fmt.Printf("  Plist:     not installed\n")
	}

	fmt.Printf("  Logs:      %s\n", setup.LogDir(homeDir))
	return nil
}

// runInstall copies the binary into place and loads the launchd agent.
func runInstall() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}

	fmt.Println("Installing Teesync...")

	fmt.Println("  Installing binary...")
	if err := setup.InstallBinary(); err != nil {
		return err
	}
	fmt.Println("  ✓ Binary installed to", setup.BinaryInstallPath())

	if err := setup.CreateLogDir(homeDir); err != nil {
		return err
	}
	if err := setup.WritePlist(homeDir); err != nil {
		return err
	}
	fmt.Println("  ✓ Launch agent written")

	if err := setup.LoadDaemon(homeDir); err != nil {
		return err
	}
	fmt.Println("  ✓ Daemon loaded")

	fmt.Println("")
	fmt.Println("✓ Teesync installed. Run 'teesync login' if you have not yet.")
	return nil
}

// runUninstall stops the daemon and removes installed files.
func runUninstall(args []string) error {
	fs := flag.NewFlagSet("uninstall", flag.ExitOnError)
	purge := fs.Bool("purge", false, "also remove config, databases, and logs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}

	if *purge {
		prompter := setup.NewPrompter(os.Stdin, os.Stdout)
		if !prompter.Confirm("Remove config, session, mappings, and logs too?", false) {
			return fmt.Errorf("aborted")
		}
	}

	fmt.Println("Uninstalling Teesync...")

	// 1. Unload daemon.
	if setup.IsDaemonLoaded() {
		fmt.Println("  Unloading daemon...")
		if err := setup.UnloadDaemon(homeDir); err != nil {
			fmt.Printf("  ⚠ %v\n", err)
		} else {
			fmt.Println("  ✓ Daemon unloaded")
		}
	}

	// 2. Remove plist.
	if err := setup.RemovePlist(homeDir); err != nil {
		fmt.Printf("  ⚠ %v\n", err)
	} else {
		fmt.Println("  ✓ Plist removed")
	}

	// 3. Remove binary.
	fmt.Println("  Removing binary...")
	if err := setup.RemoveBinary(); err != nil {
		fmt.Printf("  ⚠ %v\n", err)
	} else {
		fmt.Println("  ✓ Binary removed")
	}

	// 4. Optional purge.
	if *purge {
		fmt.Println("  Purging config, databases, and logs...")
		if err := setup.PurgeUserData(homeDir); err != nil {
			fmt.Printf("  ⚠ %v\n", err)
		} else {
			fmt.Println("  ✓ User data purged")
		}
	} else {
		fmt.Println("")
		fmt.Println("  Config and databases preserved.")
		fmt.Println("  Run with --purge to also remove them:")
		fmt.Println("    teesync uninstall --purge")
	}

	fmt.Println("")
	fmt.Println("✓ Teesync uninstalled.")
	return nil
}

// --- Sync core ---------------------------------------------------------------

// startSync is the shared implementation for daemon and sync-once modes.
func startSync(cfgPath string, verbose, daemon bool) error {
	logger := newLogger(verbose)

	// --- Config --------------------------------------------------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config from %q: %w", cfgPath, err)
	}
	logger.Info("config loaded",
		"api_url", cfg.APIURL,
		"poll_interval", cfg.PollInterval,
		"calendar", cfg.CalendarName,
	)

	// --- Telemetry (optional) ------------------------------------------------

	if cfg.Telemetry != nil {
		telCfg := telemetry.Config{
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
			Insecure:       cfg.Telemetry.Insecure,
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version,
			Headers:        cfg.Telemetry.Headers,
		}
		shutdownTel, err := telemetry.Setup(context.Background(), telCfg)
		if err != nil {
			logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTel(flushCtx); err != nil {
					logger.Error("telemetry shutdown error", "error", err)
				}
			}()
		}
	}

	// --- Session -------------------------------------------------------------

	auth, err := openAuthStore()
	if err != nil {
		return err
	}
	defer func() { _ = auth.Close() }()

	sess, err := auth.Session()
	if err != nil {
		if errors.Is(err, authstore.ErrNoSession) {
			return fmt.Errorf("not logged in: run 'teesync login' first")
		}
		return fmt.Errorf("loading session: %w", err)
	}
	logger.Info("session loaded", "email", sess.Email)

	// --- Mapping DB ----------------------------------------------------------

	dbPath, err := state.DefaultDBPath()
	if err != nil {
		return fmt.Errorf("resolving mapping DB path: %w", err)
	}
	store, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening mapping DB at %q: %w", dbPath, err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("closing mapping DB", "error", closeErr)
		}
	}()
	logger.Info("mapping DB opened", "path", dbPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// --- Calendar adapter ----------------------------------------------------

	cal := calendar.NewAdapter(cfg.CalendarName, logger)
	logger.Info("requesting calendar access (may trigger permissions prompt)…")
	granted, err := cal.RequestAccess(ctx)
	if err != nil {
		return fmt.Errorf("requesting calendar access: %w", err)
	}
	if !granted {
		logger.Warn("calendar access denied; events will not be refreshed until access is granted in System Settings")
	}

	// --- Backend client & connectivity check ---------------------------------

	client := threeputt.NewClient(cfg.APIURL, sess.Token, logger)
	logger.Info("pinging Three Putt backend…", "url", cfg.APIURL)
	if err := client.Ping(ctx); err != nil {
		if errors.Is(err, threeputt.ErrUnauthorized) {
			return fmt.Errorf("session expired: run 'teesync login' again")
		}
		return fmt.Errorf("connecting to backend at %q: %w", cfg.APIURL, err)
	}
	logger.Info("backend reachable")

	// --- Sync engine ---------------------------------------------------------

	bus := &events.Bus{}
	bus.SubscribeUnauthorized(func(err error) {
		logger.Error("session token rejected, stopping: run 'teesync login' again", "error", err)
		stop()
	})

	mgr := syncp.NewManager(cal, store, cfg.EventDuration, logger)
	engine := syncp.NewEngine(mgr, client, bus, cfg.PollInterval, logger)

	// --- Dispatch mode -------------------------------------------------------

	if !daemon {
		logger.Info("running single reconcile pass")
		stats, err := engine.RunOnce(ctx)
		logger.Info("sync complete",
			"updated", stats.Updated,
			"skipped", stats.Skipped,
			"removed", stats.Removed,
			"errors", stats.Errors,
		)
		return err
	}

	logger.Info("daemon starting", "poll_interval", cfg.PollInterval)
	if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("sync engine: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// --- Per-entity command wiring -----------------------------------------------

// app bundles the components the add/remove commands need.
type app struct {
	ctx    context.Context
	stop   context.CancelFunc
	cfg    *config.Config
	store  *state.Store
	auth   *authstore.Store
	client *threeputt.Client
	mgr    *syncp.Manager
}

// buildApp loads config, session, mapping DB, and the calendar adapter for a
// one-shot command. requestAccess controls whether calendar access is
// requested up front.
func buildApp(args []string, requestAccess bool) (*app, error) {
	fs := flag.NewFlagSet("entity", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	logger := newLogger(*verbose)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config from %q: %w", *cfgPath, err)
	}

	auth, err := openAuthStore()
	if err != nil {
		return nil, err
	}
	sess, err := auth.Session()
	if err != nil {
		_ = auth.Close()
		if errors.Is(err, authstore.ErrNoSession) {
			return nil, fmt.Errorf("not logged in: run 'teesync login' first")
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}

	dbPath, err := state.DefaultDBPath()
	if err != nil {
		_ = auth.Close()
		return nil, fmt.Errorf("resolving mapping DB path: %w", err)
	}
	store, err := state.Open(dbPath)
	if err != nil {
		_ = auth.Close()
		return nil, fmt.Errorf("opening mapping DB at %q: %w", dbPath, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	cal := calendar.NewAdapter(cfg.CalendarName, logger)
	if requestAccess {
		if _, err := cal.RequestAccess(ctx); err != nil {
			stop()
			_ = store.Close()
			_ = auth.Close()
			return nil, fmt.Errorf("requesting calendar access: %w", err)
		}
	}

	client := threeputt.NewClient(cfg.APIURL, sess.Token, logger)
	mgr := syncp.NewManager(cal, store, cfg.EventDuration, logger)

	return &app{
		ctx:    ctx,
		stop:   stop,
		cfg:    cfg,
		store:  store,
		auth:   auth,
		client: client,
		mgr:    mgr,
	}, nil
}

func (a *app) close() {
	a.stop()
	_ = a.store.Close()
	_ = a.auth.Close()
}

// findEntity fetches the referenced posting or reservation from the backend.
func (a *app) findEntity(ref model.Ref) (syncp.Entity, error) {
	switch ref.Kind {
	case model.KindPosting:
		postings, err := a.client.Postings(a.ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range postings {
			if p.ID == ref.ID {
				return p, nil
			}
		}
	case model.KindReservation:
		reservations, err := a.client.Reservations(a.ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range reservations {
			if r.ID == ref.ID {
				return r, nil
			}
		}
	}
	return nil, fmt.Errorf("%s not found on the backend", ref)
}

// parseRef reads "<kind> <id>" from the front of args and returns the
// remaining args for flag parsing.
func parseRef(args []string) (model.Ref, []string, error) {
	if len(args) < 2 {
		return model.Ref{}, nil, fmt.Errorf("usage: teesync add|remove posting|reservation <id>")
	}

	var kind model.Kind
	switch args[0] {
	case "posting":
		kind = model.KindPosting
	case "reservation":
		kind = model.KindReservation
	default:
		return model.Ref{}, nil, fmt.Errorf("unknown entity kind %q (want posting or reservation)", args[0])
	}

	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return model.Ref{}, nil, fmt.Errorf("invalid id %q: %w", args[1], err)
	}

	return model.Ref{Kind: kind, ID: id}, args[2:], nil
}

// --- Helpers -----------------------------------------------------------------

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func openAuthStore() (*authstore.Store, error) {
	path, err := authstore.DefaultDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolving auth store path: %w", err)
	}
	auth, err := authstore.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening auth store: %w", err)
	}
	return auth, nil
}

// humanSize returns a human-readable file size string.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
