package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/erazemk/inventario/internal/api"
	"github.com/erazemk/inventario/internal/auth"
	"github.com/erazemk/inventario/internal/config"
	"github.com/erazemk/inventario/internal/db"
	"github.com/erazemk/inventario/internal/imaging"
	"github.com/erazemk/inventario/internal/metrics"
	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/state"
	"github.com/erazemk/inventario/internal/store"
	"github.com/erazemk/inventario/internal/workflow"
)

// serverFlags are the flags shared by every command. Flags that were set
// on the command line override the config file.
type serverFlags struct {
	fs         *pflag.FlagSet
	configPath string
	dbPath     string
	addr       string
	logPath    string
	adminEmail string
}

func newFlags(name string) *serverFlags {
	f := &serverFlags{fs: pflag.NewFlagSet(name, pflag.ContinueOnError)}
	f.fs.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	f.fs.StringVarP(&f.dbPath, "db", "d", "inventario.db", "SQLite database path")
	return f
}

// load reads the config file and applies the flags that were set.
func (f *serverFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.fs.Changed("db") {
		cfg.DB = f.dbPath
	}
	if f.fs.Changed("addr") {
		cfg.Addr = f.addr
	}
	if f.fs.Changed("log") {
		cfg.LogFile = f.logPath
	}
	if f.fs.Changed("admin") {
		cfg.Admin.Email = f.adminEmail
	}
	return cfg, cfg.Validate()
}

func cmdServe(args []string) error {
	f := newFlags("serve")
	f.fs.StringVarP(&f.addr, "addr", "a", ":8080", "listen address")
	f.fs.StringVarP(&f.logPath, "log", "l", "", "log file path (default: stdout/stderr only)")
	f.fs.StringVarP(&f.adminEmail, "admin", "u", "admin@inventario.local", "administrator email on first run")
	if err := f.fs.Parse(args); err != nil {
		return err
	}
	if f.fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", f.fs.Arg(0))
	}

	cfg, err := f.load()
	if err != nil {
		return err
	}

	// INFO/WARN → stdout, ERROR → stderr, optionally a log file too.
	closeLog, err := setupLogger(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	database, err := openDatabase(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close()
	slog.Info("database ready", "path", cfg.DB)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("getting JWT secret: %w", err)
	}

	m := metrics.New()
	stateStore := store.NewStateStore(database)
	initial, err := stateStore.Load(ctx)
	if err != nil {
		return err
	}
	st := state.NewStore(initial, m.Instrument(stateStore))
	m.Observe(initial)
	st.Subscribe(m.Observe)
	svc := workflow.New(st, workflow.WithRecorder(m))

	if err := bootstrapAdmin(ctx, svc, database, cfg.Admin, os.Stdout); err != nil {
		return err
	}

	go svc.RunOverdueSweep(ctx, cfg.OverdueInterval, func(err error) {
		slog.Error("overdue sweep failed", "error", err)
	})

	router := api.NewRouter(api.Deps{
		DB:        database,
		Service:   svc,
		JWTSecret: jwtSecret,
		TokenTTL:  cfg.TokenTTL,
		Login:     api.NewRateLimiter(cfg.Login.PerMinute, cfg.Login.Burst),
		Photo: imaging.Options{
			MaxBytes:     cfg.Photo.MaxBytes,
			MaxDimension: cfg.Photo.MaxDimension,
		},
		Metrics: m.Handler(),
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

// openDatabase opens the database and brings its schema up to date.
func openDatabase(path string) (*sql.DB, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return database, nil
}

// bootstrapAdmin creates the first administrator when there are no users
// and prints its credentials to out.
func bootstrapAdmin(ctx context.Context, svc *workflow.Service, database *sql.DB, b config.Bootstrap, out io.Writer) error {
	u, created, err := svc.BootstrapAdmin(ctx, model.User{Name: b.Name, Email: b.Email})
	if err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}
	if !created {
		return nil
	}

	password := b.Password
	if password == "" {
		if password, err = auth.GeneratePassword(16); err != nil {
			return err
		}
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("admin password: %w", err)
	}
	if err := store.SetPasswordHash(ctx, database, u.ID, hash); err != nil {
		return err
	}

	slog.Info("admin account created", "user", u.Email)
	fmt.Fprintln(out, "Admin account created:")
	fmt.Fprintf(out, "  Email:    %s\n", u.Email)
	if b.Password == "" {
		fmt.Fprintf(out, "  Password: %s\n", password)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Save this password, it cannot be recovered.")
		fmt.Fprintln(out, "The admin can change it after logging in.")
	}
	return nil
}
