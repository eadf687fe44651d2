package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kafkasder-git/panel/internal/auth"
	"github.com/kafkasder-git/panel/internal/csrf"
	"github.com/kafkasder-git/panel/internal/guard"
	"github.com/kafkasder-git/panel/internal/httpapi"
	"github.com/kafkasder-git/panel/internal/obs"
	"github.com/kafkasder-git/panel/internal/policy"
	"github.com/kafkasder-git/panel/internal/session"
	"github.com/kafkasder-git/panel/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	secret := os.Getenv("PANEL_AUTH_SECRET")
	if secret == "" {
		log.Fatal("PANEL_AUTH_SECRET is required")
	}

	// Persistence. Without a DSN the server runs on the in-memory store
	// with a seeded development admin.
	var (
		store auth.Store
		db    *sql.DB
	)
	if dsn := os.Getenv("PANEL_PG_DSN"); dsn != "" {
		pgStore, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
		db = pgStore.DB()
	} else {
		mem := auth.NewMemoryStore()
		email := envOr("PANEL_DEV_ADMIN_EMAIL", "admin@dernek.org")
		password := envOr("PANEL_DEV_ADMIN_PASSWORD", "admin123")
		if _, err := mem.SeedUser(email, password, "admin"); err != nil {
			log.Fatalf("seed dev admin: %v", err)
		}
		log.Printf("no PANEL_PG_DSN set; using in-memory store with dev admin %s", email)
		store = mem
	}

	engine, watcher := buildPolicy(ctx, db)
	if watcher != nil {
		defer watcher.Close()
	}

	svc, err := auth.NewService(store, secret)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	csrfGuard := csrf.NewGuard()
	sessions := session.NewManager(session.NewTokenStore(), svc,
		session.WithDestroyHook(csrfGuard.Drop))
	registry := guard.NewRegistry()
	accessGuard := guard.New(sessions, engine, csrfGuard, registry)

	api := httpapi.New(httpapi.Config{
		Version:    version,
		ReadyProbe: httpapi.ReadyProbe{DB: db},
		Sessions:   sessions,
		Guard:      accessGuard,
		CSRF:       csrfGuard,
		Registry:   registry,
	})

	srv := &http.Server{
		Addr:              envOr("PANEL_ADDR", ":8080"),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting panel-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Println("Stopped")
}

// buildPolicy loads the permission table from the YAML policy file when one
// is configured, falling back to role_permissions in Postgres. The file path
// also gets a change watcher so edits apply without a restart.
func buildPolicy(ctx context.Context, db *sql.DB) (*policy.Engine, *policy.Watcher) {
	if path := os.Getenv("PANEL_POLICY_FILE"); path != "" {
		table, err := policy.LoadFile(path)
		if err != nil {
			log.Fatalf("load policy: %v", err)
		}
		engine := policy.NewEngine(table)
		watcher, err := policy.NewWatcher(engine, path)
		if err != nil {
			log.Fatalf("watch policy: %v", err)
		}
		go watcher.Start(ctx)
		return engine, watcher
	}

	if db != nil {
		table, err := pg.NewWithDB(db).LoadPolicyTable(ctx)
		if err != nil {
			log.Fatalf("load policy from db: %v", err)
		}
		return policy.NewEngine(table), nil
	}

	log.Fatal("no policy source: set PANEL_POLICY_FILE or PANEL_PG_DSN")
	return nil, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
