package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/learnup/learnup/internal/auth"
	"github.com/learnup/learnup/internal/config"
	httpapp "github.com/learnup/learnup/internal/http"
	"github.com/learnup/learnup/internal/rate"
	"github.com/learnup/learnup/internal/store/sqlite"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := config.LoadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: reading .env: %v\n", err)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "serve", "server":
		err = runServer()
	case "register":
		err = cmdRegister(args)
	case "login", "auth":
		err = cmdLogin(args)
	case "logout":
		err = cmdLogout(args)
	case "whoami", "status":
		err = cmdWhoami(args)
	case "key":
		err = cmdKey(args)
	case "comments", "read":
		err = cmdComments(args)
	case "comment", "post":
		err = cmdComment(args)
	case "reply":
		err = cmdReply(args)
	case "edit":
		err = cmdEdit(args)
	case "delete", "rm":
		err = cmdDelete(args)
	case "-v", "--version", "version":
		fmt.Printf("learnup %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`learnup - comment threads for LearnUp posts, subjects and videos

Usage: learnup <command> [options]

Session:
  register            Create an account and sign in
  login               Sign in with email/password or an ed25519 key
  logout              Forget the stored session
  whoami              Show the signed-in user
  key                 Generate an ed25519 key and register it

Threads:
  comments            Show the thread of a post, subject or video
  comment             Post a root comment
  reply               Reply to a comment
  edit                Edit one of your comments
  delete              Delete one of your comments (asks first, --yes to skip)

Server:
  serve               Run the development comment API

Examples:
  learnup register --name Ada --email ada@example.com --role instructor
  learnup comments --scope video --entity intro-1
  learnup comment --scope video --entity intro-1 --text "Welcome!"
  learnup reply --scope video --entity intro-1 --parent <comment-id> --text "Thanks"
  learnup delete --comment <comment-id> --scope video --entity intro-1

Environment Variables (client):
  LEARNUP_URL                   API base URL (default: http://localhost:8080)
  LEARNUP_SESSION               Session database (default: ~/.learnup/session.db)
  LEARNUP_REQUEST_TIMEOUT       Per-request timeout (default: 30s)
  LEARNUP_RESOLVE_CONCURRENCY   Max parallel author lookups (default: unlimited)
  LEARNUP_REFETCH               Reload the thread after edit/delete (default: true)

Environment Variables (server):
  LEARNUP_ADDR                  Listen address (default: :8080, or :$PORT)
  LEARNUP_DB                    Database path (default: learnup.db)
  LEARNUP_TOKEN_TTL             Token lifetime (default: 24h)
  LEARNUP_CHALLENGE_TTL         Challenge lifetime (default: 5m)
  LEARNUP_RL_COMMENT_PER_MIN    Comment writes per IP per minute (default: 30)
  LEARNUP_RL_LOGIN_PER_MIN      Logins per IP per minute (default: 10)
  LEARNUP_ADMIN_EMAILS          Comma-separated emails registered as admins
  LEARNUP_LOG_LEVEL             debug, info, warn or error

A .env file in the working directory is read first.`)
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ============================================================================
// SERVER
// ============================================================================

func runServer() error {
	cfg := config.LoadServer()
	cfg.Version = version
	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	limiter := rate.NewMemory()
	authSvc := auth.NewService(store, cfg.TokenTTL, cfg.ChallengeTTL)
	authSvc.SetAdmins(cfg.AdminEmails)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapp.NewServer(store, authSvc, limiter, cfg, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go pruneLimiter(ctx, limiter, time.Minute)

	errc := make(chan error, 1)
	go func() {
		log.Info("learnup listening", "addr", cfg.Addr, "db", cfg.DBPath, "admins", strings.Join(cfg.AdminEmails, ","))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func pruneLimiter(ctx context.Context, limiter *rate.MemoryLimiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Prune(); n > 0 {
				slog.Debug("pruned rate limit buckets", "count", n)
			}
		}
	}
}
