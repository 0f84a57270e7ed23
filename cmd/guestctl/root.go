package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/DovakiinZ/Sin-City-sub001/internal/db"
	"github.com/DovakiinZ/Sin-City-sub001/internal/kvstore"
	"github.com/DovakiinZ/Sin-City-sub001/internal/repository"
)

// memoryStateDir selects an in-memory local store instead of an on-disk one.
const memoryStateDir = ":memory:"

type cli struct {
	out io.Writer

	databaseURL   string
	stateDir      string
	enrichmentURL string
	memory        bool
	logLevel      string
	actor         string

	logger zerolog.Logger
	pool   *pgxpool.Pool
	guests repository.GuestStore
	audit  repository.AuditLog
	local  *kvstore.BadgerStore
}

func newCLI(out io.Writer) *cli {
	return &cli{out: out, logger: zerolog.Nop()}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "guestctl",
		Short:        "Inspect and moderate anonymous guest identities",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			lvl, err := zerolog.ParseLevel(c.logLevel)
			if err != nil {
				lvl = zerolog.WarnLevel
			}
			c.logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
				Level(lvl).With().Timestamp().Logger()
		},
	}
	root.SetOut(c.out)

	flags := root.PersistentFlags()
	flags.StringVar(&c.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	flags.StringVar(&c.stateDir, "state-dir", defaultStateDir(), "directory of the local guest id store (\":memory:\" for none)")
	flags.StringVar(&c.enrichmentURL, "enrichment-url", os.Getenv("ENRICHMENT_URL"), "URL of a server's /api/enrichment endpoint")
	flags.BoolVar(&c.memory, "memory", false, "use a throwaway in-memory guest store instead of PostgreSQL")
	flags.StringVar(&c.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flags.StringVar(&c.actor, "actor", currentUser(), "actor recorded in the audit log for moderation commands")

	root.AddCommand(
		c.fingerprintCmd(),
		c.sessionCmd(),
		c.resolveCmd(),
		c.statusCmd(),
		c.trustCmd(),
		c.flagCmd(),
		c.verifyEmailCmd(),
		c.listCmd(),
		c.historyCmd(),
		c.purgeCmd(),
	)
	return root
}

// stores opens the guest store on first use.
func (c *cli) stores(ctx context.Context) (repository.GuestStore, repository.AuditLog, error) {
	if c.guests != nil {
		return c.guests, c.audit, nil
	}
	if c.memory {
		m := repository.NewMemoryStore()
		c.guests, c.audit = m, m
		return m, m, nil
	}
	if c.databaseURL == "" {
		return nil, nil, errors.New("no database configured: set --database-url or DATABASE_URL, or pass --memory")
	}

	pool, err := db.NewPool(ctx, c.databaseURL, c.logger)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	repo := repository.NewGuestRepo(pool)
	c.pool = pool
	c.guests, c.audit = repo, repo
	return repo, repo, nil
}

// localStore opens the durable guest id store on first use.
func (c *cli) localStore() (kvstore.Store, error) {
	if c.local != nil {
		return c.local, nil
	}
	cfg := kvstore.BadgerConfig{Path: c.stateDir, Logger: &c.logger}
	if c.stateDir == memoryStateDir {
		cfg = kvstore.BadgerConfig{InMemory: true}
	}
	s, err := kvstore.OpenBadger(cfg)
	if err != nil {
		return nil, err
	}
	c.local = s
	return s, nil
}

func (c *cli) close() {
	if c.local != nil {
		if err := c.local.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("closing local store")
		}
		c.local = nil
	}
	if c.pool != nil {
		c.pool.Close()
		c.pool = nil
	}
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func defaultStateDir() string {
	if dir := os.Getenv("GUESTCTL_STATE_DIR"); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "guestctl")
	}
	return filepath.Join(base, "guestctl")
}

func currentUser() string {
	for _, key := range []string{"USER", "USERNAME"} {
		if u := os.Getenv(key); u != "" {
			return "cli:" + u
		}
	}
	return "cli"
}
