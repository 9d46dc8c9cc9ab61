package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"trustdir/internal/app"
	"trustdir/internal/platform/config"
	"trustdir/internal/platform/logger"
	"trustdir/pkg/requestcontext"
)

// env carries the lazily built application shared by subcommands.
type env struct {
	out   io.Writer
	actor string
	app   *app.App
	close func()
}

func main() {
	e := newEnv(os.Stdout)
	err := newRootCmd(e).Execute()
	e.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newEnv(out io.Writer) *env {
	return &env{out: out, close: func() {}}
}

func newRootCmd(e *env) *cobra.Command {

	root := &cobra.Command{
		Use:   "trustctl",
		Short: "Operate the trustdir business directory",
		Long: `trustctl runs directory operations against the configured database.

Configuration is read from the environment (and .env when present), the
same way the server reads it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&e.actor, "actor", "trustctl", "actor recorded on moderation actions")

	root.AddCommand(
		newClassifyCmd(e),
		newResolveCmd(e),
		newApproveCmd(e),
		newRejectCmd(e),
		newEscalateCmd(e),
		newMigrateCmd(e),
		newTokenCmd(e),
	)
	return root
}

// load builds the application on first use.
func (e *env) load(ctx context.Context) (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, syncLog, err := logger.New(cfg.Server.Env, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		_ = syncLog()
		return nil, err
	}
	e.app = a
	e.close = func() {
		a.Close()
		_ = syncLog()
	}
	return a, nil
}

// context returns the command context stamped with the actor and time.
func (e *env) context(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = requestcontext.WithActor(ctx, e.actor)
	return requestcontext.WithTime(ctx, time.Now().UTC())
}

func (e *env) print(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
