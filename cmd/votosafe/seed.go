package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/abrezinsky/votosafe/internal/config"
	"github.com/abrezinsky/votosafe/internal/logger"
	"github.com/abrezinsky/votosafe/internal/repository"
	"github.com/abrezinsky/votosafe/internal/store"
)

func seedCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demo users and election into the store",
		Long: `Load the demo users and election into the store.

Without --force only missing collections are seeded. With --force every
stored key is removed first, which also deletes votes and sessions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg, cmd.ErrOrStderr())
			return runSeed(cmd.Context(), cmd.OutOrStdout(), cfg, log, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "wipe the store before seeding")
	return cmd
}

func runSeed(ctx context.Context, out io.Writer, cfg *config.Config, log logger.Logger, force bool) error {
	st, err := store.Open(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	repo := repository.New(st, repository.WithLogger(log))
	defer repo.Close()

	if force {
		if err := store.Reset(ctx, st); err != nil {
			return fmt.Errorf("failed to reset store: %w", err)
		}
		fmt.Fprintf(out, "%sStore cleared%s\n", yellow, reset)
	}
	if err := repo.Init(ctx); err != nil {
		return err
	}

	users, err := repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	elections, err := repo.ListElections(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%sSeeded%s %d users, %d elections (%s at %s)\n",
		green, reset, len(users), len(elections), cfg.Store, cfg.DatabasePath)
	return nil
}
