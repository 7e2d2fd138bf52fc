package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abrezinsky/votosafe/internal/config"
	"github.com/abrezinsky/votosafe/internal/logger"
	"github.com/abrezinsky/votosafe/internal/models"
	"github.com/abrezinsky/votosafe/internal/repository"
	"github.com/abrezinsky/votosafe/internal/services"
	"github.com/abrezinsky/votosafe/internal/store"
)

func statsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print participation and vote statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg, cmd.ErrOrStderr())
			stats, err := loadStats(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func loadStats(ctx context.Context, cfg *config.Config, log logger.Logger) (*models.Stats, error) {
	st, err := store.Open(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	repo := repository.New(st, repository.WithLogger(log))
	defer repo.Close()

	return services.NewStatsService(log, repo).Stats(ctx)
}

func printStats(w io.Writer, s *models.Stats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%sUsers%s\t%d\n", bold, reset, s.TotalUsers)
	fmt.Fprintf(tw, "%sVotes%s\t%d\n", bold, reset, s.TotalVotes)
	fmt.Fprintf(tw, "%sParticipation%s\t%.1f%%\n", bold, reset, s.Participation)
	tw.Flush()

	fmt.Fprintf(w, "\n%sVotes by party%s\n", bold, reset)
	parties := make([]string, 0, len(s.PartyVotes))
	for p := range s.PartyVotes {
		parties = append(parties, p)
	}
	sort.Slice(parties, func(i, j int) bool {
		if s.PartyVotes[parties[i]] != s.PartyVotes[parties[j]] {
			return s.PartyVotes[parties[i]] > s.PartyVotes[parties[j]]
		}
		return parties[i] < parties[j]
	})
	for _, p := range parties {
		fmt.Fprintf(tw, "  %s\t%d\n", p, s.PartyVotes[p])
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%sGender%s\n", bold, reset)
	fmt.Fprintf(tw, "  M\t%d\n  F\t%d\n", s.Gender.M, s.Gender.F)
	tw.Flush()

	fmt.Fprintf(w, "\n%sAge groups%s\n", bold, reset)
	for _, b := range models.AgeBuckets {
		fmt.Fprintf(tw, "  %s\t%d\n", b, s.AgeGroups[b])
	}
	tw.Flush()
}
