package cmd

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tenkpostcards/leadscout/internal/config"
	"github.com/tenkpostcards/leadscout/internal/junkfilter"
	"github.com/tenkpostcards/leadscout/internal/logging"
	"github.com/tenkpostcards/leadscout/internal/metrics"
	"github.com/tenkpostcards/leadscout/internal/resolver"
)

// newCompareCmd creates the 'compare' subcommand, a harness that runs a query
// set against every configured web-search provider and reports hit rates.
func newCompareCmd() *cobra.Command {
	var inputPath string

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compares web-search providers over a query set",
		Long: `Reads business queries from a CSV file (name,city,state,zip) and runs
each one against every configured web-search provider independently,
then prints per-provider hit rates and latency. Use it to pick the
cascade order before committing monthly quota.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompareCommand(cmd, inputPath)
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "CSV file of queries: name,city,state,zip")
	if err := cmd.MarkFlagRequired("input"); err != nil {
		panic(err)
	}
	return cmd
}

func runCompareCommand(cmd *cobra.Command, inputPath string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics.Init()

	queries, err := loadCompareQueries(inputPath)
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		return fmt.Errorf("no queries in %s", inputPath)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	filter := junkfilter.New(junkfilter.Options{
		MinNameTokens: cfg.Filter.MinNameTokens,
		MaxPathDepth:  cfg.Filter.MaxPathDepth,
	})
	res := resolver.New(buildWebSearchProviders(cfg, client, nil), filter, logger)

	rows := res.Compare(cmd.Context(), queries)

	fmt.Printf("%-14s %8s %8s %8s %12s\n", "PROVIDER", "QUERIES", "FOUND", "ERRORS", "AVG LATENCY")
	for _, row := range rows {
		fmt.Printf("%-14s %8d %8d %8d %12s\n",
			row.Provider, row.Queries, row.Found, row.Errors, row.AvgLatency.Round(time.Millisecond))
	}
	return nil
}

// loadCompareQueries parses the name,city,state,zip CSV. A header row is
// skipped when its first cell is literally "name".
func loadCompareQueries(path string) ([]resolver.CompareQuery, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open query file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse query file: %w", err)
	}

	queries := make([]resolver.CompareQuery, 0, len(records))
	for i, rec := range records {
		if len(rec) == 0 || rec[0] == "" {
			continue
		}
		if i == 0 && rec[0] == "name" {
			continue
		}
		q := resolver.CompareQuery{Name: rec[0]}
		if len(rec) > 1 {
			q.City = rec[1]
		}
		if len(rec) > 2 {
			q.State = rec[2]
		}
		if len(rec) > 3 {
			q.Zip = rec[3]
		}
		queries = append(queries, q)
	}
	return queries, nil
}
