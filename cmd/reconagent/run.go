package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/WeiKhjan/reconciliation-agent/internal/llm"
	"github.com/WeiKhjan/reconciliation-agent/internal/reconcile"
	"github.com/WeiKhjan/reconciliation-agent/internal/service"
	"github.com/WeiKhjan/reconciliation-agent/internal/table"
)

func newRunCmd() *cobra.Command {
	var (
		flagHint     string
		flagMaxIter  int
		flagShowCode bool
		flagJSONOut  string
	)

	cmd := &cobra.Command{
		Use:   "run <file-a> <file-b>",
		Short: "Reconcile two tabular files end to end",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var tableA, tableB *table.Table
			var metaA, metaB *table.Metadata
			g, _ := errgroup.WithContext(ctx)
			g.Go(func() (err error) {
				tableA, metaA, err = loadFile(args[0])
				return err
			})
			g.Go(func() (err error) {
				tableB, metaB, err = loadFile(args[1])
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}
			fmt.Printf("Loaded %s (%d rows) and %s (%d rows)\n",
				metaA.Filename, metaA.RowCount, metaB.Filename, metaB.RowCount)

			client, err := llm.NewFromConfig(ctx, cfg.LLM)
			if err != nil {
				return err
			}

			sandboxTimeout, err := cfg.Sandbox.TimeoutDuration()
			if err != nil {
				return err
			}
			orchCfg := reconcile.Config{
				MaxIterations:  cfg.Agent.MaxIterations,
				MatchThreshold: cfg.Agent.MatchThreshold,
				PreviewRows:    cfg.Agent.PreviewRows,
				SandboxTimeout: sandboxTimeout,
			}
			if flagMaxIter > 0 {
				orchCfg.MaxIterations = flagMaxIter
			}

			svc := service.New(reconcile.New(client, orchCfg), cfg.Agent.ConcurrentSessions)
			id := svc.CreateSession()
			if err := svc.AttachTables(id, tableA, tableB); err != nil {
				return err
			}
			if err := svc.Start(id, flagHint); err != nil {
				return err
			}

			snap, err := waitUntilHalted(ctx, svc, id)
			if err != nil {
				return err
			}

			return report(svc, id, snap, flagShowCode, flagJSONOut)
		},
	}

	cmd.Flags().StringVar(&flagHint, "hint", "", "hint about how the tables relate")
	cmd.Flags().IntVar(&flagMaxIter, "max-iterations", 0, "override the iteration budget")
	cmd.Flags().BoolVar(&flagShowCode, "show-code", false, "print the final generated program")
	cmd.Flags().StringVar(&flagJSONOut, "json", "", "write full results as JSON to this file")
	return cmd
}

func loadFile(path string) (*table.Table, *table.Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return table.Load(data, path)
}

func waitUntilHalted(ctx context.Context, svc *service.Service, id string) (reconcile.Snapshot, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastIteration := -1
	for {
		select {
		case <-ctx.Done():
			return reconcile.Snapshot{}, ctx.Err()
		case <-ticker.C:
		}
		snap, err := svc.GetStatus(id)
		if err != nil {
			return reconcile.Snapshot{}, err
		}
		if snap.Iterations != lastIteration {
			lastIteration = snap.Iterations
			fmt.Printf("  iteration %d/%d (%s)\n", snap.Iterations, snap.MaxIterations, snap.Status)
		}
		if snap.Status.Halted() {
			return snap, nil
		}
	}
}

func report(svc *service.Service, id string, snap reconcile.Snapshot, showCode bool, jsonOut string) error {
	fmt.Printf("\nFinal status: %s\n", snap.Status)
	if snap.LastError != "" {
		fmt.Printf("Last error:   %s\n", snap.LastError)
	}

	res, err := svc.GetResults(id)
	if errors.Is(err, service.ErrNotReady) {
		return fmt.Errorf("no results produced (status %s)", snap.Status)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Match rate:   %.2f%% (%d of %d rows)\n", res.MatchRate*100, res.MatchCount, res.TotalA)
	fmt.Printf("Unmatched:    %d from A, %d from B\n", len(res.UnmatchedA), len(res.UnmatchedB))
	fmt.Printf("Iterations:   %d\n", res.Iterations)

	if showCode {
		fmt.Printf("\nGenerated program:\n%s\n", res.GeneratedCode)
	}

	if jsonOut != "" {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(jsonOut, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", jsonOut, err)
		}
		fmt.Printf("\nResults written to %s\n", jsonOut)
	}

	if snap.Status == reconcile.StatusAwaitingFeedback {
		fmt.Println("\nThe iteration budget is spent. Re-run with --hint to steer the matching logic.")
	}
	return nil
}
