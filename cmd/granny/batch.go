package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spachava753/granny/internal/config"
	"github.com/spachava753/granny/internal/promote"
)

type batchOptions struct {
	repository  string
	nConcurrent int
	failFast    bool
	output      string
	json        bool
}

func newBatchCmd(globals *globalOptions) *cobra.Command {
	opts := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch MANIFEST",
		Short: "Promote every package listed in a YAML manifest",
		Example: `  granny batch promote.yaml
  granny batch promote.yaml -n 4 --fail-fast --output result.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, globals, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.repository, "repository", "r", "", "override the manifest's repository alias")
	f.IntVarP(&opts.nConcurrent, "n-concurrent", "n", 0, "override the manifest's n_concurrent")
	f.BoolVar(&opts.failFast, "fail-fast", false, "stop at the first failed promotion")
	f.StringVarP(&opts.output, "output", "o", "", "write the batch result as JSON to this file")
	f.BoolVar(&opts.json, "json", false, "print the batch result as JSON")
	return cmd
}

func runBatch(cmd *cobra.Command, globals *globalOptions, opts *batchOptions, manifest string) error {
	batchCfg, err := config.LoadBatchConfig(manifest)
	if err != nil {
		return err
	}
	if opts.repository != "" {
		batchCfg.Repository = opts.repository
	}
	if opts.nConcurrent > 0 {
		batchCfg.NConcurrent = opts.nConcurrent
	}
	if opts.failFast {
		batchCfg.FailFast = true
	}

	promoter, err := newPromoter(globals, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	orchestrator, err := promote.NewBatchOrchestrator(batchCfg, promoter)
	if err != nil {
		return err
	}

	result, err := orchestrator.Run(cmd.Context())
	if err != nil {
		return err
	}

	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("creating result file: %w", err)
		}
		if err := writeJSON(f, result); err != nil {
			_ = f.Close()
			return fmt.Errorf("writing result file: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("writing result file: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if opts.json {
		if err := writeJSON(out, result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "\nRepository: %s\n", result.Repository)
		fmt.Fprintf(out, "Total packages: %d\n", result.Total)
		fmt.Fprintf(out, "Succeeded: %d\n", result.Succeeded)
		fmt.Fprintf(out, "Failed: %d\n", result.Failed)
		fmt.Fprintf(out, "Skipped: %d\n", result.Skipped)
		fmt.Fprintf(out, "Registered: %d\n", result.Registered)
		fmt.Fprintf(out, "Duration: %.2fs\n", result.TotalDurationSec)
		for _, r := range result.Results {
			if r.Error != nil {
				fmt.Fprintf(out, "  FAILED %s: %s\n", r.Spec, r.Error.Message)
			}
		}
	}

	switch {
	case result.Cancelled:
		return fmt.Errorf("batch cancelled: %d of %d packages not attempted", result.Skipped, result.Total)
	case result.Failed > 0:
		return fmt.Errorf("%d of %d promotions failed", result.Failed, result.Total)
	}
	return nil
}
