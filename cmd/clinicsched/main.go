// Command clinicsched reads a therapy-group-session scheduling Instance
// as JSON and solves it, printing a SolveResult as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clinicsched/scheduler/internal/config"
	"github.com/clinicsched/scheduler/internal/diagnostics"
	"github.com/clinicsched/scheduler/internal/instance"
	"github.com/clinicsched/scheduler/internal/solve"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clinicsched",
		Short: "Weekly therapy-group-session scheduler",
	}
	root.AddCommand(newSolveCmd())
	root.AddCommand(newValidateCmd())
	return root
}

func newSolveCmd() *cobra.Command {
	var inputPath string
	cmd := &cobra.Command{
		Use:          "solve",
		Short:        "Solve an Instance and print a SolveResult as JSON",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd, inputPath)
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "path to the Instance JSON file (default: stdin)")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var inputPath string
	cmd := &cobra.Command{
		Use:          "validate",
		Short:        "Validate an Instance without solving it",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, inputPath)
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "path to the Instance JSON file (default: stdin)")
	return cmd
}

func readInstance(inputPath string) (*instance.Instance, error) {
	var r io.Reader = os.Stdin
	if inputPath != "" {
		f, err := os.Open(inputPath)
		if err != nil {
			return nil, fmt.Errorf("opening instance file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var dto instance.InstanceDTO
	if err := json.NewDecoder(r).Decode(&dto); err != nil {
		return nil, fmt.Errorf("decoding instance JSON: %w", err)
	}
	return instance.NewInstance(dto)
}

func runValidate(cmd *cobra.Command, inputPath string) error {
	_, err := readInstance(inputPath)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "instance is valid")
	return nil
}

func runSolve(cmd *cobra.Command, inputPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	inst, err := readInstance(inputPath)
	if err != nil {
		if verr, ok := err.(*instance.ValidationError); ok {
			logger.Warn("instance invalid", zap.String("entity_id", verr.EntityID), zap.String("reason", verr.Reason))
		}
		return err
	}

	opts := solve.Options{
		TimeLimit: cfg.TimeLimit,
		Weights:   cfg.ObjectiveWeights,
		Logger:    logger,
	}

	result, err := solve.Solve(context.Background(), inst, opts, diagnostics.Run)
	if err != nil {
		return fmt.Errorf("solve: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
