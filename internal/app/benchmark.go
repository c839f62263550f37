package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/craftcans/datasets"
)

var (
	benchDataset string
	benchSamples int
	benchNoise   float64
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Run the pipeline and grid search on a generated dataset",
	Long: fmt.Sprintf(`Generate a toy regression dataset (%s) and push it through
the same split, pipeline and grid search as the walkthrough.`, strings.Join(datasets.Names(), ", ")),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := NewWalkthrough(cfg, cmd.OutOrStdout(), loggers)
		_, err := w.Benchmark(cmd.Context(), benchDataset, benchSamples, benchNoise)
		return err
	},
}

func init() {
	benchmarkCmd.Flags().StringVar(&benchDataset, "dataset", "friedman1", "generator: "+strings.Join(datasets.Names(), ", "))
	benchmarkCmd.Flags().IntVar(&benchSamples, "samples", 500, "number of rows to generate")
	benchmarkCmd.Flags().Float64Var(&benchNoise, "noise", 1.0, "standard deviation of the gaussian noise")
	addModelFlags(benchmarkCmd)
}

// Benchmark generates the named dataset and runs Model on it.
func (w *Walkthrough) Benchmark(ctx context.Context, name string, nSamples int, noise float64) (*Result, error) {
	start := time.Now()
	bunch, err := datasets.Load(name, nSamples, noise, w.Config.Model.RandomState)
	if err != nil {
		return nil, err
	}
	w.section("Dataset", bunch.Description+"\n")

	res, err := w.Model(ctx, name, bunch.Data, bunch.Target, bunch.FeatureNames)
	if err != nil {
		return nil, err
	}
	res.CleanRows = nSamples
	res.Duration = time.Since(start)
	if err := w.persist(res); err != nil {
		return nil, err
	}
	return res, nil
}
