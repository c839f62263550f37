package app

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/craftcans/core/model"
	"github.com/YuminosukeSato/craftcans/internal/config"
	"github.com/YuminosukeSato/craftcans/internal/store"
	"github.com/YuminosukeSato/craftcans/pkg/errors"
	"github.com/YuminosukeSato/craftcans/pkg/log"
	"github.com/YuminosukeSato/craftcans/sklearn/pipeline"
)

var testStyles = []string{"American IPA", "American Pale Ale (APA)", "Oatmeal Stout", "Saison / Farmhouse Ale"}

// beersFixture returns 60 rows. Rows with i%13 == 0 lack a style and are
// dropped by cleaning, leaving 55.
func beersFixture() string {
	var sb strings.Builder
	sb.WriteString(",abv,ibu,id,name,style,brewery_id,ounces\n")
	for i := 0; i < 60; i++ {
		style := testStyles[i%len(testStyles)]
		if i%13 == 0 {
			style = ""
		}
		abv := fmt.Sprintf("%.3f", 0.04+0.001*float64(i%30)+0.005*float64(i%len(testStyles)))
		if i%7 == 0 {
			abv = ""
		}
		ibu := fmt.Sprint(20 + (i*7)%60)
		if i%3 == 0 {
			ibu = ""
		}
		fmt.Fprintf(&sb, "%d,%s,%s,%d,Beer %d,%s,%d,%s\n",
			i, abv, ibu, 1000+i, i, style, i%9, []string{"12.0", "16.0"}[i%2])
	}
	return sb.String()
}

const breweriesFixture = `,name,city,state
0,NorthGate Brewing ,Minneapolis, MN
1,Against the Grain Brewery,Louisville, KY
2,Jack's Abby Craft Lagers,Framingham, MA
`

func writeArchive(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "craft-cans.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range map[string]string{
		"beers.csv":     beersFixture(),
		"breweries.csv": breweriesFixture,
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Data.Archive = writeArchive(t, dir)
	cfg.Data.Dir = filepath.Join(dir, "data")
	cfg.Model.CV = 3
	cfg.Model.NEstimatorsGrid = []int{3, 5}
	cfg.Model.NJobs = 2
	cfg.Report.TopK = 5
	require.NoError(t, cfg.Validate())
	return cfg
}

// quietLogs drops everything below error.
func quietLogs() log.LoggerProvider {
	logs, _ := log.NewTestLoggerProvider(log.LevelError)
	return logs
}

func TestWalkthrough_Run(t *testing.T) {
	cfg := testConfig(t)
	dir := filepath.Dir(cfg.Data.Archive)
	cfg.Report.Plot = filepath.Join(dir, "importances.png")
	cfg.Report.ModelOut = filepath.Join(dir, "best.gob")
	cfg.Store.Path = filepath.Join(dir, "runs.db")

	var out bytes.Buffer
	logs, logBuf := log.NewTestLoggerProvider(log.LevelInfo)
	res, err := NewWalkthrough(cfg, &out, logs).Run(context.Background())
	require.NoError(t, err)

	records := logBuf.String()
	assert.Contains(t, records, `"ml.component":"app"`)
	assert.Contains(t, records, "grid search finished")
	assert.Contains(t, records, res.RunID)

	assert.Equal(t, 55, res.CleanRows)
	assert.Equal(t, res.CleanRows, len(res.Split.TrainIndices)+len(res.Split.TestIndices))
	assert.Equal(t, 14, len(res.Split.TestIndices), "ceil(0.25 * 55)")

	assert.Equal(t, []string{"ibu", "ounces",
		"style_American IPA", "style_American Pale Ale (APA)",
		"style_Oatmeal Stout", "style_Saison / Farmhouse Ale"}, res.FeatureNames)
	assert.Contains(t, []interface{}{3, 5}, res.Search.BestParams["rfreg__n_estimators"])
	assert.Len(t, res.Importances, 5)
	assert.Equal(t, 2, res.Search.CVResults.NCandidates())

	report := out.String()
	for _, want := range []string{
		"Beers: dtypes and null counts",
		"Top 10 style values",
		"0 nulls left",
		"Encoded features",
		"style_Saison / Farmhouse Ale",
		"rank_test_score",
		"Pipeline(steps=[('scaler', StandardScaler()), ('rfreg', RandomForestRegressor(",
		"Held-out score",
		"linear baseline",
	} {
		assert.Contains(t, report, want)
	}

	_, err = os.Stat(cfg.Report.Plot)
	assert.NoError(t, err)

	var loaded pipeline.Pipeline
	require.NoError(t, model.LoadModel(&loaded, cfg.Report.ModelOut))
	_, err = loaded.Predict(res.Split.XTest)
	assert.NoError(t, err)

	s, err := store.New(cfg.Store.Path)
	require.NoError(t, err)
	defer s.Close()
	run, err := s.GetRun(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "craft-cans", run.Dataset)
	assert.InDelta(t, res.TestR2, run.TestR2, 1e-12)
	assert.Equal(t, 14, run.TestRows)
}

func TestWalkthrough_Benchmark(t *testing.T) {
	cfg := testConfig(t)
	cfg.Model.NEstimatorsGrid = []int{5}

	var out bytes.Buffer
	w := NewWalkthrough(cfg, &out, quietLogs())
	res, err := w.Benchmark(context.Background(), "friedman1", 120, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 30, len(res.Split.TestIndices))
	assert.Greater(t, res.TestR2, 0.0)
	assert.Greater(t, res.BaselineR2, 0.3, "friedman1 is mostly linear in x3 and x4")
	assert.Len(t, res.Importances, 5)
	assert.Contains(t, out.String(), "Friedman")

	_, err = w.Benchmark(context.Background(), "boston", 120, 0.5)
	assert.Error(t, err)
}

func TestWalkthrough_Errors(t *testing.T) {
	t.Run("missing archive", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Data.Archive = filepath.Join(t.TempDir(), "absent.zip")
		_, err := NewWalkthrough(cfg, &bytes.Buffer{}, quietLogs()).Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "absent.zip")
	})

	t.Run("cancelled", func(t *testing.T) {
		cfg := testConfig(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewWalkthrough(cfg, &bytes.Buffer{}, quietLogs()).Run(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	})

	t.Run("unknown target", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Model.Target = "rating"
		_, err := NewWalkthrough(cfg, &bytes.Buffer{}, quietLogs()).Run(context.Background())
		require.Error(t, err)
	})
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "craftcans", RootCmd.Use)
	assert.NotEmpty(t, RootCmd.Long)

	found := make(map[string]bool)
	for _, c := range RootCmd.Commands() {
		found[c.Name()] = true
	}
	for _, name := range []string{"run", "inspect", "benchmark", "history"} {
		assert.True(t, found[name], "missing subcommand %s", name)
	}
	for _, name := range []string{"config", "log-level", "store"} {
		assert.NotNil(t, RootCmd.PersistentFlags().Lookup(name), "missing flag --%s", name)
	}
}

func TestCommands_RunThenHistory(t *testing.T) {
	t.Cleanup(func() { errors.SetZerologWarnFunc(nil) })
	logs, logBuf := log.NewTestLoggerProvider(log.LevelInfo)
	prev := loggers
	loggers = logs
	t.Cleanup(func() { loggers = prev })
	dir := t.TempDir()
	archive := writeArchive(t, dir)
	db := filepath.Join(dir, "runs.db")

	execute := func(args ...string) string {
		var out, stderr bytes.Buffer
		RootCmd.SetOut(&out)
		RootCmd.SetErr(&stderr)
		RootCmd.SetArgs(args)
		require.NoError(t, RootCmd.ExecuteContext(context.Background()), stderr.String())
		return out.String()
	}

	out := execute("inspect", "--archive", archive, "--data-dir", filepath.Join(dir, "data"))
	assert.Contains(t, out, "Breweries: head")
	assert.NotContains(t, out, "Held-out score")

	out = execute("run", "--archive", archive, "--data-dir", filepath.Join(dir, "data"),
		"--cv", "3", "--grid", "3,4", "--n-jobs", "1", "--store", db, "--log-level", "warn")
	assert.Contains(t, out, "param_rfreg__n_estimators")
	assert.Contains(t, out, "recorded in "+db)
	assert.Contains(t, logBuf.String(), "run recorded")

	out = execute("history", "--store", db)
	assert.Contains(t, out, "craft-cans")
	assert.Contains(t, out, "rfreg__n_estimators")
}
