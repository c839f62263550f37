package store

import (
	"testing"
	"time"

	"github.com/YuminosukeSato/craftcans/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.CreateSchema())
	return s
}

func TestInsertAndGetRun(t *testing.T) {
	s := newStore(t)

	run := &Run{
		Dataset:     "craft-cans",
		BestParams:  map[string]interface{}{"rfreg__n_estimators": 20},
		BestCVScore: 0.61,
		TestR2:      0.58,
		TestMSE:     0.0001,
		TrainRows:   1762,
		TestRows:    588,
		NFeatures:   101,
		Duration:    1500 * time.Millisecond,
	}
	id, err := s.InsertRun(run)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err, "generated id should be a UUID")

	got, err := s.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, "craft-cans", got.Dataset)
	// JSON経由なので数値はfloat64になる
	assert.Equal(t, 20.0, got.BestParams["rfreg__n_estimators"])
	assert.Equal(t, 0.61, got.BestCVScore)
	assert.Equal(t, 588, got.TestRows)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.True(t, got.CreatedAt.Equal(run.CreatedAt))

	_, err = s.GetRun("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListRuns(t *testing.T) {
	s := newStore(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.InsertRun(&Run{
			Dataset:    "friedman1",
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
			BestParams: map[string]interface{}{},
			TestR2:     float64(i),
		})
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, 2.0, runs[0].TestR2, "newest first")

	limited, err := s.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestNoSchema_ReturnsErrNotInitialized(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.ListRuns(10)
	assert.True(t, errors.Is(err, ErrNotInitialized), "got %v", err)

	_, err = s.InsertRun(&Run{Dataset: "x"})
	assert.True(t, errors.Is(err, ErrNotInitialized), "got %v", err)
}
