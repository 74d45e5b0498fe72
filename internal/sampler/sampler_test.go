package sampler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/landslide-cli/internal/geo"
	"github.com/sells-group/landslide-cli/internal/model"
)

// countingOracle records how many candidates were checked.
type countingOracle struct {
	inner geo.Oracle
	calls int
}

func (c *countingOracle) TooClose(p model.GeoPoint) bool {
	c.calls++
	return c.inner.TooClose(p)
}

func (c *countingOracle) Threshold() float64 { return c.inner.Threshold() }

// rejectAll rejects every candidate with a 1km threshold.
type rejectAll struct{}

func (rejectAll) TooClose(model.GeoPoint) bool { return true }

func (rejectAll) Threshold() float64 { return 1000 }

func kathmanduOracle(t *testing.T, meters float64) (*geo.LinearOracle, []model.GeoPoint) {
	t.Helper()
	refs := []model.GeoPoint{{Latitude: 27.70, Longitude: 85.30}}
	o, err := geo.NewLinearOracle(refs, meters)
	require.NoError(t, err)
	return o, refs
}

func TestSample_ScenarioKathmanduReproducible(t *testing.T) {
	oracle, refs := kathmanduOracle(t, 100_000)
	cfg := Config{Region: geo.NepalBBox, MinDistance: 100_000, Target: 5, Seed: 10}

	first, err := Sample(cfg, oracle)
	require.NoError(t, err)
	require.Len(t, first.Points, 5)

	// Longitude is drawn before latitude from PCG(10, 10).
	want := []model.GeoPoint{
		{Latitude: 28.411413090195218, Longitude: 83.7724544208976},
		{Latitude: 27.93629532324575, Longitude: 82.30448627844918},
		{Latitude: 26.495145876769094, Longitude: 82.85061447204835},
		{Latitude: 26.97593185867148, Longitude: 87.97711309767114},
		{Latitude: 26.58396282727484, Longitude: 85.8403522487171},
	}
	for i, p := range first.Points {
		assert.InDelta(t, want[i].Latitude, p.Latitude, 1e-9, "point %d latitude", i)
		assert.InDelta(t, want[i].Longitude, p.Longitude, 1e-9, "point %d longitude", i)
	}
	assert.Equal(t, 5, first.Candidates)

	for i := 0; i < 3; i++ {
		again, err := Sample(cfg, oracle)
		require.NoError(t, err)
		assert.Equal(t, first.Points, again.Points, "run %d", i)
	}

	for _, p := range first.Points {
		assert.True(t, geo.NepalBBox.Contains(p), "point %s outside region", p)
		assert.Greater(t, geo.Haversine(p, refs[0]), 100_000.0)
	}
}

func TestSample_DifferentSeedsDiffer(t *testing.T) {
	oracle, _ := kathmanduOracle(t, 100_000)
	a, err := Sample(Config{Region: geo.NepalBBox, MinDistance: 100_000, Target: 5, Seed: 1}, oracle)
	require.NoError(t, err)
	b, err := Sample(Config{Region: geo.NepalBBox, MinDistance: 100_000, Target: 5, Seed: 2}, oracle)
	require.NoError(t, err)
	assert.NotEqual(t, a.Points, b.Points)
}

func TestSample_Invariants(t *testing.T) {
	refs := []model.GeoPoint{
		{Latitude: 27.70, Longitude: 85.30},
		{Latitude: 28.21, Longitude: 83.99},
		{Latitude: 29.30, Longitude: 81.20},
		{Latitude: 26.80, Longitude: 87.30},
	}
	const minDist = 25_000
	oracle, err := geo.NewIndexedOracle(refs, minDist)
	require.NoError(t, err)

	res, err := Sample(Config{Region: geo.NepalBBox, MinDistance: minDist, Target: 500, Seed: 42}, oracle)
	require.NoError(t, err)
	require.Len(t, res.Points, 500)
	assert.GreaterOrEqual(t, res.Candidates, 500)
	assert.Equal(t, res.Candidates, len(res.Points)+res.Rejected+res.Duplicates)

	seen := make(map[model.GeoPoint]bool)
	for _, p := range res.Points {
		assert.True(t, geo.NepalBBox.Contains(p))
		for _, r := range refs {
			assert.GreaterOrEqual(t, geo.Haversine(p, r), float64(minDist))
		}
		assert.False(t, seen[p], "duplicate point %s", p)
		seen[p] = true
	}
}

func TestSample_EmptyReferenceSetAcceptsFirstDraws(t *testing.T) {
	oracle, err := geo.NewLinearOracle(nil, 1000)
	require.NoError(t, err)

	res, err := Sample(Config{Region: geo.NepalBBox, MinDistance: 1000, Target: 10, Seed: 3}, oracle)
	require.NoError(t, err)
	assert.Len(t, res.Points, 10)
	assert.Equal(t, 10, res.Candidates)
	assert.Equal(t, 0, res.Rejected)
	assert.Equal(t, 1, res.Batches)
}

func TestSample_InsufficientSamples(t *testing.T) {
	oracle := &countingOracle{inner: rejectAll{}}
	cfg := Config{
		Region:          geo.NepalBBox,
		MinDistance:     1000,
		Target:          4,
		Seed:            1,
		BatchMultiplier: 3,
		MaxBatches:      2,
	}

	res, err := Sample(cfg, oracle)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientSamples))
	assert.Contains(t, err.Error(), "accepted 0 of 4")

	require.NotNil(t, res)
	assert.Empty(t, res.Points)
	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, 24, res.Candidates)
	assert.Equal(t, 24, oracle.calls)
}

func TestSample_ExpandsBatchesWhenShort(t *testing.T) {
	// A 400km exclusion around Kathmandu removes most of the region, so a
	// single small batch cannot satisfy the target.
	oracle, _ := kathmanduOracle(t, 400_000)
	cfg := Config{
		Region:          geo.NepalBBox,
		MinDistance:     400_000,
		Target:          20,
		Seed:            5,
		BatchMultiplier: 1,
		MaxBatches:      200,
	}

	res, err := Sample(cfg, oracle)
	require.NoError(t, err)
	assert.Len(t, res.Points, 20)
	assert.Greater(t, res.Batches, 1)
}

func TestSample_OracleThresholdMustMatch(t *testing.T) {
	refs := []model.GeoPoint{{Latitude: 27.70, Longitude: 85.30}}
	oracle, err := geo.NewLinearOracle(refs, 1)
	require.NoError(t, err)
	counted := &countingOracle{inner: oracle}

	res, err := Sample(Config{Region: geo.NepalBBox, MinDistance: 300_000, Target: 50, Seed: 10}, counted)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrThresholdMismatch))
	assert.Contains(t, err.Error(), "oracle excludes 1 m, config wants 300000 m")
	assert.Nil(t, res)
	assert.Equal(t, 0, counted.calls)

	indexed, err := geo.NewIndexedOracle(refs, 300_000)
	require.NoError(t, err)
	res, err = Sample(Config{Region: geo.NepalBBox, MinDistance: 300_000, Target: 50, Seed: 10}, indexed)
	require.NoError(t, err)
	for _, p := range res.Points {
		assert.Greater(t, geo.Haversine(p, refs[0]), 300_000.0)
	}
}

func TestSample_InvalidRegionBeforeSampling(t *testing.T) {
	oracle := &countingOracle{inner: rejectAll{}}
	_, err := Sample(Config{
		Region:      geo.BBox{MinLng: 88, MinLat: 26, MaxLng: 80, MaxLat: 30},
		MinDistance: 1000,
		Target:      5,
	}, oracle)
	require.Error(t, err)
	assert.True(t, errors.Is(err, geo.ErrInvalidBoundingBox))
	assert.Equal(t, 0, oracle.calls)
}

func TestSample_InvalidArguments(t *testing.T) {
	oracle, _ := kathmanduOracle(t, 1000)

	tests := []struct {
		name string
		cfg  Config
		msg  string
	}{
		{name: "zero target", cfg: Config{Region: geo.NepalBBox, MinDistance: 1000}, msg: "target must be positive"},
		{name: "zero distance", cfg: Config{Region: geo.NepalBBox, Target: 1}, msg: "min distance must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sample(tt.cfg, oracle)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	_, err := Sample(Config{Region: geo.NepalBBox, MinDistance: 1000, Target: 1}, nil)
	require.Error(t, err)
}

func TestResult_Records(t *testing.T) {
	res := &Result{Points: []model.GeoPoint{{Latitude: 28, Longitude: 84}, {Latitude: 29, Longitude: 82}}}
	recs := res.Records()
	require.Len(t, recs, 2)
	for i, r := range recs {
		assert.Equal(t, model.LabelAbsent, r.Label)
		assert.Equal(t, model.TriggerNone, r.Trigger)
		assert.Equal(t, res.Points[i], r.Point)
	}
}
