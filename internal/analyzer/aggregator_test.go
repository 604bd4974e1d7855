package analyzer

import (
	"errors"
	"math"
	"testing"

	apperrors "go-fingerprint-quality/internal/errors"
	"go-fingerprint-quality/internal/testutil"
	"go-fingerprint-quality/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubModule stands in for a built-in module under the same name
type stubModule struct {
	FeatureModule
	values []float64
	err    error
	panics bool
}

func (s stubModule) Compute(*Analysis) ([]float64, error) {
	if s.panics {
		panic("boom")
	}
	return s.values, s.err
}

func replace(name string, stub stubModule) Schema {
	m, _ := ModuleByName(name)
	stub.FeatureModule = m
	return DefaultSchema().WithModule(stub)
}

func TestSchema_FeatureIDs(t *testing.T) {
	schema := DefaultSchema()
	ids := schema.FeatureIDs()

	assert.Len(t, ids, 71)
	assert.Equal(t, "FDA_Bin10_0", ids[0])
	assert.Equal(t, "RVUP_Bin10_StdDev", ids[len(ids)-1])

	seen := make(map[string]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate feature id %s", id)
		seen[id] = true
	}

	assert.True(t, schema.IsRequired(ModuleContrast))
	assert.True(t, schema.IsRequired(ModuleRegionOfInterest))
	assert.True(t, schema.IsRequired(ModuleMinutiaeCount))
	assert.False(t, schema.IsRequired(ModuleOrientationCertainty))
}

func TestSchema_Select(t *testing.T) {
	schema := DefaultSchema()

	mods, err := schema.Select([]string{ModuleOrientationCertainty, ModuleContrast})
	require.NoError(t, err)
	require.Len(t, mods, 2)
	// schema order, not request order
	assert.Equal(t, ModuleContrast, mods[0].Name())
	assert.Equal(t, ModuleOrientationCertainty, mods[1].Name())

	_, err = schema.Select([]string{"NoSuchModule"})
	assert.Error(t, err)
}

func TestAggregator_SyntheticPrint(t *testing.T) {
	img := testutil.Fingerprint(400, 480)
	data, err := NewAggregator(DefaultSchema()).Run(img, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, DefaultSchema().FeatureIDs(), data.Vector.IDs())
	for _, name := range []string{ModuleFrequencyDomain, ModuleLocalClarity, ModuleOrientationCertainty, ModuleRidgeValleyUniformity, ModuleOrientationMap} {
		assert.NotContains(t, data.ModuleErrors, name)
	}

	mu, ok := data.Vector.Value("Mu")
	require.True(t, ok)
	assert.InDelta(t, 160, mu, 60)

	sigma, _ := data.Vector.Value("Sigma")
	assert.Greater(t, sigma, 10.0)

	roiPixels, _ := data.Vector.Value("ImgProcROIArea_Pixels")
	assert.Greater(t, roiPixels, 50000.0)

	ocl, ok := data.Vector.Value("OCL_Bin10_Mean")
	require.True(t, ok)
	assert.Greater(t, ocl, 0.5)

	for _, r := range data.Vector {
		assert.False(t, math.IsNaN(r.Value) || math.IsInf(r.Value, 0), "feature %s is not finite", r.ID)
	}
	for _, group := range DefaultSchema().SpeedGroups() {
		_, ok := data.ModuleSpeeds[group]
		assert.True(t, ok, "missing speed group %s", group)
	}
	assert.Len(t, data.FeatureSpeeds, 71)
}

func TestAggregator_Deterministic(t *testing.T) {
	img := testutil.Fingerprint(300, 360)
	ag := NewAggregator(DefaultSchema())

	parallel, err := ag.Run(img, DefaultOptions().WithWorkers(8))
	require.NoError(t, err)
	sequential, err := ag.Run(img, SequentialOptions())
	require.NoError(t, err)

	assert.Equal(t, sequential.Vector.Values(), parallel.Vector.Values())
	assert.Equal(t, sequential.Vector.Mask(), parallel.Vector.Mask())
}

func TestAggregator_BlankImage(t *testing.T) {
	data, err := NewAggregator(DefaultSchema()).Run(testutil.Blank(300, 300, 255), DefaultOptions())
	require.NoError(t, err)

	for _, id := range []string{"MMB", "Mu", "Sigma", "ImgProcROIArea_Pixels", "Minutiae_Count"} {
		_, ok := data.Vector.Value(id)
		assert.True(t, ok, "required feature %s should be available", id)
	}
	for _, id := range []string{"OCL_Bin10_Mean", "LCS_Bin10_Mean", "FDA_Bin10_Mean", "MinutiaeQuality_Mu2"} {
		rec, ok := data.Vector.Get(id)
		require.True(t, ok)
		assert.False(t, rec.Available, "feature %s should be unavailable", id)
		assert.Equal(t, models.UnavailableValue, rec.Value)
	}
	assert.Contains(t, data.ModuleErrors, ModuleOrientationCertainty)

	count, _ := data.Vector.Value("Minutiae_Count")
	assert.Zero(t, count)
}

func TestAggregator_RequiredFailure(t *testing.T) {
	schema := replace(ModuleContrast, stubModule{err: errors.New("sensor fault")})
	_, err := NewAggregator(schema).Run(testutil.Fingerprint(300, 300), DefaultOptions())

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeFeatureExtraction))
	assert.Contains(t, err.Error(), ModuleContrast)
}

func TestAggregator_RequiredNonFinite(t *testing.T) {
	schema := replace(ModuleContrast, stubModule{values: []float64{1, math.NaN(), 3}})
	_, err := NewAggregator(schema).Run(testutil.Fingerprint(300, 300), DefaultOptions())

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNumericalInstability))
}

func TestAggregator_OptionalFailureContained(t *testing.T) {
	tests := []struct {
		name string
		stub stubModule
	}{
		{"error", stubModule{err: errors.New("broken")}},
		{"panic", stubModule{panics: true}},
		{"infinite", stubModule{values: append(make([]float64, 11), math.Inf(1))}},
		{"short", stubModule{values: []float64{1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := replace(ModuleLocalClarity, tt.stub)
			data, err := NewAggregator(schema).Run(testutil.Fingerprint(300, 300), DefaultOptions())
			require.NoError(t, err)

			assert.Contains(t, data.ModuleErrors, ModuleLocalClarity)
			rec, _ := data.Vector.Get("LCS_Bin10_Mean")
			assert.False(t, rec.Available)
			_, ok := data.Vector.Value("OCL_Bin10_Mean")
			assert.True(t, ok, "other modules must be unaffected")
			assert.Len(t, data.Vector, 71)
		})
	}
}

func TestAggregator_ModuleSubset(t *testing.T) {
	opts := DefaultOptions().WithModules(ModuleContrast, ModuleMinutiaeCount)
	data, err := NewAggregator(DefaultSchema()).Run(testutil.Fingerprint(300, 300), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"Minutiae_Count", "Minutiae_CountCOMRect200x200", "MMB", "Mu", "Sigma"}, data.Vector.IDs())

	_, err = NewAggregator(DefaultSchema()).Run(testutil.Fingerprint(300, 300), opts.WithModules("Bogus"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestAggregator_TrimWhiteFrame(t *testing.T) {
	img := testutil.Framed(testutil.Fingerprint(300, 300), 40)
	data, err := NewAggregator(DefaultSchema()).Run(img, DefaultOptions().WithWhiteFrameTrim())
	require.NoError(t, err)
	assert.Len(t, data.Vector, 71)

	_, err = NewAggregator(DefaultSchema()).Run(testutil.Blank(300, 300, 255), DefaultOptions().WithWhiteFrameTrim())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidImage))
}

func TestAggregator_NilImage(t *testing.T) {
	_, err := NewAggregator(DefaultSchema()).Run(nil, DefaultOptions())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidImage))
}

func TestNativeQualityValue(t *testing.T) {
	tests := []struct {
		id    string
		value float64
		want  uint8
		ok    bool
	}{
		{"Mu", 255, 100, true},
		{"Mu", 0, 0, true},
		{"OCL_Bin10_Mean", 0.5, 50, true},
		{"Minutiae_Count", 150, 100, true},
		{"Minutiae_Count", 42, 42, true},
		{"RVUP_Bin10_Mean", 1, 50, true},
		{"OCL_Bin10_3", 4, 0, false},
		{"Mu", math.NaN(), 0, false},
	}
	for _, tt := range tests {
		got, ok := NativeQualityValue(tt.id, tt.value)
		assert.Equal(t, tt.ok, ok, tt.id)
		assert.Equal(t, tt.want, got, "%s=%v", tt.id, tt.value)
	}
}
