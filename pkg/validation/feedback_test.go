package validation

import (
	"reflect"
	"testing"

	"go-fingerprint-quality/internal/analyzer"
	"go-fingerprint-quality/internal/testutil"
	"go-fingerprint-quality/pkg/models"
)

func goodVector() models.FeatureVector {
	return models.FeatureVector{
		{ID: featureMu, Value: 140, Available: true},
		{ID: featureSigma, Value: 60, Available: true},
		{ID: featureOCLMean, Value: 0.8, Available: true},
		{ID: featureMinutiaeCount, Value: 42, Available: true},
		{ID: featureROIPixels, Value: 120000, Available: true},
		{ID: featureLCSMean, Value: 0.7, Available: true},
	}
}

func with(vec models.FeatureVector, id string, value float64, available bool) models.FeatureVector {
	out := append(models.FeatureVector(nil), vec...)
	for i := range out {
		if out[i].ID == id {
			out[i].Value = value
			out[i].Available = available
		}
	}
	return out
}

func TestAllIdentifiers(t *testing.T) {
	want := []FeedbackID{
		EmptyImageOrContrastTooLow,
		UniformImage,
		InsufficientRidgeStructure,
		InsufficientMinutiae,
		InsufficientForeground,
		PoorRidgeClarity,
	}
	if got := AllIdentifiers(); !reflect.DeepEqual(got, want) {
		t.Errorf("AllIdentifiers() = %v, want %v", got, want)
	}
}

func TestFeedbackModules(t *testing.T) {
	want := []string{
		analyzer.ModuleMinutiaeCount,
		analyzer.ModuleRegionOfInterest,
		analyzer.ModuleLocalClarity,
		analyzer.ModuleContrast,
		analyzer.ModuleOrientationCertainty,
	}
	if got := FeedbackModules(); !reflect.DeepEqual(got, want) {
		t.Errorf("FeedbackModules() = %v, want %v", got, want)
	}
}

func TestFromFeatures_Rules(t *testing.T) {
	g := NewFeedbackGenerator()

	tests := []struct {
		name string
		vec  models.FeatureVector
		want []FeedbackID
	}{
		{"good print", goodVector(), []FeedbackID{}},
		{"empty image", with(goodVector(), featureMu, 252, true), []FeedbackID{EmptyImageOrContrastTooLow}},
		{"mu on threshold", with(goodVector(), featureMu, 250, true), []FeedbackID{}},
		{"uniform", with(goodVector(), featureSigma, 0.5, true), []FeedbackID{UniformImage}},
		{"weak ridges", with(goodVector(), featureOCLMean, 0.1, true), []FeedbackID{InsufficientRidgeStructure}},
		{"ridges unavailable", with(goodVector(), featureOCLMean, models.UnavailableValue, false), []FeedbackID{InsufficientRidgeStructure}},
		{"few minutiae", with(goodVector(), featureMinutiaeCount, 4, true), []FeedbackID{InsufficientMinutiae}},
		{"small foreground", with(goodVector(), featureROIPixels, 30000, true), []FeedbackID{InsufficientForeground}},
		{"smudged", with(goodVector(), featureLCSMean, 0.1, true), []FeedbackID{PoorRidgeClarity}},
		{"clarity unavailable", with(goodVector(), featureLCSMean, models.UnavailableValue, false), []FeedbackID{}},
		{"missing features are skipped", models.FeatureVector{}, []FeedbackID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IDs(g.FromFeatures(tt.vec))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FromFeatures() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromFeatures_EnumerationOrder(t *testing.T) {
	vec := goodVector()
	vec = with(vec, featureLCSMean, 0.1, true)
	vec = with(vec, featureMu, 255, true)
	vec = with(vec, featureMinutiaeCount, 0, true)

	got := IDs(NewFeedbackGenerator().FromFeatures(vec))
	want := []FeedbackID{EmptyImageOrContrastTooLow, InsufficientMinutiae, PoorRidgeClarity}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FromFeatures() = %v, want %v", got, want)
	}
}

func TestFromFeatures_ItemDetails(t *testing.T) {
	items := NewFeedbackGenerator().FromFeatures(with(goodVector(), featureROIPixels, 1234, true))
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	it := items[0]
	if it.Value != 1234 || it.Threshold != 50000 || !it.Available {
		t.Errorf("unexpected item %+v", it)
	}
	if it.Message == "" || it.Severity != "error" {
		t.Errorf("unexpected message or severity %+v", it)
	}
	if !HasCriticalIssues(items) {
		t.Error("expected a critical issue")
	}
}

func TestNewFeedbackGeneratorWithThresholds(t *testing.T) {
	th := DefaultFeedbackThresholds()
	th.MinMinutiae = 50
	g := NewFeedbackGeneratorWithThresholds(th)

	if g.Thresholds().MinMinutiae != 50 {
		t.Errorf("expected custom MinMinutiae 50, got %f", g.Thresholds().MinMinutiae)
	}
	got := IDs(g.FromFeatures(goodVector()))
	if !reflect.DeepEqual(got, []FeedbackID{InsufficientMinutiae}) {
		t.Errorf("FromFeatures() = %v, want [InsufficientMinutiae]", got)
	}
}

func TestFromImage_Blank(t *testing.T) {
	agg := analyzer.NewAggregator(analyzer.DefaultSchema())
	items, err := NewFeedbackGenerator().FromImage(agg, testutil.Blank(300, 300, 255), analyzer.DefaultOptions())
	if err != nil {
		t.Fatalf("FromImage() error = %v", err)
	}

	got := make(map[FeedbackID]bool)
	for _, id := range IDs(items) {
		got[id] = true
	}
	for _, id := range []FeedbackID{EmptyImageOrContrastTooLow, UniformImage, InsufficientRidgeStructure, InsufficientMinutiae} {
		if !got[id] {
			t.Errorf("expected %s for a blank image, got %v", id, IDs(items))
		}
	}
	if got[PoorRidgeClarity] {
		t.Error("clarity should not be reported when it cannot be measured")
	}
}

func TestFromImage_SyntheticPrint(t *testing.T) {
	agg := analyzer.NewAggregator(analyzer.DefaultSchema())
	items, err := NewFeedbackGenerator().FromImage(agg, testutil.Fingerprint(400, 480), analyzer.DefaultOptions())
	if err != nil {
		t.Fatalf("FromImage() error = %v", err)
	}
	for _, it := range items {
		switch it.ID {
		case EmptyImageOrContrastTooLow, UniformImage, InsufficientRidgeStructure, InsufficientForeground:
			t.Errorf("unexpected feedback %s (value %f)", it.ID, it.Value)
		}
	}
}
