// Package model loads the regression forest quality model and turns feature vectors into scores.
//
// A model is a forest of binary regression trees stored as gzip-compressed JSON.
// The blob is verified against a SHA-256 hash before it is decoded, and its
// feature list must match the extraction schema exactly. Once loaded a Model is
// immutable and safe for concurrent use.
package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"go-fingerprint-quality/internal/analyzer"
	apperrors "go-fingerprint-quality/internal/errors"
	"go-fingerprint-quality/pkg/models"

	"github.com/klauspost/compress/gzip"
)

// Score bounds
const (
	MinScore = 0
	MaxScore = 100
)

type node struct {
	Leaf        bool    `json:"leaf,omitempty"`
	Value       float64 `json:"value,omitempty"`
	Feature     int     `json:"feature,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
	Left        int     `json:"left,omitempty"`
	Right       int     `json:"right,omitempty"`
	MissingLeft bool    `json:"missing_left,omitempty"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

type document struct {
	Name          string   `json:"name"`
	Trainer       string   `json:"trainer"`
	Description   string   `json:"description"`
	Version       string   `json:"version"`
	SchemaVersion string   `json:"schema_version"`
	FeatureIDs    []string `json:"feature_ids"`
	Scale         float64  `json:"scale"`
	Offset        float64  `json:"offset"`
	Trees         []tree   `json:"trees"`
}

// Model is a loaded, verified tree ensemble
type Model struct {
	info  Info
	trees []tree
}

// Load verifies blob against the schema's expected hash and decodes it
func Load(blob []byte, schema analyzer.Schema) (*Model, error) {
	return load(blob, schema, schema.ExpectedModelHash, Info{path: "embedded"})
}

// Hash returns the hex SHA-256 of blob
func Hash(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

func load(blob []byte, schema analyzer.Schema, expectedHash string, meta Info) (*Model, error) {
	if len(blob) == 0 {
		return nil, apperrors.NewModelLoadError("model blob is empty", nil)
	}
	hash := Hash(blob)
	if expectedHash != "" && hash != expectedHash {
		return nil, apperrors.NewModelHashMismatchError(
			fmt.Sprintf("model hash %s does not match expected %s", hash, expectedHash), nil)
	}

	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, apperrors.NewModelLoadError("model blob is not gzip data", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, apperrors.NewModelLoadError("failed to decompress model", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.NewModelLoadError("failed to decode model", err)
	}

	if doc.SchemaVersion != schema.Version {
		return nil, apperrors.NewSchemaMismatchError(
			fmt.Sprintf("model schema version %q, extraction schema %q", doc.SchemaVersion, schema.Version), nil)
	}
	if err := sameFeatures(doc.FeatureIDs, schema.FeatureIDs()); err != nil {
		return nil, err
	}
	if err := validateTrees(doc.Trees, len(doc.FeatureIDs)); err != nil {
		return nil, apperrors.NewModelLoadError("invalid model structure", err)
	}
	if doc.Scale == 0 || math.IsNaN(doc.Scale) || math.IsInf(doc.Scale, 0) || math.IsNaN(doc.Offset) || math.IsInf(doc.Offset, 0) {
		return nil, apperrors.NewModelLoadError("invalid score normalisation", nil)
	}

	info := meta
	info.hash = hash
	info.schemaVersion = doc.SchemaVersion
	info.featureIDs = append([]string(nil), doc.FeatureIDs...)
	info.scale, info.offset = doc.Scale, doc.Offset
	if info.name == "" {
		info.name = doc.Name
	}
	if info.trainer == "" {
		info.trainer = doc.Trainer
	}
	if info.description == "" {
		info.description = doc.Description
	}
	if info.version == "" {
		info.version = doc.Version
	}
	return &Model{info: info, trees: doc.Trees}, nil
}

func sameFeatures(got, want []string) error {
	if len(got) != len(want) {
		return apperrors.NewSchemaMismatchError(
			fmt.Sprintf("expected %d features, got %d", len(want), len(got)), nil)
	}
	for i := range want {
		if got[i] != want[i] {
			return apperrors.NewSchemaMismatchError(
				fmt.Sprintf("feature %d is %q, expected %q", i, got[i], want[i]), nil)
		}
	}
	return nil
}

// validateTrees checks every split points forward to an existing node, which also rules out cycles
func validateTrees(trees []tree, features int) error {
	if len(trees) == 0 {
		return fmt.Errorf("model has no trees")
	}
	for t, tr := range trees {
		if len(tr.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", t)
		}
		for i, n := range tr.Nodes {
			if n.Leaf {
				if math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
					return fmt.Errorf("tree %d node %d has a non-finite leaf", t, i)
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= features {
				return fmt.Errorf("tree %d node %d uses unknown feature %d", t, i, n.Feature)
			}
			if n.Left <= i || n.Right <= i || n.Left >= len(tr.Nodes) || n.Right >= len(tr.Nodes) {
				return fmt.Errorf("tree %d node %d has invalid children", t, i)
			}
			if math.IsNaN(n.Threshold) {
				return fmt.Errorf("tree %d node %d has a NaN threshold", t, i)
			}
		}
	}
	return nil
}

// Info returns the model metadata
func (m *Model) Info() Info {
	return m.info
}

// FeatureIDs returns the ordered feature identifiers the model expects
func (m *Model) FeatureIDs() []string {
	return append([]string(nil), m.info.featureIDs...)
}

// Predict returns the raw ensemble output for vec. vec must list exactly the
// model's features in order; unavailable features follow each split's missing branch.
func (m *Model) Predict(vec models.FeatureVector) (float64, error) {
	if err := sameFeatures(vec.IDs(), m.info.featureIDs); err != nil {
		return 0, err
	}
	for _, r := range vec {
		if r.Available && (math.IsNaN(r.Value) || math.IsInf(r.Value, 0)) {
			return 0, apperrors.NewNumericalInstabilityError(fmt.Sprintf("feature %s is not finite", r.ID), nil)
		}
	}

	sum := 0.0
	for _, tr := range m.trees {
		sum += tr.evaluate(vec)
	}
	raw := sum / float64(len(m.trees))
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, apperrors.NewNumericalInstabilityError("model output is not finite", nil)
	}
	return raw, nil
}

func (t tree) evaluate(vec models.FeatureVector) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		f := vec[n.Feature]
		switch {
		case !f.Available:
			if n.MissingLeft {
				i = n.Left
			} else {
				i = n.Right
			}
		case f.Value <= n.Threshold:
			i = n.Left
		default:
			i = n.Right
		}
	}
}

// Normalize maps a raw model output onto the integer score range
func (m *Model) Normalize(raw float64) int {
	v := math.Round(raw*m.info.scale + m.info.offset)
	return int(math.Max(MinScore, math.Min(MaxScore, v)))
}

// Score predicts and normalises in one step
func (m *Model) Score(vec models.FeatureVector) (score int, raw float64, err error) {
	raw, err = m.Predict(vec)
	if err != nil {
		return 0, 0, err
	}
	return m.Normalize(raw), raw, nil
}
