package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go-fingerprint-quality/internal/analyzer"
	apperrors "go-fingerprint-quality/internal/errors"

	"github.com/go-ini/ini"
)

// Info describes a loaded model
type Info struct {
	name          string
	trainer       string
	description   string
	version       string
	path          string
	hash          string
	schemaVersion string
	featureIDs    []string
	scale         float64
	offset        float64
}

func (i Info) Name() string          { return i.name }
func (i Info) Trainer() string       { return i.trainer }
func (i Info) Description() string   { return i.description }
func (i Info) Version() string       { return i.version }
func (i Info) Path() string          { return i.path }
func (i Info) Hash() string          { return i.hash }
func (i Info) SchemaVersion() string { return i.schemaVersion }
func (i Info) Scale() float64        { return i.scale }
func (i Info) Offset() float64       { return i.offset }

// FeatureCount is the number of features the model consumes
func (i Info) FeatureCount() int {
	return len(i.featureIDs)
}

// Info file keys
const (
	keyName        = "Name"
	keyTrainer     = "Trainer"
	keyDescription = "Description"
	keyVersion     = "Version"
	keyPath        = "Path"
	keyHash        = "Hash"
)

// ReadInfoFile parses a "key = value" model description. Path and Hash are required;
// a relative Path is resolved against the directory of the info file.
func ReadInfoFile(infoPath string) (Info, error) {
	cfg, err := ini.Load(infoPath)
	if err != nil {
		return Info{}, apperrors.NewModelLoadError(fmt.Sprintf("failed to read model info %s", infoPath), err)
	}
	sec := cfg.Section(ini.DefaultSection)

	info := Info{
		name:        sec.Key(keyName).String(),
		trainer:     sec.Key(keyTrainer).String(),
		description: sec.Key(keyDescription).String(),
		version:     sec.Key(keyVersion).String(),
		path:        sec.Key(keyPath).String(),
		hash:        strings.ToLower(sec.Key(keyHash).String()),
	}
	if info.path == "" {
		return Info{}, apperrors.NewModelLoadError(fmt.Sprintf("model info %s has no %s", infoPath, keyPath), nil)
	}
	if info.hash == "" {
		return Info{}, apperrors.NewModelLoadError(fmt.Sprintf("model info %s has no %s", infoPath, keyHash), nil)
	}
	if !filepath.IsAbs(info.path) {
		info.path = filepath.Join(filepath.Dir(infoPath), info.path)
	}
	return info, nil
}

// LoadFromInfoFile loads the model described by an info file and verifies it
// against the hash the file declares.
func LoadFromInfoFile(infoPath string, schema analyzer.Schema) (*Model, error) {
	info, err := ReadInfoFile(infoPath)
	if err != nil {
		return nil, err
	}
	blob, err := os.ReadFile(info.path)
	if err != nil {
		return nil, apperrors.NewModelLoadError(fmt.Sprintf("failed to read model %s", info.path), err)
	}
	return load(blob, schema, info.hash, info)
}
