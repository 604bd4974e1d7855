package analyzer

import (
	"fmt"
	"sort"
)

// SchemaVersion identifies the feature vector layout the bundled model expects
const SchemaVersion = "1.0"

// ExpectedModelHash is the SHA-256 of the embedded model blob
const ExpectedModelHash = "141854a79f7bf8a0c7587eaa8dc98a14f1aea31670de5230969e5889e8a3c065"

// registered modules in schema order
var registered = []FeatureModule{
	frequencyDomainModule{},
	minutiaeCountModule{},
	minutiaeQualityModule{},
	regionOfInterestModule{},
	localClarityModule{},
	contrastModule{},
	orientationCertaintyModule{},
	orientationFlowModule{},
	orientationMapModule{},
	ridgeValleyUniformityModule{},
}

// Modules returns the built-in feature modules in schema order
func Modules() []FeatureModule {
	out := make([]FeatureModule, len(registered))
	copy(out, registered)
	return out
}

// ModuleByName looks up a built-in module
func ModuleByName(name string) (FeatureModule, bool) {
	for _, m := range registered {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// Schema is the versioned, ordered contract between feature extraction and the model
type Schema struct {
	Version           string
	ExpectedModelHash string
	// Modules in output order
	Modules []FeatureModule
	// Required names the modules whose failure aborts the whole computation
	Required map[string]bool
}

// DefaultSchema returns the schema of the bundled model
func DefaultSchema() Schema {
	return Schema{
		Version:           SchemaVersion,
		ExpectedModelHash: ExpectedModelHash,
		Modules:           Modules(),
		Required: map[string]bool{
			ModuleContrast:         true,
			ModuleRegionOfInterest: true,
			ModuleMinutiaeCount:    true,
		},
	}
}

// WithModule returns a copy with the module of the same name replaced by m
func (s Schema) WithModule(m FeatureModule) Schema {
	mods := make([]FeatureModule, len(s.Modules))
	for i, cur := range s.Modules {
		if cur.Name() == m.Name() {
			mods[i] = m
		} else {
			mods[i] = cur
		}
	}
	s.Modules = mods
	return s
}

// FeatureIDs returns every feature identifier in schema order
func (s Schema) FeatureIDs() []string {
	var ids []string
	for _, m := range s.Modules {
		ids = append(ids, m.FeatureIDs()...)
	}
	return ids
}

// IsRequired reports whether a module's failure is fatal
func (s Schema) IsRequired(name string) bool {
	return s.Required[name]
}

// Module finds a module by name
func (s Schema) Module(name string) (FeatureModule, bool) {
	for _, m := range s.Modules {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// Select returns the modules named in names, in schema order. A nil or empty
// names selects every module.
func (s Schema) Select(names []string) ([]FeatureModule, error) {
	if len(names) == 0 {
		return s.Modules, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := s.Module(n); !ok {
			return nil, fmt.Errorf("unknown feature module %q", n)
		}
		want[n] = true
	}
	var out []FeatureModule
	for _, m := range s.Modules {
		if want[m.Name()] {
			out = append(out, m)
		}
	}
	return out, nil
}

// SpeedGroups returns the distinct speed group names, sorted
func (s Schema) SpeedGroups() []string {
	seen := make(map[string]bool)
	var groups []string
	for _, m := range s.Modules {
		if !seen[m.SpeedGroup()] {
			seen[m.SpeedGroup()] = true
			groups = append(groups, m.SpeedGroup())
		}
	}
	sort.Strings(groups)
	return groups
}
