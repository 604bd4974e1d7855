package models

import "time"

// UnavailableValue is stored in a FeatureRecord whose module failed
const UnavailableValue = -1.0

// FeatureRecord is one named feature value from one computation
type FeatureRecord struct {
	ID        string        `json:"id"`
	Value     float64       `json:"value"`
	Available bool          `json:"available"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// Unavailable returns the record used for a feature whose module failed
func Unavailable(id string, elapsed time.Duration) FeatureRecord {
	return FeatureRecord{ID: id, Value: UnavailableValue, Elapsed: elapsed}
}

// FeatureVector holds feature records in schema order
type FeatureVector []FeatureRecord

// IDs returns the feature identifiers in vector order
func (v FeatureVector) IDs() []string {
	ids := make([]string, len(v))
	for i, r := range v {
		ids[i] = r.ID
	}
	return ids
}

// Get looks up a record by identifier
func (v FeatureVector) Get(id string) (FeatureRecord, bool) {
	for _, r := range v {
		if r.ID == id {
			return r, true
		}
	}
	return FeatureRecord{}, false
}

// Value returns the value of an available feature
func (v FeatureVector) Value(id string) (float64, bool) {
	r, ok := v.Get(id)
	if !ok || !r.Available {
		return 0, false
	}
	return r.Value, true
}

// Values returns the raw values in vector order, sentinels included
func (v FeatureVector) Values() []float64 {
	out := make([]float64, len(v))
	for i, r := range v {
		out[i] = r.Value
	}
	return out
}

// Mask reports availability in vector order
func (v FeatureVector) Mask() []bool {
	out := make([]bool, len(v))
	for i, r := range v {
		out[i] = r.Available
	}
	return out
}

// Map returns available values keyed by identifier
func (v FeatureVector) Map() map[string]float64 {
	out := make(map[string]float64, len(v))
	for _, r := range v {
		if r.Available {
			out[r.ID] = r.Value
		}
	}
	return out
}

// Without returns a copy with the named feature removed
func (v FeatureVector) Without(id string) FeatureVector {
	out := make(FeatureVector, 0, len(v))
	for _, r := range v {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

// FeatureData is the aggregator output for one image
type FeatureData struct {
	Vector FeatureVector `json:"features"`
	// FeatureSpeeds maps feature id to the elapsed time of the module that produced it
	FeatureSpeeds map[string]time.Duration `json:"feature_speeds"`
	// ModuleSpeeds maps speed group to the summed elapsed time of its modules
	ModuleSpeeds map[string]time.Duration `json:"module_speeds"`
	// ModuleErrors holds the failure text of optional modules that were absorbed
	ModuleErrors map[string]string `json:"module_errors,omitempty"`
	Elapsed      time.Duration     `json:"elapsed_ns"`
}
