package analyzer

// FeatureModule computes one fixed group of feature values from an image.
// Implementations are stateless; per-image state lives in the Analysis.
type FeatureModule interface {
	// Name is the stable module identifier used by the schema
	Name() string
	// SpeedGroup is the human-readable group its timing is reported under
	SpeedGroup() string
	// FeatureIDs lists the produced identifiers in output order
	FeatureIDs() []string
	// Compute returns exactly len(FeatureIDs()) values or an error
	Compute(a *Analysis) ([]float64, error)
}

// Module names
const (
	ModuleFrequencyDomain       = "FrequencyDomainAnalysis"
	ModuleMinutiaeCount         = "MinutiaeCount"
	ModuleMinutiaeQuality       = "MinutiaeQuality"
	ModuleRegionOfInterest      = "RegionOfInterest"
	ModuleLocalClarity          = "LocalClarity"
	ModuleContrast              = "Contrast"
	ModuleOrientationCertainty  = "OrientationCertainty"
	ModuleOrientationFlow       = "OrientationFlow"
	ModuleOrientationMap        = "OrientationMap"
	ModuleRidgeValleyUniformity = "RidgeValleyUniformity"
)

// Speed groups
const (
	SpeedGroupFrequencyDomain      = "Frequency domain"
	SpeedGroupLocalClarity         = "Local clarity"
	SpeedGroupOrientationCertainty = "Orientation certainty"
	SpeedGroupOrientationFlow      = "Orientation flow"
	SpeedGroupRidgeValley          = "Ridge valley uniformity"
	SpeedGroupContrast             = "Contrast"
	SpeedGroupRegionOfInterest     = "Region of interest"
	SpeedGroupMinutiae             = "Minutiae"
)
