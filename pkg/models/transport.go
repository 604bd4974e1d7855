package models

// ScoreRequest asks for the quality score of one image, given either as a URL
// or inline as base64
type ScoreRequest struct {
	URL             string `json:"url,omitempty"`
	ImageBase64     string `json:"image_base64,omitempty"`
	PPI             int    `json:"ppi,omitempty"`
	TrimWhiteFrame  *bool  `json:"trim_white_frame,omitempty"`
	IncludeFeatures bool   `json:"include_features,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ModelInfoResponse describes the loaded scoring model
type ModelInfoResponse struct {
	Name          string `json:"name"`
	Trainer       string `json:"trainer,omitempty"`
	Description   string `json:"description,omitempty"`
	Version       string `json:"version"`
	Hash          string `json:"hash"`
	SchemaVersion string `json:"schema_version"`
	FeatureCount  int    `json:"feature_count"`
}
