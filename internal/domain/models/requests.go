package models

// Data sources understood by the loader.
const (
	SourceSample    = "sample"
	SourceSimulated = "simulated"
	SourceRemote    = "remote"
	SourceStore     = "store"
	SourceInline    = "inline"
	SourceFile      = "file"
)

// PredictRequest is the body of POST /api/predict and POST /api/jobs.
type PredictRequest struct {
	Symbol string            `json:"symbol" validate:"required"`
	Source string            `json:"source" default:"sample" validate:"oneof=sample simulated remote store inline"`
	Limit  int               `json:"limit" default:"90" validate:"gte=50,lte=5000"`
	Points []HistoricalPoint `json:"points" validate:"required_if=Source inline"`
}

// PredictionEvent is the message published after every completed prediction.
type PredictionEvent struct {
	Symbol string            `json:"symbol"`
	Source string            `json:"source"`
	JobID  string            `json:"jobId,omitempty"`
	Result *PredictionResult `json:"result"`
}

// PredictionCommand is a request consumed from the requests topic.
type PredictionCommand struct {
	Symbol string            `json:"symbol"`
	Source string            `json:"source"`
	Limit  int               `json:"limit"`
	Points []HistoricalPoint `json:"points,omitempty"`
}
