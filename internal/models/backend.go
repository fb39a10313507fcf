package models

type HealthResponse struct {
	Status             string `json:"status"`
	DetectionAvailable bool   `json:"object_detection_available"`
	Streaming          bool   `json:"streaming"`
}

type DetectionStatus struct {
	Available   bool `json:"available"`
	Enabled     bool `json:"enabled"`
	ModelLoaded bool `json:"model_loaded"`
}

// ActionResponse is the envelope every mutating endpoint answers with.
// The backend reports failures as status "error" inside a 200 response.
type ActionResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (r *ActionResponse) Failed() bool {
	return r.Status == "error"
}
