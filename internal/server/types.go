package server

// SubmitRequest is the payload for POST /api/submit
type SubmitRequest struct {
	Problem string `json:"problem"`
}

// DecideRequest is the payload for POST /api/decide/{taskId}/{stage}.
// A missing approved field means approve.
type DecideRequest struct {
	Approved *bool  `json:"approved,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

// IsApproved reports the decision, defaulting to approve.
func (r DecideRequest) IsApproved() bool {
	return r.Approved == nil || *r.Approved
}

// PauseRequest is the payload for POST /api/pause/{taskId}
type PauseRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ResumeRequest is the payload for POST /api/resume/{taskId}
type ResumeRequest struct {
	ContinueFrom string `json:"continueFrom,omitempty"`
}

// HealthResponse is the response for GET /api/health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
