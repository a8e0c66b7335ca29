package model

import "time"

// SeparateStartRequest represents the request to start a stem-separation job
type SeparateStartRequest struct {
	InputAssetID   string `json:"inputAssetId" validate:"required,uuid"`
	VoiceProfileID string `json:"voiceProfileId" validate:"omitempty,uuid"`
}

// StemResultResponse represents the outputs of a succeeded job with
// time-limited download URLs
type StemResultResponse struct {
	JobID           string    `json:"jobId"`
	MainVocalURL    string    `json:"mainVocalUrl"`
	BackVocalURL    string    `json:"backVocalUrl"`
	InstrumentalURL string    `json:"instrumentalUrl"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

// UploadRecordingResponse represents the response for a recording upload
type UploadRecordingResponse struct {
	ID        string    `json:"id"`
	FileURL   string    `json:"fileUrl"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}
