package model

import "time"

// StemJobState is the persisted state of one stem-separation job. A job is
// mutated exclusively by successive Advance calls, each of which writes a new
// snapshot; "current" is the latest snapshot.
type StemJobState struct {
	JobID          string `json:"jobId"`
	UserID         string `json:"userId"`
	InputAssetID   string `json:"inputAssetId"`
	VoiceProfileID string `json:"voiceProfileId,omitempty"`

	Status   JobStatus `json:"status"`
	Stage    Stage     `json:"stage"`
	Progress int       `json:"progress"`
	Message  string    `json:"message,omitempty"`
	Error    *string   `json:"error,omitempty"`

	Hashes  StageHashes `json:"hashes"`
	URLs    StageURLs   `json:"urls"`
	Outputs StemOutputs `json:"outputs"`

	// Version increments on every snapshot write; the store rejects updates
	// whose version does not match the stored record.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StageHashes holds the upstream job handle for each dispatched sub-job.
// A non-empty hash means the sub-job exists upstream and must not be
// dispatched again.
type StageHashes struct {
	Ensemble     string `json:"ensemble,omitempty"`
	LeadBack     string `json:"leadback,omitempty"`
	DereverbLead string `json:"dereverbLead,omitempty"`
	DereverbBack string `json:"dereverbBack,omitempty"`
	DenoiseLead  string `json:"denoiseLead,omitempty"`
	DenoiseBack  string `json:"denoiseBack,omitempty"`
}

// StageURLs holds provider-hosted intermediate results, recorded as each
// sub-job completes. These point at the upstream provider, not our storage.
type StageURLs struct {
	Vocal          string `json:"vocal,omitempty"`
	Instrumental   string `json:"instrumental,omitempty"`
	Lead           string `json:"lead,omitempty"`
	Back           string `json:"back,omitempty"`
	LeadDereverbed string `json:"leadDereverbed,omitempty"`
	BackDereverbed string `json:"backDereverbed,omitempty"`
	LeadDenoised   string `json:"leadDenoised,omitempty"`
	BackDenoised   string `json:"backDenoised,omitempty"`
}

// StemOutputs holds the owned asset IDs of materialized results. A non-empty
// ID means the slot is done and must not be materialized again.
type StemOutputs struct {
	RawMainVocalAssetID string `json:"rawMainVocalAssetId,omitempty"`
	RawBackVocalAssetID string `json:"rawBackVocalAssetId,omitempty"`
	InstrumentalAssetID string `json:"instrumentalAssetId,omitempty"`
}

// Complete reports whether all three output slots are populated.
func (o StemOutputs) Complete() bool {
	return o.RawMainVocalAssetID != "" && o.RawBackVocalAssetID != "" && o.InstrumentalAssetID != ""
}

// Clone returns a deep copy of the state. Hashes, URLs and Outputs are plain
// value structs, so a shallow copy plus the error pointer is enough.
func (s *StemJobState) Clone() *StemJobState {
	c := *s
	if s.Error != nil {
		msg := *s.Error
		c.Error = &msg
	}
	return &c
}
