package model

// Job status
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

var statusRank = map[JobStatus]int{
	JobStatusQueued:    0,
	JobStatusRunning:   1,
	JobStatusSucceeded: 2,
	JobStatusFailed:    2,
}

// Rank returns the position of the status in the lifecycle order.
// Succeeded and failed share a rank: both are terminal.
func (s JobStatus) Rank() int {
	return statusRank[s]
}

// Terminal reports whether no further transitions are valid.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Stage identifies the current step of the separation pipeline.
// Stages only ever move forward.
type Stage string

const (
	StageEnsembleWait  Stage = "ensemble_wait"
	StageLeadBackWait  Stage = "leadback_wait"
	StageDereverbWait  Stage = "dereverb_wait"
	StageDenoiseWait   Stage = "denoise_wait"
	StageUploadOutputs Stage = "upload_outputs"
	StageDone          Stage = "done"
)

var stageRank = map[Stage]int{
	StageEnsembleWait:  0,
	StageLeadBackWait:  1,
	StageDereverbWait:  2,
	StageDenoiseWait:   3,
	StageUploadOutputs: 4,
	StageDone:          5,
}

// Rank returns the position of the stage in pipeline order.
func (s Stage) Rank() int {
	return stageRank[s]
}

// Stem names for owned output assets
type StemName string

const (
	StemMainVocal    StemName = "main_vocal"
	StemBackVocal    StemName = "back_vocal"
	StemInstrumental StemName = "instrumental"
)

// Asset kinds
type AssetKind string

const (
	AssetKindRecording AssetKind = "recording"
	AssetKindStem      AssetKind = "stem"
)
