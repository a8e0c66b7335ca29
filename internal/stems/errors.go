package stems

import (
	"fmt"

	"github.com/voiceforge/api/internal/model"
)

// ClassificationError indicates that the provider returned output files but
// none of them satisfies a required role. Terminal for the job.
type ClassificationError struct {
	Role   string
	Labels []string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("no %s candidate among output files %v", e.Role, e.Labels)
}

// MaterializeError indicates a final download or storage write failed.
// Terminal for the job.
type MaterializeError struct {
	Stem   model.StemName
	Reason string
	Err    error
}

func (e *MaterializeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("materialize %s: %s: %v", e.Stem, e.Reason, e.Err)
	}
	return fmt.Sprintf("materialize %s: %s", e.Stem, e.Reason)
}

func (e *MaterializeError) Unwrap() error { return e.Err }

// UpstreamFailedError indicates the provider reported a sub-job as failed or
// unknown. Authoritative, so terminal for the job.
type UpstreamFailedError struct {
	Stage model.Stage
	Hash  string
}

func (e *UpstreamFailedError) Error() string {
	return fmt.Sprintf("upstream job %s failed during %s", e.Hash, e.Stage)
}
