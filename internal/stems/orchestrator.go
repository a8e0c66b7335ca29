package stems

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/voiceforge/api/internal/client"
	"github.com/voiceforge/api/internal/model"
	"github.com/voiceforge/api/internal/store"
)

// JobStore is the slice of the snapshot store the orchestrator needs.
type JobStore interface {
	Create(ctx context.Context, st *model.StemJobState) error
	Get(ctx context.Context, jobID string) (*model.StemJobState, error)
	Update(ctx context.Context, st *model.StemJobState) error
}

// AssetResolver looks up the input recording at job creation.
type AssetResolver interface {
	Get(ctx context.Context, id string) (*model.Asset, error)
}

// Modes holds the upstream processing-mode code for each pipeline step.
type Modes struct {
	Ensemble int
	LeadBack int
	Dereverb int
	Denoise  int
}

// Progress bands per stage: a stage entry jumps to the floor, waiting polls
// creep toward the ceiling. Keeps progress monotonic by construction.
var stageFloor = map[model.Stage]int{
	model.StageEnsembleWait:  5,
	model.StageLeadBackWait:  25,
	model.StageDereverbWait:  45,
	model.StageDenoiseWait:   65,
	model.StageUploadOutputs: 85,
	model.StageDone:          100,
}

var stageCeil = map[model.Stage]int{
	model.StageEnsembleWait:  24,
	model.StageLeadBackWait:  44,
	model.StageDereverbWait:  64,
	model.StageDenoiseWait:   84,
	model.StageUploadOutputs: 99,
	model.StageDone:          100,
}

// Orchestrator drives one separation job through five sequential upstream
// sub-jobs. It holds no state of its own: every Advance call re-reads the
// latest snapshot, performs one bounded step, and persists a new snapshot,
// so the pipeline survives restarts and repeated polling without duplicating
// upstream work.
type Orchestrator struct {
	store        JobStore
	assets       AssetResolver
	separator    client.SeparationClient
	materializer *Materializer
	modes        Modes
}

func NewOrchestrator(jobStore JobStore, assets AssetResolver, separator client.SeparationClient, materializer *Materializer, modes Modes) *Orchestrator {
	return &Orchestrator{
		store:        jobStore,
		assets:       assets,
		separator:    separator,
		materializer: materializer,
		modes:        modes,
	}
}

// CreateJob creates a new job and dispatches its first upstream sub-job. If
// that dispatch is rejected the job is persisted already failed, so the
// caller always gets a state it can poll.
func (o *Orchestrator) CreateJob(ctx context.Context, userID, inputAssetID, voiceProfileID string) (*model.StemJobState, error) {
	asset, err := o.assets.Get(ctx, inputAssetID)
	if err != nil {
		return nil, err
	}
	if asset.UserID != userID {
		return nil, store.ErrAssetNotFound
	}

	now := time.Now().UTC()
	st := &model.StemJobState{
		JobID:          uuid.New().String(),
		UserID:         userID,
		InputAssetID:   inputAssetID,
		VoiceProfileID: voiceProfileID,
		Status:         model.JobStatusQueued,
		Stage:          model.StageEnsembleWait,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	hash, err := o.separator.Dispatch(ctx, &client.SeparationRequest{
		AudioURL: asset.FileURL,
		Mode:     o.modes.Ensemble,
	})
	if err != nil {
		o.failJob(st, err)
		if cerr := o.store.Create(ctx, st); cerr != nil {
			return nil, cerr
		}
		return st, nil
	}

	st.Hashes.Ensemble = hash
	st.Status = model.JobStatusRunning
	st.Progress = stageFloor[model.StageEnsembleWait]
	st.Message = "Separating vocals from instrumental..."

	if err := o.store.Create(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Advance loads the current snapshot, performs at most one step of the
// pipeline and persists the result. Terminal jobs are returned unchanged.
// A transient poll failure returns the unchanged state together with the
// error; the caller retries on its next poll.
func (o *Orchestrator) Advance(ctx context.Context, jobID string) (*model.StemJobState, error) {
	st, err := o.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if st.Status.Terminal() {
		return st, nil
	}

	next := st.Clone()
	if err := o.step(ctx, next); err != nil {
		var pollErr *client.PollError
		if errors.As(err, &pollErr) {
			return st, err
		}
		if !terminalFailure(err) {
			return nil, err
		}
		// next carries version bumps from any intermediate writes, so fail
		// from it rather than from the snapshot we started with.
		o.failJob(next, err)
		if uerr := o.store.Update(ctx, next); uerr != nil {
			return nil, uerr
		}
		return next, nil
	}

	if err := o.store.Update(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (o *Orchestrator) step(ctx context.Context, st *model.StemJobState) error {
	switch st.Stage {
	case model.StageEnsembleWait:
		return o.stepEnsemble(ctx, st)
	case model.StageLeadBackWait:
		return o.stepLeadBack(ctx, st)
	case model.StageDereverbWait:
		return o.stepDereverb(ctx, st)
	case model.StageDenoiseWait:
		return o.stepDenoise(ctx, st)
	case model.StageUploadOutputs:
		return o.stepUpload(ctx, st)
	default:
		return fmt.Errorf("job %s in unexpected stage %s", st.JobID, st.Stage)
	}
}

// stepEnsemble waits for the initial vocal/instrumental split and, once it
// completes, classifies the outputs and dispatches the lead/back split on
// the vocal.
func (o *Orchestrator) stepEnsemble(ctx context.Context, st *model.StemJobState) error {
	if st.Hashes.Ensemble == "" {
		// Normally dispatched by CreateJob; kept for resumability.
		asset, err := o.assets.Get(ctx, st.InputAssetID)
		if err != nil {
			return &client.DispatchError{Reason: "input asset unavailable", Err: err}
		}
		hash, err := o.separator.Dispatch(ctx, &client.SeparationRequest{
			AudioURL: asset.FileURL,
			Mode:     o.modes.Ensemble,
		})
		if err != nil {
			return err
		}
		st.Hashes.Ensemble = hash
		st.Status = model.JobStatusRunning
		st.Message = "Separating vocals from instrumental..."
		return nil
	}

	poll, err := o.separator.Poll(ctx, st.Hashes.Ensemble)
	if err != nil {
		return err
	}
	switch poll.State {
	case client.SeparationWaiting:
		o.bumpProgress(st)
		return nil
	case client.SeparationFailed:
		return &UpstreamFailedError{Stage: st.Stage, Hash: st.Hashes.Ensemble}
	}

	vocal, instrumental, err := ClassifyVocalInstrumental(poll.Files)
	if err != nil {
		return err
	}
	st.URLs.Vocal = vocal.URL
	if instrumental != nil {
		st.URLs.Instrumental = instrumental.URL
	}

	hash, err := o.separator.Dispatch(ctx, &client.SeparationRequest{
		AudioURL: st.URLs.Vocal,
		Mode:     o.modes.LeadBack,
	})
	if err != nil {
		return err
	}
	st.Hashes.LeadBack = hash
	o.enterStage(st, model.StageLeadBackWait, "Splitting lead and backing vocals...")
	return nil
}

// stepLeadBack waits for the lead/back split, then starts de-reverb on the
// lead vocal.
func (o *Orchestrator) stepLeadBack(ctx context.Context, st *model.StemJobState) error {
	poll, err := o.separator.Poll(ctx, st.Hashes.LeadBack)
	if err != nil {
		return err
	}
	switch poll.State {
	case client.SeparationWaiting:
		o.bumpProgress(st)
		return nil
	case client.SeparationFailed:
		return &UpstreamFailedError{Stage: st.Stage, Hash: st.Hashes.LeadBack}
	}

	lead, back, err := ClassifyLeadBack(poll.Files)
	if err != nil {
		return err
	}
	st.URLs.Lead = lead.URL
	st.URLs.Back = back.URL

	hash, err := o.separator.Dispatch(ctx, &client.SeparationRequest{
		AudioURL: st.URLs.Lead,
		Mode:     o.modes.Dereverb,
	})
	if err != nil {
		return err
	}
	st.Hashes.DereverbLead = hash
	o.enterStage(st, model.StageDereverbWait, "Removing reverb from lead vocal...")
	return nil
}

// stepDereverb runs de-reverb over the lead and then the backing vocal,
// sequentially to keep at most one upstream job of ours in flight.
func (o *Orchestrator) stepDereverb(ctx context.Context, st *model.StemJobState) error {
	if st.Hashes.DereverbLead == "" {
		hash, err := o.separator.Dispatch(ctx, &client.SeparationRequest{
			AudioURL: st.URLs.Lead,
			Mode:     o.modes.Dereverb,
		})
		if err != nil {
			return err
		}
		st.Hashes.DereverbLead = hash
		st.Message = "Removing reverb from lead vocal..."
		return nil
	}

	if st.URLs.LeadDereverbed == "" {
		poll, err := o.separator.Poll(ctx, st.Hashes.DereverbLead)
		if err != nil {
			return err
		}
		switch poll.State {
		case client.SeparationWaiting:
			o.bumpProgress(st)
			return nil
		case client.SeparationFailed:
			return &UpstreamFailedError{Stage: st.Stage, Hash: st.Hashes.DereverbLead}
		}

		f, err := PickVocalLike(poll.Files)
		if err != nil {
			return err
		}
		st.URLs.LeadDereverbed = f.URL

		hash, err := o.separator.Dispatch(ctx, &client.SeparationRequest{
			AudioURL: st.URLs.Back,
			Mode:     o.modes.Dereverb,
		})
		if err != nil {
			return err
		}
		st.Hashes.DereverbBack = hash
		st.Message = "Removing reverb from backing vocal..."
		return nil
	}

	if st.Hashes.DereverbBack == "" {
		hash, err := o.separator.Dispatch(ctx, &client.SeparationRequest{
			AudioURL: st.URLs.Back,
			Mode:     o.modes.Dereverb,
		})
		if err != nil {
			return err
		}
		st.Hashes.DereverbBack = hash
		st.Message = "Removing reverb from backing vocal..."
		return nil
	}

	poll, err := o.separator.Poll(ctx, st.Hashes.DereverbBack)
	if err != nil {
		return err
	}
	switch poll.State {
	case client.SeparationWaiting:
		o.bumpProgress(st)
		return nil
	case client.SeparationFailed:
		return &UpstreamFailedError{Stage: st.Stage, Hash: st.Hashes.DereverbBack}
	}

	f, err := PickVocalLike(poll.Files)
	if err != nil {
		return err
	}
	st.URLs.BackDereverbed = f.URL

	hash, err := o.separator.Dispatch(ctx, &client.SeparationRequest{
		AudioURL: st.URLs.LeadDereverbed,
		Mode:     o.modes.Denoise,
	})
	if err != nil {
		return err
	}
	st.Hashes.DenoiseLead = hash
	o.enterStage(st, model.StageDenoiseWait, "Denoising lead vocal...")
	return nil
}

// stepDenoise mirrors stepDereverb over the de-reverbed vocals. Once the
// backing vocal is denoised, every upstream result exists and the outputs
// are materialized in the same call.
func (o *Orchestrator) stepDenoise(ctx context.Context, st *model.StemJobState) error {
	if st.Hashes.DenoiseLead == "" {
		hash, err := o.separator.Dispatch(ctx, &client.SeparationRequest{
			AudioURL: st.URLs.LeadDereverbed,
			Mode:     o.modes.Denoise,
		})
		if err != nil {
			return err
		}
		st.Hashes.DenoiseLead = hash
		st.Message = "Denoising lead vocal..."
		return nil
	}

	if st.URLs.LeadDenoised == "" {
		poll, err := o.separator.Poll(ctx, st.Hashes.DenoiseLead)
		if err != nil {
			return err
		}
		switch poll.State {
		case client.SeparationWaiting:
			o.bumpProgress(st)
			return nil
		case client.SeparationFailed:
			return &UpstreamFailedError{Stage: st.Stage, Hash: st.Hashes.DenoiseLead}
		}

		f, err := PickVocalLike(poll.Files)
		if err != nil {
			return err
		}
		st.URLs.LeadDenoised = f.URL

		hash, err := o.separator.Dispatch(ctx, &client.SeparationRequest{
			AudioURL: st.URLs.BackDereverbed,
			Mode:     o.modes.Denoise,
		})
		if err != nil {
			return err
		}
		st.Hashes.DenoiseBack = hash
		st.Message = "Denoising backing vocal..."
		return nil
	}

	if st.Hashes.DenoiseBack == "" {
		hash, err := o.separator.Dispatch(ctx, &client.SeparationRequest{
			AudioURL: st.URLs.BackDereverbed,
			Mode:     o.modes.Denoise,
		})
		if err != nil {
			return err
		}
		st.Hashes.DenoiseBack = hash
		st.Message = "Denoising backing vocal..."
		return nil
	}

	poll, err := o.separator.Poll(ctx, st.Hashes.DenoiseBack)
	if err != nil {
		return err
	}
	switch poll.State {
	case client.SeparationWaiting:
		o.bumpProgress(st)
		return nil
	case client.SeparationFailed:
		return &UpstreamFailedError{Stage: st.Stage, Hash: st.Hashes.DenoiseBack}
	}

	f, err := PickVocalLike(poll.Files)
	if err != nil {
		return err
	}
	st.URLs.BackDenoised = f.URL
	o.enterStage(st, model.StageUploadOutputs, "Saving stems...")

	return o.stepUpload(ctx, st)
}

// stepUpload materializes output slots until all three owned assets exist,
// persisting a snapshot after each so a finished upload is never repeated.
func (o *Orchestrator) stepUpload(ctx context.Context, st *model.StemJobState) error {
	for {
		did, err := o.materializer.MaterializeNext(ctx, st)
		if err != nil {
			return err
		}
		if !did {
			break
		}
		if err := o.store.Update(ctx, st); err != nil {
			return err
		}
	}

	st.Status = model.JobStatusSucceeded
	st.Stage = model.StageDone
	st.Progress = 100
	st.Message = "Stems ready"
	return nil
}

func (o *Orchestrator) bumpProgress(st *model.StemJobState) {
	if st.Progress < stageCeil[st.Stage] {
		st.Progress++
	}
}

func (o *Orchestrator) enterStage(st *model.StemJobState, stage model.Stage, message string) {
	st.Stage = stage
	st.Message = message
	if st.Progress < stageFloor[stage] {
		st.Progress = stageFloor[stage]
	}
}

func (o *Orchestrator) failJob(st *model.StemJobState, cause error) {
	msg := failureMessage(cause)
	st.Status = model.JobStatusFailed
	st.Stage = model.StageDone
	st.Error = &msg
	st.Message = "Separation failed"
}

// terminalFailure reports whether an error must fail the job, as opposed to
// infrastructure errors that propagate to the caller with state untouched.
func terminalFailure(err error) bool {
	var de *client.DispatchError
	var ce *ClassificationError
	var me *MaterializeError
	var ue *UpstreamFailedError
	return errors.As(err, &de) || errors.As(err, &ce) || errors.As(err, &me) || errors.As(err, &ue)
}

// failureMessage maps an error to the user-facing explanation. The three
// classes need to stay distinguishable: they call for different corrective
// actions (re-upload vs. unsupported content vs. retry with a new job).
func failureMessage(err error) string {
	var de *client.DispatchError
	var ce *ClassificationError
	var me *MaterializeError
	var ue *UpstreamFailedError
	switch {
	case errors.As(err, &de):
		return "The separation provider rejected the audio. Try re-uploading the recording."
	case errors.As(err, &ue):
		return "Audio separation failed upstream. The recording may be unsupported."
	case errors.As(err, &ce):
		return "Could not identify the requested stem in the separation output."
	case errors.As(err, &me):
		return "Could not save the separated stems. Please start a new separation."
	default:
		return "Separation failed unexpectedly."
	}
}
