package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/voiceforge/api/internal/client"
	"github.com/voiceforge/api/internal/model"
	"github.com/voiceforge/api/internal/stems"
	"github.com/voiceforge/api/internal/store"
	"github.com/voiceforge/api/internal/websocket"
)

// ErrJobNotCompleted is returned when results are requested before the job
// succeeded.
var ErrJobNotCompleted = errors.New("job not completed")

const resultURLExpiry = time.Hour

// JobReader is the read-only slice of the snapshot store the service needs.
type JobReader interface {
	Get(ctx context.Context, jobID string) (*model.StemJobState, error)
	History(ctx context.Context, jobID string) ([]*model.StemJobState, error)
}

// AssetReader looks up owned asset records.
type AssetReader interface {
	Get(ctx context.Context, id string) (*model.Asset, error)
}

// StemService fronts the separation orchestrator: it scopes every call to
// the job owner and pushes each new snapshot to WebSocket subscribers.
type StemService struct {
	orch    *stems.Orchestrator
	jobs    JobReader
	assets  AssetReader
	storage client.StorageClient
	hub     *websocket.Hub
}

func NewStemService(orch *stems.Orchestrator, jobs JobReader, assets AssetReader, storage client.StorageClient, hub *websocket.Hub) *StemService {
	return &StemService{
		orch:    orch,
		jobs:    jobs,
		assets:  assets,
		storage: storage,
		hub:     hub,
	}
}

// Start creates a new separation job for the given input recording
func (s *StemService) Start(ctx context.Context, userID string, req *model.SeparateStartRequest) (*model.StemJobState, error) {
	st, err := s.orch.CreateJob(ctx, userID, req.InputAssetID, req.VoiceProfileID)
	if err != nil {
		return nil, err
	}
	s.notify(st)
	return st, nil
}

// Status advances the job one step and returns the resulting snapshot. A
// transient upstream poll failure returns the previous snapshot unchanged;
// the client's next poll retries.
func (s *StemService) Status(ctx context.Context, userID, jobID string) (*model.StemJobState, error) {
	// Ownership is checked before Advance so a foreign caller cannot drive
	// someone else's job.
	cur, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if cur.UserID != userID {
		return nil, store.ErrJobNotFound
	}

	st, err := s.orch.Advance(ctx, jobID)
	if err != nil {
		var pollErr *client.PollError
		if errors.As(err, &pollErr) {
			log.Printf("Job %s poll failed, returning last snapshot: %v", jobID, err)
			return st, nil
		}
		if errors.Is(err, store.ErrVersionConflict) {
			// Lost the race against a concurrent advance; the winner's
			// snapshot is authoritative.
			return s.jobs.Get(ctx, jobID)
		}
		return nil, err
	}

	s.notify(st)
	return st, nil
}

// Result returns signed download URLs for the outputs of a succeeded job
func (s *StemService) Result(ctx context.Context, userID, jobID string) (*model.StemResultResponse, error) {
	st, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if st.UserID != userID {
		return nil, store.ErrJobNotFound
	}
	if st.Status != model.JobStatusSucceeded {
		return nil, ErrJobNotCompleted
	}

	mainURL, err := s.assetURL(ctx, st.Outputs.RawMainVocalAssetID)
	if err != nil {
		return nil, err
	}
	backURL, err := s.assetURL(ctx, st.Outputs.RawBackVocalAssetID)
	if err != nil {
		return nil, err
	}
	instURL, err := s.assetURL(ctx, st.Outputs.InstrumentalAssetID)
	if err != nil {
		return nil, err
	}

	return &model.StemResultResponse{
		JobID:           st.JobID,
		MainVocalURL:    mainURL,
		BackVocalURL:    backURL,
		InstrumentalURL: instURL,
		ExpiresAt:       time.Now().Add(resultURLExpiry),
	}, nil
}

// History returns every snapshot of a job in write order
func (s *StemService) History(ctx context.Context, userID, jobID string) ([]*model.StemJobState, error) {
	st, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if st.UserID != userID {
		return nil, store.ErrJobNotFound
	}
	return s.jobs.History(ctx, jobID)
}

func (s *StemService) assetURL(ctx context.Context, assetID string) (string, error) {
	asset, err := s.assets.Get(ctx, assetID)
	if err != nil {
		return "", fmt.Errorf("output asset: %w", err)
	}
	if s.storage == nil {
		return asset.FileURL, nil
	}
	return s.storage.GetSignedURL(ctx, asset.StorageKey, resultURLExpiry)
}

func (s *StemService) notify(st *model.StemJobState) {
	if s.hub != nil {
		s.hub.BroadcastState(st)
	}
}
