package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/voiceforge/api/internal/client"
	"github.com/voiceforge/api/internal/model"
)

// AssetWriter records new asset records.
type AssetWriter interface {
	Create(ctx context.Context, asset *model.Asset) error
}

// UploadService stores uploaded voice recordings and registers them as
// owned assets, which is where separation jobs take their input from.
type UploadService struct {
	storage client.StorageClient
	assets  AssetWriter
}

func NewUploadService(storage client.StorageClient, assets AssetWriter) *UploadService {
	return &UploadService{
		storage: storage,
		assets:  assets,
	}
}

// UploadRecording uploads a voice recording and returns the new asset
func (s *UploadService) UploadRecording(ctx context.Context, userID string, file io.Reader, size int64) (*model.UploadRecordingResponse, error) {
	assetID := uuid.New().String()
	key := fmt.Sprintf("recordings/%s/%s.wav", userID, assetID)

	fileURL := fmt.Sprintf("https://cdn.voiceforge.app/%s", key)
	if s.storage != nil {
		var err error
		fileURL, err = s.storage.Upload(ctx, key, file, "audio/wav")
		if err != nil {
			return nil, fmt.Errorf("failed to upload recording: %w", err)
		}
	}

	asset := &model.Asset{
		ID:          assetID,
		UserID:      userID,
		Kind:        model.AssetKindRecording,
		StorageKey:  key,
		FileURL:     fileURL,
		Size:        size,
		ContentType: "audio/wav",
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.assets.Create(ctx, asset); err != nil {
		return nil, fmt.Errorf("failed to save asset record: %w", err)
	}

	return &model.UploadRecordingResponse{
		ID:        asset.ID,
		FileURL:   asset.FileURL,
		Size:      asset.Size,
		CreatedAt: asset.CreatedAt,
	}, nil
}
