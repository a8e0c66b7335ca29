package stems

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/voiceforge/api/internal/model"
)

// BlobUploader is the slice of object storage the materializer needs.
type BlobUploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// AssetRegistrar records a materialized stem as an owned asset.
type AssetRegistrar interface {
	Create(ctx context.Context, asset *model.Asset) error
}

// outputSlot binds one stem to its provider URL and its asset-ID field in
// the job state.
type outputSlot struct {
	stem model.StemName
	url  func(*model.StemJobState) string
	get  func(*model.StemJobState) string
	set  func(*model.StemJobState, string)
}

// Materialization order: the two vocals first, the instrumental last.
var outputSlots = []outputSlot{
	{
		stem: model.StemMainVocal,
		url:  func(st *model.StemJobState) string { return st.URLs.LeadDenoised },
		get:  func(st *model.StemJobState) string { return st.Outputs.RawMainVocalAssetID },
		set:  func(st *model.StemJobState, id string) { st.Outputs.RawMainVocalAssetID = id },
	},
	{
		stem: model.StemBackVocal,
		url:  func(st *model.StemJobState) string { return st.URLs.BackDenoised },
		get:  func(st *model.StemJobState) string { return st.Outputs.RawBackVocalAssetID },
		set:  func(st *model.StemJobState, id string) { st.Outputs.RawBackVocalAssetID = id },
	},
	{
		stem: model.StemInstrumental,
		url:  func(st *model.StemJobState) string { return st.URLs.Instrumental },
		get:  func(st *model.StemJobState) string { return st.Outputs.InstrumentalAssetID },
		set:  func(st *model.StemJobState, id string) { st.Outputs.InstrumentalAssetID = id },
	},
}

// Materializer turns provider-hosted result URLs into owned assets: download,
// upload into our bucket, register an asset record. Slots whose asset ID is
// already set are skipped, which makes re-running it after a crash safe.
type Materializer struct {
	httpClient *http.Client
	storage    BlobUploader
	assets     AssetRegistrar
}

func NewMaterializer(storage BlobUploader, assets AssetRegistrar) *Materializer {
	return &Materializer{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		storage:    storage,
		assets:     assets,
	}
}

// MaterializeNext fills the first empty output slot and reports whether it
// did any work. (false, nil) means every slot is already populated.
func (m *Materializer) MaterializeNext(ctx context.Context, st *model.StemJobState) (bool, error) {
	for _, slot := range outputSlots {
		if slot.get(st) != "" {
			continue
		}
		if err := m.materializeSlot(ctx, st, slot); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (m *Materializer) materializeSlot(ctx context.Context, st *model.StemJobState, slot outputSlot) error {
	srcURL := slot.url(st)
	if srcURL == "" {
		return &MaterializeError{Stem: slot.stem, Reason: "no source URL recorded"}
	}

	data, err := m.download(ctx, srcURL)
	if err != nil {
		return &MaterializeError{Stem: slot.stem, Reason: "download failed", Err: err}
	}
	if len(data) == 0 {
		return &MaterializeError{Stem: slot.stem, Reason: "provider returned an empty file"}
	}

	assetID := uuid.New().String()
	key := fmt.Sprintf("stems/%s/%s.wav", st.JobID, slot.stem)

	var fileURL string
	if m.storage == nil {
		// Mock storage mode
		fileURL = "https://cdn.voiceforge.app/" + key
	} else {
		fileURL, err = m.storage.Upload(ctx, key, bytes.NewReader(data), "audio/wav")
		if err != nil {
			return &MaterializeError{Stem: slot.stem, Reason: "storage upload failed", Err: err}
		}
	}

	asset := &model.Asset{
		ID:          assetID,
		UserID:      st.UserID,
		Kind:        model.AssetKindStem,
		Stem:        slot.stem,
		JobID:       st.JobID,
		StorageKey:  key,
		FileURL:     fileURL,
		Size:        int64(len(data)),
		ContentType: "audio/wav",
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.assets.Create(ctx, asset); err != nil {
		return &MaterializeError{Stem: slot.stem, Reason: "asset record failed", Err: err}
	}

	slot.set(st, assetID)
	log.Printf("Materialized %s for job %s (%d bytes)", slot.stem, st.JobID, len(data))
	return nil
}

func (m *Materializer) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
