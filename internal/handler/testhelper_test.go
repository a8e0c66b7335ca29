package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/voiceforge/api/internal/client"
	"github.com/voiceforge/api/internal/middleware"
	"github.com/voiceforge/api/internal/model"
	"github.com/voiceforge/api/internal/service"
	"github.com/voiceforge/api/internal/stems"
	"github.com/voiceforge/api/internal/store"
)

const (
	testJWTSecret = "test-secret-for-handlers"
	testAssetID   = "3f2b8c1d-9e4a-4f6b-8c1d-2a3b4c5d6e7f"
)

type fakeSeparator struct {
	dispatches int
	polls      map[string]*client.SeparationPoll
}

func (f *fakeSeparator) Dispatch(_ context.Context, _ *client.SeparationRequest) (string, error) {
	f.dispatches++
	return fmt.Sprintf("hash-%d", f.dispatches), nil
}

func (f *fakeSeparator) Poll(_ context.Context, hash string) (*client.SeparationPoll, error) {
	if p, ok := f.polls[hash]; ok {
		return p, nil
	}
	return &client.SeparationPoll{State: client.SeparationWaiting}, nil
}

type fakeJobStore struct {
	jobs    map[string]*model.StemJobState
	history map[string][]*model.StemJobState
}

func (f *fakeJobStore) Create(_ context.Context, st *model.StemJobState) error {
	f.jobs[st.JobID] = st.Clone()
	f.history[st.JobID] = append(f.history[st.JobID], st.Clone())
	return nil
}

func (f *fakeJobStore) Get(_ context.Context, jobID string) (*model.StemJobState, error) {
	st, ok := f.jobs[jobID]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return st.Clone(), nil
}

func (f *fakeJobStore) Update(_ context.Context, st *model.StemJobState) error {
	cur, ok := f.jobs[st.JobID]
	if !ok {
		return store.ErrJobNotFound
	}
	if cur.Version != st.Version {
		return store.ErrVersionConflict
	}
	st.Version++
	st.UpdatedAt = time.Now().UTC()
	f.jobs[st.JobID] = st.Clone()
	f.history[st.JobID] = append(f.history[st.JobID], st.Clone())
	return nil
}

func (f *fakeJobStore) History(_ context.Context, jobID string) ([]*model.StemJobState, error) {
	h, ok := f.history[jobID]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return h, nil
}

type fakeAssetStore struct {
	assets map[string]*model.Asset
}

func (f *fakeAssetStore) Get(_ context.Context, id string) (*model.Asset, error) {
	a, ok := f.assets[id]
	if !ok {
		return nil, store.ErrAssetNotFound
	}
	return a, nil
}

func (f *fakeAssetStore) Create(_ context.Context, a *model.Asset) error {
	f.assets[a.ID] = a
	return nil
}

// testApp holds the app plus the fakes behind it so tests can seed state
type testApp struct {
	app       *fiber.App
	separator *fakeSeparator
	jobs      *fakeJobStore
	assets    *fakeAssetStore
	authMW    *middleware.AuthMiddleware
}

// setupApp builds a Fiber app with the same routes as main.go, backed by
// in-memory stores and a scripted upstream client.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	separator := &fakeSeparator{polls: make(map[string]*client.SeparationPoll)}
	jobs := &fakeJobStore{
		jobs:    make(map[string]*model.StemJobState),
		history: make(map[string][]*model.StemJobState),
	}
	assets := &fakeAssetStore{assets: make(map[string]*model.Asset)}

	assets.assets[testAssetID] = &model.Asset{
		ID:      testAssetID,
		UserID:  "test-user",
		Kind:    model.AssetKindRecording,
		FileURL: "https://cdn.test/recording.wav",
	}

	materializer := stems.NewMaterializer(nil, assets)
	orch := stems.NewOrchestrator(jobs, assets, separator, materializer, stems.Modes{
		Ensemble: 25, LeadBack: 34, Dereverb: 31, Denoise: 40,
	})

	validate := validator.New()
	stemService := service.NewStemService(orch, jobs, assets, nil, nil)
	uploadService := service.NewUploadService(nil, assets)
	stemHandler := NewStemHandler(stemService, validate)
	uploadHandler := NewUploadHandler(uploadService, validate)

	authMW := middleware.NewAuthMiddleware(testJWTSecret)

	app := fiber.New()
	api := app.Group("/api", authMW.Authenticate())
	api.Post("/stems/separate", stemHandler.Separate)
	api.Get("/stems/status/:jobId", stemHandler.Status)
	api.Get("/stems/result/:jobId", stemHandler.Result)
	api.Get("/stems/history/:jobId", stemHandler.History)
	api.Post("/upload/recording", uploadHandler.Recording)

	return &testApp{
		app:       app,
		separator: separator,
		jobs:      jobs,
		assets:    assets,
		authMW:    authMW,
	}
}

func doRequest(app *fiber.App, method, path, body string, headers map[string]string) (*http.Response, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return app.Test(req, -1)
}

func doAuthRequest(t *testing.T, ta *testApp, method, path, body string) (*http.Response, error) {
	t.Helper()
	token, err := ta.authMW.GenerateToken("test-user", "test@voiceforge.app")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return doRequest(ta.app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, string(body))
	}
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to parse JSON %q: %v", string(body), err)
	}
	return result
}

func parseJSONArray(t *testing.T, resp *http.Response) []interface{} {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	var result []interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to parse JSON %q: %v", string(body), err)
	}
	return result
}

func multipartBody(t *testing.T, field, filename string, content []byte) (string, string) {
	t.Helper()
	var buf strings.Builder
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	mw.Close()
	return buf.String(), mw.FormDataContentType()
}
