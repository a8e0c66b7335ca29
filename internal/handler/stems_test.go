package handler

import (
	"net/http"
	"testing"

	"github.com/voiceforge/api/internal/client"
	"github.com/voiceforge/api/internal/model"
)

func TestSeparate_Success(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta, http.MethodPost, "/api/stems/separate", `{"inputAssetId": "`+testAssetID+`"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusAccepted)

	result := parseJSON(t, resp)
	if result["jobId"] == nil || result["jobId"] == "" {
		t.Error("expected 'jobId' in response")
	}
	if result["status"] != "running" {
		t.Errorf("expected status 'running', got %v", result["status"])
	}
	if result["stage"] != "ensemble_wait" {
		t.Errorf("expected stage 'ensemble_wait', got %v", result["stage"])
	}
}

func TestSeparate_NoAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/stems/separate", `{"inputAssetId": "`+testAssetID+`"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestSeparate_InvalidBody(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta, http.MethodPost, "/api/stems/separate", `{"inputAssetId": "not-a-uuid"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestSeparate_UnknownAsset(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta, http.MethodPost, "/api/stems/separate", `{"inputAssetId": "11111111-1111-1111-1111-111111111111"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)
}

func startJob(t *testing.T, ta *testApp) string {
	t.Helper()
	resp, err := doAuthRequest(t, ta, http.MethodPost, "/api/stems/separate", `{"inputAssetId": "`+testAssetID+`"}`)
	if err != nil {
		t.Fatalf("separate failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	data := parseJSON(t, resp)
	return data["jobId"].(string)
}

func TestStatus_Success(t *testing.T) {
	ta := setupApp(t)
	jobID := startJob(t, ta)

	resp, err := doAuthRequest(t, ta, http.MethodGet, "/api/stems/status/"+jobID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	data := parseJSON(t, resp)
	if data["status"] != "running" {
		t.Errorf("expected status 'running', got %v", data["status"])
	}
	// A waiting upstream poll still moves the progress bar.
	if data["progress"].(float64) <= 5 {
		t.Errorf("expected progress above 5, got %v", data["progress"])
	}
}

func TestStatus_UnknownJob(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta, http.MethodGet, "/api/stems/status/no-such-job", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)
}

func TestResult_NotCompleted(t *testing.T) {
	ta := setupApp(t)
	jobID := startJob(t, ta)

	resp, err := doAuthRequest(t, ta, http.MethodGet, "/api/stems/result/"+jobID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestResult_Success(t *testing.T) {
	ta := setupApp(t)

	ta.jobs.jobs["job-done"] = &model.StemJobState{
		JobID:  "job-done",
		UserID: "test-user",
		Status: model.JobStatusSucceeded,
		Stage:  model.StageDone,
		Outputs: model.StemOutputs{
			RawMainVocalAssetID: "out-main",
			RawBackVocalAssetID: "out-back",
			InstrumentalAssetID: "out-inst",
		},
	}
	for _, id := range []string{"out-main", "out-back", "out-inst"} {
		ta.assets.assets[id] = &model.Asset{
			ID:      id,
			UserID:  "test-user",
			Kind:    model.AssetKindStem,
			FileURL: "https://cdn.test/" + id + ".wav",
		}
	}

	resp, err := doAuthRequest(t, ta, http.MethodGet, "/api/stems/result/job-done", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	data := parseJSON(t, resp)
	if data["mainVocalUrl"] != "https://cdn.test/out-main.wav" {
		t.Errorf("unexpected main vocal URL %v", data["mainVocalUrl"])
	}
	if data["instrumentalUrl"] != "https://cdn.test/out-inst.wav" {
		t.Errorf("unexpected instrumental URL %v", data["instrumentalUrl"])
	}
}

func TestHistory_Success(t *testing.T) {
	ta := setupApp(t)
	jobID := startJob(t, ta)

	// Two polls append two more snapshots.
	for i := 0; i < 2; i++ {
		resp, err := doAuthRequest(t, ta, http.MethodGet, "/api/stems/status/"+jobID, "")
		if err != nil {
			t.Fatalf("status %d failed: %v", i, err)
		}
		assertStatus(t, resp, http.StatusOK)
	}

	resp, err := doAuthRequest(t, ta, http.MethodGet, "/api/stems/history/"+jobID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	data := parseJSONArray(t, resp)
	if len(data) != 3 {
		t.Errorf("expected 3 snapshots, got %d", len(data))
	}
}

func TestStatus_CompletesPipeline(t *testing.T) {
	ta := setupApp(t)

	// The ensemble split completes on its first poll; the job must move to
	// the lead/back stage and dispatch the second sub-job in the same call.
	ta.separator.polls["hash-1"] = &client.SeparationPoll{
		State: client.SeparationDone,
		Files: []client.OutputFile{
			{URL: "https://provider.test/vocals.wav", Label: "vocals.wav"},
			{URL: "https://provider.test/instrumental.wav", Label: "instrumental.wav"},
		},
	}

	jobID := startJob(t, ta)

	resp, err := doAuthRequest(t, ta, http.MethodGet, "/api/stems/status/"+jobID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	data := parseJSON(t, resp)
	if data["stage"] != "leadback_wait" {
		t.Errorf("expected stage 'leadback_wait' after ensemble completes, got %v", data["stage"])
	}
	if ta.separator.dispatches != 2 {
		t.Errorf("expected lead/back dispatch, got %d dispatches", ta.separator.dispatches)
	}
}
