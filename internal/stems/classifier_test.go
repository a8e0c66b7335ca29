package stems

import (
	"errors"
	"testing"

	"github.com/voiceforge/api/internal/client"
)

func files(labels ...string) []client.OutputFile {
	out := make([]client.OutputFile, len(labels))
	for i, l := range labels {
		out[i] = client.OutputFile{
			URL:      "https://provider.example/" + l,
			Download: l,
			Label:    l,
		}
	}
	return out
}

func TestClassifyVocalInstrumental_StrictLabels(t *testing.T) {
	fs := files("instrumental.wav", "vocals.wav")

	vocal, inst, err := ClassifyVocalInstrumental(fs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vocal.Label != "vocals.wav" {
		t.Errorf("expected vocal 'vocals.wav', got %q", vocal.Label)
	}
	if inst == nil || inst.Label != "instrumental.wav" {
		t.Errorf("expected instrumental 'instrumental.wav', got %+v", inst)
	}
}

func TestClassifyVocalInstrumental_SingleFile(t *testing.T) {
	fs := files("output.wav")

	vocal, inst, err := ClassifyVocalInstrumental(fs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vocal.Label != "output.wav" {
		t.Errorf("expected vocal 'output.wav', got %q", vocal.Label)
	}
	if inst != nil {
		t.Errorf("expected no instrumental, got %+v", inst)
	}
}

func TestClassifyVocalInstrumental_AnchorOnInstrumental(t *testing.T) {
	// Only the instrumental label matches; the other file becomes the vocal.
	fs := files("karaoke.wav", "track_a.wav")

	vocal, inst, err := ClassifyVocalInstrumental(fs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vocal.Label != "track_a.wav" {
		t.Errorf("expected vocal 'track_a.wav', got %q", vocal.Label)
	}
	if inst == nil || inst.Label != "karaoke.wav" {
		t.Errorf("expected instrumental 'karaoke.wav', got %+v", inst)
	}
}

func TestClassifyVocalInstrumental_AnchorOnVocal(t *testing.T) {
	fs := files("voice.wav", "track_b.wav")

	vocal, inst, err := ClassifyVocalInstrumental(fs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vocal.Label != "voice.wav" {
		t.Errorf("expected vocal 'voice.wav', got %q", vocal.Label)
	}
	if inst == nil || inst.Label != "track_b.wav" {
		t.Errorf("expected instrumental 'track_b.wav', got %+v", inst)
	}
}

func TestClassifyVocalInstrumental_Positional(t *testing.T) {
	fs := files("result_1.wav", "result_2.wav")

	vocal, inst, err := ClassifyVocalInstrumental(fs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vocal.Label != "result_1.wav" {
		t.Errorf("expected vocal 'result_1.wav', got %q", vocal.Label)
	}
	if inst == nil || inst.Label != "result_2.wav" {
		t.Errorf("expected instrumental 'result_2.wav', got %+v", inst)
	}
}

func TestClassifyVocalInstrumental_NoFiles(t *testing.T) {
	_, _, err := ClassifyVocalInstrumental(nil)

	var ce *ClassificationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ClassificationError, got %v", err)
	}
}

func TestClassifyLeadBack_StrictLabels(t *testing.T) {
	fs := files("back_vocals.wav", "lead_vocals.wav")

	lead, back, err := ClassifyLeadBack(fs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead.Label != "lead_vocals.wav" {
		t.Errorf("expected lead 'lead_vocals.wav', got %q", lead.Label)
	}
	if back.Label != "back_vocals.wav" {
		t.Errorf("expected back 'back_vocals.wav', got %q", back.Label)
	}
}

func TestClassifyLeadBack_VocalLikeFallback(t *testing.T) {
	// No strict lead/back labels; both are vocal-like so the first becomes
	// the lead and the other the backing vocal.
	fs := files("vocals_clean.wav", "vocals_dry.wav")

	lead, back, err := ClassifyLeadBack(fs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead.Label != "vocals_clean.wav" {
		t.Errorf("expected lead 'vocals_clean.wav', got %q", lead.Label)
	}
	if back.Label != "vocals_dry.wav" {
		t.Errorf("expected back 'vocals_dry.wav', got %q", back.Label)
	}
}

func TestClassifyLeadBack_NoBackingCandidate(t *testing.T) {
	// drums.wav is instrument-like, so it can never be pressed into service
	// as the backing vocal.
	fs := files("drums.wav", "vocals_lead.wav")

	_, _, err := ClassifyLeadBack(fs)

	var ce *ClassificationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ClassificationError, got %v", err)
	}
	if ce.Role != "backing vocal" {
		t.Errorf("expected role 'backing vocal', got %q", ce.Role)
	}
}

func TestClassifyLeadBack_NoLeadCandidate(t *testing.T) {
	fs := files("drums.wav", "bass.wav")

	_, _, err := ClassifyLeadBack(fs)

	var ce *ClassificationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ClassificationError, got %v", err)
	}
	if ce.Role != "lead vocal" {
		t.Errorf("expected role 'lead vocal', got %q", ce.Role)
	}
}

func TestPickVocalLike_PrefersVocalLabel(t *testing.T) {
	fs := files("noise.wav", "vocals.wav")

	f, err := PickVocalLike(fs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Label != "vocals.wav" {
		t.Errorf("expected 'vocals.wav', got %q", f.Label)
	}
}

func TestPickVocalLike_FallsBackToFirst(t *testing.T) {
	fs := files("result_a.wav", "result_b.wav")

	f, err := PickVocalLike(fs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Label != "result_a.wav" {
		t.Errorf("expected 'result_a.wav', got %q", f.Label)
	}
}

func TestPickVocalLike_NoFiles(t *testing.T) {
	_, err := PickVocalLike(nil)

	var ce *ClassificationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ClassificationError, got %v", err)
	}
}
