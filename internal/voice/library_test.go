package voice

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"github.com/AaronLay10/SentientDialogue/internal/events"
)

// writeWAV encodes d of silence at rate into path.
func writeWAV(t *testing.T, path string, rate beep.SampleRate, d time.Duration) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	format := beep.Format{SampleRate: rate, NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, beep.Silence(rate.N(d)), format); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func approx(got, want time.Duration) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Millisecond
}

func TestLoadAndDuration(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "warden_01.wav"), 22050, 1500*time.Millisecond)
	writeWAV(t, filepath.Join(dir, "fx", "gate_rumble.wav"), 44100, 250*time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	lib := NewLibrary(dir)
	n, err := lib.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 clips, got %d (%v)", n, lib.Refs())
	}

	tests := []struct {
		ref  string
		want time.Duration
	}{
		{"warden_01.wav", 1500 * time.Millisecond},
		{"fx/gate_rumble.wav", 250 * time.Millisecond},
	}
	for _, tt := range tests {
		got, ok := lib.Duration(tt.ref)
		if !ok {
			t.Errorf("%s: not found", tt.ref)
			continue
		}
		if !approx(got, tt.want) {
			t.Errorf("%s: expected %s, got %s", tt.ref, tt.want, got)
		}
	}
}

func TestLoadSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "ok.wav"), 44100, 100*time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "broken.wav"), []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	lib := NewLibrary(dir)
	n, err := lib.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 clip, got %d", n)
	}
}

func TestLoadMissingDir(t *testing.T) {
	lib := NewLibrary(filepath.Join(t.TempDir(), "absent"))
	if _, err := lib.Load(); err == nil {
		t.Error("expected error for missing directory")
	}

	if n, err := NewLibrary("").Load(); err != nil || n != 0 {
		t.Errorf("empty dir should load nothing, got %d, %v", n, err)
	}
}

func TestPlayWithoutOutputReturnsDuration(t *testing.T) {
	dir := t.TempDir()
	lib := NewLibrary(dir)

	// Written after construction: Play decodes on first use.
	writeWAV(t, filepath.Join(dir, "late.wav"), 8000, 2*time.Second)

	if got := lib.Play("late.wav"); !approx(got, 2*time.Second) {
		t.Errorf("expected 2s, got %s", got)
	}
	lib.Stop()
}

func TestPlayMissingEmitsEvent(t *testing.T) {
	events.Clear()
	lib := NewLibrary(t.TempDir())

	if got := lib.Play("nope.wav"); got != 0 {
		t.Errorf("expected zero duration, got %s", got)
	}
	if got := lib.Play("../escape.wav"); got != 0 {
		t.Errorf("expected zero duration for path outside dir, got %s", got)
	}

	missing := events.Filter("voice.missing")
	if len(missing) != 2 {
		t.Fatalf("expected 2 voice.missing events, got %d", len(missing))
	}
	if missing[0].Level != "warn" || missing[0].Fields["clip"] != "nope.wav" {
		t.Errorf("unexpected event: %+v", missing[0])
	}
}
