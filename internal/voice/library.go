package voice

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"

	"github.com/AaronLay10/SentientDialogue/internal/events"
)

const (
	outputRate = beep.SampleRate(44100)

	// resampleQuality is the interpolation quality passed to beep.Resample.
	resampleQuality = 4
)

// clip is a decoded voice clip held in memory.
type clip struct {
	buffer   *beep.Buffer
	duration time.Duration
}

// Library decodes WAV voice clips from a directory and plays them by
// reference. References are paths relative to the directory using
// forward slashes, e.g. "warden/line_01.wav".
type Library struct {
	dir string

	mu     sync.Mutex
	clips  map[string]*clip
	mixer  *beep.Mixer
	output bool
}

// NewLibrary returns an empty library rooted at dir. Nothing is read
// until Load or the first Play.
func NewLibrary(dir string) *Library {
	return &Library{
		dir:   dir,
		clips: make(map[string]*clip),
		mixer: &beep.Mixer{},
	}
}

// Load decodes every .wav file under the library directory. A clip that
// fails to decode is logged and skipped; the count of loaded clips is
// returned.
func (l *Library) Load() (int, error) {
	if l.dir == "" {
		return 0, nil
	}

	var refs []string
	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".wav") {
			return nil
		}
		rel, err := filepath.Rel(l.dir, path)
		if err != nil {
			return err
		}
		refs = append(refs, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan voice dir %s: %w", l.dir, err)
	}

	loaded := 0
	for _, ref := range refs {
		c, err := decodeFile(filepath.Join(l.dir, filepath.FromSlash(ref)))
		if err != nil {
			log.Printf("voice: skipping %s: %v", ref, err)
			continue
		}
		l.mu.Lock()
		l.clips[ref] = c
		l.mu.Unlock()
		loaded++
	}
	return loaded, nil
}

func decodeFile(path string) (*clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	streamer, format, err := wav.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	defer streamer.Close()

	buffer := beep.NewBuffer(format)
	buffer.Append(streamer)

	return &clip{
		buffer:   buffer,
		duration: format.SampleRate.D(buffer.Len()),
	}, nil
}

// lookup returns the clip for ref, decoding it on first use.
func (l *Library) lookup(ref string) (*clip, bool) {
	ref = filepath.ToSlash(filepath.Clean(ref))

	l.mu.Lock()
	c, ok := l.clips[ref]
	l.mu.Unlock()
	if ok {
		return c, true
	}

	if l.dir == "" || strings.HasPrefix(ref, "../") || filepath.IsAbs(ref) {
		return nil, false
	}
	c, err := decodeFile(filepath.Join(l.dir, filepath.FromSlash(ref)))
	if err != nil {
		return nil, false
	}

	l.mu.Lock()
	l.clips[ref] = c
	l.mu.Unlock()
	return c, true
}

// Duration returns the length of the clip named by ref.
func (l *Library) Duration(ref string) (time.Duration, bool) {
	c, ok := l.lookup(ref)
	if !ok {
		return 0, false
	}
	return c.duration, true
}

// Refs lists the references of all loaded clips in sorted order.
func (l *Library) Refs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	refs := make([]string, 0, len(l.clips))
	for ref := range l.clips {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// InitOutput opens the audio device. Without it Play still reports clip
// durations so timing is unchanged on machines with no sound card.
func (l *Library) InitOutput() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.output {
		return nil
	}
	if err := speaker.Init(outputRate, outputRate.N(100*time.Millisecond)); err != nil {
		return err
	}
	speaker.Play(l.mixer)
	l.output = true
	return nil
}

// Play starts the clip named by ref and returns its full duration. An
// unknown or undecodable clip emits voice.missing and has zero length.
func (l *Library) Play(ref string) time.Duration {
	c, ok := l.lookup(ref)
	if !ok {
		events.Emit("warn", "voice.missing", "voice clip not found", map[string]interface{}{
			"clip": ref,
			"dir":  l.dir,
		})
		return 0
	}

	l.mu.Lock()
	output := l.output
	l.mu.Unlock()

	if output {
		var s beep.Streamer = c.buffer.Streamer(0, c.buffer.Len())
		if rate := c.buffer.Format().SampleRate; rate != outputRate {
			s = beep.Resample(resampleQuality, rate, outputRate, s)
		}
		speaker.Lock()
		l.mixer.Add(s)
		speaker.Unlock()
	}
	return c.duration
}

// Stop silences every clip currently playing.
func (l *Library) Stop() {
	l.mu.Lock()
	output := l.output
	l.mu.Unlock()

	if !output {
		return
	}
	speaker.Lock()
	l.mixer.Clear()
	speaker.Unlock()
}
