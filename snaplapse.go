// Package snaplapse captures periodic viewport screenshots and assembles them
// into a timelapse video. The embedding application drives it: it publishes
// input and render events on a Hub and invokes the recorder's commands from
// its UI.
//
// Frame sources register themselves on import:
//
//	import _ "github.com/snaplapse/snaplapse/pkg/source/screen"
package snaplapse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/snaplapse/snaplapse/internal/logging"

	"github.com/snaplapse/snaplapse/pkg/assemble"
	"github.com/snaplapse/snaplapse/pkg/fingerprint"
	"github.com/snaplapse/snaplapse/pkg/sink"
	"github.com/snaplapse/snaplapse/pkg/source"
)

var logger = logging.NewLogger("snaplapse/recorder")

var (
	// ErrRunning is returned by Start when a session is already active.
	// At most one capture session exists per recorder.
	ErrRunning = errors.New("a capture session is already running")
	// ErrNotRunning is returned by Stop when no session is active.
	ErrNotRunning = errors.New("no capture session is running")
	// ErrNoDocument is returned by Start when the host document has never
	// been saved, so there is no place to put the frames.
	ErrNoDocument = errors.New("document has not been saved")
	// ErrTrialCapture is returned by Start when the pre-start test capture
	// fails.
	ErrTrialCapture = errors.New("trial capture failed")
)

// RecorderOptions stores parameters used by Recorder.
type RecorderOptions struct {
	src         source.Source
	encoder     assemble.Encoder
	hub         *Hub
	renderProbe func() bool
	tickPeriod  time.Duration
}

// RecorderOption is a type of Recorder functional option.
type RecorderOption func(*RecorderOptions)

// WithSource supplies the frame source instead of selecting the highest
// priority registered one.
func WithSource(s source.Source) RecorderOption {
	return func(o *RecorderOptions) {
		o.src = s
	}
}

// WithEncoder supplies the video encoder used by AssembleVideo. The default
// pipes frames to the ffmpeg binary.
func WithEncoder(enc assemble.Encoder) RecorderOption {
	return func(o *RecorderOptions) {
		o.encoder = enc
	}
}

// WithHub attaches the recorder to the host's event hub. While a session
// runs, the recorder holds a subscription on it and disposes it on stop.
func WithHub(h *Hub) RecorderOption {
	return func(o *RecorderOptions) {
		o.hub = h
	}
}

// WithRenderProbe supplies a callback reporting whether a host render job is
// active. While it reports true, no capture happens.
func WithRenderProbe(probe func() bool) RecorderOption {
	return func(o *RecorderOptions) {
		o.renderProbe = probe
	}
}

// WithTickPeriod overrides the gate's timer period. Useful in tests; the
// default is fine-grained enough for interactive use.
func WithTickPeriod(d time.Duration) RecorderOption {
	return func(o *RecorderOptions) {
		o.tickPeriod = d
	}
}

// Recorder owns at most one capture session and exposes the user commands:
// start, stop, assemble video, open the output folder.
type Recorder struct {
	RecorderOptions

	conf Config

	mu sync.Mutex
	// tracker keeps the last frame fingerprint across sessions and is reset
	// when a new one starts.
	tracker fingerprint.Tracker
	sess    *session
}

// NewRecorder validates conf, applies defaults for unset values, and returns
// a recorder.
func NewRecorder(conf Config, opts ...RecorderOption) (*Recorder, error) {
	conf.applyDefaults()
	if err := conf.validate(); err != nil {
		return nil, err
	}

	ro := RecorderOptions{
		encoder:    &assemble.FFmpeg{},
		tickPeriod: defaultTickPeriod,
	}
	for _, o := range opts {
		o(&ro)
	}

	return &Recorder{
		RecorderOptions: ro,
		conf:            conf,
	}, nil
}

// Config returns the recorder's effective configuration.
func (r *Recorder) Config() Config {
	return r.conf
}

// Running reports whether a capture session is active.
func (r *Recorder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sess != nil
}

// Start checks the preconditions, runs a trial capture, and arms a session.
// It fails without side effects when the document was never saved, when a
// session already runs, or when the trial capture fails.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sess != nil {
		return ErrRunning
	}
	if r.conf.DocumentPath == "" {
		return ErrNoDocument
	}

	src, err := r.selectSource()
	if err != nil {
		return err
	}
	if err := src.Open(); err != nil {
		return fmt.Errorf("open source: %w", err)
	}

	width, height := r.conf.Resolution.Dims()
	snk := sink.New(r.conf.outputDir(), r.conf.Prefix, sink.Settings{
		Width:   width,
		Height:  height,
		Quality: r.conf.Quality,
	})

	if err := trialCapture(src, snk); err != nil {
		src.Close()
		return fmt.Errorf("%w: %v", ErrTrialCapture, err)
	}
	if err := src.Start(); err != nil {
		src.Close()
		return err
	}

	r.tracker.Reset()
	s := &session{
		src:           src,
		sink:          snk,
		tracker:       &r.tracker,
		skipUnchanged: r.conf.SkipUnchanged,
		renderProbe:   r.renderProbe,
		events:        make(chan Event, 16),
		done:          make(chan struct{}),
		finished:      make(chan struct{}),
		exit:          r.clearSession,
		log:           logger,
	}
	s.gate = gate{interval: time.Duration(r.conf.Interval) * time.Second}
	s.gate.arm(time.Now())

	if r.hub != nil {
		s.unsubscribe = r.hub.Subscribe(s.handleEvent)
	}

	r.sess = s
	go s.run(r.tickPeriod)

	logger.Infof("capture session started, interval %ds", r.conf.Interval)
	return nil
}

// Stop ends the running session and waits for its goroutine to wind down.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	s := r.sess
	r.mu.Unlock()

	if s == nil {
		return ErrNotRunning
	}

	s.stop()
	<-s.finished
	logger.Info("capture session stopped")
	return nil
}

// clearSession is called by the session goroutine as it exits, whether from
// Stop or from a render-start interruption.
func (r *Recorder) clearSession(s *session) {
	r.mu.Lock()
	if r.sess == s {
		r.sess = nil
	}
	r.mu.Unlock()
}

// AssembleVideo encodes every captured frame into a timestamped video in the
// output directory and returns its path. It fails with assemble.ErrNoFrames
// when nothing has been captured yet.
func (r *Recorder) AssembleVideo(ctx context.Context) (string, error) {
	opts := assemble.Options{
		FPS:     r.conf.FPS,
		Quality: r.conf.VideoQuality,
	}
	out, err := assemble.Assemble(ctx, r.encoder, r.conf.outputDir(), r.conf.Prefix, opts, time.Now())
	if err != nil {
		return "", err
	}
	logger.Infof("saved %s", out)
	return out, nil
}

// OpenOutputDir opens the output directory in the platform's file browser,
// creating it first if needed.
func (r *Recorder) OpenOutputDir() error {
	dir := r.conf.outputDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return openFolder(dir)
}

func (r *Recorder) selectSource() (source.Registered, error) {
	if r.src != nil {
		if reg, ok := r.src.(source.Registered); ok {
			return reg, nil
		}
		return source.Wrap(r.src, source.Info{Label: "custom"}), nil
	}
	return source.GetManager().Select()
}

// trialCapture verifies that a full capture round-trips before any session
// state exists: grab a frame, encode it to a throwaway file, delete it.
func trialCapture(src source.Source, snk *sink.Sink) error {
	img, err := src.Capture()
	if err != nil {
		return err
	}

	path := filepath.Join(os.TempDir(), fmt.Sprintf("trial_%s.jpg", uuid.NewString()))
	if err := snk.WriteFile(img, path); err != nil {
		return err
	}
	return os.Remove(path)
}
