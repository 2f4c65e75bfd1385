package snaplapse

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/snaplapse/snaplapse/pkg/sink"
)

type fakeSource struct {
	mu          sync.Mutex
	failCapture bool
	// failAfter makes every capture past the first n fail, so the trial can
	// succeed while session captures break.
	failAfter int
	static    bool
	calls     int
	captures  int
	closes    int
}

func (f *fakeSource) Open() error { return nil }

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeSource) Bounds() image.Rectangle {
	return image.Rect(0, 0, 64, 36)
}

func (f *fakeSource) Capture() (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.failCapture {
		return nil, errors.New("no display")
	}
	if f.failAfter > 0 && f.calls > f.failAfter {
		return nil, errors.New("display lost")
	}

	f.captures++
	shade := uint8(200)
	if !f.static {
		shade = uint8(f.captures * 10)
	}
	img := image.NewRGBA(f.Bounds())
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	return img, nil
}

func (f *fakeSource) captureCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSource) closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes > 0
}

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	conf := DefaultConfig()
	conf.DocumentPath = filepath.Join(dir, "castle.scene")
	conf.OutputDir = filepath.Join(dir, "frames")
	conf.Interval = 1
	conf.SkipUnchanged = false
	return conf
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func frameNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".jpg") {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestStartRequiresSavedDocument(t *testing.T) {
	conf := testConfig(t)
	conf.DocumentPath = ""

	r, err := NewRecorder(conf, WithSource(&fakeSource{}))
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Start(); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument, got %v", err)
	}
	if r.Running() {
		t.Fatal("no session should be running")
	}
}

func TestStartFailsWhenTrialCaptureFails(t *testing.T) {
	conf := testConfig(t)
	src := &fakeSource{failCapture: true}

	r, err := NewRecorder(conf, WithSource(src))
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Start(); !errors.Is(err, ErrTrialCapture) {
		t.Fatalf("expected ErrTrialCapture, got %v", err)
	}
	if r.Running() {
		t.Fatal("no session should be running")
	}
	if names := frameNames(t, conf.OutputDir); len(names) != 0 {
		t.Fatalf("trial capture left files behind: %v", names)
	}
}

func TestStartStop(t *testing.T) {
	conf := testConfig(t)
	src := &fakeSource{}

	r, err := NewRecorder(conf, WithSource(src), WithTickPeriod(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	if !r.Running() {
		t.Fatal("expected a running session")
	}
	if err := r.Start(); !errors.Is(err, ErrRunning) {
		t.Fatalf("expected ErrRunning, got %v", err)
	}

	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
	if r.Running() {
		t.Fatal("session still running after Stop")
	}
	if !src.closed() {
		t.Fatal("source was not closed")
	}
	if err := r.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestCapturesFrames(t *testing.T) {
	conf := testConfig(t)

	r, err := NewRecorder(conf, WithSource(&fakeSource{}), WithTickPeriod(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	waitFor(t, 3*time.Second, func() bool {
		return len(frameNames(t, conf.OutputDir)) > 0
	})

	namePattern := regexp.MustCompile(`^snap_\d{8}_\d{6}\.jpg$`)
	for _, name := range frameNames(t, conf.OutputDir) {
		if !namePattern.MatchString(name) {
			t.Fatalf("unexpected frame name %q", name)
		}
	}
}

func TestSkipUnchangedFrames(t *testing.T) {
	conf := testConfig(t)
	conf.SkipUnchanged = true

	r, err := NewRecorder(conf, WithSource(&fakeSource{static: true}), WithTickPeriod(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	waitFor(t, 3*time.Second, func() bool {
		return len(frameNames(t, conf.OutputDir)) > 0
	})

	// Give the gate time for further attempts; an unchanged viewport must
	// not produce more frames.
	time.Sleep(1500 * time.Millisecond)
	if names := frameNames(t, conf.OutputDir); len(names) != 1 {
		t.Fatalf("expected a single frame, got %v", names)
	}
}

// TestFailedCapturesStayIntervalSpaced covers the schedule-advance rule on
// the failure side: a broken source must be retried at the capture interval,
// not on every fine-grained tick.
func TestFailedCapturesStayIntervalSpaced(t *testing.T) {
	conf := testConfig(t)
	src := &fakeSource{failAfter: 1}

	r, err := NewRecorder(conf, WithSource(src), WithTickPeriod(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	time.Sleep(2500 * time.Millisecond)

	// The trial plus at most three interval-spaced attempts fit in 2.5s with
	// a 1s interval. A gate that fails to advance would attempt on every
	// 20ms tick and land in the hundreds.
	calls := src.captureCalls()
	if calls < 2 {
		t.Fatalf("no capture attempt after the trial: %d calls", calls)
	}
	if calls > 5 {
		t.Fatalf("expected interval-spaced attempts, got %d capture calls", calls)
	}
	if names := frameNames(t, conf.OutputDir); len(names) != 0 {
		t.Fatalf("failed captures produced frames: %v", names)
	}
}

func TestRenderStartInterruptsSession(t *testing.T) {
	conf := testConfig(t)
	src := &fakeSource{}
	hub := NewHub()

	r, err := NewRecorder(conf,
		WithSource(src),
		WithHub(hub),
		WithTickPeriod(20*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Start(); err != nil {
		t.Fatal(err)
	}

	hub.Publish(EventRenderStart)

	waitFor(t, 2*time.Second, func() bool { return !r.Running() })
	if !src.closed() {
		t.Fatal("source was not closed")
	}
}

// TestRenderStartClosesSessionDone pins down the render-start exit path: it
// must close done like Stop does, so event publishers can never block on a
// session that already ended.
func TestRenderStartClosesSessionDone(t *testing.T) {
	s := &session{
		src:      &fakeSource{},
		sink:     sink.New(t.TempDir(), "snap", sink.Settings{Quality: 70}),
		events:   make(chan Event, 16),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		exit:     func(*session) {},
		log:      logger,
	}
	s.gate = gate{interval: time.Second}
	s.gate.arm(time.Now())

	go s.run(20 * time.Millisecond)
	s.handleEvent(EventRenderStart)
	<-s.finished

	select {
	case <-s.done:
	default:
		t.Fatal("done must be closed after a render-start exit")
	}

	// More events than the buffer holds must all fall through instead of
	// blocking.
	for i := 0; i < cap(s.events)+1; i++ {
		s.handleEvent(EventInteraction)
	}
}

func TestFingerprintResetsBetweenSessions(t *testing.T) {
	conf := testConfig(t)
	conf.SkipUnchanged = true
	src := &fakeSource{static: true}

	r, err := NewRecorder(conf, WithSource(src), WithTickPeriod(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 3*time.Second, func() bool {
		return len(frameNames(t, conf.OutputDir)) == 1
	})
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}

	// A fresh session keeps the first frame even though the viewport looks
	// exactly like it did before.
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()
	waitFor(t, 3*time.Second, func() bool {
		return len(frameNames(t, conf.OutputDir)) == 2
	})
}

func TestRenderProbeHoldsCaptures(t *testing.T) {
	conf := testConfig(t)

	r, err := NewRecorder(conf,
		WithSource(&fakeSource{}),
		WithRenderProbe(func() bool { return true }),
		WithTickPeriod(20*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	time.Sleep(1500 * time.Millisecond)
	if names := frameNames(t, conf.OutputDir); len(names) != 0 {
		t.Fatalf("captures happened during a render: %v", names)
	}
}
