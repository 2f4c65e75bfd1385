package snaplapse

import (
	"bytes"
	"image"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/snaplapse/snaplapse/pkg/fingerprint"
	"github.com/snaplapse/snaplapse/pkg/sink"
	"github.com/snaplapse/snaplapse/pkg/source"
)

// session is one running capture. All gate state is owned by the run
// goroutine; the host talks to it only through the event channel and done.
type session struct {
	gate          gate
	src           source.Source
	sink          *sink.Sink
	tracker       *fingerprint.Tracker
	skipUnchanged bool
	renderProbe   func() bool

	events      chan Event
	done        chan struct{}
	finished    chan struct{}
	stopOnce    sync.Once
	unsubscribe func()
	exit        func(*session)

	log logging.LeveledLogger
}

func (s *session) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// handleEvent is the hub subscription callback. It runs on the host's
// goroutine and must not block, so it gives up once the session is done.
func (s *session) handleEvent(e Event) {
	select {
	case s.events <- e:
	case <-s.done:
	}
}

func (s *session) run(tickPeriod time.Duration) {
	defer close(s.finished)
	defer s.teardown()

	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case e := <-s.events:
			switch e {
			case EventInteraction:
				s.gate.interact(time.Now())
			case EventRenderStart:
				// A real render owns the viewport now; the session ends
				// rather than racing it. Closing done first keeps late
				// publishers from blocking on a full event buffer.
				s.log.Info("render started, stopping capture session")
				s.stop()
				return
			case EventRenderEnd:
			}
		case now := <-ticker.C:
			s.onTick(now)
		}
	}
}

func (s *session) onTick(now time.Time) {
	renderActive := s.renderProbe != nil && s.renderProbe()
	switch s.gate.tick(now, renderActive) {
	case actionCapture:
		s.capture(now)
		// Failures advance the schedule too; see gate.advance.
		s.gate.advance(now)
	case actionSuppress:
		s.log.Tracef("viewport idle, suppressing capture")
	case actionDefer, actionHold:
	}
}

func (s *session) capture(now time.Time) {
	img, err := s.src.Capture()
	if err != nil {
		s.log.Warnf("capture failed: %v", err)
		return
	}

	if s.skipUnchanged {
		sum, err := s.probe(img)
		if err != nil {
			s.log.Debugf("fingerprint probe failed: %v", err)
		}
		if !s.tracker.Changed(sum) {
			s.log.Tracef("viewport unchanged, skipping frame")
			return
		}
	}

	path, err := s.sink.SaveFrame(img, now)
	if err != nil {
		s.log.Warnf("save frame: %v", err)
		return
	}
	s.log.Debugf("saved %s", path)
}

// probe encodes a tiny version of img through the sink, temporarily swapping
// in the probe settings, and digests the bytes.
func (s *session) probe(img image.Image) (string, error) {
	restore := s.sink.Apply(sink.Settings{
		Width:   fingerprint.ProbeWidth,
		Height:  fingerprint.ProbeHeight,
		Quality: fingerprint.ProbeQuality,
	})
	defer restore()

	var buf bytes.Buffer
	if err := s.sink.Encode(&buf, img); err != nil {
		return "", err
	}
	return fingerprint.Sum(buf.Bytes()), nil
}

func (s *session) teardown() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if err := s.src.Close(); err != nil {
		s.log.Warnf("close source: %v", err)
	}
	s.exit(s)
}
