package media

import (
	"fmt"
	"log"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Constraints describe the capture the caller wants. Values are ideals, not
// requirements; a device delivers its closest match.
type Constraints struct {
	Width     int
	Height    int
	FrameRate int
	Audio     bool
}

// DefaultConstraints matches the platform's classroom capture profile.
func DefaultConstraints() Constraints {
	return Constraints{
		Width:     1280,
		Height:    720,
		FrameRate: 30,
		Audio:     true,
	}
}

// Stream is one acquired local capture: a set of sendable tracks plus the
// hook to stop the underlying device.
type Stream struct {
	id          string
	constraints Constraints
	tracks      []webrtc.TrackLocal
	stop        func()
	stopped     bool
	mu          sync.Mutex
}

// ID returns the stream identifier assigned by the device.
func (s *Stream) ID() string { return s.id }

// Constraints returns the constraints the stream was acquired with.
func (s *Stream) Constraints() Constraints { return s.constraints }

// Tracks returns the local tracks to attach to a peer connection.
func (s *Stream) Tracks() []webrtc.TrackLocal { return s.tracks }

// Close stops the capture device behind the stream. Idempotent.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.stop != nil {
		s.stop()
	}
}

// Device produces local capture streams. The synthetic device in this package
// is the default; real camera/microphone capture plugs in behind the same
// interface.
type Device interface {
	Open(constraints Constraints) (*Stream, error)
}

// Sink is a render surface for a remote track: the client's "remote video
// element" equivalent.
type Sink interface {
	Attach(track *webrtc.TrackRemote)
	Clear()
}

// Manager owns local capture lifecycle: acquire, release, and the
// stop-and-reacquire swap used by the post-connect media restart. Failure to
// acquire is terminal for that attempt; the manager never retries on its own.
type Manager struct {
	device Device
	mu     sync.Mutex
	active map[string]*Stream
}

// NewManager creates a manager over the given capture device.
func NewManager(device Device) *Manager {
	return &Manager{
		device: device,
		active: make(map[string]*Stream),
	}
}

// Acquire opens a capture stream for the given constraints.
func (m *Manager) Acquire(constraints Constraints) (*Stream, error) {
	stream, err := m.device.Open(constraints)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaAccess, err)
	}

	m.mu.Lock()
	m.active[stream.id] = stream
	m.mu.Unlock()

	log.Printf("Media acquired: stream=%s tracks=%d", stream.id, len(stream.tracks))
	return stream, nil
}

// Release stops a stream and forgets it. Safe on already-released streams.
func (m *Manager) Release(stream *Stream) {
	if stream == nil {
		return
	}

	m.mu.Lock()
	delete(m.active, stream.id)
	m.mu.Unlock()

	stream.Close()
	log.Printf("Media released: stream=%s", stream.id)
}

// Replace performs the restart swap: stop the old capture, reacquire with the
// same constraints. The old stream is always released, even when reacquiring
// fails.
func (m *Manager) Replace(old *Stream) (*Stream, error) {
	constraints := DefaultConstraints()
	if old != nil {
		constraints = old.constraints
	}

	m.Release(old)
	return m.Acquire(constraints)
}

// ActiveCount reports how many streams are currently held open.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}
