package peer

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"classlink/internal/media"
)

// Signaler sends negotiation messages to a specific peer through the
// signaling session. Implemented by the client package; faked in tests.
type Signaler interface {
	SendOffer(to string, sdp []byte) error
	SendAnswer(to string, sdp []byte) error
	SendCandidate(to string, candidate []byte) error
}

// Config parameterizes one coordinator.
type Config struct {
	ICEServers   []webrtc.ICEServer
	Constraints  media.Constraints
	RestartDelay time.Duration // post-connect media restart delay; 0 means 3s
}

// Coordinator owns the media-negotiation state machine for one call. It
// drives offer/answer/ICE exchange through the Signaler, binds local capture
// from the media manager, and performs the one-shot post-connect media
// restart that works around capture-device warm-up artifacts (the first
// negotiation tends to settle on pre-warm-up resolution and frame rate).
//
// At most one counterpart is associated per coordinator. No timeout is
// enforced on the signaling exchange itself: a negotiation that never
// completes parks in connecting until the peer leaves or the caller closes.
type Coordinator struct {
	cfg      Config
	signaler Signaler
	manager  *media.Manager
	remote   media.Sink
	onStatus func(string)

	mu           sync.Mutex
	pc           *webrtc.PeerConnection
	stream       *media.Stream
	peerID       string
	initiator    bool
	state        State
	restartTimer *time.Timer
	closed       bool
}

// NewCoordinator creates an idle coordinator. onStatus receives every
// user-facing status change; pass nil to discard them.
func NewCoordinator(cfg Config, signaler Signaler, manager *media.Manager, remote media.Sink, onStatus func(string)) *Coordinator {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 3 * time.Second
	}
	if cfg.Constraints == (media.Constraints{}) {
		cfg.Constraints = media.DefaultConstraints()
	}
	return &Coordinator{
		cfg:      cfg,
		signaler: signaler,
		manager:  manager,
		remote:   remote,
		onStatus: onStatus,
		state:    StateIdle,
	}
}

// State returns the current negotiation state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PeerID returns the counterpart's connection ID, "" when awaiting a peer.
func (c *Coordinator) PeerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerID
}

// StartCall initiates a call toward peerID: this side creates and sends the
// offer. Called by the client when the server tags an event shouldInitiate.
func (c *Coordinator) StartCall(peerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateFailed {
		return ErrCoordinatorFailed
	}

	if err := c.ensurePeerLocked(peerID); err != nil {
		return err
	}
	c.initiator = true
	c.setStateLocked(StateConnecting)

	return c.sendOfferLocked()
}

// HandleOffer answers an incoming offer, creating the peer connection on
// demand when this is the first signal from the counterpart.
func (c *Coordinator) HandleOffer(from string, sdp []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateFailed {
		return ErrCoordinatorFailed
	}

	if err := c.ensurePeerLocked(from); err != nil {
		return err
	}
	if c.state == StateIdle {
		c.setStateLocked(StateConnecting)
	}

	var desc webrtc.SessionDescription
	if err := json.Unmarshal(sdp, &desc); err != nil {
		return ErrMalformedDescription
	}
	if err := c.pc.SetRemoteDescription(desc); err != nil {
		return err
	}

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return err
	}

	data, err := json.Marshal(c.pc.LocalDescription())
	if err != nil {
		return err
	}
	return c.signaler.SendAnswer(from, data)
}

// HandleAnswer installs the counterpart's answer to our outstanding offer.
func (c *Coordinator) HandleAnswer(from string, sdp []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pc == nil || c.peerID != from {
		return nil // stale answer from a departed negotiation
	}

	var desc webrtc.SessionDescription
	if err := json.Unmarshal(sdp, &desc); err != nil {
		return ErrMalformedDescription
	}
	return c.pc.SetRemoteDescription(desc)
}

// HandleCandidate adds a trickled ICE candidate. Candidates that arrive
// before the remote description is set are dropped silently; cross-sender
// ordering is not guaranteed and a renegotiation regenerates the set anyway.
func (c *Coordinator) HandleCandidate(from string, candidate []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pc == nil || c.peerID != from {
		return nil
	}
	if c.pc.RemoteDescription() == nil {
		return nil
	}

	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(candidate, &init); err != nil {
		return ErrMalformedCandidate
	}
	return c.pc.AddICECandidate(init)
}

// HandlePeerLeft tears the call down when the counterpart departs. The
// coordinator returns to awaiting-peer; no automatic re-offer is attempted.
func (c *Coordinator) HandlePeerLeft(peerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.peerID == "" || c.peerID != peerID {
		return
	}

	log.Printf("Peer left, tearing down call: peer=%s", peerID)
	c.teardownLocked()
	c.setStateLocked(StateIdle)
	c.notify("Peer left the class. " + StateIdle.StatusText())
}

// Close releases every resource on any exit path: pending restart timer,
// peer connection, local capture.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.teardownLocked()
}

// ensurePeerLocked binds the counterpart and builds the peer connection and
// local media if they do not exist yet.
func (c *Coordinator) ensurePeerLocked(peerID string) error {
	if c.peerID != "" && c.peerID != peerID {
		return ErrPeerAlreadyBound
	}
	c.peerID = peerID

	if c.stream == nil {
		stream, err := c.manager.Acquire(c.cfg.Constraints)
		if err != nil {
			c.notify("Camera or microphone unavailable.")
			return err
		}
		c.stream = stream
	}

	if c.pc != nil {
		return nil
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: c.cfg.ICEServers})
	if err != nil {
		return err
	}

	for _, track := range c.stream.Tracks() {
		if _, err := pc.AddTrack(track); err != nil {
			_ = pc.Close()
			return err
		}
	}

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		c.mu.Lock()
		to := c.peerID
		c.mu.Unlock()
		if to == "" {
			return
		}
		data, err := json.Marshal(candidate.ToJSON())
		if err != nil {
			return
		}
		if err := c.signaler.SendCandidate(to, data); err != nil {
			log.Printf("Failed to send ICE candidate: %v", err)
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Printf("Remote track received: kind=%s", track.Kind())
		if c.remote != nil {
			c.remote.Attach(track)
		}
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		c.handleICEState(state)
	})

	c.pc = pc
	return nil
}

// handleICEState maps transport connectivity onto the coordinator state
// machine and arms the post-connect restart timer.
func (c *Coordinator) handleICEState(iceState webrtc.ICEConnectionState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.pc == nil {
		return
	}

	switch iceState {
	case webrtc.ICEConnectionStateChecking:
		c.setStateLocked(StateConnecting)

	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		c.setStateLocked(StateConnected)
		c.scheduleRestartLocked()

	case webrtc.ICEConnectionStateDisconnected:
		c.setStateLocked(StateDisconnected)

	case webrtc.ICEConnectionStateFailed:
		// Terminal: the caller must discard this coordinator and start a
		// fresh one to retry.
		c.setStateLocked(StateFailed)
		c.cancelRestartLocked()
	}
}

// scheduleRestartLocked arms the one-shot media restart. A connected
// transition that arrives while a timer is already pending replaces it, so
// flapping cannot stack duplicate restarts.
func (c *Coordinator) scheduleRestartLocked() {
	c.cancelRestartLocked()
	c.restartTimer = time.AfterFunc(c.cfg.RestartDelay, c.restartMedia)
}

func (c *Coordinator) cancelRestartLocked() {
	if c.restartTimer != nil {
		c.restartTimer.Stop()
		c.restartTimer = nil
	}
}

// restartMedia replaces the local capture and renegotiates around the new
// tracks. Fires once per successful connection, 3s after connected.
func (c *Coordinator) restartMedia() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.restartTimer = nil
	if c.closed || c.pc == nil || c.state != StateConnected {
		return
	}

	log.Printf("Restarting media stream: peer=%s", c.peerID)
	c.notify("Improving media quality...")

	for _, sender := range c.pc.GetSenders() {
		if err := c.pc.RemoveTrack(sender); err != nil {
			log.Printf("Failed to remove sender: %v", err)
		}
	}

	newStream, err := c.manager.Replace(c.stream)
	if err != nil {
		c.stream = nil
		log.Printf("Media restart failed: %v", err)
		c.notify("Media refresh failed; quality may be degraded.")
		return
	}
	c.stream = newStream

	for _, track := range newStream.Tracks() {
		if _, err := c.pc.AddTrack(track); err != nil {
			log.Printf("Failed to add replacement track: %v", err)
		}
	}

	// Only the initiating side renegotiates; the answering side picks the
	// fresh offer up through the normal offer path.
	if c.initiator && c.peerID != "" {
		if err := c.sendOfferLocked(); err != nil {
			log.Printf("Renegotiation offer failed: %v", err)
		}
	}

	c.notify(StateConnected.StatusText())
}

// sendOfferLocked creates, installs and sends an offer to the bound peer.
func (c *Coordinator) sendOfferLocked() error {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return err
	}

	// Trickle ICE: the local description goes out immediately, candidates
	// follow through OnICECandidate.
	data, err := json.Marshal(c.pc.LocalDescription())
	if err != nil {
		return err
	}
	return c.signaler.SendOffer(c.peerID, data)
}

// teardownLocked releases every per-call resource: restart timer, peer
// connection, local capture, remote render surface.
func (c *Coordinator) teardownLocked() {
	c.cancelRestartLocked()

	if c.pc != nil {
		if err := c.pc.Close(); err != nil {
			log.Printf("Failed to close peer connection: %v", err)
		}
		c.pc = nil
	}

	if c.stream != nil {
		c.manager.Release(c.stream)
		c.stream = nil
	}

	if c.remote != nil {
		c.remote.Clear()
	}

	c.peerID = ""
	c.initiator = false
}

func (c *Coordinator) setStateLocked(state State) {
	if c.state == state {
		return
	}
	log.Printf("Coordinator state: %s -> %s", c.state, state)
	c.state = state
	c.notify(state.StatusText())
}

func (c *Coordinator) notify(status string) {
	if c.onStatus != nil {
		c.onStatus(status)
	}
}
