package media

import (
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// SyntheticDevice generates blank VP8 video and Opus audio samples at the
// requested frame rate. It stands in for real capture hardware in the CLI
// client and in tests; everything downstream (track swap, renegotiation,
// release) behaves exactly as it would with a camera.
type SyntheticDevice struct{}

// NewSyntheticDevice creates a synthetic capture device.
func NewSyntheticDevice() *SyntheticDevice {
	return &SyntheticDevice{}
}

// Open creates the track set for one synthetic stream and starts its sample
// generator. The generator stops when the stream is closed.
func (d *SyntheticDevice) Open(constraints Constraints) (*Stream, error) {
	streamID := uuid.New().String()

	videoTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video", streamID,
	)
	if err != nil {
		return nil, err
	}

	tracks := []webrtc.TrackLocal{videoTrack}
	var audioTrack *webrtc.TrackLocalStaticSample
	if constraints.Audio {
		audioTrack, err = webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
			"audio", streamID,
		)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, audioTrack)
	}

	frameRate := constraints.FrameRate
	if frameRate <= 0 {
		frameRate = 30
	}

	done := make(chan struct{})
	go func() {
		frameInterval := time.Second / time.Duration(frameRate)
		ticker := time.NewTicker(frameInterval)
		defer ticker.Stop()

		// Writes fail harmlessly until the track is bound to a sender;
		// the generator just keeps pacing.
		blankFrame := make([]byte, 512)
		silence := make([]byte, 96)
		for {
			select {
			case <-ticker.C:
				_ = videoTrack.WriteSample(media.Sample{Data: blankFrame, Duration: frameInterval})
				if audioTrack != nil {
					_ = audioTrack.WriteSample(media.Sample{Data: silence, Duration: frameInterval})
				}
			case <-done:
				return
			}
		}
	}()

	return &Stream{
		id:          streamID,
		constraints: constraints,
		tracks:      tracks,
		stop:        func() { close(done) },
	}, nil
}
