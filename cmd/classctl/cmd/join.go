package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"classlink/internal/client"
	"classlink/internal/media"
	"classlink/internal/peer"
	"classlink/pkg/types"
)

var (
	flagToken    string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagNoAudio  bool
)

var joinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Join a room and negotiate a call with its peer",
	Long: `Join a tutoring room on the signaling server. If a peer is already
present, the server instructs this side to initiate; if the room is empty,
classctl waits for a peer and answers their offer.

Examples:
  classctl join lesson-42
  classctl join lesson-42 --token eyJhbGci...
  classctl join lesson-42 --server wss://class.example.com/ws`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJoin(args[0])
	},
}

// consoleSink renders remote tracks as log lines. The CLI has no display
// surface; seeing a track arrive is the point.
type consoleSink struct{}

func (consoleSink) Attach(track *webrtc.TrackRemote) {
	fmt.Printf("Receiving remote %s track (codec %s)\n", track.Kind(), track.Codec().MimeType)
}

func (consoleSink) Clear() {
	fmt.Println("Remote media detached")
}

func runJoin(roomID string) error {
	if !types.IsValidRoomID(roomID) {
		return fmt.Errorf("invalid room ID: %q", roomID)
	}

	iceServers := []webrtc.ICEServer{{URLs: []string{flagSTUN}}}
	if flagTURN != "" {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       []string{flagTURN},
			Username:   flagTURNUser,
			Credential: flagTURNPass,
		})
	}

	manager := media.NewManager(media.NewSyntheticDevice())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	session, err := client.Dial(ctx, flagServer, client.Handlers{})
	if err != nil {
		return fmt.Errorf("connect to %s: %w", flagServer, err)
	}
	defer session.Close()

	constraints := media.DefaultConstraints()
	constraints.Audio = !flagNoAudio

	coordinator := peer.NewCoordinator(peer.Config{
		ICEServers:  iceServers,
		Constraints: constraints,
	}, session, manager, consoleSink{}, func(status string) {
		fmt.Println(status)
	})
	defer coordinator.Close()

	// Handlers are installed after the coordinator exists; the server sends
	// nothing until join-room goes out, so no events can be missed.
	session.SetHandlers(client.Handlers{
		OnPeerJoined: func(p types.PeerJoined) {
			fmt.Printf("Peer joined: %s (%s)\n", p.Username, p.Role)
			if p.ShouldInitiate {
				if err := coordinator.StartCall(p.ID); err != nil {
					log.Printf("Failed to start call: %v", err)
				}
			}
		},
		OnPeersInRoom: func(p types.PeersInRoom) {
			if len(p.IDs) == 0 {
				fmt.Println("Room is empty; waiting for a peer.")
				return
			}
			fmt.Printf("Peers already in room: %v; awaiting their offer.\n", p.IDs)
		},
		OnPeerLeft: func(p types.PeerLeft) {
			coordinator.HandlePeerLeft(p.ID)
		},
		OnOffer: func(from string, sdp []byte) {
			if err := coordinator.HandleOffer(from, sdp); err != nil {
				log.Printf("Failed to handle offer: %v", err)
			}
		},
		OnAnswer: func(from string, sdp []byte) {
			if err := coordinator.HandleAnswer(from, sdp); err != nil {
				log.Printf("Failed to handle answer: %v", err)
			}
		},
		OnCandidate: func(from string, candidate []byte) {
			if err := coordinator.HandleCandidate(from, candidate); err != nil {
				log.Printf("Failed to handle candidate: %v", err)
			}
		},
		OnSystem: func(s types.System) {
			fmt.Printf("Server: %s: %s\n", s.Event, s.Message)
		},
	})

	if flagToken != "" {
		if err := session.Authenticate(flagToken); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
	}
	if err := session.JoinRoom(roomID); err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	fmt.Printf("Joined room %s on %s\n", roomID, flagServer)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		fmt.Println("\nLeaving room...")
		_ = session.LeaveRoom()
		return nil
	case <-session.Done():
		if err := session.Err(); err != nil {
			return fmt.Errorf("session ended: %w", err)
		}
		return nil
	}
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&flagToken, "token", "t", "", "JWT credential (omit to join anonymously)")
	joinCmd.Flags().StringVar(&flagSTUN, "stun", "stun:stun.l.google.com:19302", "STUN server URL")
	joinCmd.Flags().StringVar(&flagTURN, "turn", "", "TURN server URL")
	joinCmd.Flags().StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	joinCmd.Flags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	joinCmd.Flags().BoolVar(&flagNoAudio, "no-audio", false, "Send video only")
}
