// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	pionwebrtc "github.com/pion/webrtc/v4"

	"github.com/rapidaai/clipcast/pkg/commons"
)

// Opus/RTP constants mirrored from the teacher's webrtc_internal package.
const (
	opusSampleRate  = 48000
	opusPayloadType = 111
	eventChannelSize = 500
)

// room tracks one active WebRTC room's peer connection and event fan-out,
// the gateway-side equivalent of the teacher's webrtcStreamer.
type room struct {
	mu sync.Mutex

	roomURL string
	pc      *pionwebrtc.PeerConnection
	dc      *pionwebrtc.DataChannel

	events chan Event
	closed bool
}

// WebRTCGateway is a Pion-backed Gateway implementation. One room exists per
// roomURL; rooms are looked up under a single map lock, matching the
// teacher's "shared, safely-concurrent collaborator, multiplexed by
// room_url" requirement (spec §5).
type WebRTCGateway struct {
	log commons.Logger
	cfg pionwebrtc.Configuration

	mu    sync.Mutex
	rooms map[string]*room

	// RetryBudget/RetryBackoff implement CreateRoom's bounded retry policy
	// (spec §4.1: default 3 attempts, 500ms+jitter backoff).
	RetryBudget  int
	RetryBackoff time.Duration
}

// NewWebRTCGateway builds a gateway using the given STUN/TURN servers.
func NewWebRTCGateway(log commons.Logger, iceServers []pionwebrtc.ICEServer) *WebRTCGateway {
	return &WebRTCGateway{
		log: log,
		cfg: pionwebrtc.Configuration{
			ICEServers: iceServers,
		},
		rooms:        make(map[string]*room),
		RetryBudget:  3,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// CreateRoom opens a new peer connection and registers it under a fresh
// room_url, retrying the upstream negotiation with jittered backoff.
func (g *WebRTCGateway) CreateRoom(ctx context.Context) (string, string, error) {
	var lastErr error
	for attempt := 0; attempt < g.RetryBudget; attempt++ {
		roomURL, token, err := g.tryCreateRoom()
		if err == nil {
			return roomURL, token, nil
		}
		lastErr = err
		g.log.Warnw("create_room attempt failed", "attempt", attempt+1, "err", err)

		jitter := time.Duration(rand.Int63n(int64(g.RetryBackoff)))
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case <-time.After(g.RetryBackoff + jitter):
		}
	}
	return "", "", fmt.Errorf("%w: %v", commons.ErrTransportUnavailable, lastErr)
}

func (g *WebRTCGateway) tryCreateRoom() (string, string, error) {
	se := pionwebrtc.SettingEngine{}
	m := &pionwebrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return "", "", err
	}
	i := &interceptor.Registry{}
	api := pionwebrtc.NewAPI(pionwebrtc.WithMediaEngine(m), pionwebrtc.WithInterceptorRegistry(i), pionwebrtc.WithSettingEngine(se))

	pc, err := api.NewPeerConnection(g.cfg)
	if err != nil {
		return "", "", err
	}

	roomURL := fmt.Sprintf("room:%s", uuid.NewString())
	token := uuid.NewString()

	r := &room{
		roomURL: roomURL,
		pc:      pc,
		events:  make(chan Event, eventChannelSize),
	}
	g.wireRoomCallbacks(r)

	g.mu.Lock()
	g.rooms[roomURL] = r
	g.mu.Unlock()

	return roomURL, token, nil
}

// wireRoomCallbacks attaches the pion event handlers that translate
// PeerConnection callbacks into Gateway Events, mirroring the teacher's
// "recv (non-blocking) -> inputCh" pattern.
func (g *WebRTCGateway) wireRoomCallbacks(r *room) {
	r.pc.OnDataChannel(func(dc *pionwebrtc.DataChannel) {
		r.mu.Lock()
		r.dc = dc
		r.mu.Unlock()

		dc.OnMessage(func(msg pionwebrtc.DataChannelMessage) {
			g.publish(r, Event{Kind: EventAppMessage, Payload: msg.Data})
		})
	})

	r.pc.OnTrack(func(track *pionwebrtc.TrackRemote, receiver *pionwebrtc.RTPReceiver) {
		go g.readRemoteAudio(r, track)
	})

	r.pc.OnICEConnectionStateChange(func(state pionwebrtc.ICEConnectionState) {
		switch state {
		case pionwebrtc.ICEConnectionStateConnected:
			g.publish(r, Event{Kind: EventParticipantJoined, ParticipantID: r.roomURL, IsBot: false})
		case pionwebrtc.ICEConnectionStateDisconnected, pionwebrtc.ICEConnectionStateFailed:
			g.publish(r, Event{Kind: EventParticipantLeft, ParticipantID: r.roomURL})
		}
	})
}

// readRemoteAudio depacketizes inbound RTP into raw PCM events. Real Opus
// decoding is performed downstream by the Transcriber's resampler stage;
// this loop only strips RTP framing.
func (g *WebRTCGateway) readRemoteAudio(r *room, track *pionwebrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		n, _, err := track.Read(buf)
		if err != nil {
			return
		}
		pkt := &rtp.Packet{}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			continue
		}
		if pkt.PayloadType != opusPayloadType {
			continue
		}

		pcm := make([]int16, len(pkt.Payload)/2)
		for i := range pcm {
			pcm[i] = int16(binary.LittleEndian.Uint16(pkt.Payload[i*2 : i*2+2]))
		}

		g.publish(r, Event{
			Kind:       EventAudioFrame,
			PCM:        pcm,
			SampleRate: opusSampleRate,
			Timestamp:  time.Now(),
		})
	}
}

func (g *WebRTCGateway) publish(r *room, ev Event) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return
	}
	select {
	case r.events <- ev:
	default:
		g.log.Warnw("room event channel full, dropping event", "room", r.roomURL, "kind", ev.Kind)
	}
}

// DestroyRoom tears down the peer connection and closes the event channel.
// Idempotent: destroying an already-absent room succeeds.
func (g *WebRTCGateway) DestroyRoom(ctx context.Context, roomURL string) error {
	g.mu.Lock()
	r, ok := g.rooms[roomURL]
	if ok {
		delete(g.rooms, roomURL)
	}
	g.mu.Unlock()
	if !ok {
		return nil
	}

	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.mu.Unlock()

	if r.pc != nil {
		return r.pc.Close()
	}
	return nil
}

// SendAppMessage writes payload to the room's data channel. Recipient
// targeting is a no-op in the single-participant room model; multi-party
// targeting is left to the data channel protocol layer.
func (g *WebRTCGateway) SendAppMessage(ctx context.Context, roomURL string, payload []byte, recipient Recipient) error {
	g.mu.Lock()
	r, ok := g.rooms[roomURL]
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", commons.ErrUnknownRoom, roomURL)
	}

	r.mu.Lock()
	dc := r.dc
	r.mu.Unlock()
	if dc == nil {
		return fmt.Errorf("%w: data channel not yet established for %s", commons.ErrTransportLost, roomURL)
	}
	return dc.Send(payload)
}

// Subscribe returns the room's event stream. Pion's own reconnection
// (ICE restart) keeps the same channel alive across a transport hiccup; a
// caller reconnecting after DestroyRoom gets a fresh channel via a new
// CreateRoom call, per spec §4.1's "restartable across a transport outage".
func (g *WebRTCGateway) Subscribe(ctx context.Context, roomURL string) (<-chan Event, error) {
	g.mu.Lock()
	r, ok := g.rooms[roomURL]
	g.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", commons.ErrUnknownRoom, roomURL)
	}
	return r.events, nil
}
