// Package dashboard serves a tiny websocket feed of demux events for
// live inspection while a file is being probed: every OnMediaInfo,
// OnTrackMetadata and OnDataAvailable call is re-encoded as JSON and
// pushed to every connected client, mirroring the reference NVR
// codebase's pkg/web Logs websocket handler (subscribe to a feed,
// write each message until the client goes away).
package dashboard

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"mp4demux/pkg/demux"
	"mp4demux/pkg/mp4"
	"mp4demux/pkg/mp4log"
)

// Event is the JSON envelope pushed to every connected client.
type Event struct {
	Kind string      `json:"kind"`
	Data interface{} `json:"data"`
}

// Hub fans out Sink events to any number of connected websocket
// clients and also forwards every call to an inner Sink, so it can
// wrap a demux.Demuxer's real sink transparently.
type Hub struct {
	inner demux.Sink
	log   *mp4log.Logger

	mu      sync.Mutex
	clients map[chan Event]struct{}
}

// NewHub wraps inner, broadcasting a copy of every event it receives.
// A nil inner is replaced with demux.DiscardSink{}.
func NewHub(inner demux.Sink, log *mp4log.Logger) *Hub {
	if inner == nil {
		inner = demux.DiscardSink{}
	}
	if log == nil {
		log = mp4log.Discard()
	}
	return &Hub{
		inner:   inner,
		log:     log,
		clients: make(map[chan Event]struct{}),
	}
}

// OnError implements demux.Sink.
func (h *Hub) OnError(kind mp4.ErrorKind, info string) {
	h.inner.OnError(kind, info)
	h.broadcast(Event{Kind: "error", Data: map[string]string{"kind": kind.String(), "info": info}})
}

// OnMediaInfo implements demux.Sink.
func (h *Hub) OnMediaInfo(info demux.MediaInfo) {
	h.inner.OnMediaInfo(info)
	h.broadcast(Event{Kind: "media_info", Data: info})
}

// OnTrackMetadata implements demux.Sink.
func (h *Hub) OnTrackMetadata(kind string, meta demux.VideoMeta) {
	h.inner.OnTrackMetadata(kind, meta)
	h.broadcast(Event{Kind: "track_metadata", Data: meta})
}

// OnDataAvailable implements demux.Sink.
func (h *Hub) OnDataAvailable(audio *demux.AudioTrack, video *demux.VideoTrack) {
	h.inner.OnDataAvailable(audio, video)
	if video == nil {
		return
	}
	summaries := make([]map[string]interface{}, 0, len(video.Samples))
	for _, s := range video.Samples {
		summaries = append(summaries, map[string]interface{}{
			"dts":        s.DTS,
			"pts":        s.PTS,
			"keyframe":   s.IsKeyframe,
			"nalu_count": len(s.NALUs),
			"length":     s.Length,
		})
	}
	h.broadcast(Event{Kind: "samples", Data: map[string]interface{}{
		"track_id": video.ID,
		"samples":  summaries,
	}})
}

func (h *Hub) broadcast(evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for feed := range h.clients {
		select {
		case feed <- evt:
		default:
			// slow client, drop the event rather than block the demuxer
		}
	}
}

// Handler upgrades each request to a websocket and streams events to
// it until the connection closes.
func (h *Hub) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer conn.Close()

		feed := h.subscribe()
		defer h.unsubscribe(feed)

		for evt := range feed {
			raw, err := json.Marshal(evt)
			if err != nil {
				h.log.Error().Src("dashboard").Msgf("marshal event: %v", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		}
	})
}

func (h *Hub) subscribe() chan Event {
	feed := make(chan Event, 64)
	h.mu.Lock()
	h.clients[feed] = struct{}{}
	h.mu.Unlock()
	return feed
}

func (h *Hub) unsubscribe(feed chan Event) {
	h.mu.Lock()
	delete(h.clients, feed)
	h.mu.Unlock()
	close(feed)
}
