package app

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"huddle/api/internal/content"
)

const (
	liveReadLimit    = 1 << 20
	liveWriteTimeout = 10 * time.Second
)

type liveRequest struct {
	Seq     uint64 `json:"seq"`
	Content string `json:"content"`
}

type liveResponse struct {
	Seq      uint64 `json:"seq"`
	HTML     string `json:"html"`
	Degraded bool   `json:"degraded"`
}

type livePublished struct {
	generation uint64
	res        content.Result
}

// liveOutbox holds the newest published result until the socket writer
// takes it. A result that is not taken in time is overwritten.
type liveOutbox struct {
	mu      sync.Mutex
	pending *livePublished
	ready   chan struct{}
}

func newLiveOutbox() *liveOutbox {
	return &liveOutbox{ready: make(chan struct{}, 1)}
}

func (o *liveOutbox) put(generation uint64, res content.Result) {
	o.mu.Lock()
	o.pending = &livePublished{generation: generation, res: res}
	o.mu.Unlock()
	select {
	case o.ready <- struct{}{}:
	default:
	}
}

func (o *liveOutbox) take() (livePublished, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return livePublished{}, false
	}
	p := *o.pending
	o.pending = nil
	return p, true
}

// handleLive renders editor content as it is typed. The client sends
// {seq, content}; the server answers {seq, html, degraded} for the newest
// content only, so a slow render never overwrites a newer one.
func (s *HTTPServer) handleLive(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("live: upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(liveReadLimit)

	// seqMu is held across Update so the writer never sees a generation
	// before its seq is recorded.
	var seqMu sync.Mutex
	seqs := make(map[uint64]uint64)
	outbox := newLiveOutbox()
	binding := s.service.NewBinding(outbox.put)

	done := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-done:
				return
			case <-outbox.ready:
			}
			p, ok := outbox.take()
			if !ok {
				continue
			}
			seqMu.Lock()
			seq := seqs[p.generation]
			for generation := range seqs {
				if generation <= p.generation {
					delete(seqs, generation)
				}
			}
			seqMu.Unlock()

			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteJSON(liveResponse{Seq: seq, HTML: p.res.HTML, Degraded: p.res.Degraded()}); err != nil {
				s.logger.Debug().Err(err).Msg("live: write failed")
				return
			}
		}
	}()
	defer func() {
		binding.Close()
		close(done)
		<-writerDone
	}()

	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug().Err(err).Msg("live: read failed")
			}
			return
		}
		var msg liveRequest
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug().Err(err).Msg("live: ignoring malformed message")
			continue
		}

		seqMu.Lock()
		generation := binding.Update(ctx, msg.Content)
		seqs[generation] = msg.Seq
		seqMu.Unlock()
	}
}

func (s *HTTPServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || s.corsOrigin == "*" || origin == s.corsOrigin
}
