package collab

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/draftdesk/draftdesk/internal/logging"
	"github.com/draftdesk/draftdesk/internal/metrics"
)

const peerSendBuffer = 64

// Hub runs one live editing session per document name. Peers exchange
// opaque binary frames; the hub relays them, keeps the latest state in
// memory and persists it through the bridge on a debounce interval and
// on last disconnect.
type Hub struct {
	bridge       *Bridge
	saveInterval time.Duration
	upgrader     websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session
}

// NewHub creates a hub saving dirty sessions every saveInterval.
func NewHub(bridge *Bridge, saveInterval time.Duration) *Hub {
	return &Hub{
		bridge:       bridge,
		saveInterval: saveInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sessions: make(map[string]*session),
	}
}

type session struct {
	hub  *Hub
	name string
	done chan struct{}

	// ready is closed once the seed fetch finished; seedErr is only
	// read after ready closes. Peers never touch the session before
	// waiting on ready, so the seed can never clobber relayed state.
	ready   chan struct{}
	seedErr error

	mu    sync.Mutex
	peers map[*peer]struct{}
	state []byte
	dirty bool
}

type peer struct {
	conn *websocket.Conn
	send chan []byte
}

// ServeWS handles GET /api/v1/collaboration: upgrades the connection and
// joins the peer to the session named by the document query parameter.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	docName := r.URL.Query().Get("document")
	if docName == "" {
		http.Error(w, "document name required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sess, err := h.joinSession(r.Context(), docName)
	if err != nil {
		logging.Error("session seed failed",
			zap.String("document", docName), zap.Error(err))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "document load failed"))
		conn.Close()
		return
	}

	p := &peer{conn: conn, send: make(chan []byte, peerSendBuffer)}
	sess.addPeer(p)

	go p.writePump()
	sess.readPump(p)
}

// joinSession returns the session for docName, creating and seeding it
// from the bridge on first join. Joiners block until the seed fetch has
// finished, so nothing relays against an unseeded session.
func (h *Hub) joinSession(ctx context.Context, docName string) (*session, error) {
	h.mu.Lock()
	if sess, ok := h.sessions[docName]; ok {
		h.mu.Unlock()
		<-sess.ready
		if sess.seedErr != nil {
			return nil, sess.seedErr
		}
		return sess, nil
	}

	sess := &session{
		hub:   h,
		name:  docName,
		done:  make(chan struct{}),
		ready: make(chan struct{}),
		peers: make(map[*peer]struct{}),
	}
	h.sessions[docName] = sess
	metrics.SetCollabSessionsActive(len(h.sessions))
	h.mu.Unlock()

	state, err := h.bridge.Fetch(ctx, docName)
	if err != nil {
		sess.seedErr = err
		h.mu.Lock()
		if h.sessions[docName] == sess {
			delete(h.sessions, docName)
			metrics.SetCollabSessionsActive(len(h.sessions))
		}
		h.mu.Unlock()
		close(sess.ready)
		return nil, err
	}
	sess.mu.Lock()
	sess.state = state
	sess.mu.Unlock()
	close(sess.ready)

	logging.Info("collaboration session opened",
		zap.String("document", docName),
		zap.Int("seed_bytes", len(state)))
	go sess.saveLoop()
	return sess, nil
}

func (h *Hub) dropSession(sess *session) {
	h.mu.Lock()
	if h.sessions[sess.name] == sess {
		delete(h.sessions, sess.name)
		metrics.SetCollabSessionsActive(len(h.sessions))
	}
	h.mu.Unlock()
	close(sess.done)
}

// Close saves every dirty session and disconnects all peers. Used during
// graceful shutdown.
func (h *Hub) Close(ctx context.Context) {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.mu.Unlock()

	for _, sess := range sessions {
		sess.flush(ctx)
		sess.mu.Lock()
		for p := range sess.peers {
			p.conn.Close()
		}
		sess.mu.Unlock()
	}
}

func (s *session) addPeer(p *peer) {
	s.mu.Lock()
	s.peers[p] = struct{}{}
	// Late joiners catch up from the retained state.
	if s.state != nil {
		select {
		case p.send <- s.state:
		default:
		}
	}
	s.mu.Unlock()
}

// readPump relays frames from one peer to the others until the connection
// drops, then leaves the session.
func (s *session) readPump(p *peer) {
	defer s.removePeer(p)

	for {
		msgType, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		s.relay(p, data)
	}
}

// relay retains data as the latest state and forwards it to every other
// peer. Slow peers get skipped rather than stalling the sender.
func (s *session) relay(from *peer, data []byte) {
	s.mu.Lock()
	s.state = data
	s.dirty = true
	for p := range s.peers {
		if p == from {
			continue
		}
		select {
		case p.send <- data:
		default:
			logging.Warn("dropping frame for slow peer",
				zap.String("document", s.name))
		}
	}
	s.mu.Unlock()
}

// removePeer leaves the session; the last peer out triggers a final save
// and tears the session down. The peer leaves the map under the lock
// before its channel closes, so a concurrent relay can never send on the
// closed channel.
func (s *session) removePeer(p *peer) {
	p.conn.Close()

	s.mu.Lock()
	delete(s.peers, p)
	last := len(s.peers) == 0
	s.mu.Unlock()

	close(p.send)

	if last {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		s.flush(ctx)
		cancel()
		s.hub.dropSession(s)
		logging.Info("collaboration session closed", zap.String("document", s.name))
	}
}

// saveLoop persists dirty state on the debounce interval. Saving happens
// outside the session lock so relay never waits on storage.
func (s *session) saveLoop() {
	ticker := time.NewTicker(s.hub.saveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			s.flush(ctx)
			cancel()
		case <-s.done:
			return
		}
	}
}

// flush saves the latest state if it changed since the previous save.
func (s *session) flush(ctx context.Context) {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	state := s.state
	s.dirty = false
	s.mu.Unlock()

	if err := s.hub.bridge.Store(ctx, s.name, state); err != nil {
		// Leave dirty set so the next tick retries with whatever state
		// is current by then.
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
	}
}

func (p *peer) writePump() {
	for data := range p.send {
		if err := p.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			return
		}
	}
}
