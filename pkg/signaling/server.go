package signaling

import (
	"context"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/sara-star-quant/quantum-call/internal/constants"
	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
	"github.com/sara-star-quant/quantum-call/pkg/metrics"
)

// RoomPath is the relay route. The peer id is passed as the "peer" query
// parameter.
const RoomPath = "/rooms/{room}/ws"

// maxPeersPerRoom is fixed by the call model: one initiator, one responder.
const maxPeersPerRoom = 2

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// ServerConfig configures a relay Server.
type ServerConfig struct {
	// Mailbox holds messages for absent peers. Defaults to a MemoryMailbox.
	Mailbox Mailbox

	Collector *metrics.Collector
	Logger    *metrics.Logger
	// Tracer receives one span per forwarded message. Defaults to the
	// process-wide tracer.
	Tracer metrics.Tracer

	// CheckOrigin is passed to the websocket upgrader. Nil allows all
	// origins; the relay carries no secrets.
	CheckOrigin func(r *http.Request) bool
}

// Server relays signaling messages between the two peers of each room.
type Server struct {
	mailbox   Mailbox
	collector *metrics.Collector
	logger    *metrics.Logger
	tracer    metrics.Tracer
	upgrader  websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]*room
}

type room struct {
	// mu orders forwarding against mailbox flushes so a joining peer sees
	// queued messages before live ones.
	mu    sync.Mutex
	peers map[string]*peerConn
}

type peerConn struct {
	id   string
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (p *peerConn) write(data []byte) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

// NewServer creates a relay.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Mailbox == nil {
		cfg.Mailbox = NewMemoryMailbox(0, 0)
	}
	if cfg.Collector == nil {
		cfg.Collector = metrics.Global()
	}
	if cfg.Logger == nil {
		cfg.Logger = metrics.GetLogger()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = metrics.GetTracer()
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	return &Server{
		mailbox:   cfg.Mailbox,
		collector: cfg.Collector,
		logger:    cfg.Logger.Named("relay"),
		tracer:    cfg.Tracer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		rooms: make(map[string]*room),
	}
}

// Register adds the relay route to r.
func (s *Server) Register(r *mux.Router) {
	r.HandleFunc(RoomPath, s.handleRoom).Methods(http.MethodGet)
}

// Handler returns a router serving only the relay route.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.Register(r)
	return r
}

// Peers returns the number of connected peers in a room.
func (s *Server) Peers(roomID string) int {
	s.mu.Lock()
	rm := s.rooms[roomID]
	s.mu.Unlock()
	if rm == nil {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.peers)
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room"]
	peerID := r.URL.Query().Get("peer")
	if !idPattern.MatchString(roomID) || !idPattern.MatchString(peerID) {
		http.Error(w, "invalid room or peer id", http.StatusBadRequest)
		return
	}

	rm, err := s.reserve(roomID, peerID)
	if err != nil {
		s.logger.Warn("join refused", metrics.Fields{"room": roomID, "peer": peerID, "error": err})
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.release(roomID, rm, peerID)
		s.logger.Warn("websocket upgrade failed", metrics.Fields{"room": roomID, "error": err})
		return
	}
	conn.SetReadLimit(constants.MaxMessageSize)

	p := &peerConn{id: peerID, conn: conn}
	log := s.logger.With(metrics.Fields{"room": roomID, "peer": peerID})

	if err := s.join(r.Context(), roomID, rm, p); err != nil {
		log.Error("mailbox flush failed", metrics.Fields{"error": err})
	}
	log.Info("peer joined")

	s.readLoop(roomID, rm, p, log)

	s.release(roomID, rm, peerID)
	_ = conn.Close()
	log.Info("peer left")
}

// reserve claims a slot for peerID before the upgrade so that a full room
// is refused with a plain HTTP error.
func (s *Server) reserve(roomID, peerID string) (*room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm := s.rooms[roomID]
	if rm == nil {
		rm = &room{peers: make(map[string]*peerConn)}
		s.rooms[roomID] = rm
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if _, ok := rm.peers[peerID]; ok {
		return nil, qerrors.ErrPeerExists
	}
	if len(rm.peers) >= maxPeersPerRoom {
		return nil, qerrors.ErrRoomFull
	}
	rm.peers[peerID] = nil
	return rm, nil
}

func (s *Server) release(roomID string, rm *room, peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm.mu.Lock()
	delete(rm.peers, peerID)
	empty := len(rm.peers) == 0
	rm.mu.Unlock()

	if empty && s.rooms[roomID] == rm {
		delete(s.rooms, roomID)
	}
}

// join activates the peer and flushes messages queued by the other peer.
func (s *Server) join(ctx context.Context, roomID string, rm *room, p *peerConn) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.peers[p.id] = p

	queued, err := s.mailbox.Drain(ctx, roomID)
	if err != nil {
		return err
	}
	for _, e := range queued {
		if e.From == p.id {
			// Sent by an earlier connection of this peer; keep it for the
			// other side.
			if err := s.mailbox.Put(ctx, roomID, e); err != nil {
				return err
			}
			continue
		}
		if err := p.write(e.Data); err != nil {
			return err
		}
		s.collector.RecordMessageRelayed()
	}
	return nil
}

func (s *Server) readLoop(roomID string, rm *room, p *peerConn, log *metrics.Logger) {
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("read ended", metrics.Fields{"error": err})
			}
			return
		}
		if err := s.forward(roomID, rm, p, data); err != nil {
			log.Warn("forward failed", metrics.Fields{"error": err})
		}
	}
}

// forward delivers data to the other peer of the room, or queues it when
// that peer is not connected. A peer whose connection fails the write is
// dropped and the message is queued for its next connection.
func (s *Server) forward(roomID string, rm *room, from *peerConn, data []byte) (err error) {
	// The mailbox must not outlive the request that fed it.
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	attrs := map[string]interface{}{
		metrics.AttrRoom: roomID,
		metrics.AttrPeer: from.id,
	}
	ctx, end := s.tracer.StartSpan(ctx, metrics.SpanRelayForward,
		metrics.WithSpanKind(metrics.SpanKindServer), metrics.WithAttributes(attrs))
	defer func() { end(err) }()

	rm.mu.Lock()
	defer rm.mu.Unlock()

	for id, other := range rm.peers {
		if id == from.id || other == nil {
			continue
		}
		werr := other.write(data)
		if werr == nil {
			s.collector.RecordMessageRelayed()
			return nil
		}
		s.logger.Warn("peer write failed, queueing", metrics.Fields{
			"room":  roomID,
			"peer":  id,
			"error": werr,
		})
		// The connection is unusable; closing it ends the peer's read loop
		// so it can rejoin and drain the mailbox.
		_ = other.conn.Close()
		break
	}

	if err = s.mailbox.Put(ctx, roomID, Envelope{From: from.id, Data: data}); err != nil {
		return err
	}
	s.collector.RecordMessageQueued()
	return nil
}
