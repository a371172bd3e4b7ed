// Package session orchestrates one call: hybrid key agreement over a
// signaling channel, SAS confirmation, and activation of the frame
// transform in both directions.
//
// Lifecycle:
//
//	         Start (initiator)        Handshake              Accept
//	New ───────────────────► AwaitingPeer ─────► AwaitingConfirmation ─────► Active
//	 │                             │                   │                       │
//	 └──── Handshake (responder) ──┼──────────────────►│ Reject                │
//	                               ▼                   ▼                       ▼
//	                            Failed              Closed ◄─────── Close ─────┘
//
// Key agreement is one-shot: a missing, malformed or unexpected peer message,
// a key parse failure or a KEM failure moves the session to Failed and the
// caller sees ErrHandshakeFailed. The peer is sent a Hangup so its own
// Handshake returns instead of waiting. All intermediate secrets are
// zeroized on every exit path. Frame keys are installed once, on Accept, and never
// rotated for the lifetime of the call.
//
// The session has no timers. Every blocking call takes a context and
// cancellation before Accept leaves no key installed.
package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sara-star-quant/quantum-call/internal/constants"
	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
	"github.com/sara-star-quant/quantum-call/pkg/crypto"
	"github.com/sara-star-quant/quantum-call/pkg/frame"
	"github.com/sara-star-quant/quantum-call/pkg/hybrid"
	"github.com/sara-star-quant/quantum-call/pkg/metrics"
	"github.com/sara-star-quant/quantum-call/pkg/protocol"
	"github.com/sara-star-quant/quantum-call/pkg/sas"
)

// State represents the current state of a call session.
type State int32

const (
	// StateNew indicates a fresh session before any message was exchanged
	StateNew State = iota

	// StateAwaitingPeer indicates the initiator sent its keys and waits for
	// the responder
	StateAwaitingPeer

	// StateAwaitingConfirmation indicates the SAS is ready for the user
	StateAwaitingConfirmation

	// StateActive indicates frame keys are installed
	StateActive

	// StateClosed indicates the session was rejected or closed
	StateClosed

	// StateFailed indicates key agreement failed
	StateFailed
)

// String returns a human-readable name for the session state.
func (s State) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateAwaitingPeer:
		return "AwaitingPeer"
	case StateAwaitingConfirmation:
		return "AwaitingConfirmation"
	case StateActive:
		return "Active"
	case StateClosed:
		return "Closed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Role indicates whether this endpoint is the initiator or responder.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

// String returns the role name used in logs and metrics.
func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	default:
		return "unknown"
	}
}

// NoncePrefix returns the frame nonce prefix this role encrypts with.
func (r Role) NoncePrefix() uint32 {
	if r == RoleResponder {
		return constants.NoncePrefixResponder
	}
	return constants.NoncePrefixInitiator
}

// Channel carries opaque signaling payloads between the two peers. It is
// untrusted: anything received may have been forged or altered.
// signaling.Pipe and the websocket channel implement it. A Channel that is
// also an io.Closer is closed when the user rejects the SAS.
type Channel interface {
	Send(ctx context.Context, data []byte) error
	Receive(ctx context.Context) ([]byte, error)
}

// Config configures a Session.
type Config struct {
	// Suite is the initialized crypto suite. Its cipher suite selects the
	// frame AEAD; both peers must use the same one.
	Suite *crypto.Suite

	Role    Role
	Channel Channel

	// HeaderRule selects the clear header of each media frame. Both peers
	// must use the same rule. Defaults to frame.None.
	HeaderRule frame.HeaderRule

	// Observer receives lifecycle events. Defaults to a
	// metrics.SessionObserver on the global collector.
	Observer        Observer
	ObserverFactory ObserverFactory

	Logger *metrics.Logger

	// QueueSize is the frame channel capacity of each worker.
	QueueSize int

	// CounterLimit caps outbound frames per key. Zero means
	// constants.MaxFrameCounter.
	CounterLimit uint64
}

// Session is one call attempt between two peers.
type Session struct {
	cfg      Config
	observer Observer
	logger   *metrics.Logger

	state atomic.Int32

	// Key agreement material. Only the initiator holds a key pair.
	keyPair   *hybrid.HybridKeyPair
	initiator hybrid.InitiatorPublicKeys
	master    crypto.MasterSecret
	code      sas.SAS

	outbound *frame.Worker
	inbound  *frame.Worker

	// Timestamps
	CreatedAt   time.Time
	ConfirmedAt time.Time

	running   atomic.Bool
	runCancel context.CancelFunc
	runDone   chan struct{}
	ended     bool

	mu sync.Mutex
}

// New creates a session. The two frame workers are created immediately and
// pass frames through until Accept installs the key.
func New(cfg Config) (*Session, error) {
	if !cfg.Suite.Ready() {
		return nil, qerrors.ErrNotInitialized
	}
	if cfg.Channel == nil {
		return nil, qerrors.NewProtocolError("new", qerrors.ErrChannelClosed)
	}
	if cfg.Role != RoleInitiator && cfg.Role != RoleResponder {
		return nil, qerrors.ErrInvalidState
	}
	if cfg.HeaderRule == nil {
		cfg.HeaderRule = frame.None
	}
	if cfg.Logger == nil {
		cfg.Logger = metrics.GetLogger()
	}

	s := &Session{
		cfg:       cfg,
		observer:  observerFromConfig(cfg),
		logger:    cfg.Logger.Named("session").With(metrics.Fields{"role": cfg.Role.String()}),
		CreatedAt: time.Now(),
	}

	frameObserver, _ := s.observer.(frame.Observer)

	var err error
	s.outbound, err = frame.NewWorker(frame.WorkerConfig{
		Suite:        cfg.Suite,
		Direction:    frame.Outbound,
		Rule:         cfg.HeaderRule,
		NoncePrefix:  cfg.Role.NoncePrefix(),
		CounterLimit: cfg.CounterLimit,
		QueueSize:    cfg.QueueSize,
		Observer:     frameObserver,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	s.inbound, err = frame.NewWorker(frame.WorkerConfig{
		Suite:     cfg.Suite,
		Direction: frame.Inbound,
		Rule:      cfg.HeaderRule,
		QueueSize: cfg.QueueSize,
		Observer:  frameObserver,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	s.observer.OnSessionStart()
	return s, nil
}

// State returns the current session state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	s.logger.Debug("state changed", metrics.Fields{"state": st.String()})
}

// Role returns the local role.
func (s *Session) Role() Role {
	return s.cfg.Role
}

// Outbound returns the worker that encrypts local frames.
func (s *Session) Outbound() *frame.Worker {
	return s.outbound
}

// Inbound returns the worker that decrypts peer frames.
func (s *Session) Inbound() *frame.Worker {
	return s.inbound
}

// Start begins key agreement on the initiator: it generates the hybrid key
// pair and sends InitiatorMaterial.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Role != RoleInitiator || s.State() != StateNew {
		return qerrors.ErrInvalidState
	}

	kp, err := hybrid.GenerateHybridKeyPair(s.cfg.Suite)
	if err != nil {
		return s.fail(ctx, err)
	}
	s.keyPair = kp
	s.initiator = kp.PublicKeys()

	if err := s.send(ctx, protocol.NewInitiatorMaterial(s.initiator)); err != nil {
		return s.fail(ctx, err)
	}

	s.setState(StateAwaitingPeer)
	return nil
}

// Handshake completes key agreement and computes the SAS. The initiator
// waits for ResponderMaterial; the responder waits for InitiatorMaterial and
// replies with its own material.
func (s *Session) Handshake(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.cfg.Role == RoleInitiator && s.State() == StateAwaitingPeer:
	case s.cfg.Role == RoleResponder && s.State() == StateNew:
		s.setState(StateAwaitingPeer)
	default:
		return qerrors.ErrInvalidState
	}

	ctx, done := s.observer.OnHandshakeStart(ctx)
	defer func() { done(err) }()

	var transcript sas.Transcript
	if s.cfg.Role == RoleInitiator {
		transcript, err = s.initiatorHandshake(ctx)
	} else {
		transcript, err = s.responderHandshake(ctx)
	}
	if err != nil {
		return s.fail(ctx, err)
	}

	code, err := sas.Generate(s.cfg.Suite, s.master, transcript)
	if err != nil {
		return s.fail(ctx, err)
	}
	s.code = code

	s.setState(StateAwaitingConfirmation)
	return nil
}

func (s *Session) initiatorHandshake(ctx context.Context) (sas.Transcript, error) {
	msg, err := s.receive(ctx, protocol.MessageTypeResponder)
	if err != nil {
		return sas.Transcript{}, err
	}
	material := msg.(*protocol.ResponderMaterial).Encapsulation()

	result, err := hybrid.InitiatorAgree(s.cfg.Suite, s.keyPair, material)
	s.keyPair.Zeroize()
	s.keyPair = nil
	if err != nil {
		return sas.Transcript{}, err
	}

	s.master, err = result.DeriveMasterSecret(s.cfg.Suite)
	if err != nil {
		return sas.Transcript{}, err
	}
	return sas.NewTranscript(s.initiator, material), nil
}

func (s *Session) responderHandshake(ctx context.Context) (sas.Transcript, error) {
	msg, err := s.receive(ctx, protocol.MessageTypeInitiator)
	if err != nil {
		return sas.Transcript{}, err
	}
	s.initiator = msg.(*protocol.InitiatorMaterial).PublicKeys()

	material, result, err := hybrid.ResponderAgree(s.cfg.Suite, s.initiator)
	if err != nil {
		return sas.Transcript{}, err
	}

	s.master, err = result.DeriveMasterSecret(s.cfg.Suite)
	if err != nil {
		return sas.Transcript{}, err
	}

	if err := s.send(ctx, protocol.NewResponderMaterial(*material)); err != nil {
		return sas.Transcript{}, err
	}
	return sas.NewTranscript(s.initiator, *material), nil
}

// SAS returns the short authentication string once key agreement has
// completed.
func (s *Session) SAS() (sas.SAS, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateAwaitingConfirmation, StateActive:
		return s.code, nil
	default:
		return sas.SAS{}, qerrors.ErrInvalidState
	}
}

// Accept records that the user confirmed the SAS. It derives the frame key,
// installs it in both workers and enables encryption. Accept is one-way.
func (s *Session) Accept() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateAwaitingConfirmation {
		return qerrors.ErrInvalidState
	}

	key, err := s.cfg.Suite.DeriveFrameKey(s.master)
	s.master.Zeroize()
	if err != nil {
		return s.fail(context.Background(), err)
	}
	defer key.Zeroize()

	for _, w := range []*frame.Worker{s.outbound, s.inbound} {
		select {
		case w.Control <- frame.SetKey{Key: key, Enabled: true}:
		default:
			return s.fail(context.Background(), qerrors.ErrWorkerStopped)
		}
	}

	s.observer.OnSASDecision(true)
	s.ConfirmedAt = time.Now()
	s.setState(StateActive)
	s.logger.Info("call secured", metrics.Fields{
		"cipher_suite": s.cfg.Suite.CipherSuite().String(),
		"header_rule":  s.cfg.HeaderRule.Name(),
	})
	return nil
}

// Reject records that the user rejected the SAS. It tells the peer to hang
// up, closes the signaling channel, zeroizes all key material and closes
// the session. The returned error
// is always ErrSASRejected unless the session was not awaiting
// confirmation.
func (s *Session) Reject(ctx context.Context) error {
	s.mu.Lock()

	if s.State() != StateAwaitingConfirmation {
		s.mu.Unlock()
		return qerrors.ErrInvalidState
	}

	s.observer.OnSASDecision(false)
	if err := s.send(ctx, &protocol.Hangup{Reason: protocol.HangupSASRejected}); err != nil {
		s.logger.Warn("hangup not delivered", metrics.Fields{"error": err})
	}
	if c, ok := s.cfg.Channel.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.logger.Warn("signaling close failed", metrics.Fields{"error": err})
		}
	}
	s.zeroize()
	s.setState(StateClosed)
	s.mu.Unlock()

	s.shutdown()
	return qerrors.ErrSASRejected
}

// AwaitHangup blocks until the peer sends Hangup or ctx is done. On hangup
// the session is closed and ErrRemoteHangup is returned. Other signaling
// messages received after key agreement are ignored.
func (s *Session) AwaitHangup(ctx context.Context) error {
	for {
		data, err := s.cfg.Channel.Receive(ctx)
		if err != nil {
			return err
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			s.observer.OnProtocolError(err)
			continue
		}
		if _, ok := msg.(*protocol.Hangup); ok {
			s.logger.Info("peer hung up")
			_ = s.Close()
			return qerrors.ErrRemoteHangup
		}
		s.observer.OnProtocolError(qerrors.NewProtocolError("active", qerrors.ErrUnexpectedMessage))
	}
}

// Run runs both frame workers until ctx is cancelled, Close is called, or
// a worker's input is closed. It may only be called once.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	st := s.State()
	if st == StateClosed || st == StateFailed {
		s.mu.Unlock()
		return qerrors.ErrSessionClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return qerrors.ErrInvalidState
	}
	ctx, s.runCancel = context.WithCancel(ctx)
	s.runDone = make(chan struct{})
	defer close(s.runDone)
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.outbound.Run(gctx) })
	g.Go(func() error { return s.inbound.Run(gctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close deactivates both directions, stops the workers and zeroizes all key
// material. It is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if st := s.State(); st != StateFailed {
		s.setState(StateClosed)
	}
	s.zeroize()
	s.mu.Unlock()

	s.shutdown()
	return nil
}

// shutdown disables both workers, waits for Run to return and reports the
// end of the session once.
func (s *Session) shutdown() {
	for _, w := range []*frame.Worker{s.outbound, s.inbound} {
		select {
		case w.Control <- frame.Disable{}:
		default:
		}
	}

	s.mu.Lock()
	cancel, done := s.runCancel, s.runDone
	ended := s.ended
	s.ended = true
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if !ended {
		s.observer.OnSessionEnd()
	}
}

// fail moves the session to Failed, zeroizes everything and returns the
// generic handshake error. Context errors and remote hangups are returned
// as-is. Any other cause is reported to the peer as Hangup{failed}; the
// cause itself never leaves this process. Must be called with s.mu held.
func (s *Session) fail(ctx context.Context, cause error) error {
	s.zeroize()
	s.setState(StateFailed)
	s.observer.OnSessionFailed(cause)

	switch {
	case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
		return cause
	case errors.Is(cause, qerrors.ErrRemoteHangup):
		return qerrors.ErrRemoteHangup
	}

	if err := s.send(ctx, &protocol.Hangup{Reason: protocol.HangupFailed}); err != nil {
		s.logger.Debug("hangup not delivered", metrics.Fields{"error": err})
	}
	return qerrors.ErrHandshakeFailed
}

// zeroize erases all secret state. Must be called with s.mu held.
func (s *Session) zeroize() {
	if s.keyPair != nil {
		s.keyPair.Zeroize()
		s.keyPair = nil
	}
	s.master.Zeroize()
}

func (s *Session) send(ctx context.Context, m protocol.Message) error {
	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	return s.cfg.Channel.Send(ctx, data)
}

// receive reads the next signaling message and checks its type. A Hangup
// yields ErrRemoteHangup.
func (s *Session) receive(ctx context.Context, want protocol.MessageType) (protocol.Message, error) {
	data, err := s.cfg.Channel.Receive(ctx)
	if err != nil {
		return nil, err
	}

	msg, err := protocol.Decode(data)
	if err != nil {
		s.observer.OnProtocolError(err)
		return nil, err
	}
	if _, ok := msg.(*protocol.Hangup); ok {
		return nil, qerrors.ErrRemoteHangup
	}
	if msg.Type() != want {
		err := qerrors.NewProtocolError("handshake", qerrors.ErrUnexpectedMessage)
		s.observer.OnProtocolError(err)
		return nil, err
	}
	return msg, nil
}

// Stats returns session statistics.
type Stats struct {
	Role        Role
	State       State
	CreatedAt   time.Time
	ConfirmedAt time.Time
	Duration    time.Duration
}

// Stats returns current session statistics.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Role:        s.cfg.Role,
		State:       s.State(),
		CreatedAt:   s.CreatedAt,
		ConfirmedAt: s.ConfirmedAt,
		Duration:    time.Since(s.CreatedAt),
	}
}
