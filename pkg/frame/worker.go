package frame

import (
	"context"
	"sync/atomic"

	"github.com/sara-star-quant/quantum-call/internal/constants"
	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
	"github.com/sara-star-quant/quantum-call/pkg/crypto"
	"github.com/sara-star-quant/quantum-call/pkg/metrics"
)

// Direction selects whether a Worker encrypts or decrypts.
type Direction int

const (
	// Outbound workers encrypt frames leaving the local media stack.
	Outbound Direction = iota
	// Inbound workers decrypt frames arriving from the peer.
	Inbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "outbound"
	}
	return "inbound"
}

// Command changes a Worker's key state. Commands are applied in the order
// they are sent, and always before any frame that arrives after them.
type Command interface {
	command()
}

// SetKey installs a frame key. Enabled selects whether transformation
// starts immediately.
type SetKey struct {
	Key     crypto.FrameKey
	Enabled bool
}

// SetEnabled switches transformation on or off under the installed key
// without touching the key or the frame counter.
type SetEnabled struct {
	Enabled bool
}

// Disable clears the key and resets the frame counter. It is final for the
// worker; a new call needs new workers.
type Disable struct{}

func (SetKey) command()     {}
func (SetEnabled) command() {}
func (Disable) command()    {}

// Default channel capacities.
const (
	DefaultQueueSize   = 64
	controlChannelSize = 8
)

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	Suite     *crypto.Suite
	Direction Direction
	Rule      HeaderRule

	// NoncePrefix is the local sender prefix. Only used by Outbound workers.
	NoncePrefix uint32

	// CounterLimit caps frames per key for Outbound workers. Zero means
	// constants.MaxFrameCounter.
	CounterLimit uint64

	// QueueSize is the capacity of In and Out. Zero means DefaultQueueSize.
	QueueSize int

	// Pool, when set, supplies output frames, and every frame read from Out
	// must be handed back with Release. When nil, output frames are
	// exact-size allocations owned by the receiver.
	Pool *BufferPool

	Observer Observer
	Logger   *metrics.Logger
}

// transformer is the common surface of Encoder and Decoder.
type transformer interface {
	SetKey(key crypto.FrameKey, enabled bool) error
	SetEnabled(enabled bool) error
	Disable()
	passes(frame []byte) bool
	transform(frame []byte) ([]byte, bool, error)
}

// Worker runs one direction of the frame transform. Frames are read from
// In and written to Out in order; key changes arrive on Control.
//
// Frames that fail to transform are dropped and reported to the Observer;
// they never end the worker. A frame read from Out belongs to the reader;
// see WorkerConfig.Pool for when it must be released. Run returns when the
// context is cancelled or In is closed, and closes Out on return.
type Worker struct {
	Control chan Command
	In      chan []byte
	Out     chan []byte

	direction Direction
	t         transformer
	encoder   *Encoder
	pool      *BufferPool
	observer  Observer
	logger    *metrics.Logger

	running atomic.Bool
	halted  atomic.Bool
	active  atomic.Bool
}

// NewWorker creates a Worker.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if !cfg.Suite.Ready() {
		return nil, qerrors.ErrNotInitialized
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = metrics.GetLogger()
	}
	logger := cfg.Logger.Named("frame").With(metrics.Fields{"direction": cfg.Direction.String()})
	if cfg.Observer == nil {
		cfg.Observer = logObserver{logger: logger}
	}

	opts := []Option{withPool(cfg.Pool), WithCounterLimit(cfg.CounterLimit)}

	w := &Worker{
		Control:   make(chan Command, controlChannelSize),
		In:        make(chan []byte, cfg.QueueSize),
		Out:       make(chan []byte, cfg.QueueSize),
		direction: cfg.Direction,
		pool:      cfg.Pool,
		observer:  cfg.Observer,
		logger:    logger,
	}

	switch cfg.Direction {
	case Outbound:
		prefix := cfg.NoncePrefix
		if prefix == 0 {
			prefix = constants.NoncePrefixInitiator
		}
		w.encoder = NewEncoder(cfg.Suite, cfg.Rule, prefix, opts...)
		w.t = w.encoder
	default:
		w.t = NewDecoder(cfg.Suite, cfg.Rule, opts...)
	}

	return w, nil
}

// Direction returns the worker's direction.
func (w *Worker) Direction() Direction {
	return w.direction
}

// Release hands back a frame read from Out. It only has an effect when the
// worker was configured with a Pool.
func (w *Worker) Release(frame []byte) {
	w.pool.Put(frame)
}

// Active reports whether frames are currently being transformed.
// Safe to call from any goroutine.
func (w *Worker) Active() bool {
	return w.active.Load()
}

// Halted reports whether an outbound worker's frame counter has been
// exhausted. Safe to call from any goroutine.
func (w *Worker) Halted() bool {
	return w.halted.Load()
}

// Run processes commands and frames until ctx is cancelled or In is
// closed. It may only be called once.
func (w *Worker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return qerrors.ErrWorkerStopped
	}
	defer func() {
		w.t.Disable()
		w.active.Store(false)
		close(w.Out)
		w.logger.Debug("worker stopped")
	}()

	for {
		// Drain pending commands first so a key sent before a frame
		// applies to that frame.
		select {
		case cmd := <-w.Control:
			w.apply(cmd)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd := <-w.Control:
			w.apply(cmd)

		case frame, ok := <-w.In:
			if !ok {
				return nil
			}
			out, ok := w.process(ctx, frame)
			if !ok {
				continue
			}
			select {
			case w.Out <- out:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (w *Worker) apply(cmd Command) {
	switch c := cmd.(type) {
	case SetKey:
		err := w.t.SetKey(c.Key, c.Enabled)
		c.Key.Zeroize()
		if err != nil {
			w.logger.Error("set key rejected", metrics.Fields{"error": err})
			return
		}
		w.active.Store(c.Enabled)
		w.logger.Info("frame key installed", metrics.Fields{"enabled": c.Enabled})

	case SetEnabled:
		if err := w.t.SetEnabled(c.Enabled); err != nil {
			w.logger.Error("enable rejected", metrics.Fields{"error": err})
			return
		}
		w.active.Store(c.Enabled)
		w.logger.Info("frame transform toggled", metrics.Fields{"enabled": c.Enabled})

	case Disable:
		w.t.Disable()
		w.active.Store(false)
		w.halted.Store(false)
		w.logger.Info("frame transform disabled")
	}
}

// process transforms one frame. ok is false when the frame is dropped.
func (w *Worker) process(ctx context.Context, frame []byte) (out []byte, ok bool) {
	if w.t.passes(frame) {
		w.observer.OnPassThrough(w.direction == Outbound)
		return frame, true
	}

	var done func(error)
	if w.direction == Outbound {
		_, done = w.observer.OnEncrypt(ctx, len(frame))
	} else {
		_, done = w.observer.OnDecrypt(ctx, len(frame))
	}

	out, _, err := w.t.transform(frame)
	if err != nil {
		if w.encoder != nil && w.encoder.Halted() {
			w.halted.Store(true)
		}
		done(err)
		return nil, false
	}

	done(nil)
	return out, true
}
