// Package pool brokers exclusive, short-lived access to a fixed set of
// database connections: one or more read connections, one write connection
// and optionally one write-backup connection.
//
// Acquire blocks until a connection of the requested kind is free or the
// acquire timeout expires, then hands it out, reconnecting it first when its
// session is gone:
//
//	lease, err := p.Acquire(ctx, pool.Write)
//	if err != nil {
//	    return err
//	}
//	defer lease.Release()
//	_, err = lease.Conn().Exec(ctx, stmt, args...)
//
// A slot is in exactly one place at a time: the idle channel of its set or
// the hands of one lease. Held connections therefore never exceed the size
// of a set.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/koustreak/racedb/internal/database"
	"github.com/koustreak/racedb/internal/errs"
	"github.com/koustreak/racedb/internal/logger"
)

// slot is one position in the pool. The connection in it may be replaced by
// a Copy after repeated failures; the slot itself never moves.
type slot struct {
	kind  Kind
	index int

	mu   sync.RWMutex
	conn database.Conn

	// failures counts consecutive failed acquisitions. Only the holder
	// writes it.
	failures atomic.Int64
	held     atomic.Bool
}

func (s *slot) current() database.Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

type set struct {
	kind  Kind
	slots []*slot
	idle  chan *slot
	held  atomic.Int64
}

func newSet(kind Kind, conns []database.Conn) *set {
	s := &set{
		kind:  kind,
		slots: make([]*slot, len(conns)),
		idle:  make(chan *slot, len(conns)),
	}
	for i, c := range conns {
		sl := &slot{kind: kind, index: i, conn: c}
		s.slots[i] = sl
		s.idle <- sl
	}
	return s
}

// Pool is a fixed-size connection pool. It is safe for concurrent use.
type Pool struct {
	opts Options
	log  *logger.Logger
	// sets is indexed by Kind; the WriteBackup entry is nil when no backup
	// connection is configured.
	sets [numKinds]*set

	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a pool owning read and write. The pool takes ownership of the
// connections and closes them on Close.
func New(read []database.Conn, write database.Conn, opts ...Option) (*Pool, error) {
	if len(read) == 0 {
		return nil, errs.New(errs.ErrKindInvalidInput, "pool needs at least one read connection")
	}
	if write == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "pool needs a write connection")
	}
	for i, c := range read {
		if c == nil {
			return nil, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("read connection %d is nil", i))
		}
	}

	o := buildOptions(opts)
	p := &Pool{
		opts: o,
		log:  o.Logger.With().Str("component", "pool").Logger(),
		done: make(chan struct{}),
	}
	p.sets[Read] = newSet(Read, read)
	p.sets[Write] = newSet(Write, []database.Conn{write})
	if o.WriteBackup != nil {
		p.sets[WriteBackup] = newSet(WriteBackup, []database.Conn{o.WriteBackup})
	}
	return p, nil
}

// --- acquisition ---

// Acquire hands out a connected connection of kind k. It blocks until one
// is free, ctx is done, or the acquire timeout expires (ErrKindPoolExhausted).
// A session left open by the previous holder is reused; a connection that is
// down is reconnected. One that cannot be connected is put back and the
// connect error returned; after ReplaceAfter consecutive failures it is
// replaced by a fresh Copy.
func (p *Pool) Acquire(ctx context.Context, k Kind) (*Lease, error) {
	if !k.valid() {
		return nil, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("invalid connection kind %s", k))
	}
	s := p.sets[k]
	if s == nil {
		return nil, errs.New(errs.ErrKindUnavailable, fmt.Sprintf("no %s connection configured", k))
	}

	sl, err := p.take(ctx, s)
	if err != nil {
		return nil, err
	}

	conn, err := p.connect(ctx, sl)
	if err != nil {
		p.put(s, sl)
		return nil, err
	}
	return &Lease{pool: p, set: s, slot: sl, conn: conn}, nil
}

// Release returns the lease's connection to the pool. It is equivalent to
// l.Release().
func (p *Pool) Release(l *Lease) {
	l.Release()
}

func (p *Pool) take(ctx context.Context, s *set) (*slot, error) {
	if p.closed.Load() {
		return nil, errs.New(errs.ErrKindUnavailable, "pool is closed")
	}

	// Fast path: no timer when a slot is idle.
	select {
	case sl := <-s.idle:
		return p.mark(s, sl), nil
	default:
	}

	timer := time.NewTimer(p.opts.AcquireTimeout)
	defer timer.Stop()

	select {
	case sl := <-s.idle:
		return p.mark(s, sl), nil
	case <-ctx.Done():
		return nil, errs.Wrap(errs.ErrKindTimeout, "acquire canceled", ctx.Err())
	case <-p.done:
		return nil, errs.New(errs.ErrKindUnavailable, "pool is closed")
	case <-timer.C:
		p.log.WarnWith("acquire timed out", map[string]interface{}{
			"mode":    s.kind.String(),
			"size":    len(s.slots),
			"timeout": p.opts.AcquireTimeout.String(),
		})
		return nil, errs.New(errs.ErrKindPoolExhausted,
			fmt.Sprintf("no %s connection free after %s", s.kind, p.opts.AcquireTimeout))
	}
}

func (p *Pool) mark(s *set, sl *slot) *slot {
	sl.held.Store(true)
	s.held.Add(1)
	return sl
}

func (p *Pool) put(s *set, sl *slot) {
	sl.held.Store(false)
	s.held.Add(-1)
	// Capacity equals the number of slots, so this never blocks.
	s.idle <- sl
}

// connect hands out the slot's live session when it still answers, and
// otherwise runs Connect, retrying retryable failures with exponential
// backoff.
func (p *Pool) connect(ctx context.Context, sl *slot) (database.Conn, error) {
	conn := sl.current()
	if conn.Resume(ctx) {
		sl.failures.Store(0)
		return conn, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.opts.ConnectAttempts-1)), ctx)

	err := backoff.Retry(func() error {
		err := conn.Connect(ctx)
		if err != nil && !errs.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	if err == nil {
		sl.failures.Store(0)
		return conn, nil
	}
	var e *errs.Error
	if !errors.As(err, &e) {
		// Retry reports a done ctx as the bare context error.
		err = errs.Wrap(errs.ErrKindTimeout, "connect canceled", err)
	}

	if n := sl.failures.Add(1); n >= int64(p.opts.ReplaceAfter) {
		p.replace(ctx, sl, n)
	}
	return nil, err
}

// replace swaps a repeatedly failing connection for a fresh Copy. The copy
// keeps the pending-setup state of the original.
func (p *Pool) replace(ctx context.Context, sl *slot, failures int64) {
	sl.mu.Lock()
	old := sl.conn
	sl.conn = old.Copy()
	sl.mu.Unlock()
	sl.failures.Store(0)

	p.log.WarnWith("replacing failed connection", map[string]interface{}{
		"mode":       sl.kind.String(),
		"slot":       sl.index,
		"failures":   failures,
		"last_error": old.LastError(),
	})
	if err := old.Close(ctx); err != nil {
		p.log.ErrorWith("close replaced connection", err, nil)
	}
}

// --- lifecycle ---

// Warm connects every connection once, in parallel, running schema
// bootstrap where setup is pending. It waits for all slots to be idle and
// returns the first connect error.
func (p *Pool) Warm(ctx context.Context) error {
	var taken []*slot
	defer func() {
		for _, sl := range taken {
			p.put(p.sets[sl.kind], sl)
		}
	}()

	for _, s := range p.configured() {
		for range s.slots {
			sl, err := p.take(ctx, s)
			if err != nil {
				return err
			}
			taken = append(taken, sl)
		}
	}

	var g errgroup.Group
	for _, sl := range taken {
		sl := sl
		g.Go(func() error {
			conn, err := p.connect(ctx, sl)
			if err != nil {
				return fmt.Errorf("%s connection %d: %w", sl.kind, sl.index, err)
			}
			conn.Disconnect()
			return nil
		})
	}
	return g.Wait()
}

// Close marks the pool closed, wakes blocked Acquire calls and closes every
// connection. Leases still outstanding must not be used afterwards.
func (p *Pool) Close(ctx context.Context) error {
	var errList []error
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.done)
		for _, s := range p.configured() {
			for _, sl := range s.slots {
				if err := sl.current().Close(ctx); err != nil {
					errList = append(errList, err)
				}
			}
		}
	})
	return errors.Join(errList...)
}

// --- introspection ---

// configured returns the sets that have connections, in Kind order.
func (p *Pool) configured() []*set {
	out := make([]*set, 0, len(p.sets))
	for _, s := range p.sets {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Has reports whether the pool has connections of kind k.
func (p *Pool) Has(k Kind) bool {
	return k.valid() && p.sets[k] != nil
}

// Size returns the number of connections of kind k.
func (p *Pool) Size(k Kind) int {
	if !p.Has(k) {
		return 0
	}
	return len(p.sets[k].slots)
}

// Held returns the number of connections of kind k currently handed out.
func (p *Pool) Held(k Kind) int {
	if !p.Has(k) {
		return 0
	}
	return int(p.sets[k].held.Load())
}

// Print writes every connection's description to log, read side first.
func (p *Pool) Print(log *logger.Logger) {
	for _, s := range p.configured() {
		for _, sl := range s.slots {
			sl.current().Print(log, s.kind.String())
		}
	}
}

// SlotDescription is the diagnostic view of one pool slot.
type SlotDescription struct {
	Slot     int   `json:"slot"`
	Held     bool  `json:"held"`
	Failures int64 `json:"failures"`
	database.Description
}

// Describe returns the state of every slot, read side first.
func (p *Pool) Describe() []SlotDescription {
	var out []SlotDescription
	for _, s := range p.configured() {
		for _, sl := range s.slots {
			out = append(out, SlotDescription{
				Slot:        sl.index,
				Held:        sl.held.Load(),
				Failures:    sl.failures.Load(),
				Description: database.Describe(sl.current(), s.kind.String()),
			})
		}
	}
	return out
}

// --- lease ---

// Lease is exclusive access to one connection, obtained from Acquire.
// Release must be called exactly once.
type Lease struct {
	pool     *Pool
	set      *set
	slot     *slot
	conn     database.Conn
	released atomic.Bool
}

// Conn returns the leased connection.
func (l *Lease) Conn() database.Conn { return l.conn }

// Kind reports which side of the pool the lease came from.
func (l *Lease) Kind() Kind { return l.set.kind }

// Release clears the connection's in-use mark and returns it to the pool.
// Releasing a lease twice aborts the process: the slot may already belong
// to another caller.
func (l *Lease) Release() {
	if !l.released.CompareAndSwap(false, true) {
		errs.Abort(errs.Precondition("release: lease already released"))
		return
	}
	l.conn.Disconnect()
	l.pool.put(l.set, l.slot)
}
