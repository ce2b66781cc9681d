package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	defaultQueueSize      = 256
	defaultDurableTimeout = 2 * time.Second
	defaultJanitor        = 10 * time.Minute
)

// Options configures a Store. Zero values pick defaults.
type Options struct {
	Policy  Policy
	Durable Storage // nil keeps the cache in-process only
	Logger  *zap.Logger
	Metrics *Metrics
	Now     func() time.Time
	// QueueSize bounds pending durable operations.
	QueueSize int
	// DurableTimeout bounds each durable operation of the background writer.
	DurableTimeout time.Duration
	// MemoryTTL evicts in-process entries, tombstones and kind cutoffs.
	// Defaults to the policy's MaxTTL, past which every entry is stale anyway.
	MemoryTTL time.Duration
}

type entry struct {
	key       Key
	payload   []byte
	writtenAt time.Time
	deleted   bool
}

type envelope struct {
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	WrittenAt time.Time       `json:"written_at"`
}

type durableOp struct {
	key     string
	value   string
	remove  bool
	prefix  bool
	barrier chan struct{}
}

// Store is the two-tier cache. The in-process tier is authoritative for the
// life of the process; the durable tier survives restarts. Durable writes
// happen on a background writer in submission order.
type Store struct {
	mu      sync.Mutex
	mem     *gocache.Cache
	durable Storage
	policy  Policy
	log     *zap.Logger
	metrics *Metrics
	now     func() time.Time
	timeout time.Duration

	// cutoffs holds, per user and kind, the time of the last DeleteKind.
	// Durable copies written before it are misses.
	cutoffs *gocache.Cache

	queue   chan durableOp
	stop    chan struct{}
	done    chan struct{}
	closeMu sync.Once
}

// NewStore creates a Store and starts its durable writer.
func NewStore(opts Options) *Store {
	if opts.Policy.ttls == nil {
		opts.Policy = DefaultPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.DurableTimeout <= 0 {
		opts.DurableTimeout = defaultDurableTimeout
	}
	if opts.MemoryTTL <= 0 {
		opts.MemoryTTL = opts.Policy.MaxTTL()
	}
	janitor := defaultJanitor
	if opts.MemoryTTL < janitor {
		janitor = opts.MemoryTTL
	}
	s := &Store{
		mem:     gocache.New(opts.MemoryTTL, janitor),
		durable: opts.Durable,
		policy:  opts.Policy,
		log:     opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
		timeout: opts.DurableTimeout,
		cutoffs: gocache.New(opts.MemoryTTL, janitor),
		queue:   make(chan durableOp, opts.QueueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.writer()
	return s
}

// Policy returns the staleness policy in use.
func (s *Store) Policy() Policy { return s.policy }

// Get decodes the fresh value of key into out and reports whether one was found.
// Stale, deleted, undecodable and unreadable entries are all misses.
func (s *Store) Get(ctx context.Context, key Key, out any) bool {
	name := key.String()
	now := s.now()

	if v, ok := s.mem.Get(name); ok {
		e := v.(*entry)
		if e.deleted {
			s.metrics.lookup("memory", "miss")
			return false
		}
		if s.policy.IsFresh(key, e.writtenAt, now) {
			if err := json.Unmarshal(e.payload, out); err != nil {
				s.log.Warn("cache decode failed", zap.String("key", name), zap.Error(err))
				return false
			}
			s.metrics.lookup("memory", "hit")
			return true
		}
		s.metrics.lookup("memory", "stale")
	} else {
		s.metrics.lookup("memory", "miss")
	}

	if s.durable == nil {
		return false
	}
	raw, found, err := s.durable.GetItem(ctx, name)
	if err != nil {
		s.metrics.durableError("get")
		s.log.Warn("durable cache read failed", zap.String("key", name), zap.Error(err))
		return false
	}
	if !found {
		s.metrics.lookup("durable", "miss")
		s.log.Debug("cache miss", zap.String("key", name))
		return false
	}
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		s.log.Warn("durable cache entry corrupt", zap.String("key", name), zap.Error(err))
		return false
	}
	if !s.policy.IsFresh(key, env.WrittenAt, now) || s.beforeCutoff(key, env.WrittenAt) {
		s.metrics.lookup("durable", "stale")
		return false
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		s.log.Warn("cache decode failed", zap.String("key", name), zap.Error(err))
		return false
	}
	s.promote(name, &entry{key: key, payload: env.Payload, writtenAt: env.WrittenAt})
	s.metrics.lookup("durable", "hit")
	return true
}

func (s *Store) beforeCutoff(key Key, writtenAt time.Time) bool {
	v, ok := s.cutoffs.Get(key.KindPrefix())
	return ok && writtenAt.Before(v.(time.Time))
}

// promote copies a durable hit into memory unless memory already holds a tombstone or a newer write.
func (s *Store) promote(name string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.mem.Get(name); ok {
		cur := v.(*entry)
		if cur.deleted || !cur.writtenAt.Before(e.writtenAt) {
			return
		}
	}
	s.mem.Set(name, e, gocache.DefaultExpiration)
}

// Set stores value under key. The durable write is queued and never blocks;
// when the queue is full it is dropped and the in-process entry stays authoritative.
func (s *Store) Set(ctx context.Context, key Key, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		s.log.Warn("cache encode failed", zap.String("key", key.String()), zap.Error(err))
		return
	}
	name := key.String()
	writtenAt := s.now()

	s.mu.Lock()
	s.mem.Set(name, &entry{key: key, payload: payload, writtenAt: writtenAt}, gocache.DefaultExpiration)
	s.mu.Unlock()

	if s.durable == nil {
		return
	}
	raw, err := json.Marshal(envelope{Kind: key.Kind, Payload: payload, WrittenAt: writtenAt})
	if err != nil {
		return
	}
	s.enqueue(durableOp{key: name, value: string(raw)})
}

// Delete invalidates keys. Memory keeps a tombstone so a durable copy that is
// still waiting for removal, or whose removal was dropped, is never served.
// Like Set it never waits on the durable tier.
func (s *Store) Delete(ctx context.Context, keys ...Key) {
	s.mu.Lock()
	for _, key := range keys {
		s.mem.Set(key.String(), &entry{key: key, deleted: true}, gocache.DefaultExpiration)
	}
	s.mu.Unlock()
	s.metrics.invalidated(len(keys))

	if s.durable == nil {
		return
	}
	for _, key := range keys {
		s.enqueue(durableOp{key: key.String(), remove: true})
	}
}

// DeleteKind invalidates every key of kind for userID known to the in-process
// tier, and asks the durable tier to drop the whole kind when it can.
func (s *Store) DeleteKind(ctx context.Context, userID string, kind Kind) {
	prefix := Key{Kind: kind, UserID: userID}.KindPrefix()
	s.cutoffs.Set(prefix, s.now(), gocache.DefaultExpiration)

	var keys []Key
	for _, item := range s.mem.Items() {
		e := item.Object.(*entry)
		if e.key.UserID == userID && e.key.Kind == kind && !e.deleted {
			keys = append(keys, e.key)
		}
	}
	if len(keys) > 0 {
		s.Delete(ctx, keys...)
	}
	if _, ok := s.durable.(PrefixRemover); ok {
		s.enqueue(durableOp{key: prefix, remove: true, prefix: true})
	}
}

// enqueue hands op to the writer without waiting. A full queue drops the op;
// the in-process tier stays authoritative for the rest of the process.
func (s *Store) enqueue(op durableOp) {
	select {
	case s.queue <- op:
	default:
		s.metrics.dropped()
		s.log.Warn("durable cache queue full, op dropped",
			zap.String("key", op.key), zap.Bool("remove", op.remove))
	}
}

// Flush waits until every durable operation queued before the call has been applied.
func (s *Store) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	select {
	case s.queue <- durableOp{barrier: barrier}:
	case <-s.stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes pending durable operations and stops the writer.
func (s *Store) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.closeMu.Do(func() { close(s.stop) })
	<-s.done
	return err
}

func (s *Store) writer() {
	defer close(s.done)
	for {
		select {
		case op := <-s.queue:
			s.apply(op)
		case <-s.stop:
			return
		}
	}
}

func (s *Store) apply(op durableOp) {
	if op.barrier != nil {
		close(op.barrier)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var err error
	switch {
	case op.prefix:
		err = s.durable.(PrefixRemover).RemovePrefix(ctx, op.key)
	case op.remove:
		err = s.durable.RemoveItem(ctx, op.key)
	default:
		err = s.durable.SetItem(ctx, op.key, op.value)
	}
	if err != nil {
		name := "set"
		if op.remove {
			name = "remove"
		}
		s.metrics.durableError(name)
		s.log.Warn("durable cache write failed", zap.String("key", op.key), zap.String("op", name), zap.Error(err))
	}
}
