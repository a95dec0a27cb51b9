package cache

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Keksclan/goRawrStash/contextx"
	"github.com/Keksclan/goRawrStash/metrics"
	"github.com/Keksclan/goRawrStash/store"
	"github.com/Keksclan/goRawrStash/tracing"
	"github.com/golang/glog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Creator produces the value of a key nobody has cached yet. It usually
// calls the upstream through a shared fetch.Fetcher.
type Creator[V any] func(ctx context.Context, key string) (V, error)

type options struct {
	codec       any
	mode        Mode
	concurrency int
	partition   string
	recorder    metrics.Recorder
	tracing     *tracing.Config
}

// Option configures a Tiered cache.
type Option func(*options)

// WithCodec sets the codec used for the durable store. c must implement
// Codec[V] for the V of the Tiered it is passed to.
func WithCodec(c any) Option {
	return func(o *options) { o.codec = c }
}

// WithMode selects BestEffort (default) or Strict failure reporting.
func WithMode(m Mode) Option {
	return func(o *options) { o.mode = m }
}

// WithCreatorConcurrency lets up to n creator calls of one batch run at
// once. The default of 1 invokes the creator one key at a time.
func WithCreatorConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithPartition overrides store.DefaultPartition.
func WithPartition(p string) Option {
	return func(o *options) { o.partition = p }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithTracing opens a span per resolution.
func WithTracing(cfg *tracing.Config) Option {
	return func(o *options) { o.tracing = cfg }
}

// Tiered resolves keys of one namespace through the memory tier, the
// durable store and finally a creator. Concurrent resolutions of the same
// key are not coordinated; the durable re-check at the end of a batch picks
// up values written by a racing caller.
type Tiered[V any] struct {
	mem   *Namespace[V]
	store store.Store
	codec Codec[V]
	opts  options
}

// New creates the orchestrator for namespace. st may be nil, in which case
// only the memory tier and the creator are used.
func New[V any](mem *Memory, st store.Store, namespace string, opts ...Option) (*Tiered[V], error) {
	if mem == nil {
		return nil, errors.New("cache: nil memory tier")
	}
	if err := store.CheckNamespace(namespace); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	o := options{
		concurrency: 1,
		partition:   store.DefaultPartition,
		recorder:    metrics.Noop{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}

	codec := Codec[V](JSONCodec[V]{})
	if o.codec != nil {
		c, ok := o.codec.(Codec[V])
		if !ok {
			var zero V
			return nil, fmt.Errorf("cache: codec %T cannot encode %T", o.codec, zero)
		}
		codec = c
	}

	return &Tiered[V]{
		mem:   NewNamespace[V](mem, namespace),
		store: st,
		codec: codec,
		opts:  o,
	}, nil
}

// Namespace returns the namespace name.
func (t *Tiered[V]) Namespace() string { return t.mem.Name() }

// Resolve resolves a single key.
func (t *Tiered[V]) Resolve(ctx context.Context, key string, useDurable bool, ttl time.Duration, creator Creator[V]) (V, error) {
	res, err := t.ResolveBatch(ctx, []string{key}, useDurable, ttl, creator)
	o := res[key]
	if err == nil && !o.OK() {
		err = o.Err
	}
	return o.Value, err
}

// ResolveBatch resolves keys, which may contain duplicates:
//
//  1. live memory hits are used as they are;
//  2. when useDurable is set, the remaining keys are read from the durable
//     store in one batch and promoted into memory with ttl;
//  3. every key still missing goes to creator; each created value is
//     written to the durable store, then to memory;
//  4. when useDurable is set, keys whose creator failed are looked up in the
//     durable store once more.
//
// A creator failure never aborts the batch; it becomes the key's outcome.
// A durable read error or a cancelled ctx does, and is returned together
// with whatever was resolved so far. In Strict mode a *BatchError is also
// returned when any key is left unresolved.
func (t *Tiered[V]) ResolveBatch(ctx context.Context, keys []string, useDurable bool, ttl time.Duration, creator Creator[V]) (Result[V], error) {
	if creator == nil {
		return nil, ErrNilCreator
	}
	ns := t.mem.Name()
	ctx = contextx.WithNamespace(ctx, ns)
	ctx, done := t.opts.tracing.Start(ctx, "resolve",
		attribute.String("stash.namespace", ns),
		attribute.Int("stash.keys", len(keys)),
	)

	res, err := t.resolve(ctx, dedupe(keys), useDurable && t.store != nil, ttl, creator)
	if err == nil && t.opts.mode == Strict {
		if failed := res.Failed(); len(failed) > 0 {
			err = &BatchError{Namespace: ns, Keys: failed}
		}
	}
	done(err)
	return res, err
}

func (t *Tiered[V]) resolve(ctx context.Context, keys []string, useDurable bool, ttl time.Duration, creator Creator[V]) (Result[V], error) {
	ns := t.mem.Name()
	res := make(Result[V], len(keys))
	counts := make(map[Source]int, 4)
	defer func() {
		for s, n := range counts {
			t.opts.recorder.Resolved(ns, s.String(), n)
		}
		if glog.V(1) {
			glog.Infof("%scache: resolved %d key(s): memory=%d durable=%d created=%d recheck=%d failed=%d",
				contextx.LogPrefix(ctx), len(keys),
				counts[FromMemory], counts[FromDurable], counts[FromCreated], counts[FromRecheck], counts[FromFailed])
		}
	}()

	hits, todo := t.mem.GetMany(keys)
	for k, v := range hits {
		res[k] = Outcome[V]{Value: v, Source: FromMemory}
	}
	counts[FromMemory] = len(hits)

	if len(todo) > 0 && useDurable {
		found, err := t.loadDurable(ctx, todo, ttl)
		if err != nil {
			return res, err
		}
		todo = t.settle(res, counts, todo, found, FromDurable)
	}

	if len(todo) > 0 {
		if err := t.create(ctx, todo, ttl, creator, res); err != nil {
			return res, err
		}
		todo = todo[:0]
		for k, o := range res {
			if o.Source == FromFailed {
				todo = append(todo, k)
			}
		}
		counts[FromCreated] = len(res) - len(todo) - counts[FromMemory] - counts[FromDurable]
	}

	if len(todo) > 0 && useDurable {
		found, err := t.loadDurable(ctx, todo, ttl)
		if err != nil {
			return res, err
		}
		todo = t.settle(res, counts, todo, found, FromRecheck)
	}
	counts[FromFailed] = len(todo)
	return res, nil
}

// settle records found values with source s and returns the keys of todo
// that are still missing.
func (t *Tiered[V]) settle(res Result[V], counts map[Source]int, todo []string, found map[string]V, s Source) []string {
	rest := todo[:0]
	for _, k := range todo {
		v, ok := found[k]
		if !ok {
			rest = append(rest, k)
			continue
		}
		res[k] = Outcome[V]{Value: v, Source: s}
		counts[s]++
	}
	return rest
}

// loadDurable reads keys from the durable store in one batch and promotes
// every decodable record into memory.
func (t *Tiered[V]) loadDurable(ctx context.Context, keys []string, ttl time.Duration) (map[string]V, error) {
	ns := t.mem.Name()
	rows := make([]string, len(keys))
	byRow := make(map[string]string, len(keys))
	for i, k := range keys {
		rows[i] = store.RowKey(ns, k)
		byRow[rows[i]] = k
	}

	recs, err := t.store.Get(ctx, t.opts.partition, rows)
	if err != nil {
		return nil, fmt.Errorf("cache: %s: durable get: %w", ns, err)
	}

	found := make(map[string]V, len(recs))
	for _, r := range recs {
		k, ok := byRow[r.RowKey]
		if !ok {
			continue
		}
		v, err := t.codec.Decode(r.Value)
		if err != nil {
			glog.Warningf("%scache: undecodable durable record %s/%s (etag %s): %v",
				contextx.LogPrefix(ctx), r.PartitionKey, r.RowKey, r.ETag, err)
			continue
		}
		found[k] = v
		t.mem.Set(k, v, ttl)
	}
	return found, nil
}

// create runs creator for every key in todo and stores the outcome of each
// in res. Only a cancelled ctx is returned as an error.
func (t *Tiered[V]) create(ctx context.Context, todo []string, ttl time.Duration, creator Creator[V], res Result[V]) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.concurrency)

	for _, k := range todo {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o := t.createOne(gctx, k, ttl, creator)
			if o.Source == FromFailed && ctx.Err() != nil {
				return ctx.Err()
			}
			mu.Lock()
			res[k] = o
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (t *Tiered[V]) createOne(ctx context.Context, key string, ttl time.Duration, creator Creator[V]) Outcome[V] {
	ns := t.mem.Name()
	v, err := callCreator(ctx, key, creator)
	if err != nil {
		t.opts.recorder.CreatorFailed(ns)
		glog.Warningf("%scache: creator failed for %s:%s: %v", contextx.LogPrefix(ctx), ns, key, err)
		return Outcome[V]{Source: FromFailed, Err: err}
	}

	if t.store != nil {
		if err := t.writeThrough(ctx, key, v); err != nil {
			t.opts.recorder.WriteThroughFailed(ns)
			glog.Warningf("%scache: write-through failed for %s:%s: %v", contextx.LogPrefix(ctx), ns, key, err)
		}
	}
	t.mem.Set(key, v, ttl)
	return Outcome[V]{Value: v, Source: FromCreated}
}

// callCreator runs creator for key. A panic becomes the key's error.
func callCreator[V any](ctx context.Context, key string, creator Creator[V]) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			glog.Errorf("%scache: creator panic for key %s: %v\n%s", contextx.LogPrefix(ctx), key, r, debug.Stack())
			err = fmt.Errorf("%w: %v", ErrCreatorPanic, r)
		}
	}()
	return creator(ctx, key)
}

func (t *Tiered[V]) writeThrough(ctx context.Context, key string, v V) error {
	data, err := t.codec.Encode(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return t.store.Upsert(ctx, t.opts.partition, store.RowKey(t.mem.Name(), key), data)
}

// Invalidate drops keys from the memory tier. Durable records are kept.
func (t *Tiered[V]) Invalidate(keys ...string) {
	for _, k := range keys {
		t.mem.Delete(k)
	}
}

// dedupe returns keys without duplicates, keeping first-seen order.
func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
