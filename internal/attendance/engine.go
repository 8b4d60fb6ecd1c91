package attendance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Engine is the synchronization engine: the single source of truth for
// attendance records. It composes the local cache and the remote client,
// decides which side serves each query, writes remote results back into
// the cache, and classifies outcomes into result streams.
//
// One engine exists per authenticated session. All operations are safe
// to invoke concurrently; consumers observing the same query share one
// stream.
type Engine struct {
	cache  Cache
	remote Remote
	logger Logger
	clock  Clock
	idgen  IDGenerator

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	today     *Stream[*Record]
	details   map[string]*Stream[*Record]
	histories map[string]*historyStream
}

type historyStream struct {
	r HistoryRange
	s *Stream[[]*Record]
}

// NewEngine creates the engine for the given user. If the cache belongs
// to a different user it is wiped before any query is served, so records
// never leak across accounts. The caller must call Close when done.
func NewEngine(cache Cache, remote Remote, user string, logger Logger, clock Clock, idgen IDGenerator) (*Engine, error) {
	ctx, cancel := context.WithCancel(context.Background())

	owner, err := cache.Owner(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("reading cache owner: %w", err)
	}
	if owner != "" && owner != user {
		logger.Info("cache owner changed, clearing", "previous", owner, "user", user)
		if err := cache.Clear(ctx); err != nil {
			cancel()
			return nil, fmt.Errorf("clearing cache for user switch: %w", err)
		}
	}
	if owner != user {
		if err := cache.SetOwner(ctx, user); err != nil {
			cancel()
			return nil, fmt.Errorf("recording cache owner: %w", err)
		}
	}

	e := &Engine{
		cache:     cache,
		remote:    remote,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		ctx:       ctx,
		cancel:    cancel,
		details:   make(map[string]*Stream[*Record]),
		histories: make(map[string]*historyStream),
	}

	go e.watchCache()

	return e, nil
}

// Close stops the cache watch loop. The cache itself is owned and closed
// by the caller.
func (e *Engine) Close() {
	e.cancel()
}

// ObserveToday returns the shared stream for the current day's record.
// The first call starts resolution; later calls return the same stream.
// Use Reload on the stream to re-resolve.
func (e *Engine) ObserveToday() *Stream[*Record] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.today == nil {
		e.today = NewStream(e.ctx, e.resolveToday)
	}
	return e.today
}

// ObserveDetail returns the shared stream for a single record by id.
func (e *Engine) ObserveDetail(id string) *Stream[*Record] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.details[id]; ok {
		return s
	}
	s := NewStream(e.ctx, func(ctx context.Context) Result[*Record] {
		return e.resolveDetail(ctx, id)
	})
	e.details[id] = s
	return s
}

// ObserveHistory returns the shared stream for a history range.
func (e *Engine) ObserveHistory(r HistoryRange) *Stream[[]*Record] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if hs, ok := e.histories[r.Key()]; ok {
		return hs.s
	}
	s := NewStream(e.ctx, func(ctx context.Context) Result[[]*Record] {
		return e.resolveHistory(ctx, r)
	})
	e.histories[r.Key()] = &historyStream{r: r, s: s}
	return s
}

// CheckIn submits a check-in at the given coordinates. The write goes
// remote-first; only a confirmed record is written to the cache, so an
// unconfirmed action is never presented as confirmed.
func (e *Engine) CheckIn(ctx context.Context, coords Coordinates) (*Record, error) {
	rec, err := e.remote.SubmitCheckIn(ctx, coords)
	if err != nil {
		return nil, err
	}
	e.commitAction(ctx, rec)
	return rec, nil
}

// CheckOut submits a check-out at the given coordinates.
func (e *Engine) CheckOut(ctx context.Context, coords Coordinates) (*Record, error) {
	rec, err := e.remote.SubmitCheckOut(ctx, coords)
	if err != nil {
		return nil, err
	}
	e.commitAction(ctx, rec)
	return rec, nil
}

// SubmitPermit submits an absence with the given reason.
func (e *Engine) SubmitPermit(ctx context.Context, reason string) (*Record, error) {
	rec, err := e.remote.SubmitPermit(ctx, reason)
	if err != nil {
		return nil, err
	}
	e.commitAction(ctx, rec)
	return rec, nil
}

// resolveToday queries cache and remote concurrently and joins them with
// a remote-wins-if-present policy.
func (e *Engine) resolveToday(ctx context.Context) Result[*Record] {
	day := DayKey(e.clock.Now())

	type cacheResult struct {
		rec *Record
		err error
	}
	cacheCh := make(chan cacheResult, 1)
	go func() {
		rec, err := e.cache.GetForDay(ctx, day)
		cacheCh <- cacheResult{rec: rec, err: err}
	}()

	fresh, remoteErr := e.remote.FetchToday(ctx)

	cr := <-cacheCh
	if cr.err != nil && !IsNotFound(cr.err) {
		e.logger.Warn("cache read failed", "day", day, "err", cr.err)
		cr.rec = nil
	}

	switch {
	case remoteErr == nil:
		e.writeBack(ctx, cr.rec, fresh)
		return Success(fresh.Clone(), false)

	case IsNotFound(remoteErr):
		// No remote record for today yet: materialize the NOT_FILLED
		// placeholder so the day exists locally.
		if cr.rec != nil && cr.rec.IsPlaceholder() {
			return Success(cr.rec.Clone(), false)
		}
		placeholder := NewPlaceholder(e.idgen.New(), e.dayAnchor())
		e.writeBack(ctx, cr.rec, placeholder)
		return Success(placeholder.Clone(), false)

	case IsNetwork(remoteErr):
		if cr.rec != nil {
			e.logger.Debug("remote unreachable, serving cached today", "id", cr.rec.ID)
			return Success(cr.rec.Clone(), true)
		}
		return Failure[*Record](remoteErr)

	default:
		// Auth and server failures mean the record state itself is not
		// retrievable, not merely unreachable; the cache is no fallback.
		e.logFailure("today", remoteErr)
		return Failure[*Record](remoteErr)
	}
}

// resolveDetail is remote-first: a detail view implies the user is
// inspecting a specific record whose authoritative state must be fresh.
func (e *Engine) resolveDetail(ctx context.Context, id string) Result[*Record] {
	fresh, err := e.remote.FetchByID(ctx, id)
	if err == nil {
		if perr := e.cache.Put(ctx, fresh); perr != nil {
			e.logger.Warn("cache write failed", "id", fresh.ID, "err", perr)
		}
		return Success(fresh.Clone(), false)
	}

	if IsNetwork(err) {
		cached, cerr := e.cache.Get(ctx, id)
		if cerr == nil {
			e.logger.Debug("remote unreachable, serving cached detail", "id", id)
			return Success(cached.Clone(), true)
		}
		if !IsNotFound(cerr) {
			e.logger.Warn("cache read failed", "id", id, "err", cerr)
		}
		return Failure[*Record](err)
	}

	e.logFailure("detail", err)
	return Failure[*Record](err)
}

// resolveHistory is remote-first with a full replace of the cached range
// on success.
func (e *Engine) resolveHistory(ctx context.Context, r HistoryRange) Result[[]*Record] {
	fresh, err := e.remote.FetchHistory(ctx, r)
	if err == nil {
		if rerr := e.cache.ReplaceHistory(ctx, r, fresh); rerr != nil {
			e.logger.Warn("cache history replace failed", "range", r.Key(), "err", rerr)
		}
		return Success(cloneAll(fresh), false)
	}

	if IsNetwork(err) {
		cached, cerr := e.cache.ListHistory(ctx, r)
		if cerr != nil {
			e.logger.Warn("cache read failed", "range", r.Key(), "err", cerr)
		} else if len(cached) > 0 {
			e.logger.Debug("remote unreachable, serving cached history", "range", r.Key(), "count", len(cached))
			return Success(cloneAll(cached), true)
		}
		return Failure[[]*Record](err)
	}

	e.logFailure("history", err)
	return Failure[[]*Record](err)
}

// commitAction writes a confirmed action record into the cache,
// replacing the day's placeholder when one exists.
func (e *Engine) commitAction(ctx context.Context, rec *Record) {
	cached, err := e.cache.GetForDay(ctx, rec.Day())
	if err != nil && !IsNotFound(err) {
		e.logger.Warn("cache read failed", "day", rec.Day(), "err", err)
		cached = nil
	}
	e.writeBack(ctx, cached, rec)
	e.logger.Info("attendance action recorded", "id", rec.ID, "status", rec.Status)
}

// writeBack upserts a confirmed record, rewriting (not duplicating) the
// cache entry when the day's cached id is superseded.
func (e *Engine) writeBack(ctx context.Context, cached, fresh *Record) {
	var err error
	if cached != nil && cached.ID != fresh.ID {
		err = e.cache.Replace(ctx, cached.ID, fresh)
	} else {
		err = e.cache.Put(ctx, fresh)
	}
	if err != nil {
		e.logger.Warn("cache write failed", "id", fresh.ID, "err", err)
	}
}

// watchCache forwards every cache write into the live streams matching
// it, so presentation observers see the new value without a remote
// round trip.
func (e *Engine) watchCache() {
	for rec := range e.cache.Watch(e.ctx) {
		e.fanout(rec)
	}
}

func (e *Engine) fanout(rec *Record) {
	e.mu.Lock()
	today := e.today
	detail := e.details[rec.ID]
	var matched []*historyStream
	for _, hs := range e.histories {
		if hs.r.Contains(rec.CreatedAt) {
			matched = append(matched, hs)
		}
	}
	e.mu.Unlock()

	if today != nil && rec.Day() == DayKey(e.clock.Now()) {
		today.refresh(rec.Clone())
	}
	if detail != nil {
		detail.refresh(rec.Clone())
	}
	for _, hs := range matched {
		cur := hs.s.Current()
		if cur.State != StateSuccess {
			continue
		}
		hs.s.refresh(mergeHistory(cur.Value, rec.Clone()))
	}
}

// logFailure records non-transient failures; data-integrity faults get a
// louder line since they are never expected in normal operation.
func (e *Engine) logFailure(op string, err error) {
	if KindOf(err) == KindInvalid {
		e.logger.Error("remote returned an invalid record", "op", op, "err", err)
		return
	}
	e.logger.Debug("remote request failed", "op", op, "kind", KindOf(err).String(), "err", err)
}

// dayAnchor returns midnight of the current day in local time.
func (e *Engine) dayAnchor() time.Time {
	now := e.clock.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// mergeHistory returns recs with rec replacing its day's entry, or
// inserted if the day is new, keeping newest-first order.
func mergeHistory(recs []*Record, rec *Record) []*Record {
	out := make([]*Record, 0, len(recs)+1)
	replaced := false
	for _, r := range recs {
		if r.Day() == rec.Day() {
			out = append(out, rec)
			replaced = true
			continue
		}
		out = append(out, r)
	}
	if !replaced {
		out = append(out, rec)
		sort.Slice(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	}
	return out
}

func cloneAll(recs []*Record) []*Record {
	out := make([]*Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}
