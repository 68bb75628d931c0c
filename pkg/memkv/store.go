package memkv

import (
	"container/heap"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

type Options struct {
	Shards   int    // default 32
	MaxBytes uint64 // 0 = unlimited
	// OnExpire is called from the expirer goroutine for every key it removes.
	OnExpire func(key string, val []byte)
	// Now overrides the clock, for tests.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Shards <= 0 {
		o.Shards = 32
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type Store struct {
	opts   Options
	shards []shard

	qmu  sync.Mutex
	q    expQueue
	wake chan struct{}

	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mKeys    atomic.Int64
	mBytes   atomic.Uint64
	mSets    atomic.Uint64
	mHits    atomic.Uint64
	mMisses  atomic.Uint64
	mExpired atomic.Uint64
}

type shard struct {
	mu sync.RWMutex
	m  map[string]*entry
}

type entry struct {
	val      []byte
	expireAt int64 // unix nanos, 0 = never
}

func (e *entry) expired(now int64) bool { return e.expireAt != 0 && e.expireAt <= now }

func New(opts Options) *Store {
	opts = opts.withDefaults()
	s := &Store{
		opts:    opts,
		shards:  make([]shard, opts.Shards),
		wake:    make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i].m = make(map[string]*entry)
	}
	s.wg.Add(1)
	go s.expirer()
	return s
}

// Close stops the expirer. The store stays readable.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.closeCh) })
	s.wg.Wait()
}

func (s *Store) shardFor(key string) *shard {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum64()%uint64(len(s.shards))]
}

func (s *Store) now() int64 { return s.opts.Now().UnixNano() }

// reserve accounts for delta more bytes, refusing to cross MaxBytes.
func (s *Store) reserve(delta uint64) bool {
	if s.opts.MaxBytes == 0 {
		s.mBytes.Add(delta)
		return true
	}
	for {
		cur := s.mBytes.Load()
		if cur+delta > s.opts.MaxBytes {
			return false
		}
		if s.mBytes.CompareAndSwap(cur, cur+delta) {
			return true
		}
	}
}

func (s *Store) release(n int) { s.mBytes.Add(^uint64(n - 1)) }

// Set stores a copy of val under key. ttl <= 0 keeps it until the store
// goes away.
// It returns false when MaxBytes would be exceeded; the old value is kept.
func (s *Store) Set(key string, val []byte, ttl time.Duration) bool {
	var expAt int64
	if ttl > 0 {
		expAt = s.now() + int64(ttl)
	}
	v := append([]byte(nil), val...)

	sh := s.shardFor(key)
	sh.mu.Lock()
	prev, existed := sh.m[key]
	oldLen := 0
	if existed {
		oldLen = len(prev.val)
	}
	if d := len(v) - oldLen; d > 0 && !s.reserve(uint64(d)) {
		sh.mu.Unlock()
		return false
	} else if d < 0 {
		s.release(-d)
	}
	sh.m[key] = &entry{val: v, expireAt: expAt}
	sh.mu.Unlock()

	if !existed {
		s.mKeys.Add(1)
	}
	s.mSets.Add(1)
	if expAt != 0 {
		s.schedule(key, expAt)
	}
	return true
}

// Get returns a copy of the value, or false if key is missing or expired.
func (s *Store) Get(key string) ([]byte, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	e, ok := sh.m[key]
	if ok && !e.expired(s.now()) {
		out := append([]byte(nil), e.val...)
		sh.mu.RUnlock()
		s.mHits.Add(1)
		return out, true
	}
	sh.mu.RUnlock()
	s.mMisses.Add(1)
	return nil, false
}

// Range calls fn for every live key until fn returns false. fn must not
// call back into the store. Order is unspecified.
func (s *Store) Range(fn func(key string, val []byte) bool) {
	now := s.now()
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for k, e := range sh.m {
			if e.expired(now) {
				continue
			}
			if !fn(k, e.val) {
				sh.mu.RUnlock()
				return
			}
		}
		sh.mu.RUnlock()
	}
}

// Stats is a snapshot of the store counters.
type Stats struct {
	Keys    int64
	Bytes   uint64
	Sets    uint64
	Hits    uint64
	Misses  uint64
	Expired uint64
}

// Metrics reads the counters without locking any shard.
func (s *Store) Metrics() Stats {
	return Stats{
		Keys:    s.mKeys.Load(),
		Bytes:   s.mBytes.Load(),
		Sets:    s.mSets.Load(),
		Hits:    s.mHits.Load(),
		Misses:  s.mMisses.Load(),
		Expired: s.mExpired.Load(),
	}
}

type expItem struct {
	when int64
	key  string
}

// expQueue is a min-heap on deadline.
type expQueue []expItem

func (q expQueue) Len() int           { return len(q) }
func (q expQueue) Less(i, j int) bool { return q[i].when < q[j].when }
func (q expQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *expQueue) Push(x any)        { *q = append(*q, x.(expItem)) }
func (q *expQueue) Pop() any {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}

func (s *Store) schedule(key string, when int64) {
	s.qmu.Lock()
	heap.Push(&s.q, expItem{when: when, key: key})
	s.qmu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// expirer sleeps until the earliest deadline, or until schedule adds a new
// one, and removes whatever is due. Stale heap items (key rewritten with a
// later deadline) are skipped by re-checking the entry.
func (s *Store) expirer() {
	defer s.wg.Done()
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		wait := time.Duration(-1)
		for {
			s.qmu.Lock()
			if s.q.Len() == 0 {
				s.qmu.Unlock()
				break
			}
			now := s.now()
			it := s.q[0]
			if it.when > now {
				wait = time.Duration(it.when - now)
				s.qmu.Unlock()
				break
			}
			heap.Pop(&s.q)
			s.qmu.Unlock()
			s.expireKey(it.key, now)
		}

		var tick <-chan time.Time
		if wait >= 0 {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(wait)
			tick = timer.C
		}
		select {
		case <-s.closeCh:
			return
		case <-s.wake:
		case <-tick:
		}
	}
}

func (s *Store) expireKey(key string, now int64) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	e, ok := sh.m[key]
	if !ok || !e.expired(now) {
		sh.mu.Unlock()
		return
	}
	delete(sh.m, key)
	sh.mu.Unlock()

	s.mKeys.Add(-1)
	s.mExpired.Add(1)
	s.release(len(e.val))
	if s.opts.OnExpire != nil {
		s.opts.OnExpire(key, e.val)
	}
}
