package objstore

import (
	"bytes"
	"errors"
	"maps"
	"slices"
	"sync"
)

var (
	errMemClosed = errors.New("memory storage is closed")
	errTxDone    = errors.New("transaction is closed")
	errReadOnly  = errors.New("transaction is read-only")
)

// memStorage is a transient storage. The committed bucket set is never
// modified in place: readers share it, and the single writer copies each
// bucket the first time it touches it, then publishes its own set on commit.
type memStorage struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buckets map[string]*memBucket
	writing bool
	closed  bool
}

func newMemStorage() storage {
	s := &memStorage{buckets: make(map[string]*memBucket)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *memStorage) BeginTx(writable bool) (storageTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for writable && s.writing && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return nil, errMemClosed
	}
	tx := &memTx{stor: s, writable: writable, buckets: s.buckets}
	if writable {
		s.writing = true
		tx.buckets = maps.Clone(s.buckets)
		tx.owned = make(map[*memBucket]bool)
	}
	return tx, nil
}

func (s *memStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.buckets = nil
	s.cond.Broadcast()
	return nil
}

type memTx struct {
	stor     *memStorage
	writable bool
	done     bool
	buckets  map[string]*memBucket
	owned    map[*memBucket]bool // buckets already copied by this writer
}

func (tx *memTx) Writable() bool { return tx.writable }

func (tx *memTx) checkWritable() error {
	if tx.done {
		return errTxDone
	}
	if !tx.writable {
		return errReadOnly
	}
	return nil
}

func (tx *memTx) Bucket(name string) (storageBucket, error) {
	if tx.done {
		return nil, errTxDone
	}
	if tx.buckets[name] == nil {
		return nil, errBucketNotFound
	}
	return &memBucketRef{tx, name}, nil
}

func (tx *memTx) CreateBucket(name string) (storageBucket, error) {
	if err := tx.checkWritable(); err != nil {
		return nil, err
	}
	if tx.buckets[name] == nil {
		b := &memBucket{}
		tx.buckets[name] = b
		tx.owned[b] = true
	}
	return &memBucketRef{tx, name}, nil
}

// mutable returns this writer's private copy of the bucket.
func (tx *memTx) mutable(name string) *memBucket {
	b := tx.buckets[name]
	if !tx.owned[b] {
		b = b.clone()
		tx.buckets[name] = b
		tx.owned[b] = true
	}
	return b
}

func (tx *memTx) Commit() error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	s := tx.stor
	s.mu.Lock()
	defer s.mu.Unlock()
	buckets := tx.buckets
	tx.endLocked()
	if s.closed {
		return errMemClosed
	}
	s.buckets = buckets
	return nil
}

func (tx *memTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.stor.mu.Lock()
	defer tx.stor.mu.Unlock()
	tx.endLocked()
	return nil
}

func (tx *memTx) endLocked() {
	tx.done = true
	tx.buckets, tx.owned = nil, nil
	if tx.writable {
		tx.stor.writing = false
		tx.stor.cond.Broadcast()
	}
}

// memBucket keeps keys sorted, with values in the parallel slice. Key and
// value slices are replaced, never modified, so a shallow clone is enough.
type memBucket struct {
	keys   [][]byte
	values [][]byte
	seq    uint64
}

func (b *memBucket) clone() *memBucket {
	return &memBucket{
		keys:   slices.Clone(b.keys),
		values: slices.Clone(b.values),
		seq:    b.seq,
	}
}

func (b *memBucket) search(key []byte) (int, bool) {
	return slices.BinarySearchFunc(b.keys, key, bytes.Compare)
}

// memBucketRef resolves the bucket by name on every call, since a writer
// swaps in its private copy on first modification.
type memBucketRef struct {
	tx   *memTx
	name string
}

func (r *memBucketRef) read() (*memBucket, error) {
	if r.tx.done {
		return nil, errTxDone
	}
	return r.tx.buckets[r.name], nil
}

func (r *memBucketRef) write() (*memBucket, error) {
	if err := r.tx.checkWritable(); err != nil {
		return nil, err
	}
	return r.tx.mutable(r.name), nil
}

func (r *memBucketRef) Get(key []byte) ([]byte, error) {
	b, err := r.read()
	if err != nil {
		return nil, err
	}
	if i, ok := b.search(key); ok {
		return b.values[i], nil
	}
	return nil, nil
}

func (r *memBucketRef) Put(key, value []byte) error {
	b, err := r.write()
	if err != nil {
		return err
	}
	value = append([]byte{}, value...)
	i, ok := b.search(key)
	if ok {
		b.values[i] = value
		return nil
	}
	b.keys = slices.Insert(b.keys, i, slices.Clone(key))
	b.values = slices.Insert(b.values, i, value)
	return nil
}

func (r *memBucketRef) Delete(key []byte) error {
	b, err := r.write()
	if err != nil {
		return err
	}
	if i, ok := b.search(key); ok {
		b.keys = slices.Delete(b.keys, i, i+1)
		b.values = slices.Delete(b.values, i, i+1)
	}
	return nil
}

func (r *memBucketRef) ForEach(f func(k, v []byte) error) error {
	b, err := r.read()
	if err != nil {
		return err
	}
	for i, k := range b.keys {
		if err := f(k, b.values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *memBucketRef) NextSequence() (uint64, error) {
	b, err := r.write()
	if err != nil {
		return 0, err
	}
	b.seq++
	return b.seq, nil
}

func (r *memBucketRef) Stats() (bucketStats, error) {
	b, err := r.read()
	if err != nil {
		return bucketStats{}, err
	}
	s := bucketStats{KeyN: len(b.keys)}
	for i, k := range b.keys {
		s.DataSize += int64(len(k) + len(b.values[i]))
	}
	s.DataAlloc = s.DataSize
	return s, nil
}
