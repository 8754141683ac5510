package objstore

import "errors"

// errBucketNotFound is returned by storageTx.Bucket when the bucket doesn't exist.
var errBucketNotFound = errors.New("bucket not found")

// storage represents a key-value storage backend (Bolt, in-memory, SQLite).
type storage interface {
	// BeginTx starts a new transaction. Writable transactions are exclusive:
	// BeginTx(true) blocks until the current writer finishes.
	BeginTx(writable bool) (storageTx, error)
	// Close closes the storage.
	Close() error
}

// storageTx represents a storage transaction.
type storageTx interface {
	// Writable returns true if this is a writable transaction.
	Writable() bool

	// Bucket returns an existing bucket, or errBucketNotFound.
	Bucket(name string) (storageBucket, error)

	// CreateBucket creates a bucket if it doesn't exist.
	CreateBucket(name string) (storageBucket, error)

	// Commit commits the transaction.
	Commit() error

	// Rollback aborts the transaction. It should be safe to call multiple
	// times and after Commit.
	Rollback() error
}

// storageBucket represents a bucket (sorted key-value collection).
type storageBucket interface {
	// Get retrieves a value by key. Returns nil if not found. The returned
	// slice is only valid until the end of the transaction.
	Get(key []byte) ([]byte, error)

	// Put stores a key-value pair.
	Put(key, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(key []byte) error

	// ForEach calls f for every pair in ascending key order. f must not
	// modify the bucket.
	ForEach(f func(k, v []byte) error) error

	// NextSequence returns an autoincrementing integer for the bucket.
	NextSequence() (uint64, error)

	// Stats returns storage-specific bucket statistics.
	// Backends that don't track allocation sizes may return zero values except KeyN.
	Stats() (bucketStats, error)
}

type bucketStats struct {
	KeyN      int
	DataSize  int64
	DataAlloc int64
}
