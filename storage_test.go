package objstore

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestStorage(t *testing.T, backend Backend) storage {
	t.Helper()
	var stor storage
	var err error
	switch backend {
	case BackendBolt:
		stor, err = openBoltStorage(filepath.Join(t.TempDir(), "s.db"), Options{IsTesting: true})
	case BackendMemory:
		stor = newMemStorage()
	case BackendSQLite:
		stor, err = openSQLiteStorage(filepath.Join(t.TempDir(), "s.sqlite"), Options{IsTesting: true})
	}
	success(t, err)
	t.Cleanup(func() { stor.Close() })
	return stor
}

func eachStorage(t *testing.T, f func(t *testing.T, stor storage)) {
	for _, backend := range allBackends {
		t.Run(string(backend), func(t *testing.T) {
			f(t, openTestStorage(t, backend))
		})
	}
}

func TestStorageBuckets(t *testing.T) {
	eachStorage(t, func(t *testing.T, stor storage) {
		tx := must(stor.BeginTx(true))
		deepEqual(t, tx.Writable(), true)
		_, err := tx.Bucket("b")
		if !errors.Is(err, errBucketNotFound) {
			t.Fatalf("** Bucket = %v, wanted errBucketNotFound", err)
		}
		b := must(tx.CreateBucket("b"))
		success(t, b.Put([]byte("k2"), []byte("v2")))
		success(t, b.Put([]byte("k1"), []byte("v1")))
		success(t, b.Put([]byte("k3"), []byte("v3")))
		success(t, b.Put([]byte("k2"), []byte("v2b")))
		success(t, b.Delete([]byte("k3")))
		success(t, b.Delete([]byte("missing")))
		deepEqual(t, must(b.NextSequence()), uint64(1))
		deepEqual(t, must(b.NextSequence()), uint64(2))
		deepEqual(t, must(b.Stats()).KeyN, 2)
		success(t, tx.Commit())
		success(t, tx.Rollback())

		tx = must(stor.BeginTx(false))
		defer tx.Rollback()
		deepEqual(t, tx.Writable(), false)
		b = must(tx.Bucket("b"))
		deepEqual(t, string(must(b.Get([]byte("k2")))), "v2b")
		deepEqual(t, must(b.Get([]byte("k3"))), []byte(nil))

		var pairs []string
		success(t, b.ForEach(func(k, v []byte) error {
			pairs = append(pairs, string(k)+"="+string(v))
			return nil
		}))
		deepEqual(t, pairs, []string{"k1=v1", "k2=v2b"})

		s := must(b.Stats())
		deepEqual(t, s.KeyN, 2)
		if s.DataSize <= 0 {
			t.Errorf("** DataSize = %d, wanted > 0", s.DataSize)
		}
	})
}

func TestStorageRollback(t *testing.T) {
	eachStorage(t, func(t *testing.T, stor storage) {
		tx := must(stor.BeginTx(true))
		b := must(tx.CreateBucket("b"))
		success(t, b.Put([]byte("a"), []byte("1")))
		success(t, tx.Commit())

		tx = must(stor.BeginTx(true))
		b = must(tx.Bucket("b"))
		success(t, b.Put([]byte("a"), []byte("2")))
		success(t, b.Put([]byte("b"), []byte("3")))
		must(b.NextSequence())
		success(t, tx.Rollback())

		tx = must(stor.BeginTx(true))
		defer tx.Rollback()
		b = must(tx.Bucket("b"))
		deepEqual(t, string(must(b.Get([]byte("a")))), "1")
		deepEqual(t, must(b.Get([]byte("b"))), []byte(nil))
		deepEqual(t, must(b.NextSequence()), uint64(1))
	})
}

func TestStorageForEachStops(t *testing.T) {
	eachStorage(t, func(t *testing.T, stor storage) {
		tx := must(stor.BeginTx(true))
		defer tx.Rollback()
		b := must(tx.CreateBucket("b"))
		for _, k := range []string{"c", "a", "b"} {
			success(t, b.Put([]byte(k), []byte(k)))
		}
		var seen []string
		err := b.ForEach(func(k, v []byte) error {
			seen = append(seen, string(k))
			if len(seen) == 2 {
				return errBreak
			}
			return nil
		})
		deepEqual(t, err, errBreak)
		deepEqual(t, seen, []string{"a", "b"})
	})
}

func TestStorageReadersSeeCommittedData(t *testing.T) {
	eachStorage(t, func(t *testing.T, stor storage) {
		tx := must(stor.BeginTx(true))
		must(tx.CreateBucket("b"))
		success(t, tx.Commit())

		wtx := must(stor.BeginTx(true))
		success(t, must(wtx.Bucket("b")).Put([]byte("k"), []byte("v")))

		rtx := must(stor.BeginTx(false))
		deepEqual(t, must(must(rtx.Bucket("b")).Get([]byte("k"))), []byte(nil))
		success(t, rtx.Rollback())

		success(t, wtx.Commit())

		rtx = must(stor.BeginTx(false))
		defer rtx.Rollback()
		deepEqual(t, string(must(must(rtx.Bucket("b")).Get([]byte("k")))), "v")
	})
}

func TestMemStorageClosed(t *testing.T) {
	stor := newMemStorage()
	success(t, stor.Close())
	_, err := stor.BeginTx(false)
	if err == nil {
		t.Fatalf("** BeginTx on closed storage succeeded")
	}
}
