package objstore

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const trackTxns = true

type Backend string

const (
	BackendBolt   Backend = "bolt"
	BackendMemory Backend = "memory"
	BackendSQLite Backend = "sqlite"
)

type DB struct {
	stor    storage
	schema  *Schema
	logf    func(format string, args ...any)
	verbose bool
	closed  atomic.Bool

	ReaderCount    atomic.Int64
	WriterCount    atomic.Int64
	ReadCount      atomic.Uint64
	WriteCount     atomic.Uint64
	CommitCount    atomic.Uint64
	CancelCount    atomic.Uint64
	CreatedCount   atomic.Uint64
	DeletedCount   atomic.Uint64
	ConstraintFail atomic.Uint64

	txns     []*Tx
	txnsLock sync.Mutex
}

type Options struct {
	Backend   Backend
	Logf      func(format string, args ...any)
	Verbose   bool
	IsTesting bool
	MmapSize  int
	Timeout   time.Duration
}

// Open opens or creates a database. path is ignored by BackendMemory.
func Open(path string, schema *Schema, opt Options) (*DB, error) {
	var stor storage
	var err error
	switch opt.Backend {
	case BackendBolt, "":
		stor, err = openBoltStorage(path, opt)
	case BackendMemory:
		stor = newMemStorage()
	case BackendSQLite:
		stor, err = openSQLiteStorage(path, opt)
	default:
		return nil, fmt.Errorf("objstore: unknown backend %q", opt.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("objstore: %w", err)
	}

	db := &DB{
		stor:    stor,
		schema:  schema,
		logf:    opt.Logf,
		verbose: opt.Verbose,
	}
	if db.logf == nil {
		db.logf = func(format string, args ...any) {
			slog.Debug(fmt.Sprintf(format, args...))
		}
	}

	err = db.Write(func(tx *Tx) error {
		return db.prepare(tx)
	})
	if err != nil {
		stor.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) prepare(tx *Tx) error {
	meta, err := tx.stx.CreateBucket(metaBucket)
	if err != nil {
		return storeErr("create "+metaBucket, err)
	}
	for _, cls := range db.schema.classes {
		if _, err := tx.stx.CreateBucket(cls.bucketName()); err != nil {
			return storeErr("create "+cls.name, err)
		}
		fp := binary.BigEndian.AppendUint64(nil, cls.fingerprint)
		old, err := meta.Get([]byte(cls.name))
		if err != nil {
			return storeErr("read "+metaBucket, err)
		}
		if old != nil && string(old) == string(fp) {
			continue
		}
		if old != nil {
			db.logf("db: class %s layout changed (fingerprint %s => %s)", cls.name, hexstr(old), hexstr(fp))
		}
		if err := meta.Put([]byte(cls.name), fp); err != nil {
			return storeErr("write "+metaBucket, err)
		}
	}
	return nil
}

func (db *DB) Schema() *Schema {
	return db.schema
}

func (db *DB) IsClosed() bool {
	return db.closed.Load()
}

func (db *DB) Close() error {
	if db.closed.Swap(true) {
		return nil
	}
	return storeErr("close", db.stor.Close())
}

func (db *DB) addTx(tx *Tx) {
	if !trackTxns {
		return
	}
	db.txnsLock.Lock()
	defer db.txnsLock.Unlock()
	db.txns = append(db.txns, tx)
}

func (db *DB) removeTx(tx *Tx) {
	if !trackTxns {
		return
	}
	db.txnsLock.Lock()
	defer db.txnsLock.Unlock()

	found := slices.Index(db.txns, tx)
	if found < 0 {
		panic("tx not found in list")
	}

	n := len(db.txns)
	db.txns[found] = db.txns[n-1]
	db.txns[n-1] = nil // ensure it gets collected
	db.txns = db.txns[:n-1]
}

func (db *DB) DescribeOpenTxns() string {
	if !trackTxns {
		return "OPEN TX TRACKING DISABLED"
	}

	db.txnsLock.Lock()
	txns := slices.Clone(db.txns)
	db.txnsLock.Unlock()

	if len(txns) == 0 {
		return "NO OPEN TRANSACTIONS"
	}

	slices.SortFunc(txns, func(a, b *Tx) int {
		return a.startTime.Compare(b.startTime)
	})

	now := time.Now()

	var buf strings.Builder
	fmt.Fprintf(&buf, "%d OPEN TRANSACTIONS:\n", len(txns))
	for _, tx := range txns {
		ms := now.Sub(tx.startTime).Milliseconds()
		if ms < 100 {
			fmt.Fprintf(&buf, "\n---\n%s open for %d ms\n", tx.owner(), ms)
		} else {
			fmt.Fprintf(&buf, "\n---\n%s open for %d ms:\n%s", tx.owner(), ms, tx.stack)
		}
	}

	return buf.String()
}
