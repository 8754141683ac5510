package objstore

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"time"
)

// Tx is a storage transaction plus the set of live objects it manages.
//
// Objects created in a writable Tx, or read through it, are live: the Tx keeps
// an identity map from (class, key) to the row pointer and writes every live
// object back on commit. Reading the same key twice returns the same pointer.
// Objects read in a read-only Tx are plain snapshots.
type Tx struct {
	db        *DB
	stx       storageTx
	sess      *Session
	writable  bool
	closed    bool
	written   bool
	startTime time.Time
	stack     string

	buckets map[*Class]storageBucket
	live    map[liveKey]*liveObject
	order   []*liveObject
}

type liveKey struct {
	cls *Class
	key string
}

type liveObject struct {
	cls      *Class
	key      []byte
	rowVal   reflect.Value
	stored   []byte
	detached bool
}

var errBreak = errors.New("break")

func (db *DB) beginTx(writable bool, sess *Session) (*Tx, error) {
	if db.IsClosed() {
		return nil, stateErrf(nil, "database is closed")
	}
	stx, err := db.stor.BeginTx(writable)
	if err != nil {
		return nil, storeErr("begin", err)
	}
	tx := &Tx{
		db:        db,
		stx:       stx,
		sess:      sess,
		writable:  writable,
		startTime: time.Now(),
	}
	if writable {
		if trackTxns {
			tx.stack = string(debug.Stack())
		}
		db.WriterCount.Add(1)
		db.WriteCount.Add(1)
	} else {
		db.ReaderCount.Add(1)
		db.ReadCount.Add(1)
	}
	db.addTx(tx)
	return tx, nil
}

// Read runs f in a read-only transaction.
func (db *DB) Read(f func(tx *Tx) error) error {
	tx, err := db.beginTx(false, nil)
	if err != nil {
		return err
	}
	defer tx.rollback()
	return f(tx)
}

// Write runs f in a writable transaction, committing if f returns nil.
func (db *DB) Write(f func(tx *Tx) error) error {
	tx, err := db.beginTx(true, nil)
	if err != nil {
		return err
	}
	err = safelyCall(f, tx)
	if err != nil {
		tx.rollback()
		return err
	}
	_, err = tx.commit()
	return err
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(fn func(*Tx) error, tx *Tx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(tx)
}

func (tx *Tx) DB() *DB {
	return tx.db
}

func (tx *Tx) Schema() *Schema {
	return tx.db.schema
}

func (tx *Tx) IsWritable() bool {
	return tx.writable
}

func (tx *Tx) owner() string {
	if tx.sess != nil {
		return "session " + tx.sess.shortID()
	}
	if tx.writable {
		return "internal write tx"
	}
	return "internal read tx"
}

func (tx *Tx) isVerboseLoggingEnabled() bool {
	return tx.db.verbose
}

func (tx *Tx) bucket(cls *Class) (storageBucket, error) {
	if b := tx.buckets[cls]; b != nil {
		return b, nil
	}
	b, err := tx.stx.Bucket(cls.bucketName())
	if err != nil {
		return nil, storeErr("bucket "+cls.name, err)
	}
	if tx.buckets == nil {
		tx.buckets = make(map[*Class]storageBucket)
	}
	tx.buckets[cls] = b
	return b, nil
}

func (tx *Tx) lookupLive(cls *Class, key []byte) *liveObject {
	return tx.live[liveKey{cls, string(key)}]
}

func (tx *Tx) track(cls *Class, key []byte, rowVal reflect.Value, stored []byte) {
	lo := &liveObject{
		cls:    cls,
		key:    key,
		rowVal: rowVal,
		stored: stored,
	}
	if tx.live == nil {
		tx.live = make(map[liveKey]*liveObject)
	}
	if prev := tx.live[liveKey{cls, string(key)}]; prev != nil {
		prev.detached = true
	}
	tx.live[liveKey{cls, string(key)}] = lo
	tx.order = append(tx.order, lo)
}

func (tx *Tx) detachClass(cls *Class) {
	for k, lo := range tx.live {
		if k.cls == cls {
			lo.detached = true
			delete(tx.live, k)
		}
	}
}

// flush writes back every live object whose encoding has changed since it was
// read or created.
func (tx *Tx) flush() (int, error) {
	var n int
	for _, lo := range tx.order {
		if lo.detached {
			continue
		}
		cls := lo.cls
		if cls.HasPrimaryKey() {
			cur := encodeKeyVal(cls.pkKind, cls.rowKeyVal(lo.rowVal))
			if !bytes.Equal(cur, lo.key) {
				tx.db.ConstraintFail.Add(1)
				return n, classErrf(cls, cls.rawKeyString(lo.key), ErrConstraint, nil, "primary key %s cannot be changed", cls.pkField.Name)
			}
		}
		raw, err := encodeValue(nil, lo.rowVal)
		if err != nil {
			return n, classErrf(cls, cls.rawKeyString(lo.key), ErrValue, err, "cannot encode")
		}
		if bytes.Equal(raw, lo.stored) {
			continue
		}
		buck, err := tx.bucket(cls)
		if err != nil {
			return n, err
		}
		if err := buck.Put(lo.key, raw); err != nil {
			return n, storeErr("put "+cls.name, err)
		}
		lo.stored = raw
		tx.written = true
		n++
		if tx.isVerboseLoggingEnabled() {
			tx.db.logf("db: PUT %s/%s => %s", cls.name, cls.rawKeyString(lo.key), loggableRowVal(lo.rowVal))
		}
	}
	return n, nil
}

func (tx *Tx) commit() (int, error) {
	if tx.closed {
		return 0, stateErrf(nil, "transaction is closed")
	}
	n, err := tx.flush()
	if err != nil {
		tx.rollback()
		return 0, err
	}
	err = tx.stx.Commit()
	tx.finish()
	if err != nil {
		tx.db.CancelCount.Add(1)
		return 0, storeErr("commit", err)
	}
	tx.db.CommitCount.Add(1)
	return n, nil
}

func (tx *Tx) rollback() error {
	if tx.closed {
		return nil
	}
	err := tx.stx.Rollback()
	tx.finish()
	if tx.writable {
		tx.db.CancelCount.Add(1)
	}
	return storeErr("rollback", err)
}

func (tx *Tx) finish() {
	tx.closed = true
	for _, lo := range tx.order {
		lo.detached = true
	}
	tx.live, tx.order, tx.buckets = nil, nil, nil
	if tx.writable {
		tx.db.WriterCount.Add(-1)
	} else {
		tx.db.ReaderCount.Add(-1)
	}
	tx.db.removeTx(tx)
}
