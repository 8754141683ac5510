package objstore

import (
	"reflect"

	"github.com/google/uuid"
)

// Session is a handle to an open DB. It carries at most one writable
// transaction at a time and is not safe for concurrent use; give every
// goroutine its own Session.
//
// Nested transactions are not supported: BeginTransaction on a session that
// is already in a transaction fails with ErrState and leaves the open
// transaction untouched.
type Session struct {
	db     *DB
	id     uuid.UUID
	wtx    *Tx
	closed bool
}

func (db *DB) NewSession() *Session {
	return &Session{db: db, id: uuid.New()}
}

func (s *Session) DB() *DB {
	return s.db
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) shortID() string {
	return s.id.String()[:8]
}

func (s *Session) checkOpen() error {
	if s.closed {
		return stateErrf(nil, "session is closed")
	}
	if s.db.IsClosed() {
		return stateErrf(nil, "database is closed")
	}
	return nil
}

// Close cancels the open transaction, if any. Closing twice is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.wtx == nil {
		return nil
	}
	tx := s.wtx
	s.wtx = nil
	if s.db.verbose {
		s.db.logf("db: CANCEL s=%s (session closed)", s.shortID())
	}
	return tx.rollback()
}

func (s *Session) IsClosed() bool {
	return s.closed
}

func (s *Session) IsInTransaction() bool {
	return s.wtx != nil
}

// BeginTransaction starts a writable transaction. It blocks while another
// session holds the write lock.
func (s *Session) BeginTransaction() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.wtx != nil {
		return stateErrf(nil, "session %s is already in a write transaction", s.shortID())
	}
	tx, err := s.db.beginTx(true, s)
	if err != nil {
		return err
	}
	s.wtx = tx
	if s.db.verbose {
		s.db.logf("db: BEGIN s=%s", s.shortID())
	}
	return nil
}

// CommitTransaction writes back all live objects and commits. On failure the
// transaction is rolled back; either way the session is idle afterwards.
func (s *Session) CommitTransaction() error {
	if s.wtx == nil {
		return stateErrf(nil, "not in a write transaction")
	}
	tx := s.wtx
	s.wtx = nil
	written := tx.written
	n, err := tx.commit()
	if s.db.verbose {
		if err != nil {
			s.db.logf("db: COMMIT.FAILED s=%s: %v", s.shortID(), err)
		} else if !written && n == 0 {
			s.db.logf("db: COMMIT.NOOP s=%s", s.shortID())
		} else {
			s.db.logf("db: COMMIT s=%s n=%d", s.shortID(), n)
		}
	}
	return err
}

func (s *Session) CancelTransaction() error {
	if s.wtx == nil {
		return stateErrf(nil, "not in a write transaction")
	}
	tx := s.wtx
	s.wtx = nil
	if s.db.verbose {
		s.db.logf("db: CANCEL s=%s", s.shortID())
	}
	return tx.rollback()
}

func (s *Session) resolve(rt reflect.Type) (*Class, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.db.schema.ClassByType(rt)
}

func (s *Session) writeTx(cls *Class) (*Tx, error) {
	if s.wtx == nil {
		return nil, stateErrf(cls, "cannot modify data outside of a write transaction")
	}
	return s.wtx, nil
}

// view runs f in the session's write transaction if there is one, otherwise
// in a fresh read-only transaction.
func (s *Session) view(f func(tx *Tx) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.wtx != nil {
		return f(s.wtx)
	}
	tx, err := s.db.beginTx(false, s)
	if err != nil {
		return err
	}
	defer tx.rollback()
	return f(tx)
}

// OpenQuery returns an unevaluated query over all instances of the class
// identified by rt.
func (s *Session) OpenQuery(rt reflect.Type) (*Query, error) {
	cls, err := s.resolve(rt)
	if err != nil {
		return nil, err
	}
	return &Query{sess: s, cls: cls}, nil
}

// CreateInstance creates a managed instance of a keyless class and returns a
// pointer to it.
func (s *Session) CreateInstance(rt reflect.Type) (any, error) {
	cls, err := s.resolve(rt)
	if err != nil {
		return nil, err
	}
	tx, err := s.writeTx(cls)
	if err != nil {
		return nil, err
	}
	rowVal, err := tx.Create(cls)
	if err != nil {
		return nil, err
	}
	return rowVal.Interface(), nil
}

// CreateInstanceWithPrimaryKey creates a managed instance with its primary key
// set to pk and returns a pointer to it.
func (s *Session) CreateInstanceWithPrimaryKey(rt reflect.Type, pk any) (any, error) {
	cls, err := s.resolve(rt)
	if err != nil {
		return nil, err
	}
	tx, err := s.writeTx(cls)
	if err != nil {
		return nil, err
	}
	rowVal, err := tx.CreateWithKey(cls, pk)
	if err != nil {
		return nil, err
	}
	return rowVal.Interface(), nil
}

func (s *Session) DeleteAll(rt reflect.Type) error {
	cls, err := s.resolve(rt)
	if err != nil {
		return err
	}
	tx, err := s.writeTx(cls)
	if err != nil {
		return err
	}
	_, err = tx.DeleteAll(cls)
	return err
}
