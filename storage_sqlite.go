package objstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS buckets (
	name TEXT PRIMARY KEY,
	seq INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS kv (
	bucket TEXT NOT NULL,
	k BLOB NOT NULL,
	v BLOB NOT NULL,
	PRIMARY KEY (bucket, k)
) WITHOUT ROWID;
`

// sqliteStorage keeps every bucket in a single kv table. Each transaction
// pins its own connection and drives BEGIN/COMMIT by hand, so that writers
// can use BEGIN IMMEDIATE while readers stay deferred.
type sqliteStorage struct {
	db *sql.DB
}

func openSQLiteStorage(path string, opt Options) (storage, error) {
	timeout := opt.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", timeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	if opt.IsTesting {
		q.Add("_pragma", "synchronous(OFF)")
	}
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &sqliteStorage{db: db}, nil
}

func (s *sqliteStorage) BeginTx(writable bool) (storageTx, error) {
	ctx := context.Background()
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	stmt := "BEGIN"
	if writable {
		stmt = "BEGIN IMMEDIATE"
	}
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		conn.Close()
		return nil, err
	}
	return &sqliteTx{ctx: ctx, conn: conn, writable: writable}, nil
}

func (s *sqliteStorage) Close() error {
	return s.db.Close()
}

type sqliteTx struct {
	ctx      context.Context
	conn     *sql.Conn
	writable bool
	closed   bool
}

func (tx *sqliteTx) Writable() bool { return tx.writable }

func (tx *sqliteTx) Bucket(name string) (storageBucket, error) {
	if tx.closed {
		return nil, fmt.Errorf("tx is closed")
	}
	var n int
	err := tx.conn.QueryRowContext(tx.ctx, `SELECT COUNT(*) FROM buckets WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errBucketNotFound
	}
	return sqliteBucket{tx: tx, name: name}, nil
}

func (tx *sqliteTx) CreateBucket(name string) (storageBucket, error) {
	if tx.closed {
		return nil, fmt.Errorf("tx is closed")
	}
	if !tx.writable {
		return nil, fmt.Errorf("tx not writable")
	}
	_, err := tx.conn.ExecContext(tx.ctx, `INSERT INTO buckets (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return nil, err
	}
	return sqliteBucket{tx: tx, name: name}, nil
}

func (tx *sqliteTx) Commit() error {
	if tx.closed {
		return fmt.Errorf("tx is closed")
	}
	tx.closed = true
	_, err := tx.conn.ExecContext(tx.ctx, "COMMIT")
	if err != nil {
		_, rerr := tx.conn.ExecContext(tx.ctx, "ROLLBACK")
		return errors.Join(err, rerr, tx.conn.Close())
	}
	return tx.conn.Close()
}

func (tx *sqliteTx) Rollback() error {
	if tx.closed {
		return nil
	}
	tx.closed = true
	_, err := tx.conn.ExecContext(tx.ctx, "ROLLBACK")
	return errors.Join(err, tx.conn.Close())
}

type sqliteBucket struct {
	tx   *sqliteTx
	name string
}

func (b sqliteBucket) Get(key []byte) ([]byte, error) {
	var v []byte
	err := b.tx.conn.QueryRowContext(b.tx.ctx, `SELECT v FROM kv WHERE bucket = ? AND k = ?`, b.name, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = []byte{}
	}
	return v, nil
}

func (b sqliteBucket) Put(key, value []byte) error {
	if !b.tx.writable {
		return fmt.Errorf("tx not writable")
	}
	if value == nil {
		value = []byte{}
	}
	_, err := b.tx.conn.ExecContext(b.tx.ctx, `INSERT INTO kv (bucket, k, v) VALUES (?, ?, ?) ON CONFLICT (bucket, k) DO UPDATE SET v = excluded.v`, b.name, key, value)
	return err
}

func (b sqliteBucket) Delete(key []byte) error {
	if !b.tx.writable {
		return fmt.Errorf("tx not writable")
	}
	_, err := b.tx.conn.ExecContext(b.tx.ctx, `DELETE FROM kv WHERE bucket = ? AND k = ?`, b.name, key)
	return err
}

func (b sqliteBucket) ForEach(f func(k, v []byte) error) error {
	rows, err := b.tx.conn.QueryContext(b.tx.ctx, `SELECT k, v FROM kv WHERE bucket = ? ORDER BY k`, b.name)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		if err := f(k, v); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (b sqliteBucket) NextSequence() (uint64, error) {
	if !b.tx.writable {
		return 0, fmt.Errorf("tx not writable")
	}
	var seq uint64
	err := b.tx.conn.QueryRowContext(b.tx.ctx, `UPDATE buckets SET seq = seq + 1 WHERE name = ? RETURNING seq`, b.name).Scan(&seq)
	return seq, err
}

func (b sqliteBucket) Stats() (bucketStats, error) {
	var s bucketStats
	err := b.tx.conn.QueryRowContext(b.tx.ctx, `SELECT COUNT(*), COALESCE(SUM(LENGTH(k) + LENGTH(v)), 0) FROM kv WHERE bucket = ?`, b.name).Scan(&s.KeyN, &s.DataSize)
	s.DataAlloc = s.DataSize
	return s, err
}
