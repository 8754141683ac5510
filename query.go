package objstore

import (
	"reflect"
)

// Query is an unevaluated query over all instances of one class. Building it
// touches no data; each evaluation reads either the session's write
// transaction or a fresh read-only snapshot.
type Query struct {
	sess *Session
	cls  *Class
}

func (q *Query) Class() *Class {
	return q.cls
}

func (q *Query) Session() *Session {
	return q.sess
}

func (q *Query) Count() (int, error) {
	var n int
	err := q.sess.view(func(tx *Tx) error {
		var err error
		n, err = tx.Count(q.cls)
		return err
	})
	return n, err
}

// FindAll returns pointers to every instance, in key order.
func (q *Query) FindAll() ([]any, error) {
	var result []any
	err := q.sess.view(func(tx *Tx) error {
		return tx.Scan(q.cls, func(rowVal reflect.Value) bool {
			result = append(result, rowVal.Interface())
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FindFirst returns the first instance in key order, or nil.
func (q *Query) FindFirst() (any, error) {
	var result any
	err := q.sess.view(func(tx *Tx) error {
		return tx.Scan(q.cls, func(rowVal reflect.Value) bool {
			result = rowVal.Interface()
			return false
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FindByPrimaryKey returns the instance with the given key, or nil.
func (q *Query) FindByPrimaryKey(pk any) (any, error) {
	var result any
	err := q.sess.view(func(tx *Tx) error {
		rowVal, err := tx.Get(q.cls, pk)
		if err == nil && rowVal.IsValid() {
			result = rowVal.Interface()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
