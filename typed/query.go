package typed

import (
	"github.com/andreyvit/objstore"
)

// Query is a query scoped to instances of T. Creating it reads nothing;
// evaluation goes through the underlying objstore.Query.
type Query[T any] struct {
	q *objstore.Query
}

// Where returns a query over all stored instances of T.
func Where[T any](s Store) (*Query[T], error) {
	q, err := s.OpenQuery(TokenOf[T]().Type())
	if err != nil {
		return nil, err
	}
	return &Query[T]{q}, nil
}

func (q *Query[T]) Untyped() *objstore.Query {
	return q.q
}

func (q *Query[T]) Count() (int, error) {
	return q.q.Count()
}

func (q *Query[T]) FindAll() ([]*T, error) {
	objs, err := q.q.FindAll()
	if err != nil {
		return nil, err
	}
	rows := make([]*T, 0, len(objs))
	for _, obj := range objs {
		row, err := cast[T](obj)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// FindFirst returns the first instance, or nil if there are none.
func (q *Query[T]) FindFirst() (*T, error) {
	obj, err := q.q.FindFirst()
	if err != nil {
		return nil, err
	}
	return cast[T](obj)
}

// FindByPrimaryKey returns the instance with the given key, or nil.
func (q *Query[T]) FindByPrimaryKey(pk any) (*T, error) {
	obj, err := q.q.FindByPrimaryKey(pk)
	if err != nil {
		return nil, err
	}
	return cast[T](obj)
}
