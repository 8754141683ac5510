package typed

import (
	"reflect"

	"github.com/andreyvit/objstore"
)

// Store is the class-based API the typed accessors translate to.
// *objstore.Session implements it.
type Store interface {
	OpenQuery(rt reflect.Type) (*objstore.Query, error)
	CreateInstance(rt reflect.Type) (any, error)
	CreateInstanceWithPrimaryKey(rt reflect.Type, pk any) (any, error)
	DeleteAll(rt reflect.Type) error
}

// Transactor is the transaction primitive driven by CallInTransaction.
// *objstore.Session implements it.
type Transactor interface {
	BeginTransaction() error
	CommitTransaction() error
	CancelTransaction() error
	IsInTransaction() bool
}

var (
	_ Store      = (*objstore.Session)(nil)
	_ Transactor = (*objstore.Session)(nil)
)
