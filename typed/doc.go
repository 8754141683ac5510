// Package typed provides compile-time typed access to an objstore session.
//
// The store speaks in class identities (the reflect.Type of a registered
// struct); this package derives that identity from a type parameter and
// converts results back to *T:
//
//	dog, err := typed.CreateObject[Dog](sess)
//
//	q, err := typed.Where[Dog](sess)
//	if err != nil {
//		return err
//	}
//	n, err := q.Count()
//
// CallInTransaction runs a function inside a write transaction and returns
// its result after the transaction has been committed, or rolls the
// transaction back and returns the function's error.
package typed
