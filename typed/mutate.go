package typed

// All mutations require the session to be in a write transaction; none of
// them begin or commit one.

// DeleteAll deletes every stored instance of T.
func DeleteAll[T any](s Store) error {
	return s.DeleteAll(TokenOf[T]().Type())
}

// CreateObject creates a new instance of T with zero field values. It fails
// with objstore.ErrConstraint if T declares a primary key.
func CreateObject[T any](s Store) (*T, error) {
	obj, err := s.CreateInstance(TokenOf[T]().Type())
	if err != nil {
		return nil, err
	}
	return cast[T](obj)
}

// CreateObjectWithPrimaryKey creates a new instance of T with its primary key
// set to pk. It fails with objstore.ErrState if T declares no primary key,
// objstore.ErrValue if pk cannot be converted to the key type, and
// objstore.ErrConstraint if an instance with that key already exists.
func CreateObjectWithPrimaryKey[T any](s Store, pk any) (*T, error) {
	obj, err := s.CreateInstanceWithPrimaryKey(TokenOf[T]().Type(), pk)
	if err != nil {
		return nil, err
	}
	return cast[T](obj)
}
