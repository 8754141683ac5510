package objstore

import (
	"reflect"
)

// Create inserts a new zero-valued row of a keyless class and returns a
// pointer to it. The row stays live until the transaction ends.
func (tx *Tx) Create(cls *Class) (reflect.Value, error) {
	if err := tx.ensureWritable(cls); err != nil {
		return reflect.Value{}, err
	}
	if cls.HasPrimaryKey() {
		tx.db.ConstraintFail.Add(1)
		return reflect.Value{}, classErrf(cls, nil, ErrConstraint, nil, "class has primary key %s, a primary key value is required", cls.pkField.Name)
	}
	buck, err := tx.bucket(cls)
	if err != nil {
		return reflect.Value{}, err
	}
	seq, err := buck.NextSequence()
	if err != nil {
		return reflect.Value{}, storeErr("sequence "+cls.name, err)
	}
	rowVal := cls.newRowVal()
	if err := tx.insert(cls, buck, encodeSeqKey(seq), rowVal); err != nil {
		return reflect.Value{}, err
	}
	return rowVal, nil
}

// CreateWithKey inserts a new row with its primary key preset to pk. It fails
// with ErrState if the class has no primary key, ErrValue if pk cannot be
// converted, and ErrConstraint if the key is taken; nothing is written on
// failure.
func (tx *Tx) CreateWithKey(cls *Class, pk any) (reflect.Value, error) {
	if err := tx.ensureWritable(cls); err != nil {
		return reflect.Value{}, err
	}
	if !cls.HasPrimaryKey() {
		return reflect.Value{}, stateErrf(cls, "class has no primary key")
	}
	keyVal, err := cls.convertKey(pk)
	if err != nil {
		return reflect.Value{}, err
	}
	keyRaw := encodeKeyVal(cls.pkKind, keyVal)

	buck, err := tx.bucket(cls)
	if err != nil {
		return reflect.Value{}, err
	}
	old, err := buck.Get(keyRaw)
	if err != nil {
		return reflect.Value{}, storeErr("get "+cls.name, err)
	}
	if old != nil {
		tx.db.ConstraintFail.Add(1)
		if tx.isVerboseLoggingEnabled() {
			tx.db.logf("db: CREATE.DUP %s/%v", cls.name, keyVal.Interface())
		}
		return reflect.Value{}, classErrf(cls, keyVal.Interface(), ErrConstraint, nil, "primary key already exists")
	}

	rowVal := cls.newRowVal()
	cls.rowKeyVal(rowVal).Set(keyVal)
	if err := tx.insert(cls, buck, keyRaw, rowVal); err != nil {
		return reflect.Value{}, err
	}
	return rowVal, nil
}

func (tx *Tx) insert(cls *Class, buck storageBucket, keyRaw []byte, rowVal reflect.Value) error {
	valueRaw, err := encodeValue(nil, rowVal)
	if err != nil {
		return classErrf(cls, nil, ErrValue, err, "cannot encode")
	}
	if err := buck.Put(keyRaw, valueRaw); err != nil {
		return storeErr("put "+cls.name, err)
	}
	tx.written = true
	tx.track(cls, keyRaw, rowVal, valueRaw)
	tx.db.CreatedCount.Add(1)
	if tx.isVerboseLoggingEnabled() {
		tx.db.logf("db: CREATE %s/%s => %s", cls.name, cls.rawKeyString(keyRaw), loggableRowVal(rowVal))
	}
	return nil
}

func (tx *Tx) ensureWritable(cls *Class) error {
	if tx.closed {
		return stateErrf(cls, "transaction is closed")
	}
	if !tx.writable {
		return stateErrf(cls, "cannot modify data outside of a write transaction")
	}
	return nil
}
