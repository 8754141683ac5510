package objstore

import (
	"errors"
	"reflect"
	"slices"
)

// Count returns the number of rows of the class visible to this transaction.
func (tx *Tx) Count(cls *Class) (int, error) {
	buck, err := tx.bucket(cls)
	if err != nil {
		return 0, err
	}
	s, err := buck.Stats()
	if err != nil {
		return 0, storeErr("count "+cls.name, err)
	}
	return s.KeyN, nil
}

// Get returns the row with the given primary key, or an invalid Value.
func (tx *Tx) Get(cls *Class, pk any) (reflect.Value, error) {
	if !cls.HasPrimaryKey() {
		return reflect.Value{}, stateErrf(cls, "class has no primary key")
	}
	keyVal, err := cls.convertKey(pk)
	if err != nil {
		return reflect.Value{}, err
	}
	return tx.getByKeyRaw(cls, encodeKeyVal(cls.pkKind, keyVal))
}

func (tx *Tx) getByKeyRaw(cls *Class, keyRaw []byte) (reflect.Value, error) {
	if lo := tx.lookupLive(cls, keyRaw); lo != nil {
		return lo.rowVal, nil
	}
	buck, err := tx.bucket(cls)
	if err != nil {
		return reflect.Value{}, err
	}
	valueRaw, err := buck.Get(keyRaw)
	if err != nil {
		return reflect.Value{}, storeErr("get "+cls.name, err)
	}
	if valueRaw == nil {
		if tx.isVerboseLoggingEnabled() {
			tx.db.logf("db: GET.NOTFOUND %s/%s", cls.name, cls.rawKeyString(keyRaw))
		}
		return reflect.Value{}, nil
	}
	rowVal, err := tx.materialize(cls, keyRaw, valueRaw)
	if err == nil && tx.isVerboseLoggingEnabled() {
		tx.db.logf("db: GET %s/%s => %s", cls.name, cls.rawKeyString(keyRaw), loggableRowVal(rowVal))
	}
	return rowVal, err
}

// Scan calls f for every row of the class in key order until f returns false.
// f must not use the transaction.
func (tx *Tx) Scan(cls *Class, f func(rowVal reflect.Value) bool) error {
	buck, err := tx.bucket(cls)
	if err != nil {
		return err
	}
	err = buck.ForEach(func(k, v []byte) error {
		rowVal, err := tx.materialize(cls, k, v)
		if err != nil {
			return err
		}
		if !f(rowVal) {
			return errBreak
		}
		return nil
	})
	if errors.Is(err, errBreak) {
		return nil
	}
	return storeErr("scan "+cls.name, err)
}

// materialize decodes a stored row. Writable transactions hand out the live
// pointer for the key, registering it on first access.
func (tx *Tx) materialize(cls *Class, keyRaw, valueRaw []byte) (reflect.Value, error) {
	if tx.writable {
		if lo := tx.lookupLive(cls, keyRaw); lo != nil {
			return lo.rowVal, nil
		}
	}
	rowVal := cls.newRowVal()
	if err := decodeValue(valueRaw, rowVal); err != nil {
		return reflect.Value{}, storeErr("decode "+cls.name+"/"+cls.rawKeyString(keyRaw), err)
	}
	if tx.writable {
		tx.track(cls, slices.Clone(keyRaw), rowVal, slices.Clone(valueRaw))
	}
	return rowVal, nil
}
