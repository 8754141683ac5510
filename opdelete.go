package objstore

import (
	"slices"
)

// DeleteAll removes every row of the class and returns how many were deleted.
// Live objects of the class are detached; later edits to them are not saved.
func (tx *Tx) DeleteAll(cls *Class) (int, error) {
	if err := tx.ensureWritable(cls); err != nil {
		return 0, err
	}
	buck, err := tx.bucket(cls)
	if err != nil {
		return 0, err
	}

	var keys [][]byte
	err = buck.ForEach(func(k, _ []byte) error {
		keys = append(keys, slices.Clone(k))
		return nil
	})
	if err != nil {
		return 0, storeErr("scan "+cls.name, err)
	}
	for _, k := range keys {
		if err := buck.Delete(k); err != nil {
			return 0, storeErr("delete "+cls.name, err)
		}
	}
	tx.detachClass(cls)

	n := len(keys)
	if n > 0 {
		tx.written = true
		tx.db.DeletedCount.Add(uint64(n))
	}
	if tx.isVerboseLoggingEnabled() {
		if n > 0 {
			tx.db.logf("db: DELETEALL %s n=%d", cls.name, n)
		} else {
			tx.db.logf("db: DELETEALL.NOOP %s", cls.name)
		}
	}
	return n, nil
}
