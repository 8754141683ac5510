package objstore

import (
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpClassHeaders = DumpFlags(1 << iota)
	DumpRows
	DumpStats

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var dumpSep = strings.Repeat("=", 80)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the stored contents of every class. Unflushed edits to live
// objects are not included.
func (tx *Tx) Dump(f DumpFlags) (string, error) {
	var buf strings.Builder
	for _, cls := range tx.db.schema.classes {
		if err := tx.dumpClass(&buf, f, cls); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// Dump renders the data visible to this session.
func (s *Session) Dump(f DumpFlags) (string, error) {
	var out string
	err := s.view(func(tx *Tx) error {
		var err error
		out, err = tx.Dump(f)
		return err
	})
	return out, err
}

func (tx *Tx) dumpClass(w *strings.Builder, f DumpFlags, cls *Class) error {
	s, err := tx.ClassStats(cls)
	if err != nil {
		return err
	}
	if f.Contains(DumpClassHeaders) {
		fmt.Fprintln(w, dumpSep)
		fmt.Fprintf(w, "%s (%d rows)\n", cls.name, s.Rows)
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, "%s.stats: data_size = %d, data_alloc = %d, fingerprint = %016x\n", cls.name, s.DataSize, s.DataAlloc, cls.fingerprint)
	}
	if !f.Contains(DumpRows) {
		return nil
	}

	buck, err := tx.bucket(cls)
	if err != nil {
		return err
	}
	err = buck.ForEach(func(k, v []byte) error {
		rowVal := cls.newRowVal()
		if err := decodeValue(v, rowVal); err != nil {
			fmt.Fprintf(w, "%s.%s = ** ERROR: %v\n", cls.name, cls.rawKeyString(k), err)
			return nil
		}
		fmt.Fprintf(w, "%s.%s = %s\n", cls.name, cls.rawKeyString(k), loggableRowVal(rowVal))
		return nil
	})
	return storeErr("dump "+cls.name, err)
}
