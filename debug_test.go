package objstore

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

func TestDump(t *testing.T) {
	db := setupBackend(t, testSchema, BackendMemory)
	s := newSession(t, db)
	success(t, s.BeginTransaction())
	for _, d := range []Dog{{"Rex", 3}, {"Fido", 5}} {
		dog := must(s.CreateInstance(typeOf[Dog]())).(*Dog)
		*dog = d
	}
	must(s.CreateInstanceWithPrimaryKey(typeOf[Person](), 2)).(*Person).Name = "Bob"
	must(s.CreateInstanceWithPrimaryKey(typeOf[Person](), -1)).(*Person).Name = "Ann"
	must(s.CreateInstanceWithPrimaryKey(typeOf[Tag](), "x")).(*Tag).N = 1
	success(t, s.CommitTransaction())

	out := must(s.Dump(DumpClassHeaders | DumpRows))
	g := goldie.New(t)
	g.Assert(t, "dump", []byte(out))
}

func TestDumpStats(t *testing.T) {
	db := setupBackend(t, testSchema, BackendMemory)
	s := newSession(t, db)
	out := must(s.Dump(DumpStats))
	want := fmt.Sprintf("Dog.stats: data_size = 0, data_alloc = 0, fingerprint = %016x\n", dogClass.Fingerprint())
	if !strings.HasPrefix(out, want) {
		t.Errorf("** Dump = %q, wanted prefix %q", out, want)
	}
	deepEqual(t, strings.Count(out, "\n"), len(testSchema.Classes()))
}

func TestDumpFlags(t *testing.T) {
	deepEqual(t, DumpAll.Contains(DumpRows|DumpStats), true)
	deepEqual(t, DumpRows.Contains(DumpClassHeaders), false)
}
