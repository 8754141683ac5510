package objstore

import (
	"math"
	"testing"

	"github.com/google/uuid"
)

func TestSessionCreateAndCommit(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *DB) {
		s := newSession(t, db)
		success(t, s.BeginTransaction())
		deepEqual(t, s.IsInTransaction(), true)
		d := must(s.CreateInstance(typeOf[Dog]())).(*Dog)
		d.Name, d.Age = "Rex", 3
		success(t, s.CommitTransaction())
		deepEqual(t, s.IsInTransaction(), false)

		q := must(s.OpenQuery(typeOf[Dog]()))
		deepEqual(t, q.Class(), dogClass)
		deepEqual(t, must(q.Count()), 1)
		deepEqual(t, must(q.FindAll()), []any{&Dog{Name: "Rex", Age: 3}})
		deepEqual(t, must(q.FindFirst()), any(&Dog{Name: "Rex", Age: 3}))
	})
}

func TestSessionCancelDiscards(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *DB) {
		s := newSession(t, db)
		success(t, s.BeginTransaction())
		must(s.CreateInstance(typeOf[Dog]()))
		must(s.CreateInstanceWithPrimaryKey(typeOf[Person](), 1))
		success(t, s.CancelTransaction())

		deepEqual(t, must(must(s.OpenQuery(typeOf[Dog]())).Count()), 0)
		deepEqual(t, must(must(s.OpenQuery(typeOf[Person]())).Count()), 0)
	})
}

func TestSessionCreateWithPrimaryKey(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *DB) {
		s := newSession(t, db)
		success(t, s.BeginTransaction())
		p := must(s.CreateInstanceWithPrimaryKey(typeOf[Person](), int64(1))).(*Person)
		deepEqual(t, p, &Person{ID: 1})
		p.Name = "Ann"
		success(t, s.CommitTransaction())

		q := must(s.OpenQuery(typeOf[Person]()))
		deepEqual(t, must(q.FindByPrimaryKey(1)), any(&Person{ID: 1, Name: "Ann"}))
		deepEqual(t, must(q.FindByPrimaryKey(2)), nil)
	})
}

func TestSessionDuplicateKey(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *DB) {
		s := newSession(t, db)
		success(t, s.BeginTransaction())
		must(s.CreateInstanceWithPrimaryKey(typeOf[Person](), 1))
		_, err := s.CreateInstanceWithPrimaryKey(typeOf[Person](), 1)
		failsWith(t, err, ErrConstraint)
		success(t, s.CommitTransaction())

		success(t, s.BeginTransaction())
		_, err = s.CreateInstanceWithPrimaryKey(typeOf[Person](), "1")
		failsWith(t, err, ErrConstraint)
		success(t, s.CommitTransaction())

		deepEqual(t, must(must(s.OpenQuery(typeOf[Person]())).Count()), 1)
	})
}

func TestSessionKeyPresenceMismatch(t *testing.T) {
	db := setup(t, testSchema)
	s := newSession(t, db)
	success(t, s.BeginTransaction())

	_, err := s.CreateInstance(typeOf[Person]())
	failsWith(t, err, ErrConstraint)

	_, err = s.CreateInstanceWithPrimaryKey(typeOf[Dog](), 1)
	failsWith(t, err, ErrState)

	_, err = must(s.OpenQuery(typeOf[Dog]())).FindByPrimaryKey(1)
	failsWith(t, err, ErrState)

	success(t, s.CommitTransaction())
	deepEqual(t, must(must(s.OpenQuery(typeOf[Person]())).Count()), 0)
	deepEqual(t, must(must(s.OpenQuery(typeOf[Dog]())).Count()), 0)
}

func TestSessionOutsideTransaction(t *testing.T) {
	db := setup(t, testSchema)
	s := newSession(t, db)

	_, err := s.CreateInstance(typeOf[Dog]())
	failsWith(t, err, ErrState)
	_, err = s.CreateInstance(typeOf[Person]())
	failsWith(t, err, ErrState)
	_, err = s.CreateInstanceWithPrimaryKey(typeOf[Person](), 1)
	failsWith(t, err, ErrState)
	failsWith(t, s.DeleteAll(typeOf[Dog]()), ErrState)
	failsWith(t, s.CommitTransaction(), ErrState)
	failsWith(t, s.CancelTransaction(), ErrState)

	// reads work without a transaction
	deepEqual(t, must(must(s.OpenQuery(typeOf[Dog]())).Count()), 0)
}

func TestSessionUnknownClass(t *testing.T) {
	db := setup(t, testSchema)
	s := newSession(t, db)

	_, err := s.OpenQuery(typeOf[Unregistered]())
	failsWith(t, err, ErrUnknownClass)
	failsWith(t, err, ErrStore)

	success(t, s.BeginTransaction())
	_, err = s.CreateInstance(typeOf[Unregistered]())
	failsWith(t, err, ErrUnknownClass)
	failsWith(t, s.DeleteAll(typeOf[Unregistered]()), ErrUnknownClass)
	success(t, s.CancelTransaction())

	// a pointer type is not a class; nothing is created for it
	_, err = s.OpenQuery(typeOf[*Dog]())
	failsWith(t, err, ErrUnknownClass)
	success(t, s.BeginTransaction())
	_, err = s.CreateInstance(typeOf[*Dog]())
	failsWith(t, err, ErrUnknownClass)
	_, err = s.CreateInstanceWithPrimaryKey(typeOf[*Person](), 1)
	failsWith(t, err, ErrUnknownClass)
	success(t, s.CommitTransaction())
	deepEqual(t, must(must(s.OpenQuery(typeOf[Dog]())).Count()), 0)
	deepEqual(t, must(must(s.OpenQuery(typeOf[Person]())).Count()), 0)
}

func TestSessionKeyConversion(t *testing.T) {
	db := setup(t, testSchema)
	s := newSession(t, db)
	success(t, s.BeginTransaction())
	defer s.CancelTransaction()

	person := typeOf[Person]()
	for _, pk := range []any{int(1), int8(2), int32(3), uint8(4), float64(5), "6", int64(-7), uint64(math.MaxInt64)} {
		_, err := s.CreateInstanceWithPrimaryKey(person, pk)
		if err != nil {
			t.Errorf("** CreateInstanceWithPrimaryKey(Person, %T %v) failed: %v", pk, pk, err)
		}
	}
	for _, pk := range []any{nil, 1.5, "abc", "", uint64(math.MaxUint64), true, struct{}{}} {
		_, err := s.CreateInstanceWithPrimaryKey(person, pk)
		failsWith(t, err, ErrValue)
	}
	deepEqual(t, must(must(s.OpenQuery(person)).Count()), 8)

	counter := typeOf[Counter]()
	must(s.CreateInstanceWithPrimaryKey(counter, uint(65535)))
	must(s.CreateInstanceWithPrimaryKey(counter, 0))
	for _, pk := range []any{-1, 70000, -0.5, "-3"} {
		_, err := s.CreateInstanceWithPrimaryKey(counter, pk)
		failsWith(t, err, ErrValue)
	}

	tag := typeOf[Tag]()
	must(s.CreateInstanceWithPrimaryKey(tag, ""))
	must(s.CreateInstanceWithPrimaryKey(tag, "go"))
	for _, pk := range []any{5, []byte("go"), 'x'} {
		_, err := s.CreateInstanceWithPrimaryKey(tag, pk)
		failsWith(t, err, ErrValue)
	}
}

func TestSessionUUIDKey(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *DB) {
		u := uuid.New()
		s := newSession(t, db)
		success(t, s.BeginTransaction())
		tk := must(s.CreateInstanceWithPrimaryKey(typeOf[Ticket](), u.String())).(*Ticket)
		tk.Note = "hello"
		_, err := s.CreateInstanceWithPrimaryKey(typeOf[Ticket](), "not-a-uuid")
		failsWith(t, err, ErrValue)
		_, err = s.CreateInstanceWithPrimaryKey(typeOf[Ticket](), [16]byte(u))
		failsWith(t, err, ErrConstraint)
		success(t, s.CommitTransaction())

		q := must(s.OpenQuery(typeOf[Ticket]()))
		deepEqual(t, must(q.FindByPrimaryKey(u)), any(&Ticket{ID: u, Note: "hello"}))
		deepEqual(t, must(q.FindByPrimaryKey(uuid.Nil)), nil)
	})
}

func TestSessionKeyOrder(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *DB) {
		s := newSession(t, db)
		success(t, s.BeginTransaction())
		for _, id := range []int64{3, -5, 1, math.MinInt64, 2} {
			must(s.CreateInstanceWithPrimaryKey(typeOf[Person](), id))
		}
		for _, name := range []string{"b", "", "ab", "a"} {
			must(s.CreateInstanceWithPrimaryKey(typeOf[Tag](), name))
		}
		success(t, s.CommitTransaction())

		var ids []int64
		for _, obj := range must(must(s.OpenQuery(typeOf[Person]())).FindAll()) {
			ids = append(ids, obj.(*Person).ID)
		}
		deepEqual(t, ids, []int64{math.MinInt64, -5, 1, 2, 3})

		var names []string
		for _, obj := range must(must(s.OpenQuery(typeOf[Tag]())).FindAll()) {
			names = append(names, obj.(*Tag).Name)
		}
		deepEqual(t, names, []string{"", "a", "ab", "b"})

		deepEqual(t, must(must(s.OpenQuery(typeOf[Person]())).FindFirst()), any(&Person{ID: math.MinInt64}))
	})
}

func TestSessionLiveObjects(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *DB) {
		s := newSession(t, db)
		success(t, s.BeginTransaction())
		must(s.CreateInstanceWithPrimaryKey(typeOf[Person](), 1))
		success(t, s.CommitTransaction())

		success(t, s.BeginTransaction())
		q := must(s.OpenQuery(typeOf[Person]()))
		p1 := must(q.FindByPrimaryKey(1)).(*Person)
		p2 := must(q.FindByPrimaryKey(1)).(*Person)
		if p1 != p2 {
			t.Errorf("** FindByPrimaryKey returned different pointers within one transaction")
		}
		if all := must(q.FindAll()); len(all) != 1 || all[0].(*Person) != p1 {
			t.Errorf("** FindAll = %v, wanted the live object", all)
		}
		p1.Name = "Changed"
		deepEqual(t, must(q.FindFirst()), any(&Person{ID: 1, Name: "Changed"}))
		success(t, s.CommitTransaction())

		deepEqual(t, must(q.FindByPrimaryKey(1)), any(&Person{ID: 1, Name: "Changed"}))

		// objects read outside a write transaction are snapshots
		p3 := must(q.FindByPrimaryKey(1)).(*Person)
		p3.Name = "Ignored"
		deepEqual(t, must(q.FindByPrimaryKey(1)), any(&Person{ID: 1, Name: "Changed"}))
	})
}

func TestSessionPrimaryKeyChangeRejected(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *DB) {
		s := newSession(t, db)
		success(t, s.BeginTransaction())
		p := must(s.CreateInstanceWithPrimaryKey(typeOf[Person](), 1)).(*Person)
		p.ID = 2
		failsWith(t, s.CommitTransaction(), ErrConstraint)
		deepEqual(t, s.IsInTransaction(), false)
		deepEqual(t, must(must(s.OpenQuery(typeOf[Person]())).Count()), 0)
		deepEqual(t, db.DescribeOpenTxns(), "NO OPEN TRANSACTIONS")
	})
}

func TestSessionDeleteAll(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *DB) {
		s := newSession(t, db)
		success(t, s.BeginTransaction())
		for range 3 {
			must(s.CreateInstance(typeOf[Dog]()))
		}
		must(s.CreateInstanceWithPrimaryKey(typeOf[Person](), 1))
		must(s.CreateInstanceWithPrimaryKey(typeOf[Person](), 2))
		success(t, s.CommitTransaction())

		dogs := must(s.OpenQuery(typeOf[Dog]()))
		people := must(s.OpenQuery(typeOf[Person]()))

		success(t, s.BeginTransaction())
		success(t, s.DeleteAll(typeOf[Dog]()))
		deepEqual(t, must(dogs.Count()), 0)
		deepEqual(t, must(people.Count()), 2)
		success(t, s.DeleteAll(typeOf[Dog]()))
		success(t, s.CommitTransaction())

		deepEqual(t, must(dogs.Count()), 0)
		deepEqual(t, must(people.Count()), 2)

		// a deleted live object is not written back
		success(t, s.BeginTransaction())
		p := must(people.FindByPrimaryKey(1)).(*Person)
		success(t, s.DeleteAll(typeOf[Person]()))
		p.Name = "Ghost"
		must(s.CreateInstanceWithPrimaryKey(typeOf[Person](), 1))
		success(t, s.CommitTransaction())
		deepEqual(t, must(people.FindAll()), []any{&Person{ID: 1}})
	})
}

func TestSessionDeleteAllCancelled(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *DB) {
		s := newSession(t, db)
		success(t, s.BeginTransaction())
		must(s.CreateInstance(typeOf[Dog]()))
		success(t, s.CommitTransaction())

		success(t, s.BeginTransaction())
		success(t, s.DeleteAll(typeOf[Dog]()))
		success(t, s.CancelTransaction())
		deepEqual(t, must(must(s.OpenQuery(typeOf[Dog]())).Count()), 1)
	})
}

func TestSessionNestedBegin(t *testing.T) {
	db := setup(t, testSchema)
	s := newSession(t, db)
	success(t, s.BeginTransaction())
	failsWith(t, s.BeginTransaction(), ErrState)
	deepEqual(t, s.IsInTransaction(), true)

	must(s.CreateInstance(typeOf[Dog]()))
	success(t, s.CommitTransaction())
	deepEqual(t, must(must(s.OpenQuery(typeOf[Dog]())).Count()), 1)
}

func TestSessionIsolation(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *DB) {
		writer := newSession(t, db)
		reader := newSession(t, db)
		dogs := must(reader.OpenQuery(typeOf[Dog]()))

		success(t, writer.BeginTransaction())
		must(writer.CreateInstance(typeOf[Dog]()))
		deepEqual(t, must(must(writer.OpenQuery(typeOf[Dog]())).Count()), 1)
		deepEqual(t, must(dogs.Count()), 0)
		success(t, writer.CommitTransaction())
		deepEqual(t, must(dogs.Count()), 1)
	})
}

func TestSessionClose(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *DB) {
		s := db.NewSession()
		success(t, s.BeginTransaction())
		must(s.CreateInstance(typeOf[Dog]()))
		success(t, s.Close())
		deepEqual(t, s.IsClosed(), true)
		deepEqual(t, s.IsInTransaction(), false)
		success(t, s.Close())

		failsWith(t, s.BeginTransaction(), ErrState)
		_, err := s.OpenQuery(typeOf[Dog]())
		failsWith(t, err, ErrState)

		other := newSession(t, db)
		deepEqual(t, must(must(other.OpenQuery(typeOf[Dog]())).Count()), 0)
	})
}

func TestSessionClosedDB(t *testing.T) {
	db := setup(t, testSchema)
	s := newSession(t, db)
	q := must(s.OpenQuery(typeOf[Dog]()))
	success(t, db.Close())

	failsWith(t, s.BeginTransaction(), ErrState)
	_, err := q.Count()
	failsWith(t, err, ErrState)
	_, err = s.OpenQuery(typeOf[Dog]())
	failsWith(t, err, ErrState)
}
