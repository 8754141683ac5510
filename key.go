package objstore

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/google/uuid"
)

type keyKind int

const (
	keyNone keyKind = iota
	keyInt
	keyUint
	keyString
	keyUUID
)

// String keys carry a marker byte so that "" still encodes to a non-empty
// storage key.
const stringKeyMarker = 's'

var uuidType = reflect.TypeOf(uuid.UUID{})

func keyKindOf(t reflect.Type) keyKind {
	if t == uuidType {
		return keyUUID
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return keyInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return keyUint
	case reflect.String:
		return keyString
	default:
		return keyNone
	}
}

// encodeKeyVal produces an order-preserving storage key for a primary key value
// that already has the key field's type.
func encodeKeyVal(kind keyKind, keyVal reflect.Value) []byte {
	switch kind {
	case keyInt:
		return binary.BigEndian.AppendUint64(nil, uint64(keyVal.Int())^(1<<63))
	case keyUint:
		return binary.BigEndian.AppendUint64(nil, keyVal.Uint())
	case keyString:
		s := keyVal.String()
		buf := make([]byte, 0, len(s)+1)
		buf = append(buf, stringKeyMarker)
		return append(buf, s...)
	case keyUUID:
		u := keyVal.Interface().(uuid.UUID)
		return append([]byte(nil), u[:]...)
	default:
		panic(fmt.Errorf("cannot encode key of kind %d", kind))
	}
}

func encodeSeqKey(seq uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, seq)
}

// rawKeyString renders a storage key for logs and dumps.
func (cls *Class) rawKeyString(raw []byte) string {
	switch cls.pkKind {
	case keyNone, keyUint:
		if len(raw) == 8 {
			return strconv.FormatUint(binary.BigEndian.Uint64(raw), 10)
		}
	case keyInt:
		if len(raw) == 8 {
			return strconv.FormatInt(int64(binary.BigEndian.Uint64(raw)^(1<<63)), 10)
		}
	case keyString:
		if len(raw) > 0 && raw[0] == stringKeyMarker {
			return strconv.Quote(string(raw[1:]))
		}
	case keyUUID:
		if u, err := uuid.FromBytes(raw); err == nil {
			return u.String()
		}
	}
	return hexstr(raw)
}

// convertKey converts a user-supplied primary key value to the key field's
// type. Integer keys accept any integer, integral floats and decimal strings;
// string keys accept string kinds only; uuid keys accept uuid.UUID, [16]byte
// and parsable strings.
func (cls *Class) convertKey(pk any) (reflect.Value, error) {
	kt := cls.pkField.Type
	if pk == nil {
		return reflect.Value{}, classErrf(cls, nil, ErrValue, nil, "primary key %s must not be nil", cls.pkField.Name)
	}
	v := reflect.ValueOf(pk)
	if v.Type() == kt {
		return v, nil
	}

	out := reflect.New(kt).Elem()
	var err error
	switch cls.pkKind {
	case keyInt:
		err = convertInt(out, v)
	case keyUint:
		err = convertUint(out, v)
	case keyString:
		if v.Kind() != reflect.String {
			err = errIncompatible
		} else {
			out.SetString(v.String())
		}
	case keyUUID:
		switch {
		case v.Kind() == reflect.String:
			var u uuid.UUID
			u, err = uuid.Parse(v.String())
			if err == nil {
				out.Set(reflect.ValueOf(u))
			}
		case v.Kind() == reflect.Array && v.Type().ConvertibleTo(kt):
			out.Set(v.Convert(kt))
		default:
			err = errIncompatible
		}
	default:
		panic(fmt.Errorf("%s has no primary key", cls.name))
	}
	if err != nil {
		return reflect.Value{}, classErrf(cls, nil, ErrValue, err, "cannot use %T %v as primary key %s %v", pk, pk, cls.pkField.Name, kt)
	}
	return out, nil
}

var (
	errIncompatible = fmt.Errorf("incompatible type")
	errOverflow     = fmt.Errorf("out of range")
)

func convertInt(out, v reflect.Value) error {
	var n int64
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n = v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return errOverflow
		}
		n = int64(u)
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return errOverflow
		}
		n = int64(f)
	case reflect.String:
		var err error
		n, err = strconv.ParseInt(v.String(), 10, 64)
		if err != nil {
			return err
		}
	default:
		return errIncompatible
	}
	if out.OverflowInt(n) {
		return errOverflow
	}
	out.SetInt(n)
	return nil
}

func convertUint(out, v reflect.Value) error {
	var u uint64
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := v.Int()
		if n < 0 {
			return errOverflow
		}
		u = uint64(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u = v.Uint()
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
			return errOverflow
		}
		u = uint64(f)
	case reflect.String:
		var err error
		u, err = strconv.ParseUint(v.String(), 10, 64)
		if err != nil {
			return err
		}
	default:
		return errIncompatible
	}
	if out.OverflowUint(u) {
		return errOverflow
	}
	out.SetUint(u)
	return nil
}
