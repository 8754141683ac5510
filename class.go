package objstore

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	tagName = "objstore"
	tagPK   = "pk"
)

// Class is the runtime identity of a model type: it selects the bucket, the
// primary key layout and the row encoding.
type Class struct {
	schema      *Schema
	name        string
	pos         int // index in schema.classes, unstable across code changes
	typ         reflect.Type
	pkField     reflect.StructField
	pkKind      keyKind
	fingerprint uint64
}

// AddClass registers struct type T under the given name (the Go type name if
// empty). A field tagged `objstore:"pk"` becomes the primary key.
func AddClass[T any](scm *Schema, name string) *Class {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		panic(fmt.Errorf("AddClass: %v is not a struct", typ))
	}
	if name == "" {
		name = typ.Name()
	}
	if name == "" || strings.HasPrefix(name, "_") {
		panic(fmt.Errorf("AddClass: invalid class name %q for %v", name, typ))
	}
	cls := &Class{
		name: name,
		typ:  typ,
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if f.Tag.Get(tagName) != tagPK {
			continue
		}
		if cls.pkKind != keyNone {
			panic(fmt.Errorf("%s: more than one primary key (%s and %s)", name, cls.pkField.Name, f.Name))
		}
		if !f.IsExported() {
			panic(fmt.Errorf("%s: primary key field %s must be exported", name, f.Name))
		}
		kind := keyKindOf(f.Type)
		if kind == keyNone {
			panic(fmt.Errorf("%s: unsupported primary key type %v", name, f.Type))
		}
		cls.pkField, cls.pkKind = f, kind
	}
	cls.fingerprint = computeFingerprint(cls)
	scm.addClass(cls)
	return cls
}

func (cls *Class) Name() string { return cls.name }
func (cls *Class) String() string { return cls.name }
func (cls *Class) Type() reflect.Type { return cls.typ }
func (cls *Class) Schema() *Schema { return cls.schema }
func (cls *Class) HasPrimaryKey() bool { return cls.pkKind != keyNone }
func (cls *Class) Fingerprint() uint64 { return cls.fingerprint }
func (cls *Class) bucketName() string { return cls.name }

// PrimaryKeyField returns the name of the primary key field, or "".
func (cls *Class) PrimaryKeyField() string {
	if cls.pkKind == keyNone {
		return ""
	}
	return cls.pkField.Name
}

// PrimaryKeyType returns the type of the primary key field, or nil.
func (cls *Class) PrimaryKeyType() reflect.Type {
	if cls.pkKind == keyNone {
		return nil
	}
	return cls.pkField.Type
}

func (cls *Class) newRowVal() reflect.Value {
	return reflect.New(cls.typ)
}

func (cls *Class) rowKeyVal(rowVal reflect.Value) reflect.Value {
	return rowVal.Elem().FieldByIndex(cls.pkField.Index)
}

func computeFingerprint(cls *Class) uint64 {
	h := xxhash.New()
	h.WriteString(cls.name)
	for i := 0; i < cls.typ.NumField(); i++ {
		f := cls.typ.Field(i)
		if !f.IsExported() {
			continue
		}
		h.WriteString("\x00")
		h.WriteString(f.Name)
		h.WriteString(" ")
		h.WriteString(f.Type.String())
		h.WriteString(" ")
		h.WriteString(string(f.Tag))
	}
	return h.Sum64()
}
