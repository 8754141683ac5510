package objstore

import (
	"fmt"
	"reflect"
	"strings"
)

const metaBucket = "_meta"

// Schema lists the classes a DB stores. Classes are added at init time and the
// schema must not be modified after it has been passed to Open.
type Schema struct {
	classes            []*Class
	classesByLowerName map[string]*Class
	classesByType      map[reflect.Type]*Class
}

func NewSchema() *Schema {
	scm := &Schema{}
	scm.init()
	return scm
}

func (scm *Schema) init() {
	if scm.classesByType == nil {
		scm.classesByLowerName = make(map[string]*Class)
		scm.classesByType = make(map[reflect.Type]*Class)
	}
}

func (scm *Schema) Classes() []*Class {
	return append([]*Class(nil), scm.classes...)
}

func (scm *Schema) ClassNamed(name string) *Class {
	return scm.classesByLowerName[strings.ToLower(name)]
}

// ClassByType resolves a registered struct type to its class. Pointer types
// are not classes and are rejected like any unregistered type.
func (scm *Schema) ClassByType(rt reflect.Type) (*Class, error) {
	if rt == nil {
		return nil, &StoreError{"class <nil>", ErrUnknownClass}
	}
	cls := scm.classesByType[rt]
	if cls == nil {
		return nil, &StoreError{"class " + rt.String(), ErrUnknownClass}
	}
	return cls, nil
}

// ClassByRow resolves the class of a row pointer.
func (scm *Schema) ClassByRow(row any) (*Class, error) {
	rt := reflect.TypeOf(row)
	if rt == nil || rt.Kind() != reflect.Ptr {
		return nil, &StoreError{fmt.Sprintf("class of %T", row), ErrUnknownClass}
	}
	return scm.ClassByType(rt.Elem())
}

func (scm *Schema) addClass(cls *Class) {
	scm.init()
	lower := strings.ToLower(cls.name)
	if scm.classesByLowerName[lower] != nil {
		panic(fmt.Errorf("duplicate class %q", cls.name))
	}
	if prev := scm.classesByType[cls.typ]; prev != nil {
		panic(fmt.Errorf("%v already registered as class %q", cls.typ, prev.name))
	}
	cls.schema = scm
	cls.pos = len(scm.classes)
	scm.classes = append(scm.classes, cls)
	scm.classesByLowerName[lower] = cls
	scm.classesByType[cls.typ] = cls
}
