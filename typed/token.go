package typed

import (
	"fmt"
	"reflect"
)

// Token is the runtime class identity of a model type. Tokens are immutable
// and comparable; TokenOf[T]() == TokenOf[T]() for any T.
type Token struct {
	typ reflect.Type
}

// TokenOf returns the token for T. Only registered struct types name a
// class; the store rejects any other token, including *Dog for Dog, with
// objstore.ErrUnknownClass.
func TokenOf[T any]() Token {
	return Token{reflect.TypeOf((*T)(nil)).Elem()}
}

func (t Token) Type() reflect.Type {
	return t.typ
}

func (t Token) IsZero() bool {
	return t.typ == nil
}

func (t Token) String() string {
	if t.typ == nil {
		return "<none>"
	}
	return t.typ.String()
}

// cast converts an object handed out by the store back to *T.
func cast[T any](obj any) (*T, error) {
	if obj == nil {
		return nil, nil
	}
	row, ok := obj.(*T)
	if !ok {
		return nil, fmt.Errorf("typed: store returned %T for %v", obj, TokenOf[T]())
	}
	return row, nil
}
