package recipes

import (
	"go/ast"
	"reflect"
	"unsafe"
)

// fieldOf returns the named field of elem, made settable and readable
// even when it is unexported.
func fieldOf(elem reflect.Value, name string) reflect.Value {
	field := elem.FieldByName(name)
	if ast.IsExported(name) {
		return field
	}
	return reflect.NewAt(field.Type(), unsafe.Pointer(field.UnsafeAddr())).Elem()
}

// valueOf reads a class field. Exported pointer fields are
// dereferenced.
func valueOf(elem reflect.Value, name string) any {
	field := fieldOf(elem, name)
	if ast.IsExported(name) && field.Kind() == reflect.Ptr {
		return field.Elem().Interface()
	}
	return field.Interface()
}

// setValue writes a class field; a nil value stores the zero value.
func setValue(elem reflect.Value, name string, value any) {
	field := fieldOf(elem, name)
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return
	}
	field.Set(reflect.ValueOf(value))
}
