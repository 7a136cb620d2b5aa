// Package reflector provides cached type identity for message payloads.
//
// The runtime never serializes payloads, but it requires every payload to
// carry a stable type identity so that it could be identified on the wire:
// [HasTypeID] is the gate used at send time, [TypeInfoOf] names payloads in
// logs and metrics.
package reflector

import (
	"reflect"
	"sync"
)

// maxCacheSize bounds the type cache. The number of payload types in a program
// is small, so the cache is simply reset when the limit is hit.
const maxCacheSize = 1024

var (
	muCache sync.RWMutex
	cache   = make(map[reflect.Type]TypeInfo)
)

// TypeInfo holds the identity of a reflected type.
type TypeInfo struct {
	Name string       // "pkg/path.TypeName", or the bare name for predeclared types
	Type reflect.Type // pointer types are unwrapped
	ID   bool         // the type can be identified on the wire
}

// TypeInfoOf returns TypeInfo for the dynamic type of x.
func TypeInfoOf(x any) TypeInfo {
	return TypeInfoForType(reflect.TypeOf(x))
}

// TypeInfoFor returns TypeInfo for type parameter T.
func TypeInfoFor[T any]() TypeInfo {
	return TypeInfoForType(reflect.TypeFor[T]())
}

// TypeInfoForType returns TypeInfo for t. Thread-safe, cached.
func TypeInfoForType(t reflect.Type) TypeInfo {
	if t == nil {
		return TypeInfo{}
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	muCache.RLock()
	ti, ok := cache[t]
	muCache.RUnlock()
	if ok {
		return ti
	}

	ti = TypeInfo{Name: nameOf(t), Type: t, ID: hasID(t)}

	muCache.Lock()
	if len(cache) >= maxCacheSize {
		cache = make(map[reflect.Type]TypeInfo)
	}
	cache[t] = ti
	muCache.Unlock()

	return ti
}

// HasTypeID reports whether x has a stable type identity: a named type, a
// predeclared scalar, or a slice/array/map of such types. Functions, channels,
// unsafe pointers and anonymous structs are rejected.
func HasTypeID(x any) bool {
	if x == nil {
		return false
	}
	return TypeInfoOf(x).ID
}

func nameOf(t reflect.Type) string {
	switch {
	case t.Name() == "":
		return t.String()
	case t.PkgPath() == "":
		return t.Name()
	default:
		return t.PkgPath() + "." + t.Name()
	}
}

func hasID(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Uintptr, reflect.Invalid:
		return false
	case reflect.Interface:
		return t.Name() != ""
	case reflect.Pointer:
		return hasID(t.Elem())
	case reflect.Slice, reflect.Array:
		return t.Name() != "" || hasID(t.Elem())
	case reflect.Map:
		return t.Name() != "" || (hasID(t.Key()) && hasID(t.Elem()))
	case reflect.Struct:
		return t.Name() != ""
	default:
		return true
	}
}
