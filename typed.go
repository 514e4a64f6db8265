// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package nalloc

import (
	"fmt"
	"reflect"
	"strconv"
	"unsafe"
)

// AllocAs allocates zero-filled, 16-byte-aligned storage for one O and
// returns a Go pointer into it. O must not contain any pointer the garbage
// collector would need to trace -- the block backing it lives outside any
// Go-managed arena, so a GC-visible pointer stored there would be invisible
// to the collector and could be collected out from under the slab while
// still referenced. This is checked on every call via containsNoPointers,
// following the teacher's offheap.Reference guard.
//
// The returned pointer is valid until the matching FreeAs, or until the
// Cache that produced it is closed.
func AllocAs[O any](c *Cache) (*O, error) {
	if err := containsNoPointers[O](); err != nil {
		return nil, fmt.Errorf("nalloc: %w", err)
	}
	var zero O
	size := unsafe.Sizeof(zero)
	addr := c.Calloc(1, size)
	if addr == 0 {
		return nil, fmt.Errorf("nalloc: out of memory allocating %T", zero)
	}
	return (*O)(unsafe.Pointer(addr)), nil
}

// FreeAs releases storage obtained from AllocAs[O]. Calling it with a
// pointer not obtained from AllocAs[O] on the same Cache is a caller
// contract violation -- see Cache.Free.
func FreeAs[O any](c *Cache, p *O) {
	c.Free(uintptr(unsafe.Pointer(p)))
}

// containsNoPointers reports an error describing every GC-visible pointer
// field reachable from O, or nil if O is safe to store outside the Go heap.
// Grounded on the teacher's offheap.containsNoPointers: the check and its
// path-reporting format are reused verbatim, generalized from the
// teacher's Reference[T] construction-time guard to nalloc's
// allocation-time one.
func containsNoPointers[O any]() error {
	t := reflect.TypeFor[O]()
	var paths []string
	searchForPointers(t, "", &paths)
	if len(paths) != 0 {
		return fmt.Errorf("found pointer(s): %s", joinPaths(paths))
	}
	return nil
}

func joinPaths(paths []string) string {
	out := ""
	for _, p := range paths {
		out += p + ","
	}
	return out[:len(out)-1]
}

func searchForPointers(t reflect.Type, path string, paths *[]string) {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		// scalar, no pointer

	case reflect.Array:
		size := strconv.Itoa(t.Len())
		searchForPointers(t.Elem(), path+"["+size+"]", paths)

	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			searchForPointers(f.Type, path+"("+t.String()+")"+f.Name, paths)
		}

	default:
		// Chan, Func, Interface, Map, Pointer, Slice, String,
		// UnsafePointer and anything else reflect adds later: all of
		// these are either a GC-traced pointer or hide one.
		*paths = append(*paths, path+"<"+t.String()+">")
	}
}
