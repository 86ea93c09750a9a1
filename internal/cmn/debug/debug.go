//go:build debug

// Package debug provides build-tag-gated assertions used throughout the
// reconciliation core. Built without the "debug" tag, every call in this
// package is a no-op (see debug_off.go); the core must never rely on a
// side effect of an assertion.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package debug

import (
	"bytes"
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

func Assert(cond bool, a ...interface{}) {
	if !cond {
		_panic(a...)
	}
}

func Assertf(cond bool, f string, a ...interface{}) {
	if !cond {
		_panic(fmt.Sprintf(f, a...))
	}
}

func AssertNoErr(err error) {
	if err != nil {
		_panic(err)
	}
}

func AssertMutexLocked(m *sync.Mutex) {
	state := reflect.ValueOf(m).Elem().FieldByName("state")
	Assertf(state.Int()&1 == 1, "mutex not locked")
}

func AssertRWMutexLocked(m *sync.RWMutex) {
	state := reflect.ValueOf(m).Elem().FieldByName("w").FieldByName("state")
	Assertf(state.Int()&1 == 1, "rwmutex not locked")
}

func Func(f func()) { f() }

func _panic(a ...interface{}) {
	msg := "debug assertion failed: "
	if len(a) > 0 {
		msg += fmt.Sprint(a...)
	}
	buffer := bytes.NewBuffer(make([]byte, 0, 256))
	fmt.Fprint(buffer, msg)
	for i := 2; i < 9; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok || !strings.Contains(file, "lattice-controller") {
			break
		}
		if buffer.Len() > len(msg) {
			buffer.WriteString(" <- ")
		}
		fmt.Fprintf(buffer, "%s:%d", filepath.Base(file), line)
	}
	panic(buffer.String())
}
