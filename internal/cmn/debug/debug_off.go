//go:build !debug

package debug

import "sync"

func Assert(bool, ...interface{})           {}
func Assertf(bool, string, ...interface{})  {}
func AssertNoErr(error)                     {}
func AssertMutexLocked(*sync.Mutex)         {}
func AssertRWMutexLocked(*sync.RWMutex)     {}
func Func(f func())                         { f() }
