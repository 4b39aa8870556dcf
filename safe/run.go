// Package safe recovers panics raised from invoking operator user code
// and turns them into ordinary errors, mirroring the teacher repo's
// common/safe package ("be safe, don't panic").
package safe

import (
	"fmt"
	"runtime/debug"
)

// Run executes fn, converting any panic into a returned error carrying
// the recovered value and a captured stack trace.
func Run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			switch x := r.(type) {
			case error:
				err = fmt.Errorf("panic in operator: %w\n%s", x, stack)
			default:
				err = fmt.Errorf("panic in operator: %v\n%s", x, stack)
			}
		}
	}()
	return fn()
}
