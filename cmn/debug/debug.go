// Package debug provides lightweight invariant assertions, trimmed from the
// teacher's cmn/debug package down to what a single-process emulator needs
// (the teacher's expvar/pprof module-verbosity machinery targeted a
// multi-subsystem clustered daemon and has no equivalent here).
package debug

import (
	"fmt"

	"github.com/golang/glog"
)

// Assert panics with a formatted message when cond is false. Reserved for
// invariant violations spec §3/§5 call internal bugs (e.g. an extent chunk
// read that falls outside the stored range) — never for request-input
// validation, which must return a BlobError instead.
func Assert(cond bool, a ...interface{}) {
	if !cond {
		fail(a...)
	}
}

func Assertf(cond bool, f string, a ...interface{}) {
	if !cond {
		fail(fmt.Sprintf(f, a...))
	}
}

func AssertNoErr(err error) {
	if err != nil {
		fail(err)
	}
}

func fail(a ...interface{}) {
	msg := fmt.Sprint(a...)
	glog.Errorf("assertion failed: %s", msg)
	glog.Flush()
	panic("blobemu: " + msg)
}
