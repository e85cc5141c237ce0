package engine

import (
	"bytes"
	"runtime"
	"strconv"
)

var goroutinePrefix = []byte("goroutine ")

// goroutineID returns the id of the calling goroutine, parsed from the
// header line of its stack trace ("goroutine 18 [running]:").
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// assertOwner panics with *OwnershipError when called off the owning goroutine.
func (t *Tracker) assertOwner(op string) {
	if !t.checkOwner {
		return
	}
	if caller := goroutineID(); caller != t.owner {
		panic(&OwnershipError{Op: op, Owner: t.owner, Caller: caller})
	}
}
