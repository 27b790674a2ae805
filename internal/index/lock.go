package index

import (
	"context"
	"errors"
	"fmt"
)

// ErrBusy is returned when the index lock cannot be acquired before the
// caller's context expires. The operation did not run and may be retried.
var ErrBusy = errors.New("index busy")

// maxReaders bounds concurrent readers. A writer acquires all tokens, so a
// larger value slows writer admission slightly; 64 comfortably exceeds any
// realistic query concurrency on one node.
const maxReaders = 64

// rwLock is a reader/writer lock with context-bounded acquisition, built on a
// token channel. Readers take one token, writers take all of them. Unlike
// sync.RWMutex, a caller whose context expires while waiting gets ErrBusy
// instead of blocking forever behind a slow bulk writer.
type rwLock struct {
	tokens chan struct{}
}

func newRWLock() *rwLock {
	return &rwLock{tokens: make(chan struct{}, maxReaders)}
}

// rlock acquires a read token.
func (l *rwLock) rlock(ctx context.Context) error {
	select {
	case l.tokens <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrBusy, ctx.Err())
	}
}

func (l *rwLock) runlock() {
	<-l.tokens
}

// lock acquires all tokens, excluding readers and other writers. On context
// expiry, tokens acquired so far are released before returning ErrBusy.
func (l *rwLock) lock(ctx context.Context) error {
	for i := 0; i < maxReaders; i++ {
		select {
		case l.tokens <- struct{}{}:
		case <-ctx.Done():
			for j := 0; j < i; j++ {
				<-l.tokens
			}
			return fmt.Errorf("%w: %v", ErrBusy, ctx.Err())
		}
	}
	return nil
}

func (l *rwLock) unlock() {
	for i := 0; i < maxReaders; i++ {
		<-l.tokens
	}
}
