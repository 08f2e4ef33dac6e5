package device

import (
	"sync"
)

// Token is the completion handle for one asynchronous device operation. Tokens are
// monotonic: once satisfied they stay satisfied, and the completion error never
// changes afterwards.
type Token struct {
	name string
	done chan struct{}
	mu   sync.Mutex
	err  error
}

// NewToken is used by Context implementations. Orchestration code only ever
// receives tokens from enqueue calls.
func NewToken(name string) *Token {
	return &Token{name: name, done: make(chan struct{})}
}

func (t *Token) Name() string {
	return t.name
}

// Complete satisfies the token. Calling it more than once is a programming error
// in the Context implementation.
func (t *Token) Complete(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	close(t.done)
}

// Wait blocks until the token is satisfied and returns the operation's error.
func (t *Token) Wait() error {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Completed reports whether the token is already satisfied, without blocking.
func (t *Token) Completed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Err returns the completion error, or nil if the token is unsatisfied or the
// operation succeeded.
func (t *Token) Err() error {
	if !t.Completed() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Satisfied returns an already-satisfied token. Host compute stages use it to
// represent their synchronous completion to downstream device stages.
func Satisfied(name string) *Token {
	t := NewToken(name)
	t.Complete(nil)
	return t
}

// Merge returns a token satisfied once every token in the list is satisfied. The
// merged token carries the error of the first (in list order) failed token.
func Merge(name string, tokens ...*Token) *Token {
	if len(tokens) == 1 {
		return tokens[0]
	}
	merged := NewToken(name)
	if len(tokens) == 0 {
		merged.Complete(nil)
		return merged
	}
	go func() {
		var firstErr error
		for _, tok := range tokens {
			if err := tok.Wait(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		merged.Complete(firstErr)
	}()
	return merged
}
