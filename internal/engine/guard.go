package engine

import "sync"

// guard is a non-blocking reentrancy lock. A call that arrives while another
// state-mutating call is in flight fails immediately instead of queueing, so
// a token hook that calls back into the engine cannot observe or extend
// in-progress state.
type guard struct {
	mu sync.Mutex
}

// enter acquires the guard or fails without blocking.
func (g *guard) enter() error {
	if !g.mu.TryLock() {
		return ErrReentrantCall
	}
	return nil
}

// exit releases the guard. Callers defer it immediately after enter succeeds.
func (g *guard) exit() {
	g.mu.Unlock()
}
