package store

import "sync"

// WriterMutex is the single process-wide mutual-exclusion token
// serialising all store mutations (spec §5). Ingestion (C5) and the
// summariser (C9) attempt it non-blockingly and skip their tick if
// contested; compaction (C8) and admin endpoints wait for it.
type WriterMutex struct {
	mu sync.Mutex
}

// TryLock attempts to acquire the mutex without blocking. Returns false
// if another writer currently holds it.
func (w *WriterMutex) TryLock() bool {
	return w.mu.TryLock()
}

// Lock blocks until the mutex is acquired.
func (w *WriterMutex) Lock() {
	w.mu.Lock()
}

// Unlock releases the mutex. Callers must pair every successful TryLock
// or Lock with exactly one Unlock, normally via defer.
func (w *WriterMutex) Unlock() {
	w.mu.Unlock()
}
