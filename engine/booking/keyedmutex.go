package booking

import "sync"

// keyedMutex serializes critical sections per key. Bookings for one vehicle
// must not interleave between overlap check and write; bookings for
// different vehicles are independent.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*vehicleLock
}

type vehicleLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*vehicleLock)}
}

// lock acquires the mutex for key and returns the release function. Entries
// are reference counted and removed once the last holder releases, so the
// map does not grow with the set of vehicle ids ever seen.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &vehicleLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
