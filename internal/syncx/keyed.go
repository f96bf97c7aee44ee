package syncx

import "sync"

// KeyedMutex hands out at most one holder per key. Keys are forgotten once
// released so the map never grows beyond the number of live holders.
type KeyedMutex struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewKeyedMutex creates an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{held: make(map[string]struct{})}
}

// TryLock acquires key without blocking. It returns a release func and true on
// success, or nil and false when key is already held.
func (k *KeyedMutex) TryLock(key string) (func(), bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, busy := k.held[key]; busy {
		return nil, false
	}
	k.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			k.mu.Lock()
			delete(k.held, key)
			k.mu.Unlock()
		})
	}, true
}

// Held reports whether key is currently locked.
func (k *KeyedMutex) Held(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.held[key]
	return ok
}
