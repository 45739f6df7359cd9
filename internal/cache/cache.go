// Package cache provides a small generic LRU cache with per-entry TTL.
package cache

import "time"

// Cache is the read/write surface consumers depend on.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically evicts expired entries from registered caches.
type Janitor struct {
	caches []Cleaner
	stop   chan struct{}
	done   chan struct{}
}

func NewJanitor() *Janitor {
	return &Janitor{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (j *Janitor) Register(c Cleaner) {
	j.caches = append(j.caches, c)
}

// Start runs the cleanup loop until Stop is called.
func (j *Janitor) Start(interval time.Duration) {
	go func() {
		defer close(j.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, c := range j.caches {
					c.CleanExpired()
				}
			case <-j.stop:
				return
			}
		}
	}()
}

func (j *Janitor) Stop() {
	close(j.stop)
	<-j.done
}
