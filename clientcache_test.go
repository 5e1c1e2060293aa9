package storekit

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestClientCacheSingleCreation(t *testing.T) {
	cache := NewClientCache(time.Minute)

	var created int
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := cache.GetOrCreate("client", func() (any, error) {
				created++
				return "the client", nil
			})
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
			}
			if v != "the client" {
				t.Errorf("GetOrCreate = %v", v)
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("factory ran %d times, want 1", created)
	}
}

func TestClientCacheExpiry(t *testing.T) {
	cache := NewClientCache(time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }

	calls := 0
	factory := func() (any, error) {
		calls++
		return calls, nil
	}

	if v, _ := cache.GetOrCreate("k", factory); v != 1 {
		t.Fatalf("first GetOrCreate = %v, want 1", v)
	}
	if v, _ := cache.GetOrCreate("k", factory); v != 1 {
		t.Fatalf("cached GetOrCreate = %v, want 1", v)
	}

	// Past the TTL the entry is recreated, once.
	now = now.Add(time.Minute + time.Second)
	if v, _ := cache.GetOrCreate("k", factory); v != 2 {
		t.Fatalf("expired GetOrCreate = %v, want 2", v)
	}
	if v, _ := cache.GetOrCreate("k", factory); v != 2 {
		t.Fatalf("re-cached GetOrCreate = %v, want 2", v)
	}
}

func TestClientCacheFactoryError(t *testing.T) {
	cache := NewClientCache(time.Minute)
	boom := errors.New("boom")

	if _, err := cache.GetOrCreate("k", func() (any, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if cache.Len() != 0 {
		t.Fatalf("Len = %d after failed factory, want 0", cache.Len())
	}

	// A later successful factory is cached as usual.
	if v, err := cache.GetOrCreate("k", func() (any, error) { return "ok", nil }); err != nil || v != "ok" {
		t.Fatalf("GetOrCreate = %v, %v", v, err)
	}
	if cache.Len() != 1 {
		t.Fatalf("Len = %d, want 1", cache.Len())
	}
}

func TestClientCacheInvalidate(t *testing.T) {
	cache := NewClientCache(time.Minute)
	calls := 0
	factory := func() (any, error) {
		calls++
		return calls, nil
	}

	cache.GetOrCreate("k", factory)
	cache.Invalidate("k")
	if v, _ := cache.GetOrCreate("k", factory); v != 2 {
		t.Fatalf("GetOrCreate after Invalidate = %v, want 2", v)
	}
}
