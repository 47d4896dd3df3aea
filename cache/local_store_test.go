package cache

import (
	"testing"

	"github.com/huykn/assessment-cache/types"
)

func newLocalStores(t *testing.T) map[string]LocalCache {
	t.Helper()

	lruCache, err := NewLRUCache(100)
	if err != nil {
		t.Fatalf("Failed to create LRU cache: %v", err)
	}
	lfuCache, err := NewLFUCache(DefaultLocalCacheConfig())
	if err != nil {
		t.Fatalf("Failed to create LFU cache: %v", err)
	}

	return map[string]LocalCache{
		"lru": lruCache,
		"lfu": lfuCache,
	}
}

func TestLocalStoresSetGetDelete(t *testing.T) {
	for name, store := range newLocalStores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()

			assessment := &types.Assessment{RiskAnalysis: types.RiskAnalysis{Score: 0.7}}
			if !store.Set("k1", assessment, 1) {
				t.Fatal("Set should succeed")
			}

			value, found := store.Get("k1")
			if !found {
				t.Fatal("Value should be found immediately after Set")
			}
			if value.(*types.Assessment) != assessment {
				t.Fatal("Expected the stored pointer back")
			}

			store.Delete("k1")
			if _, found := store.Get("k1"); found {
				t.Fatal("Value should not be found after Delete")
			}

			metrics := store.Metrics()
			if metrics.Hits != 1 || metrics.Misses != 1 {
				t.Fatalf("Expected 1 hit and 1 miss, got %+v", metrics)
			}
		})
	}
}

func TestLocalStoresClear(t *testing.T) {
	for name, store := range newLocalStores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()

			for _, key := range []string{"a", "b", "c"} {
				store.Set(key, &types.Assessment{}, 1)
			}
			store.Clear()

			for _, key := range []string{"a", "b", "c"} {
				if _, found := store.Get(key); found {
					t.Fatalf("Key %s should be gone after Clear", key)
				}
			}
		})
	}
}

func TestLRUCacheInvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := NewLRUCache(size); err == nil {
			t.Fatalf("Expected error for size %d", size)
		}
	}
}

func TestLRUCacheEvictionsCounted(t *testing.T) {
	cache, err := NewLRUCache(2)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer cache.Close()

	cache.Set("a", 1, 1)
	cache.Set("b", 2, 1)
	cache.Set("c", 3, 1)

	metrics := cache.Metrics()
	if metrics.Evictions != 1 {
		t.Fatalf("Expected 1 eviction, got %d", metrics.Evictions)
	}
	if metrics.Size != 2 {
		t.Fatalf("Expected size 2, got %d", metrics.Size)
	}
	if _, found := cache.Get("a"); found {
		t.Fatal("Oldest key should have been evicted")
	}
}

func TestLocalCacheFactories(t *testing.T) {
	factories := map[string]LocalCacheFactory{
		"lru": NewLRUCacheFactory(10),
		"lfu": NewLFUCacheFactory(DefaultLocalCacheConfig()),
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store, err := factory.Create()
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			defer store.Close()

			if store == nil {
				t.Fatal("Store should not be nil")
			}
		})
	}
}
