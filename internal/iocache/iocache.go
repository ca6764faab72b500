// Package iocache is for caching GitHub lookups and persisting run history.
package iocache

import (
	"sync"

	"github.com/huangsam/ckscan/internal/contract"
)

// CacheStoreManager manages the release cache and the run history store.
type CacheStoreManager struct {
	sync.RWMutex // Protects the store pointers during initialization
	releases     contract.CacheStore
	runs         contract.RunStore
}

var _ contract.CacheManager = &CacheStoreManager{} // Compile-time check

// GetReleaseStore returns the release-count CacheStore, or nil when caching is off.
func (mgr *CacheStoreManager) GetReleaseStore() contract.CacheStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.releases
}

// GetRunStore returns the run history RunStore, or nil when tracking is off.
func (mgr *CacheStoreManager) GetRunStore() contract.RunStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.runs
}
