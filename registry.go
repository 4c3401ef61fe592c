package shroud

import (
	"reflect"
	"sync"
)

// Record plans are built once per struct type and shared by FromRecords and
// TypedDescriptors. Failed builds are not cached.
var (
	registry   = make(map[reflect.Type]*recordPlan)
	registryMu sync.RWMutex
)

func planFor[T any]() (*recordPlan, error) {
	typ := reflect.TypeFor[T]()

	registryMu.RLock()
	plan, ok := registry[typ]
	registryMu.RUnlock()
	if ok {
		return plan, nil
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	// Another goroutine may have built it while we waited for the write lock.
	if plan, ok := registry[typ]; ok {
		return plan, nil
	}
	plan, err := buildRecordPlan[T]()
	if err != nil {
		return nil, err
	}
	registry[typ] = plan
	return plan, nil
}

// Reset drops every cached record plan.
func Reset() {
	registryMu.Lock()
	registry = make(map[reflect.Type]*recordPlan)
	registryMu.Unlock()
}
