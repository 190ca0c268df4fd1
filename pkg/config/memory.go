package config

import (
	"sort"
	"sync"

	"github.com/xiaoha/batterywidget/pkg/types"
)

var _ Store = &Memory{}

// Memory is a Store that keeps everything in process memory.
type Memory struct {
	mu        sync.RWMutex
	instances map[types.InstanceID]*RawInstance
}

func NewMemory() *Memory {
	return &Memory{instances: make(map[types.InstanceID]*RawInstance)}
}

func (m *Memory) Load(id types.InstanceID) (Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instances[id].Resolve(id), nil
}

func (m *Memory) Save(inst Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[inst.ID] = NewRawInstance(inst)
	return nil
}

func (m *Memory) Delete(id types.InstanceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.instances, id)
	return nil
}

func (m *Memory) List() ([]types.InstanceID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedIDs(m.instances), nil
}

func (m *Memory) Close() error {
	return nil
}

func sortedIDs[V any](instances map[types.InstanceID]V) []types.InstanceID {
	ids := make([]types.InstanceID, 0, len(instances))
	for id := range instances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
