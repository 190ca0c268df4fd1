package widget

import (
	"sort"

	pkgerrors "github.com/pkg/errors"

	"github.com/xiaoha/batterywidget/pkg/config"
	"github.com/xiaoha/batterywidget/pkg/types"
)

// Status pairs the stored configuration of an instance with its live
// state. State is nil for instances the coordinator has not seen yet.
type Status struct {
	Config config.Instance `json:"config"`
	State  *Snapshot       `json:"state,omitempty"`
}

func (c *Coordinator) Status(id types.InstanceID) (Status, error) {
	inst, err := c.store.Load(id)
	if err != nil {
		return Status{}, pkgerrors.Wrapf(err, "failed to load instance %s", id)
	}
	s := Status{Config: inst}
	if snap, ok := c.State(id); ok {
		s.State = &snap
	}
	return s, nil
}

// Known returns the union of stored and tracked ids, ascending.
func (c *Coordinator) Known() ([]types.InstanceID, error) {
	stored, err := c.store.List()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list instances")
	}

	seen := make(map[types.InstanceID]struct{}, len(stored))
	ids := make([]types.InstanceID, 0, len(stored))
	for _, id := range append(stored, c.Tracked()...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
