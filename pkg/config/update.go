package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xiaoha/batterywidget/pkg/types"
)

// ErrMissingBatteryID is returned for a submission without a battery id.
var ErrMissingBatteryID = errors.New("battery id is required")

// ErrRefreshIntervalOutOfRange is returned for an interval above
// MaxRefreshIntervalMinutes.
var ErrRefreshIntervalOutOfRange = fmt.Errorf("refresh interval must be at most %d minutes", MaxRefreshIntervalMinutes)

// Update is a configuration submitted by the user. Zero fields take
// defaults.
type Update struct {
	BatteryID              string `json:"batteryId"`
	RegionCode             string `json:"regionCode,omitempty"`
	BaseURL                string `json:"baseUrl,omitempty"`
	RefreshIntervalMinutes int    `json:"refreshIntervalMinutes,omitempty"`
}

// Normalize trims u and resolves it into the configuration of id.
func (u Update) Normalize(id types.InstanceID) (Instance, error) {
	raw := &RawInstance{
		BatteryID:  ptrOrNil(strings.TrimSpace(u.BatteryID)),
		RegionCode: ptrOrNil(strings.TrimSpace(u.RegionCode)),
		BaseURL:    ptrOrNil(strings.TrimRight(strings.TrimSpace(u.BaseURL), "/")),
	}
	if u.RefreshIntervalMinutes > MaxRefreshIntervalMinutes {
		return Instance{}, ErrRefreshIntervalOutOfRange
	}
	if u.RefreshIntervalMinutes > 0 {
		raw.RefreshIntervalMinutes = &u.RefreshIntervalMinutes
	}

	inst := raw.Resolve(id)
	if !inst.Configured() {
		return Instance{}, ErrMissingBatteryID
	}
	return inst, nil
}

func ptrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
