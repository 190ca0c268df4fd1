package config

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xiaoha/batterywidget/pkg/batteryapi"
	"github.com/xiaoha/batterywidget/pkg/types"
	"github.com/xiaoha/batterywidget/pkg/utils/ptr"
)

const (
	DefaultRefreshIntervalMinutes = 30
	// MaxRefreshIntervalMinutes caps the interval at one week.
	MaxRefreshIntervalMinutes = 7 * 24 * 60
)

var defaultRawInstance = &RawInstance{
	BatteryID:              ptr.To(""),
	RegionCode:             ptr.To(batteryapi.DefaultRegionCode),
	BaseURL:                ptr.To(batteryapi.DefaultBaseURL),
	RefreshIntervalMinutes: ptr.To(DefaultRefreshIntervalMinutes),
}

// Store persists per-instance widget configuration. Implementations are
// safe for concurrent use. Accesses are keyed by instance id, so no
// cross-instance locking is required of callers.
type Store interface {
	// Load returns the configuration of id with defaults applied. A
	// missing instance is not an error; it loads as unconfigured.
	Load(id types.InstanceID) (Instance, error)
	// Save replaces the stored configuration of inst.ID.
	Save(inst Instance) error
	// Delete purges every entry of id.
	Delete(id types.InstanceID) error
	// List returns the ids with stored configuration, in ascending order.
	List() ([]types.InstanceID, error)
	Close() error
}

// RawInstance is the stored form. Nil fields fall back to defaults.
type RawInstance struct {
	BatteryID              *string `json:"batteryId,omitempty"`
	RegionCode             *string `json:"regionCode,omitempty"`
	BaseURL                *string `json:"baseUrl,omitempty"`
	RefreshIntervalMinutes *int    `json:"refreshIntervalMinutes,omitempty"`
}

// Instance is the resolved configuration of one widget instance.
type Instance struct {
	ID                     types.InstanceID `json:"id"`
	BatteryID              string           `json:"batteryId"`
	RegionCode             string           `json:"regionCode"`
	BaseURL                string           `json:"baseUrl"`
	RefreshIntervalMinutes int              `json:"refreshIntervalMinutes"`
}

// Resolve applies defaults to r.
func (r *RawInstance) Resolve(id types.InstanceID) Instance {
	if r == nil {
		r = &RawInstance{}
	}

	inst := Instance{
		ID:                     id,
		BatteryID:              ptr.Deref(r.BatteryID, *defaultRawInstance.BatteryID),
		RegionCode:             ptr.Deref(r.RegionCode, *defaultRawInstance.RegionCode),
		BaseURL:                ptr.Deref(r.BaseURL, *defaultRawInstance.BaseURL),
		RefreshIntervalMinutes: ptr.Deref(r.RefreshIntervalMinutes, *defaultRawInstance.RefreshIntervalMinutes),
	}
	if inst.RegionCode == "" {
		inst.RegionCode = *defaultRawInstance.RegionCode
	}
	if inst.BaseURL == "" {
		inst.BaseURL = *defaultRawInstance.BaseURL
	}
	if !validRefreshInterval(inst.RefreshIntervalMinutes) {
		inst.RefreshIntervalMinutes = *defaultRawInstance.RefreshIntervalMinutes
	}

	return inst
}

// NewRawInstance returns the stored form of inst.
func NewRawInstance(inst Instance) *RawInstance {
	return &RawInstance{
		BatteryID:              ptr.To(inst.BatteryID),
		RegionCode:             ptr.To(inst.RegionCode),
		BaseURL:                ptr.To(inst.BaseURL),
		RefreshIntervalMinutes: ptr.To(inst.RefreshIntervalMinutes),
	}
}

// Configured reports whether a battery has been chosen.
func (i Instance) Configured() bool {
	return i.BatteryID != ""
}

// RefreshInterval is the delay between alarm refreshes. Out of range
// minutes yield the default interval.
func (i Instance) RefreshInterval() time.Duration {
	minutes := i.RefreshIntervalMinutes
	if !validRefreshInterval(minutes) {
		minutes = DefaultRefreshIntervalMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func validRefreshInterval(minutes int) bool {
	return minutes > 0 && minutes <= MaxRefreshIntervalMinutes
}

// Request returns the battery API request for this instance.
func (i Instance) Request() batteryapi.Request {
	return batteryapi.Request{
		BaseURL:    i.BaseURL,
		BatteryID:  i.BatteryID,
		RegionCode: i.RegionCode,
	}
}

func (i Instance) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"instance":               i.ID,
		"batteryId":              i.BatteryID,
		"regionCode":             i.RegionCode,
		"baseUrl":                i.BaseURL,
		"refreshIntervalMinutes": i.RefreshIntervalMinutes,
	}
}
