package config

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/xiaoha/batterywidget/pkg/types"
	"github.com/xiaoha/batterywidget/pkg/utils/ptr"
)

const (
	redisKeyPrefix   = "batterywidget"
	fieldBatteryID   = "battery-id"
	fieldRegionCode  = "region-code"
	fieldBaseURL     = "base-url"
	fieldRefreshMins = "refresh-interval-minutes"
)

var _ Store = &Redis{}

// Redis is a Store keeping one hash per instance plus a set of known ids.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) instanceKey(id types.InstanceID) string {
	return fmt.Sprintf("%s:instance:%d", redisKeyPrefix, id)
}

func (r *Redis) setKey() string {
	return redisKeyPrefix + ":instances"
}

func (r *Redis) Load(id types.InstanceID) (Instance, error) {
	ctx := context.Background()
	fields, err := r.client.HGetAll(ctx, r.instanceKey(id)).Result()
	if err != nil && err != redis.Nil {
		return Instance{}, pkgerrors.Wrapf(err, "failed to HGETALL %s", r.instanceKey(id))
	}

	raw := &RawInstance{}
	if v, ok := fields[fieldBatteryID]; ok {
		raw.BatteryID = ptr.To(v)
	}
	if v, ok := fields[fieldRegionCode]; ok {
		raw.RegionCode = ptr.To(v)
	}
	if v, ok := fields[fieldBaseURL]; ok {
		raw.BaseURL = ptr.To(v)
	}
	if v, ok := fields[fieldRefreshMins]; ok {
		mins, err := strconv.Atoi(v)
		if err != nil {
			logrus.WithField("instance", id).Warnf("ignoring invalid refresh interval %q", v)
		} else {
			raw.RefreshIntervalMinutes = ptr.To(mins)
		}
	}

	return raw.Resolve(id), nil
}

func (r *Redis) Save(inst Instance) error {
	ctx := context.Background()
	key := r.instanceKey(inst.ID)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]interface{}{
			fieldBatteryID:   inst.BatteryID,
			fieldRegionCode:  inst.RegionCode,
			fieldBaseURL:     inst.BaseURL,
			fieldRefreshMins: strconv.Itoa(inst.RefreshIntervalMinutes),
		})
		pipe.SAdd(ctx, r.setKey(), inst.ID.String())
		return nil
	})
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to save instance %d", inst.ID)
	}
	return nil
}

func (r *Redis) Delete(id types.InstanceID) error {
	ctx := context.Background()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.instanceKey(id))
		pipe.SRem(ctx, r.setKey(), id.String())
		return nil
	})
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to delete instance %d", id)
	}
	return nil
}

func (r *Redis) List() ([]types.InstanceID, error) {
	members, err := r.client.SMembers(context.Background(), r.setKey()).Result()
	if err != nil && err != redis.Nil {
		return nil, pkgerrors.Wrapf(err, "failed to SMEMBERS %s", r.setKey())
	}

	ids := make([]types.InstanceID, 0, len(members))
	for _, m := range members {
		id, err := types.ParseInstanceID(m)
		if err != nil {
			logrus.Warnf("ignoring invalid member %q of %s", m, r.setKey())
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
