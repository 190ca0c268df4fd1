package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaoha/batterywidget/pkg/batteryapi"
	"github.com/xiaoha/batterywidget/pkg/types"
)

// runStoreTests runs the same behaviour checks against any Store.
func runStoreTests(t *testing.T, store Store) {
	t.Run("missing instance loads unconfigured with defaults", func(t *testing.T) {
		inst, err := store.Load(101)
		require.NoError(t, err)
		assert.Equal(t, types.InstanceID(101), inst.ID)
		assert.False(t, inst.Configured())
		assert.Equal(t, batteryapi.DefaultRegionCode, inst.RegionCode)
		assert.Equal(t, batteryapi.DefaultBaseURL, inst.BaseURL)
		assert.Equal(t, DefaultRefreshIntervalMinutes, inst.RefreshIntervalMinutes)
	})

	t.Run("save and load", func(t *testing.T) {
		want := Instance{
			ID:                     7,
			BatteryID:              "8903128939",
			RegionCode:             "021",
			BaseURL:                "https://example.com",
			RefreshIntervalMinutes: 15,
		}
		require.NoError(t, store.Save(want))

		got, err := store.Load(7)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("save overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(Instance{ID: 8, BatteryID: "a", RefreshIntervalMinutes: 5}))
		require.NoError(t, store.Save(Instance{ID: 8, BatteryID: "b"}))

		got, err := store.Load(8)
		require.NoError(t, err)
		assert.Equal(t, "b", got.BatteryID)
		assert.Equal(t, DefaultRefreshIntervalMinutes, got.RefreshIntervalMinutes)
		assert.Equal(t, batteryapi.DefaultRegionCode, got.RegionCode)
	})

	t.Run("list is sorted", func(t *testing.T) {
		ids, err := store.List()
		require.NoError(t, err)
		assert.Equal(t, []types.InstanceID{7, 8}, ids)
	})

	t.Run("delete purges", func(t *testing.T) {
		require.NoError(t, store.Delete(7))
		require.NoError(t, store.Delete(7))

		got, err := store.Load(7)
		require.NoError(t, err)
		assert.False(t, got.Configured())

		ids, err := store.List()
		require.NoError(t, err)
		assert.Equal(t, []types.InstanceID{8}, ids)
	})

	t.Run("oversized stored interval loads default", func(t *testing.T) {
		require.NoError(t, store.Save(Instance{ID: 9, BatteryID: "c", RefreshIntervalMinutes: 153722868}))

		got, err := store.Load(9)
		require.NoError(t, err)
		assert.Equal(t, DefaultRefreshIntervalMinutes, got.RefreshIntervalMinutes)
		require.NoError(t, store.Delete(9))
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, NewMemory())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instances.json")
	f, err := NewFile(path)
	require.NoError(t, err)
	runStoreTests(t, f)

	// A fresh File over the same path sees what was written.
	reopened, err := NewFile(path)
	require.NoError(t, err)
	got, err := reopened.Load(8)
	require.NoError(t, err)
	assert.Equal(t, "b", got.BatteryID)
}

func TestFileStoreEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instances.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0644))

	f, err := NewFile(path)
	require.NoError(t, err)
	ids, err := f.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFileStoreMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instances.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))

	_, err := NewFile(path)
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedis(client)
	defer store.Close()

	runStoreTests(t, store)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLite(filepath.Join(t.TempDir(), "instances.db"))
	require.NoError(t, err)
	defer store.Close()

	runStoreTests(t, store)
}

func TestResolveDefaults(t *testing.T) {
	tests := []struct {
		name string
		raw  *RawInstance
		want Instance
	}{
		{
			name: "nil",
			raw:  nil,
			want: Instance{ID: 1, RegionCode: "0755", BaseURL: "https://xiaoha.linkof.link", RefreshIntervalMinutes: 30},
		},
		{
			name: "empty strings and non-positive interval fall back",
			raw:  &RawInstance{BatteryID: ptrTo("x"), RegionCode: ptrTo(""), BaseURL: ptrTo(""), RefreshIntervalMinutes: ptrTo(0)},
			want: Instance{ID: 1, BatteryID: "x", RegionCode: "0755", BaseURL: "https://xiaoha.linkof.link", RefreshIntervalMinutes: 30},
		},
		{
			name: "negative interval falls back",
			raw:  &RawInstance{BatteryID: ptrTo("x"), RefreshIntervalMinutes: ptrTo(-10)},
			want: Instance{ID: 1, BatteryID: "x", RegionCode: "0755", BaseURL: "https://xiaoha.linkof.link", RefreshIntervalMinutes: 30},
		},
		{
			name: "interval above one week falls back",
			raw:  &RawInstance{BatteryID: ptrTo("x"), RefreshIntervalMinutes: ptrTo(153722868)},
			want: Instance{ID: 1, BatteryID: "x", RegionCode: "0755", BaseURL: "https://xiaoha.linkof.link", RefreshIntervalMinutes: 30},
		},
		{
			name: "one week is kept",
			raw:  &RawInstance{BatteryID: ptrTo("x"), RefreshIntervalMinutes: ptrTo(MaxRefreshIntervalMinutes)},
			want: Instance{ID: 1, BatteryID: "x", RegionCode: "0755", BaseURL: "https://xiaoha.linkof.link", RefreshIntervalMinutes: MaxRefreshIntervalMinutes},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.raw.Resolve(1))
		})
	}
}

func ptrTo[T any](v T) *T { return &v }
