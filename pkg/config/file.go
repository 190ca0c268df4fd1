package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/xiaoha/batterywidget/pkg/types"
)

var _ Store = &File{}

// File is a Store backed by a single JSON file. Every Save and Delete
// rewrites the file.
type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

// RawFileConfig is the on-disk layout of File.
type RawFileConfig struct {
	Instances map[types.InstanceID]*RawInstance `json:"instances,omitempty"`
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Reload()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func (f *File) Load(id types.InstanceID) (Instance, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.c.Instances[id].Resolve(id), nil
}

func (f *File) Save(inst Instance) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.c.Instances[inst.ID] = NewRawInstance(inst)
	return f.write()
}

func (f *File) Delete(id types.InstanceID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.c.Instances[id]; !ok {
		return nil
	}
	delete(f.c.Instances, id)
	return f.write()
}

func (f *File) List() ([]types.InstanceID, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return sortedIDs(f.c.Instances), nil
}

func (f *File) Close() error {
	return nil
}

// Reload reads the configuration from disk, replacing what is in memory.
func (f *File) Reload() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	empty := &RawFileConfig{Instances: make(map[types.InstanceID]*RawInstance)}

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, start with the empty config.
			f.c = empty
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = empty
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	if conf.Instances == nil {
		conf.Instances = make(map[types.InstanceID]*RawInstance)
	}
	f.c = &conf

	return nil
}

// write must be called with f.mu held.
func (f *File) write() error {
	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}
