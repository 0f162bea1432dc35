package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// FileStore: настройки в yaml-файле через viper. Ключи viper приводит к нижнему регистру.
type FileStore struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{v: newViper(path), path: path}
	if _, err := os.Stat(path); err == nil {
		if err := s.v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read prefs %s", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat prefs %s", path)
	}
	return s, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	return v
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.v.IsSet(key) {
		return "", false, nil
	}
	v := s.v.GetString(key)
	return v, v != "", nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(key, value)
	return s.flush()
}

// Delete: у viper нет unset, поэтому пересобираем конфиг без ключей.
func (s *FileStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := s.v.AllSettings()
	for _, k := range keys {
		delete(settings, strings.ToLower(k))
	}
	nv := newViper(s.path)
	if err := nv.MergeConfigMap(settings); err != nil {
		return errors.Wrap(err, "rebuild prefs")
	}
	s.v = nv
	return s.flush()
}

func (s *FileStore) flush() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "prefs dir")
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return errors.Wrapf(err, "write prefs %s", s.path)
	}
	return nil
}
