package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

// RemoteRegistry holds the optional settings of a registry that mirrors remote storage.
type RemoteRegistry struct {
	Enabled bool
	Token   string
	// Host overrides the public base URL when set.
	Host string
}

// LoadRemoteRegistry reads the ini file at path. A missing file means a local registry and is not an error.
func LoadRemoteRegistry(path string) (RemoteRegistry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return RemoteRegistry{}, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return RemoteRegistry{}, nil
		}
		return RemoteRegistry{}, fmt.Errorf("stat remote registry config failed: %w", err)
	}

	file, err := ini.Load(path)
	if err != nil {
		return RemoteRegistry{}, fmt.Errorf("load remote registry config failed: %w", err)
	}

	section := file.Section("remote")
	return RemoteRegistry{
		Enabled: true,
		Token:   strings.TrimSpace(section.Key("token").String()),
		Host:    strings.TrimSpace(section.Key("host").String()),
	}, nil
}
