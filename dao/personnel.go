package dao

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/FAIRDataPipeline/data-registry/graph"

	"gopkg.in/yaml.v3"
)

type PersonnelRecord struct {
	FullName string   `yaml:"fullname"`
	Email    string   `yaml:"email"`
	Orgs     []string `yaml:"orgs"`
}

type personnelFile struct {
	Users map[string]PersonnelRecord `yaml:"users"`
}

// Personnel resolves usernames against the authorised-users YAML file.
// The file is re-read when its modification time changes.
type Personnel struct {
	path string

	mu      sync.RWMutex
	users   map[string]PersonnelRecord
	modTime time.Time
}

// NewPersonnel loads path. A missing file is not an error: every lookup then falls back to UserNotFound.
func NewPersonnel(path string) (*Personnel, error) {
	p := &Personnel{path: strings.TrimSpace(path), users: map[string]PersonnelRecord{}}
	if err := p.reload(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Personnel) reload() error {
	if p.path == "" {
		return nil
	}
	info, err := os.Stat(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			daoLogger().Warn("authorised users file not found", "path", p.path)
			p.mu.Lock()
			p.users = map[string]PersonnelRecord{}
			p.modTime = time.Time{}
			p.mu.Unlock()
			return nil
		}
		return fmt.Errorf("stat authorised users file failed: %w", err)
	}

	p.mu.RLock()
	fresh := info.ModTime().Equal(p.modTime)
	p.mu.RUnlock()
	if fresh {
		return nil
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read authorised users file failed: %w", err)
	}
	var parsed personnelFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse authorised users file failed: %w", err)
	}
	if parsed.Users == nil {
		parsed.Users = map[string]PersonnelRecord{}
	}

	p.mu.Lock()
	p.users = parsed.Users
	p.modTime = info.ModTime()
	p.mu.Unlock()
	return nil
}

// Lookup returns the record for username.
func (p *Personnel) Lookup(username string) (PersonnelRecord, bool) {
	if p == nil {
		return PersonnelRecord{}, false
	}
	if err := p.reload(); err != nil {
		daoLogger().Error("reload authorised users failed", "path", p.path, "error", err)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.users[username]
	return rec, ok
}

// FullName is the record's full name, or graph.UserNotFound.
func (p *Personnel) FullName(username string) string {
	rec, ok := p.Lookup(username)
	if !ok || strings.TrimSpace(rec.FullName) == "" {
		return graph.UserNotFound
	}
	return rec.FullName
}
