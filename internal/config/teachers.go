package config

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// TeachersConfig is the root of teachers.yaml.
type TeachersConfig struct {
	Teachers []string `yaml:"teachers"`
}

// LoadTeachers reads the notification roster. Blank and duplicate entries are dropped.
func LoadTeachers(path string) (*TeachersConfig, error) {
	if path == "" {
		path = "configs/teachers.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read teachers config: %w", err)
	}

	var cfg TeachersConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse teachers config: %w", err)
	}

	seen := make(map[string]bool, len(cfg.Teachers))
	emails := cfg.Teachers[:0]
	for _, e := range cfg.Teachers {
		e = strings.TrimSpace(e)
		key := strings.ToLower(e)
		if e == "" || seen[key] {
			continue
		}
		if !strings.Contains(e, "@") {
			return nil, fmt.Errorf("invalid teacher email: %q", e)
		}
		seen[key] = true
		emails = append(emails, e)
	}
	cfg.Teachers = emails
	return &cfg, nil
}

// Roster is a concurrently replaceable list of teacher emails.
type Roster struct {
	emails atomic.Pointer[[]string]
}

// NewRoster creates a roster holding emails.
func NewRoster(emails []string) *Roster {
	r := &Roster{}
	r.Set(emails)
	return r
}

// Set replaces the roster.
func (r *Roster) Set(emails []string) {
	cp := append([]string(nil), emails...)
	r.emails.Store(&cp)
}

// Emails returns the current roster. Callers must not modify it.
func (r *Roster) Emails() []string {
	p := r.emails.Load()
	if p == nil {
		return nil
	}
	return *p
}
