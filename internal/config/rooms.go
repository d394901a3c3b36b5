package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"classbook/internal/model"

	"gopkg.in/yaml.v3"
)

// RoomsConfig is the root of rooms.yaml.
type RoomsConfig struct {
	Rooms []model.Room `yaml:"rooms"`
}

// LoadRooms reads the room catalog. A missing file yields the built-in classrooms.
func LoadRooms(path string) ([]model.Room, error) {
	if path == "" {
		path = "configs/rooms.yaml"
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return append([]model.Room(nil), model.DefaultRooms...), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rooms config: %w", err)
	}

	var cfg RoomsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rooms config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate rooms config: %w", err)
	}
	return cfg.Rooms, nil
}

// Validate checks the catalog for errors.
func (c *RoomsConfig) Validate() error {
	if len(c.Rooms) == 0 {
		return fmt.Errorf("no rooms defined")
	}

	ids := make(map[string]bool, len(c.Rooms))
	names := make(map[string]bool, len(c.Rooms))
	for i, r := range c.Rooms {
		id := strings.TrimSpace(r.ID)
		name := strings.TrimSpace(r.Name)
		if id == "" {
			return fmt.Errorf("room %d: id is required", i)
		}
		if name == "" {
			return fmt.Errorf("room %s: name is required", id)
		}
		if ids[id] {
			return fmt.Errorf("duplicate room id: %s", id)
		}
		if names[name] {
			return fmt.Errorf("duplicate room name: %s", name)
		}
		if r.Capacity < 0 {
			return fmt.Errorf("room %s: capacity must not be negative", id)
		}
		ids[id] = true
		names[name] = true
		c.Rooms[i].ID = id
		c.Rooms[i].Name = name
	}
	return nil
}
