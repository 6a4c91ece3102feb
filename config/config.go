// Package config loads and validates the topology configuration file
// (spec.md §6 "Topology configuration file"): the bootstrap collaborator's
// TOML description of drones, clients, and servers, turned into an
// already-validated record the core can trust without re-checking.
//
// Grounded in original_source/codice/network_init/src/{config,validation}.rs,
// adapted from serde/Deserialize structs plus a free validate_config
// function into the teacher's layered Config-struct idiom (device/room.ServerConfig,
// transport/mqtt.Config).
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/dronemesh/overlay/core"
)

// DroneConfig describes one drone and its initial neighbor set (spec.md §6
// "drone ... {id, neighbors, pdr?}").
type DroneConfig struct {
	ID        core.NodeID   `toml:"id"`
	Neighbors []core.NodeID `toml:"neighbors"`
	PDR       float64       `toml:"pdr"`
}

// ClientConfig describes one client and the 1-2 drones it attaches to.
type ClientConfig struct {
	ID        core.NodeID   `toml:"id"`
	Neighbors []core.NodeID `toml:"neighbors"`
}

// ServerConfig describes one server and the >=2 drones it attaches to.
type ServerConfig struct {
	ID        core.NodeID   `toml:"id"`
	Kind      string        `toml:"kind"` // "text", "media", or "chat"
	Neighbors []core.NodeID `toml:"neighbors"`
}

// NetworkConfig is the parsed, not-yet-validated topology file (spec.md §6):
// three sections, drone/client/server, mirroring network_init's NetworkConfig.
type NetworkConfig struct {
	Drone  []DroneConfig  `toml:"drone"`
	Client []ClientConfig `toml:"client"`
	Server []ServerConfig `toml:"server"`
}

// Load parses a TOML topology file and validates it, returning an error
// describing the first violation found (spec.md §6 validation rules).
func Load(path string) (*NetworkConfig, error) {
	var cfg NetworkConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
