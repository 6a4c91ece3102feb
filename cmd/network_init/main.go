// Command network_init validates a TOML topology file without starting a
// mesh: it reports the first violation config.Validate finds and exits
// non-zero, or prints a summary of the valid file. Grounded in
// original_source/codice/network_init/src/main.rs, which loaded and
// deserialized network_config.toml ahead of spawning threads per node — this
// binary is the standalone validation half of that flow, split out because
// cmd/meshsim now owns the actual spawn.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dronemesh/overlay/config"
)

func main() {
	configPath := flag.String("config", "topology.toml", "path to the TOML topology file to validate")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "network_init: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("network_init: %s is valid — %d drones, %d clients, %d servers\n",
		*configPath, len(cfg.Drone), len(cfg.Client), len(cfg.Server))
}
