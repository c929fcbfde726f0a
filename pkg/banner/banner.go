package banner

import (
	"fmt"

	"rbqbroker/pkg/config"
)

const banner = `
██████╗ ██████╗  ██████╗  ██╗
██╔══██╗██╔══██╗██╔═══██╗███║
██████╔╝██████╔╝██║   ██║╚██║
██╔══██╗██╔══██╗██║▄▄ ██║ ██║
██║  ██║██████╔╝╚██████╔╝ ██║
╚═╝  ╚═╝╚═════╝  ╚══▀▀═╝  ╚═╝
`

// Print renders the startup banner and a summary of the effective
// configuration: bind address, shard layout, pool sizing, and data
// directory, plus a quick production-readiness checklist.
func Print(cfg *config.Config, source, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:       %s\n", cfg.Addr())
	fmt.Printf("Data dir:     %s\n", cfg.Server.DataDirectory)
	fmt.Printf("Shards:       %d\n", cfg.Server.ShardCount)
	fmt.Printf("Pool size:    %d\n", cfg.Server.PoolSize)
	fmt.Printf("Max submit Q: %d\n", cfg.Server.MaxSubmissionQueue)
	fmt.Printf("Checkpoint:   each time push calls exceed %d\n", cfg.Queue.CheckpointThreshold)
	if version != "" {
		fmt.Printf("Version:      %s\n", version)
	}
	if source != "" {
		fmt.Printf("Config from:  %s\n", source)
	}

	if cfg.Admin.Enabled {
		fmt.Println("\n== Admin surface ==============================================")
		fmt.Printf("Listen:    %s (%s)\n", cfg.Admin.Address, cfg.Admin.Transport)
		fmt.Println("GET /healthz  - liveness check")
		fmt.Println("GET /metrics  - Prometheus metrics")
		fmt.Println("GET /docs/    - swagger UI (nethttp transport only)")
	}

	fmt.Println("\n== Wire protocol ===============================================")
	fmt.Printf("curl is not a client for RBQ1 — speak the framed binary protocol against %s\n", cfg.Addr())

	fmt.Println("\n== Production? =================================================")
	if cfg.Server.ShardCount < 2 {
		fmt.Println("- Shard count: 1 (no parallelism across shards; consider raising shard_count)")
	} else {
		fmt.Printf("- Shard count: OK (%d)\n", cfg.Server.ShardCount)
	}
	if cfg.Queue.CheckpointCron != "" {
		fmt.Printf("- Checkpoint cron: %s\n", cfg.Queue.CheckpointCron)
	} else {
		fmt.Println("- Checkpoint cron: disabled (counter-based checkpointing only)")
	}
	fmt.Println()
}
