package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"TreasurySweep/sdk/go/treasurysweep"
)

// Minimal SDK walkthrough: check the sweeper is up, then print its counters.
func main() {
	baseURL := os.Getenv("SWEEPD_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	client, err := treasurysweep.NewClient(baseURL, nil)
	if err != nil {
		log.Fatalf("create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		log.Fatalf("health check: %v", err)
	}
	fmt.Printf("sweeper status: %s\n", health.Status)

	stats, err := client.SweepStats(ctx)
	if err != nil {
		log.Fatalf("fetch stats: %v", err)
	}
	fmt.Printf("iterations: %d (ticks skipped: %d)\n", stats.Iterations, stats.TicksSkipped)
	fmt.Printf("attempts: %d succeeded, %d skipped, %d failed of %d\n",
		stats.Succeeded, stats.Skipped, stats.Failed, stats.Attempted)
	fmt.Printf("total swept: %s\n", stats.SweptTotal)
}
