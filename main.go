package main

import (
	"context"
	"fmt"
	"os"
	"time"

	auction "auction-house/internal/auctionService"
	"auction-house/internal/broadcast"
	"auction-house/internal/closer"
	"auction-house/internal/repository"
	"auction-house/internal/server"
	"auction-house/utils"
)

func main() {
	repo, err := buildStore()
	if err != nil {
		utils.Fatal("failed to initialize store", map[string]any{"error": err.Error()})
	}

	hub := broadcast.NewHub()
	pub := buildPublisher(hub)

	auctionSvc := auction.NewAuctionService(repo, pub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweep := closer.New(auctionSvc, sweepPeriod())
	go sweep.Run(ctx)

	router := server.SetupRouter(auctionSvc, hub)

	port := getPort()
	fmt.Printf("Starting auction server on %s...\n", port)
	if err := router.Run(port); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
}

// buildStore picks the Postgres store when DATABASE_URL is set and falls
// back to the in-memory store otherwise
func buildStore() (repository.AuctionStore, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		utils.Info("using in-memory store", nil)
		return repository.NewMemoryRepo(), nil
	}

	db, err := repository.OpenDB(dsn)
	if err != nil {
		return nil, err
	}
	utils.Info("using postgres store", nil)
	return repository.NewPostgresRepo(db), nil
}

// buildPublisher fans events out to Redis as well when REDIS_ADDR is set
func buildPublisher(hub *broadcast.Hub) broadcast.Publisher {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return hub
	}
	utils.Info("publishing events to redis", map[string]any{"addr": addr})
	return broadcast.Multi{hub, broadcast.NewRedisPublisher(addr)}
}

// sweepPeriod returns the closer period from env or the default
func sweepPeriod() time.Duration {
	if p := os.Getenv("CLOSER_PERIOD"); p != "" {
		if d, err := time.ParseDuration(p); err == nil && d > 0 {
			return d
		}
		utils.Warn("invalid CLOSER_PERIOD, using default", map[string]any{"value": p})
	}
	return closer.DefaultPeriod
}

// getPort returns the server port from env or defaults to ":8080"
func getPort() string {
	if p := os.Getenv("PORT"); p != "" {
		return fmt.Sprintf(":%s", p)
	}
	return ":8080"
}
