package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zenchat/zenchat/pkg/server"
	"github.com/zenchat/zenchat/pkg/server/api"
)

var (
	addr         = flag.String("addr", ":1337", "Chat protocol listen address")
	transferAddr = flag.String("transfer-addr", ":1338", "File transfer listen address")
	apiAddr      = flag.String("api-addr", "", "Status API listen address (empty disables it)")
	fixedSecret  = flag.Int("fixed-secret", 0, "Pin the number game secret (0 = random per round)")
)

func main() {
	flag.Parse()

	cfg := server.DefaultConfig()
	cfg.Addr = *addr
	cfg.TransferAddr = *transferAddr
	cfg.FixedSecret = *fixedSecret

	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	var statusAPI *api.Server
	if *apiAddr != "" {
		statusAPI = api.NewServer(srv, *apiAddr)
		statusAPI.Start()
		log.Printf("Status API listening on %s", *apiAddr)
	}

	if *fixedSecret != 0 {
		log.Printf("Number game secret pinned to %d", *fixedSecret)
	}

	waitForShutdown(srv, statusAPI)
}

func waitForShutdown(srv *server.Server, statusAPI *api.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan

	log.Println("Shutting down gracefully...")

	if statusAPI != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := statusAPI.Stop(ctx); err != nil {
			log.Printf("Error stopping status API: %v", err)
		}
	}

	if err := srv.Stop(); err != nil {
		log.Printf("Error stopping server: %v", err)
	}

	log.Println("Server stopped")
}
