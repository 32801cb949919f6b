package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/livrasand/gitdeposit/internal/config"
	"github.com/livrasand/gitdeposit/internal/deposit"
	"github.com/livrasand/gitdeposit/internal/git"
	handler "github.com/livrasand/gitdeposit/internal/http"
	"github.com/livrasand/gitdeposit/internal/notify"
	"github.com/livrasand/gitdeposit/internal/utils"
)

func main() {
	// Load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Initialize logger
	utils.InitLogger(cfg)
	defer utils.Sync()

	st, err := deposit.OpenStore(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if err := utils.EnsureDir(cfg.DepositRoot); err != nil {
		log.Fatal(err)
	}

	server := handler.NewServer(cfg, st, git.NewRunner(cfg.GitBinary), notify.NewNotifier(cfg.NtfyBaseURL, cfg.NtfyTopic))
	router := handler.SetupRouter(server)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		utils.Log("Starting server on %s (deposit %s, %s store)", srv.Addr, cfg.DepositRoot, cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	utils.Log("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.LogError("Shutdown: %v", err)
	}
}
