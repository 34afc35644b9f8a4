package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sqlquest/internal/api"
	"sqlquest/internal/app/sandbox"
	"sqlquest/internal/app/service"
	"sqlquest/internal/app/worker"
	"sqlquest/internal/common/security"
	"sqlquest/internal/domain/repository"
	"sqlquest/internal/platform/config"
	"sqlquest/internal/platform/database"
	"sqlquest/internal/platform/queue"
)

func main() {
	// 1. Load Configuration
	config.Load()
	fmt.Println("Configuration loaded.")

	// 2. Initialize JWT
	security.InitJWT()
	fmt.Println("JWT initialized.")

	// 3. Initialize Database
	database.Connect()
	defer database.Close()
	fmt.Println("Database connected.")

	// 4. Initialize Redis
	queue.ConnectRedis()
	defer queue.CloseRedis()
	fmt.Println("Redis connected.")

	// 5. Initialize Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	challengeRepo := repository.NewPgChallengeRepository(database.DB)
	progressRepo := repository.NewPgProgressRepository(database.DB)
	leaderboardRepo := repository.NewPgLeaderboardRepository(database.DB)

	// 6. Initialize Sandbox Host & Services
	host := sandbox.NewHost(time.Duration(config.AppConfig.SandboxQueryTimeoutMs) * time.Millisecond)

	authService := service.NewAuthService(userRepo)
	userService := service.NewUserService(userRepo)
	challengeService := service.NewChallengeService(challengeRepo, host)
	progressService := service.NewProgressService(progressRepo)
	leaderboardService := service.NewLeaderboardService(leaderboardRepo)
	evaluationService := service.NewEvaluationService(challengeRepo, progressService, userService, host, queue.RDB)

	// 7. Initialize Score Worker (as a goroutine)
	scoreWorker := worker.NewScoreWorker(queue.RDB, leaderboardService)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go scoreWorker.Start(workerCtx)
	fmt.Println("Score worker started.")

	// 8. Initialize Router & HTTP Server
	router := api.NewRouter(authService, challengeService, evaluationService, progressService, leaderboardService)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", config.AppConfig.APIPort, err)
		}
	}()
	log.Println("Server started successfully.")

	<-stop // Wait for interrupt signal

	log.Println("Shutting down server...")
	workerCancel() // Signal worker to stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server and worker stopped gracefully.")
}
