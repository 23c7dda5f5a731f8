package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	config "taskpact.com/taskpact/internal/configs"
	"taskpact.com/taskpact/internal/constants"
	httpapi "taskpact.com/taskpact/internal/http"
	"taskpact.com/taskpact/internal/lease"
	"taskpact.com/taskpact/internal/notify"
	"taskpact.com/taskpact/internal/realtime"
	repository "taskpact.com/taskpact/internal/repositories"
	"taskpact.com/taskpact/internal/services"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP API server",
	Long:  "Starts the task accountability HTTP API, the push event stream and the deadline scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			log.Println(".env file not found, using environment variables")
		}

		cfg := config.Load()

		database := config.NewDatabase(cfg.DatabaseDSN)
		taskRepo := repository.NewTaskRepository(database)

		registry := realtime.NewRegistry()
		notifier := notify.NewNotifier(registry, cfg.NotifyWorkers, cfg.NotifyQueueSize)

		directory := realtime.NewMemoryDirectory()
		registry.SetPresenceHandler(func(userID string, online bool) {
			watchers := directory.WatchersOf(userID)
			if len(watchers) == 0 {
				return
			}
			notifier.Publish(notify.Message{
				Type:    constants.MessagePresenceChanged,
				Payload: map[string]interface{}{"user_id": userID, "online": online},
			}, watchers...)
		})

		// A single instance gets an in-process lease; with redis configured
		// the lease also keeps multiple instances from sweeping concurrently.
		var scanLease lease.Lease = lease.NewLocalLease()
		if cfg.RedisEnabled {
			redisClient := config.NewRedisClient(cfg.RedisAddr)
			defer redisClient.Close()
			scanLease = lease.NewRedisLease(
				redisClient,
				cfg.ScanLeaseKey,
				time.Duration(cfg.ScanLeaseTTLSeconds)*time.Second,
			)
		}

		taskService := services.NewTaskService(taskRepo, notifier, services.SystemClock())
		scheduler := services.NewSchedulerService(
			taskRepo,
			taskService,
			scanLease,
			services.SystemClock(),
			time.Duration(cfg.ScanIntervalSeconds)*time.Second,
			cfg.ScanBatchSize,
		)
		scheduler.Start()

		e := echo.New()
		handler := httpapi.NewHandler(taskService, registry)
		httpapi.Register(e, handler, cfg.RateLimit)

		go func() {
			log.Printf("HTTP server listening on %s", cfg.AppURL)
			if err := e.Start(cfg.AppURL); err != nil {
				log.Printf("server stopped: %v", err)
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		ctx, cancel := context.WithTimeout(
			context.Background(),
			time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second,
		)
		defer cancel()

		_ = e.Shutdown(ctx)
		scheduler.Shutdown(ctx)
		notifier.Shutdown(ctx)
		registry.Shutdown()

		log.Println("server, scheduler and notifier shut down gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
