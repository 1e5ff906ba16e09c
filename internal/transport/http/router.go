package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/relia/scheduler/internal/config"
	"github.com/relia/scheduler/internal/core/ports"
	"github.com/relia/scheduler/internal/core/services"
	"github.com/relia/scheduler/internal/infrastructure/logger"
	"github.com/relia/scheduler/internal/infrastructure/store"
	"github.com/relia/scheduler/internal/transport/http/handlers"
	httpmw "github.com/relia/scheduler/internal/transport/http/middleware"
)

type RouterConfig struct {
	Store  ports.Store
	Logger *logger.Logger
	Config *config.Config
}

func SetupRoutes(app *fiber.App, cfg RouterConfig) {
	sched := cfg.Config.Scheduler
	keys := store.NewKeys(sched.BaseKey)

	// Core services
	errorLog := services.NewErrorLogService(cfg.Store, keys, cfg.Logger)
	queue := services.NewQueueService(cfg.Store, keys)
	liveness := services.NewLivenessService(cfg.Store, keys, cfg.Logger, sched.MaxTimeWithoutPolling)

	assignment := services.NewAssignmentService(services.AssignmentServiceConfig{
		Store:          cfg.Store,
		Keys:           keys,
		Queue:          queue,
		Liveness:       liveness,
		ErrorLog:       errorLog,
		Logger:         cfg.Logger,
		MaxTimeRunning: sched.MaxTimeRunning,
		PollInterval:   sched.PollInterval,
		MaxWait:        sched.MaxWait,
	})
	liveness.SetCompleter(assignment)

	registry := services.NewRegistryService(services.RegistryServiceConfig{
		Store:           cfg.Store,
		Keys:            keys,
		Queue:           queue,
		ErrorLog:        errorLog,
		Logger:          cfg.Logger,
		MaxPriority:     sched.MaxPriority,
		DefaultPriority: sched.DefaultPriority,
	})

	vault := services.NewVaultService(services.VaultServiceConfig{
		Store:        cfg.Store,
		Keys:         keys,
		BackendToken: sched.BackendToken,
		Logger:       cfg.Logger,
	})

	// Handlers
	userHandler := handlers.NewUserHandler(registry, liveness, errorLog, cfg.Logger, sched.DeviceMetadataFile)
	deviceHandler := handlers.NewDeviceHandler(assignment, registry, liveness, errorLog, cfg.Logger)

	scheduler := app.Group("/scheduler")

	// Backend/user routes
	user := scheduler.Group("/user")
	user.Post("/tasks/", httpmw.BackendAuth(vault), userHandler.CreateTask)
	user.Get("/tasks/:task_id", userHandler.GetTask)
	user.Post("/tasks/:task_id", userHandler.DeleteTask)
	user.Get("/error-messages/:user_id", httpmw.BackendAuth(vault), userHandler.GetErrors)

	// Device routes
	devices := scheduler.Group("/devices")
	devices.Get("/available", deviceHandler.AvailableDevices)
	devices.Get("/tasks/receiver", httpmw.DeviceAuth(vault), deviceHandler.AssignReceiver)
	devices.Get("/tasks/transmitter", httpmw.DeviceAuth(vault), deviceHandler.AssignTransmitter)
	devices.Post("/tasks/error_message/:task_id", httpmw.DeviceAuth(vault), deviceHandler.ReportError)
	devices.Post("/tasks/:role/:task_id", httpmw.DeviceAuth(vault), deviceHandler.CompleteTask)
	devices.Get("/tasks/:role/:task_id", httpmw.DeviceAuth(vault), deviceHandler.GetTaskStatus)
}
