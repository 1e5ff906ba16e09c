package handlers

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/relia/scheduler/internal/core/ports"
	"github.com/relia/scheduler/internal/core/services"
	"github.com/relia/scheduler/internal/domain"
	"github.com/relia/scheduler/internal/infrastructure/logger"
	"github.com/relia/scheduler/internal/transport/http/dto"
	"gopkg.in/yaml.v3"
)

// UserHandler serves the backend-facing task routes: submission, status
// polling, deletion and the per-author error listing.
type UserHandler struct {
	registry     ports.TaskRegistry
	liveness     ports.LivenessMonitor
	errorLog     ports.ErrorLog
	logger       *logger.Logger
	metadataFile string
}

func NewUserHandler(registry ports.TaskRegistry, liveness ports.LivenessMonitor, errorLog ports.ErrorLog, log *logger.Logger, metadataFile string) *UserHandler {
	return &UserHandler{
		registry:     registry,
		liveness:     liveness,
		errorLog:     errorLog,
		logger:       log,
		metadataFile: metadataFile,
	}
}

func (h *UserHandler) CreateTask(c *fiber.Ctx) error {
	var req dto.CreateTaskRequest
	// Lenient on purpose: a garbled body becomes an empty submission, which
	// the registry rejects with the proper validation message.
	_ = json.Unmarshal(c.Body(), &req)

	input := ports.CreateTaskInput{
		Author:    req.UserID,
		SessionID: req.SessionID,
		Priority:  req.ParsedPriority(),
		Files:     toTaskFiles(req.GrcFiles),
	}

	taskID, err := h.registry.Create(c.Context(), input)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			h.logger.Warnw("task_create_rejected", "author", req.UserID, "reason", verr.Message)
			return c.JSON(dto.CreateTaskResponse{Success: false, Message: verr.Message})
		}
		h.logger.Errorw("task_create_failed", "author", req.UserID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.CreateTaskResponse{
			Success: false, Message: "internal error",
		})
	}

	status := string(domain.StatusQueued)
	return c.JSON(dto.CreateTaskResponse{
		Success:        true,
		TaskIdentifier: &taskID,
		Status:         &status,
		Message:        "Loading successful",
	})
}

func (h *UserHandler) GetTask(c *fiber.Ctx) error {
	taskID := c.Params("task_id")

	task, err := h.registry.Get(c.Context(), taskID)
	if err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			if rerr := h.errorLog.Record(c.Context(), taskID, "No author", "Task identifier does not exist"); rerr != nil {
				h.logger.Errorw("error_record_failed", "task", taskID, "error", rerr)
			}
			return c.JSON(dto.UserTaskResponse{Success: false, Message: "Task identifier does not exist"})
		}
		h.logger.Errorw("task_get_failed", "task", taskID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.UserTaskResponse{
			Success: false, Message: "internal error",
		})
	}

	if err := h.liveness.Touch(c.Context(), taskID); err != nil {
		h.logger.Warnw("task_touch_failed", "task", taskID, "error", err)
	}

	status := string(task.Status)
	return c.JSON(dto.UserTaskResponse{
		Success:             true,
		Status:              &status,
		AssignedInstance:    &task.DeviceAssigned,
		CameraURL:           h.cameraURL(task.DeviceAssigned),
		Receiver:            &task.ReceiverAssigned,
		Transmitter:         &task.TransmitterAssigned,
		ReceiverFilename:    &task.Receiver.Filename,
		TransmitterFilename: &task.Transmitter.Filename,
		Message:             "Success",
	})
}

func (h *UserHandler) DeleteTask(c *fiber.Ctx) error {
	taskID := c.Params("task_id")

	var req dto.DeleteTaskRequest
	_ = json.Unmarshal(c.Body(), &req)
	if req.Action != "delete" {
		return c.JSON(dto.SimpleResponse{Success: false, Message: "Unknown action"})
	}

	if err := h.registry.Delete(c.Context(), taskID, req.UserID); err != nil {
		switch {
		case errors.Is(err, services.ErrTaskNotFound):
			return c.JSON(dto.SimpleResponse{Success: false, Message: "Invalid task identifier"})
		case errors.Is(err, services.ErrNotTaskAuthor):
			return c.JSON(dto.SimpleResponse{Success: false, Message: "Task belongs to another user"})
		case errors.Is(err, services.ErrTaskFinished):
			return c.JSON(dto.SimpleResponse{Success: false, Message: "Task already finished"})
		}
		h.logger.Errorw("task_delete_failed", "task", taskID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.SimpleResponse{
			Success: false, Message: "internal error",
		})
	}

	return c.JSON(dto.SimpleResponse{Success: true, Message: "Successfully deleted"})
}

func (h *UserHandler) GetErrors(c *fiber.Ctx) error {
	author := c.Params("user_id")

	entries, err := h.errorLog.Recent(c.Context(), author, 5)
	if err != nil {
		h.logger.Errorw("errors_list_failed", "author", author, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorsResponse{Success: false})
	}

	ids := make([]string, 0, len(entries))
	messages := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.TaskID)
		messages = append(messages, e.Message)
	}
	return c.JSON(dto.ErrorsResponse{Success: true, IDs: ids, Errors: messages})
}

// cameraURL looks the assigned device up in the optional metadata file so
// the frontend can show the lab webcam next to the experiment.
func (h *UserHandler) cameraURL(deviceBase string) *string {
	if deviceBase == "" || deviceBase == domain.Null || h.metadataFile == "" {
		return nil
	}
	raw, err := os.ReadFile(h.metadataFile)
	if err != nil {
		return nil
	}
	var metadata map[string]struct {
		Camera string `yaml:"camera"`
	}
	if err := yaml.Unmarshal(raw, &metadata); err != nil {
		h.logger.Warnw("device_metadata_unparsable", "file", h.metadataFile, "error", err)
		return nil
	}
	entry, ok := metadata[deviceBase]
	if !ok || entry.Camera == "" {
		return nil
	}
	return &entry.Camera
}

func toTaskFiles(files *dto.GrcFiles) *ports.TaskFiles {
	if files == nil {
		return nil
	}
	out := &ports.TaskFiles{}
	if files.Receiver != nil {
		out.Receiver = &domain.Payload{
			Filename: files.Receiver.Filename,
			Content:  files.Receiver.Content,
			Type:     files.Receiver.Type,
		}
	}
	if files.Transmitter != nil {
		out.Transmitter = &domain.Payload{
			Filename: files.Transmitter.Filename,
			Content:  files.Transmitter.Content,
			Type:     files.Transmitter.Type,
		}
	}
	return out
}
