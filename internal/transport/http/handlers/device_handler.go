package handlers

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/relia/scheduler/internal/core/ports"
	"github.com/relia/scheduler/internal/core/services"
	"github.com/relia/scheduler/internal/domain"
	"github.com/relia/scheduler/internal/infrastructure/logger"
	"github.com/relia/scheduler/internal/transport/http/dto"
	"github.com/relia/scheduler/internal/transport/http/middleware"
)

const defaultWaitSeconds = 25

// DeviceHandler serves the device-facing routes: the two long-poll
// assignment endpoints, completion and error reports, and the device
// observability listing.
type DeviceHandler struct {
	assignment ports.AssignmentCoordinator
	registry   ports.TaskRegistry
	liveness   ports.LivenessMonitor
	errorLog   ports.ErrorLog
	logger     *logger.Logger
}

func NewDeviceHandler(assignment ports.AssignmentCoordinator, registry ports.TaskRegistry, liveness ports.LivenessMonitor, errorLog ports.ErrorLog, log *logger.Logger) *DeviceHandler {
	return &DeviceHandler{
		assignment: assignment,
		registry:   registry,
		liveness:   liveness,
		errorLog:   errorLog,
		logger:     log,
	}
}

func (h *DeviceHandler) AssignReceiver(c *fiber.Ctx) error {
	device := middleware.Device(c)
	result, err := h.assignment.RequestReceiver(c.Context(), device, waitSeconds(c))
	return h.assignmentResponse(c, device, result, err)
}

func (h *DeviceHandler) AssignTransmitter(c *fiber.Ctx) error {
	device := middleware.Device(c)
	result, err := h.assignment.RequestTransmitter(c.Context(), device, waitSeconds(c))
	return h.assignmentResponse(c, device, result, err)
}

func (h *DeviceHandler) assignmentResponse(c *fiber.Ctx, device domain.DeviceIdentity, result *ports.AssignmentResult, err error) error {
	if err != nil {
		if errors.Is(err, services.ErrDeviceInUse) {
			return c.JSON(dto.AssignmentResponse{Success: false, Message: "Device in use"})
		}
		h.logger.Errorw("assignment_failed", "device", device.ID(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.AssignmentResponse{
			Success: false, Message: "internal error",
		})
	}
	if result == nil {
		return c.JSON(dto.AssignmentResponse{Success: true, Message: "No tasks in queue"})
	}
	return c.JSON(dto.AssignmentResponse{
		Success:           true,
		File:              &result.Filename,
		FileContent:       &result.Content,
		Filetype:          &result.Filetype,
		TaskIdentifier:    &result.TaskID,
		SessionIdentifier: &result.SessionID,
		MaxTime:           &result.MaxTime,
		Message:           "Successfully assigned",
	})
}

func (h *DeviceHandler) CompleteTask(c *fiber.Ctx) error {
	device := middleware.Device(c)
	taskID := c.Params("task_id")

	role, err := domain.ParseRole(c.Params("role"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.CompletionResponse{
			Success: false, Message: "Unknown device role",
		})
	}

	status, err := h.assignment.Complete(c.Context(), device.Base, role, taskID)
	if err != nil {
		h.logger.Errorw("completion_failed", "task", taskID, "device", device.ID(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.CompletionResponse{
			Success: false, Message: "internal error",
		})
	}
	return c.JSON(dto.CompletionResponse{Success: true, Status: string(status), Message: "Completed"})
}

func (h *DeviceHandler) GetTaskStatus(c *fiber.Ctx) error {
	device := middleware.Device(c)
	taskID := c.Params("task_id")

	if _, err := h.registry.Get(c.Context(), taskID); err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			if rerr := h.errorLog.Record(c.Context(), taskID, "None", "Task identifier does not exist"); rerr != nil {
				h.logger.Errorw("error_record_failed", "task", taskID, "error", rerr)
			}
			return c.JSON(dto.DeviceTaskStatusResponse{Success: false, Message: "Task identifier does not exist"})
		}
		h.logger.Errorw("task_get_failed", "task", taskID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.DeviceTaskStatusResponse{
			Success: false, Message: "internal error",
		})
	}

	if _, err := h.liveness.StopIfInactive(c.Context(), device.Base, taskID); err != nil {
		h.logger.Warnw("liveness_check_failed", "task", taskID, "error", err)
	}

	// Re-read: the liveness check may just have force-completed the task.
	task, err := h.registry.Get(c.Context(), taskID)
	if err != nil {
		h.logger.Errorw("task_get_failed", "task", taskID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.DeviceTaskStatusResponse{
			Success: false, Message: "internal error",
		})
	}

	status := string(task.Status)
	return c.JSON(dto.DeviceTaskStatusResponse{
		Success:     true,
		Status:      &status,
		Receiver:    &task.ReceiverAssigned,
		Transmitter: &task.TransmitterAssigned,
		SessionID:   &task.SessionID,
		Message:     "Success",
	})
}

func (h *DeviceHandler) ReportError(c *fiber.Ctx) error {
	device := middleware.Device(c)
	taskID := c.Params("task_id")

	var req dto.DeviceErrorRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.SimpleResponse{
			Success: false, Message: "invalid request body",
		})
	}

	if err := h.assignment.ReportError(c.Context(), taskID, req.ErrorMessage, req.ErrorTime); err != nil {
		h.logger.Errorw("error_report_failed", "task", taskID, "device", device.ID(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.SimpleResponse{
			Success: false, Message: "internal error",
		})
	}
	h.logger.Infow("device_error_reported", "task", taskID, "device", device.ID(), "message", req.ErrorMessage)
	return c.JSON(dto.SimpleResponse{Success: true, Message: "Success"})
}

func (h *DeviceHandler) AvailableDevices(c *fiber.Ctx) error {
	devices, err := h.assignment.AvailableDevices(c.Context())
	if err != nil {
		h.logger.Errorw("devices_list_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.SimpleResponse{
			Success: false, Message: "internal error",
		})
	}
	return c.JSON(fiber.Map{"success": true, "device_data": devices})
}

func waitSeconds(c *fiber.Ctx) int {
	raw := c.Query("max_seconds")
	if raw == "" {
		return defaultWaitSeconds
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return defaultWaitSeconds
	}
	return seconds
}
