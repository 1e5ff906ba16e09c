package dto

import (
	"strconv"
	"strings"
)

type GrcFile struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Type     string `json:"type"`
}

type GrcFiles struct {
	Receiver    *GrcFile `json:"receiver"`
	Transmitter *GrcFile `json:"transmitter"`
}

type CreateTaskRequest struct {
	GrcFiles  *GrcFiles `json:"grc_files"`
	Priority  any       `json:"priority"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
}

// ParsedPriority returns the submitted priority, or nil when it is missing
// or unparsable; the registry substitutes the configured default then.
// Backends have sent priorities both as numbers and as strings.
func (r *CreateTaskRequest) ParsedPriority() *int {
	switch v := r.Priority.(type) {
	case float64:
		p := int(v)
		return &p
	case string:
		p, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		return &p
	}
	return nil
}

type CreateTaskResponse struct {
	Success        bool    `json:"success"`
	TaskIdentifier *string `json:"taskIdentifier"`
	Status         *string `json:"status"`
	Message        string  `json:"message"`
}

type UserTaskResponse struct {
	Success             bool    `json:"success"`
	Status              *string `json:"status"`
	AssignedInstance    *string `json:"assignedInstance"`
	CameraURL           *string `json:"cameraUrl"`
	Receiver            *string `json:"receiver"`
	Transmitter         *string `json:"transmitter"`
	ReceiverFilename    *string `json:"receiverFilename"`
	TransmitterFilename *string `json:"transmitterFilename"`
	Message             string  `json:"message"`
}

type DeleteTaskRequest struct {
	Action string `json:"action"`
	UserID string `json:"user_id"`
}

type SimpleResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type AssignmentResponse struct {
	Success           bool     `json:"success"`
	File              *string  `json:"file"`
	FileContent       *string  `json:"fileContent"`
	Filetype          *string  `json:"filetype,omitempty"`
	TaskIdentifier    *string  `json:"taskIdentifier"`
	SessionIdentifier *string  `json:"sessionIdentifier"`
	MaxTime           *float64 `json:"maxTime,omitempty"`
	Message           string   `json:"message"`
}

type CompletionResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type DeviceTaskStatusResponse struct {
	Success     bool    `json:"success"`
	Status      *string `json:"status"`
	Receiver    *string `json:"receiver"`
	Transmitter *string `json:"transmitter"`
	SessionID   *string `json:"session_id"`
	Message     string  `json:"message"`
}

type ErrorsResponse struct {
	Success bool     `json:"success"`
	IDs     []string `json:"ids"`
	Errors  []string `json:"errors"`
}

type DeviceErrorRequest struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorTime    string `json:"errorTime"`
}
