package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/relia/scheduler/internal/core/ports"
	"github.com/relia/scheduler/internal/domain"
	"github.com/relia/scheduler/internal/transport/http/dto"
)

const (
	HeaderDevice   = "relia-device"
	HeaderPassword = "relia-password"
	HeaderSecret   = "relia-secret"

	deviceLocal = "device_identity"
)

// DeviceAuth authenticates the device header pair and stashes the parsed
// identity in request locals. The role suffix is parsed exactly once here;
// everything below the transport layer sees a typed identity.
func DeviceAuth(vault ports.CredentialVault) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := vault.VerifyDevice(c.Context(), c.Get(HeaderDevice), c.Get(HeaderPassword))
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.SimpleResponse{
				Success: false,
				Message: "Invalid device credentials",
			})
		}
		c.Locals(deviceLocal, identity)
		return c.Next()
	}
}

// Device returns the identity DeviceAuth stored for this request.
func Device(c *fiber.Ctx) domain.DeviceIdentity {
	identity, _ := c.Locals(deviceLocal).(domain.DeviceIdentity)
	return identity
}

// BackendAuth gates backend-only routes on the shared secret header.
func BackendAuth(vault ports.CredentialVault) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !vault.VerifyBackend(c.Get(HeaderSecret)) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.SimpleResponse{
				Success: false,
				Message: "Invalid secret",
			})
		}
		return c.Next()
	}
}
