package plugins

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/linht/tuner-manager/r82xx"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// SendSuccess sends a successful response
func SendSuccess(c *fiber.Ctx, data interface{}, message string) error {
	return c.JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// SendError sends an error response
func SendError(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// SendErrorMessage sends an error response with a custom message
func SendErrorMessage(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Error:   message,
	})
}

// SendTunerError picks the status code from the driver error
func SendTunerError(c *fiber.Ctx, err error) error {
	return SendError(c, tunerErrorStatus(err), err)
}

func tunerErrorStatus(err error) int {
	switch {
	case errors.Is(err, r82xx.ErrInvalidConfig),
		errors.Is(err, r82xx.ErrOverrideAddress),
		errors.Is(err, r82xx.ErrNotCached),
		errors.Is(err, r82xx.ErrPLLOutOfRange):
		return 400
	case errors.Is(err, ErrNotInitialized), errors.Is(err, r82xx.ErrXtalCheckFailed):
		return 409
	case errors.Is(err, ErrNoBiasTee):
		return 503
	default:
		return 500
	}
}
