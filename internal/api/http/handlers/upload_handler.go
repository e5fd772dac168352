package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/talent-client/internal/api/dto"
	"github.com/spec-kit/talent-client/internal/auth"
	"github.com/spec-kit/talent-client/internal/backend"
	"github.com/spec-kit/talent-client/internal/observability"
	apperrors "github.com/spec-kit/talent-client/pkg/util/errorutil"
)

// Forwarder relays a raw request to the backend.
type Forwarder interface {
	Forward(ctx context.Context, fr backend.ForwardRequest) (*backend.ForwardResponse, error)
}

// UploadHandler proxies multipart uploads to the backend with the caller's
// own credential.
type UploadHandler struct {
	backend Forwarder
}

// NewUploadHandler constructs handler.
func NewUploadHandler(b Forwarder) *UploadHandler {
	return &UploadHandler{backend: b}
}

// Forward POST /upload/*.
//
// The backend's status code is relayed as is. A JSON body is relayed
// verbatim; any other body is wrapped as {"error": "<raw text>"}.
func (h *UploadHandler) Forward(c *fiber.Ctx) error {
	sub := strings.Trim(c.Params("*"), "/")
	if sub == "" {
		return apperrors.NewValidationError("upload path is required", nil)
	}
	for _, segment := range strings.Split(sub, "/") {
		if segment == ".." || segment == "." {
			return apperrors.NewValidationError("invalid upload path", map[string]any{"path": sub})
		}
	}

	path := "/" + sub
	if query := c.Request().URI().QueryString(); len(query) > 0 {
		path += "?" + string(query)
	}

	token, _ := auth.CredentialFromContext(c)
	resp, err := h.backend.Forward(c.UserContext(), backend.ForwardRequest{
		Method:      c.Method(),
		Path:        path,
		ContentType: c.Get(fiber.HeaderContentType),
		Body:        bytes.NewReader(c.Body()),
		Token:       token,
		RequestID:   c.GetRespHeader(observability.RequestIDHeader),
	})
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: apperrors.UserMessage(err)})
	}

	body := bytes.TrimSpace(resp.Body)
	if len(body) > 0 && json.Valid(body) {
		c.Status(resp.StatusCode)
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(resp.Body)
	}
	return c.Status(resp.StatusCode).JSON(dto.ErrorResponse{Error: string(resp.Body)})
}
