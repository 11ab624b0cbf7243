package handlers

import (
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/gate-access-service/internal/api/dto"
	"github.com/spec-kit/gate-access-service/internal/auth"
	"github.com/spec-kit/gate-access-service/internal/service"
)

// maxImageBytes bounds uploaded images; embeddings come from single still
// frames, not video.
const maxImageBytes = 8 << 20

// GateHandler exposes the credential verification and issuance endpoints.
type GateHandler struct {
	access *service.AccessService
}

// NewGateHandler constructs handler.
func NewGateHandler(access *service.AccessService) *GateHandler {
	return &GateHandler{access: access}
}

// VerifyEntry handles POST /gate/verify-entry. Called by the gate device;
// unauthenticated, multipart form with qr_token and image. The response
// status mirrors the decision stage that terminated the attempt.
func (h *GateHandler) VerifyEntry(c *fiber.Ctx) error {
	qrToken := c.FormValue("qr_token")
	if qrToken == "" {
		return fiber.NewError(http.StatusBadRequest, "qr_token required")
	}

	image, err := readImageFile(c, "image")
	if err != nil {
		return err
	}

	decision := h.access.VerifyEntry(c.UserContext(), qrToken, image)

	return c.Status(decision.StatusCode).JSON(dto.EntryVerifyResponse{
		AccessGranted: decision.AccessGranted,
		Message:       decision.Message,
		Similarity:    decision.Similarity,
	})
}

// MyQR handles GET /gate/my-qr: issues a rotating credential for the
// authenticated identity.
func (h *GateHandler) MyQR(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}

	tok := h.access.IssueToken(principal.Identity.ID)
	return c.JSON(fiber.Map{
		"data": dto.TokenResponse{
			Token:            tok,
			ExpiresInSeconds: int(h.access.TokenValidity().Seconds()),
		},
	})
}

// RegisterBiometrics handles POST /gate/register-biometrics: enrolls a face
// template for the authenticated identity from an uploaded photo.
func (h *GateHandler) RegisterBiometrics(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}

	image, err := readImageFile(c, "file")
	if err != nil {
		return err
	}

	if err := h.access.RegisterBiometrics(c.UserContext(), principal.Identity.ID, image); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "biometrics registered"})
}

func readImageFile(c *fiber.Ctx, field string) ([]byte, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return nil, fiber.NewError(http.StatusBadRequest, field+" file required")
	}
	if fileHeader.Size > maxImageBytes {
		return nil, fiber.NewError(http.StatusBadRequest, "image too large")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fiber.NewError(http.StatusBadRequest, "invalid image upload")
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
	if err != nil {
		return nil, fiber.NewError(http.StatusBadRequest, "invalid image upload")
	}
	return image, nil
}
