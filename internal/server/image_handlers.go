package server

import (
	"io"

	"scholarhub/internal/featureflags"
	"scholarhub/internal/models"
	"scholarhub/internal/service"
	"scholarhub/internal/workflow"

	"github.com/gofiber/fiber/v2"
)

// UploadImage handles POST /api/uploads/image
// @Summary Upload an image
// @Description Profile photo (any user) or university image (staff). Stored as WebP no larger than 1200px.
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param image formData file true "Image file"
// @Param kind formData string false "profile (default) or university"
// @Success 201 {object} service.StoredImage
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /uploads/image [post]
func (s *Server) UploadImage(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	if !s.featureFlags.Enabled(featureflags.ImageUpload, caller.UserID) {
		return models.RespondWithError(c, fiber.StatusNotFound, routeNotFound(c))
	}

	kind := c.FormValue("kind", service.ImageKindProfile)
	if kind == service.ImageKindUniversity && caller.Role == workflow.RoleStudent {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Only staff can upload university images"))
	}

	file, err := c.FormFile("image")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}

	src, err := file.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}

	uploaded, err := s.imageService.Upload(c.UserContext(), service.UploadImageInput{
		UserID:      caller.UserID,
		Kind:        kind,
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Content:     content,
	})
	return respond(c, fiber.StatusCreated, uploaded, err)
}
