package server

import (
	"scholarhub/internal/models"
	"scholarhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ApplyResponse is what the apply form receives.
type ApplyResponse struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message,omitempty"`
	Application *models.Application `json:"application,omitempty"`
}

// ApplicationList wraps a listing for the dashboards.
type ApplicationList struct {
	Data  []models.Application `json:"data"`
	Total int64                `json:"total"`
}

// Apply handles POST /api/application
// @Summary Apply for a scholarship
// @Description Create a pending application with a new tracking ID. One pending or approved application per scholarship.
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ApplyInput true "Application form"
// @Success 201 {object} ApplyResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /application [post]
func (s *Server) Apply(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	var req service.ApplyInput
	if !bindJSON(c, &req) {
		return nil
	}
	app, err := s.applicationService.Apply(c.UserContext(), caller, req)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ApplyResponse{
		Success:     true,
		Message:     "Application submitted",
		Application: app,
	})
}

// ListApplications handles GET /api/application
// @Summary List applications
// @Description Students see their own; staff may filter by applicant email
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Param email query string false "Applicant email"
// @Param status query string false "pending, approved, rejected or completed"
// @Param payment query string false "unpaid or paid"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset"
// @Success 200 {object} ApplicationList
// @Failure 403 {object} models.ErrorResponse
// @Router /application [get]
func (s *Server) ListApplications(c *fiber.Ctx) error {
	return s.listApplications(c, c.Query("sortBy"))
}

// ListAllApplications handles GET /api/allapplication
// @Summary All applications
// @Description Moderator queue sorted by applied date (default) or deadline
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Param sortBy query string false "appliedDate or deadline"
// @Param status query string false "Application status"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset"
// @Success 200 {object} ApplicationList
// @Failure 403 {object} models.ErrorResponse
// @Router /allapplication [get]
func (s *Server) ListAllApplications(c *fiber.Ctx) error {
	sortBy := c.Query("sortBy", c.Query("sort"))
	return s.listApplications(c, sortBy)
}

func (s *Server) listApplications(c *fiber.Ctx, sortBy string) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	page := pageFrom(c, 20)
	apps, total, err := s.applicationService.List(c.UserContext(), caller, service.ListApplicationsInput{
		Email:   c.Query("email"),
		Status:  c.Query("status"),
		Payment: c.Query("payment"),
		SortBy:  sortBy,
		Limit:   page.Limit,
		Offset:  page.Offset,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(ApplicationList{Data: apps, Total: total})
}

// GetApplication handles GET /api/application/:id
// @Summary Application detail
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Success 200 {object} models.Application
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /application/{id} [get]
func (s *Server) GetApplication(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return nil
	}
	app, err := s.applicationService.Get(c.UserContext(), caller, id)
	return respond(c, fiber.StatusOK, app, err)
}

// EditApplication handles PATCH /api/application/:id
// @Summary Edit application
// @Description Owner only, while pending
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Param request body service.EditApplicationInput true "Changed fields"
// @Success 200 {object} models.Application
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /application/{id} [patch]
func (s *Server) EditApplication(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return nil
	}
	var req service.EditApplicationInput
	if !bindJSON(c, &req) {
		return nil
	}
	app, err := s.applicationService.Edit(c.UserContext(), caller, id, req)
	return respond(c, fiber.StatusOK, app, err)
}

// DeleteApplication handles DELETE /api/application/:id
// @Summary Cancel application
// @Description Owner only, while pending
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Success 200 {object} object{deletedCount=int}
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /application/{id} [delete]
func (s *Server) DeleteApplication(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return nil
	}
	err := s.applicationService.Delete(c.UserContext(), caller, id)
	return respond(c, fiber.StatusOK, fiber.Map{"deletedCount": 1}, err)
}

// ModerateApplication handles PATCH /api/rolemoderator/:id
// @Summary Moderate application
// @Description Approve ("approved"), reject ("cancel") or complete ("completed") an application
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Param request body service.ModerateInput true "Decision"
// @Success 200 {object} models.Application
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /rolemoderator/{id} [patch]
func (s *Server) ModerateApplication(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return nil
	}
	var req service.ModerateInput
	if !bindJSON(c, &req) {
		return nil
	}
	app, err := s.applicationService.Moderate(c.UserContext(), caller, id, req)
	return respond(c, fiber.StatusOK, app, err)
}

// SetApplicationFeedback handles PATCH /api/application/feedback/:id
// @Summary Application feedback
// @Description Store moderator feedback without changing state
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Param request body object{feedback=string} true "Feedback"
// @Success 200 {object} object{modifiedCount=int}
// @Failure 400 {object} models.ErrorResponse
// @Router /application/feedback/{id} [patch]
func (s *Server) SetApplicationFeedback(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return nil
	}
	var req struct {
		Feedback string `json:"feedback"`
	}
	if !bindJSON(c, &req) {
		return nil
	}
	err := s.applicationService.SetFeedback(c.UserContext(), caller, id, req.Feedback)
	return respond(c, fiber.StatusOK, fiber.Map{"modifiedCount": 1}, err)
}

// GetTracking handles GET /api/trackings/:trackingId
// @Summary Tracking timeline
// @Description Public, ordered status history of one application
// @Tags applications
// @Produce json
// @Param trackingId path string true "Tracking ID"
// @Success 200 {object} service.Timeline
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /trackings/{trackingId} [get]
func (s *Server) GetTracking(c *fiber.Ctx) error {
	timeline, err := s.applicationService.Timeline(c.UserContext(), c.Params("trackingId"))
	return respond(c, fiber.StatusOK, timeline, err)
}
