package server

import (
	"scholarhub/internal/models"
	"scholarhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ReviewList wraps the moderator review queue.
type ReviewList struct {
	Data  []models.Review `json:"data"`
	Total int64           `json:"total"`
}

// CreateReview handles POST /api/review
// @Summary Review a scholarship
// @Description Allowed once per scholarship after the caller's application is completed
// @Tags reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ReviewInput true "Review"
// @Success 201 {object} models.Review
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /review [post]
func (s *Server) CreateReview(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	var req service.ReviewInput
	if !bindJSON(c, &req) {
		return nil
	}
	review, err := s.reviewService.Create(c.UserContext(), caller, req)
	return respond(c, fiber.StatusCreated, review, err)
}

// GetMyReviews handles GET /api/review
// @Summary My reviews
// @Tags reviews
// @Produce json
// @Security BearerAuth
// @Param email query string false "Author email, defaults to the caller"
// @Success 200 {array} models.Review
// @Router /review [get]
func (s *Server) GetMyReviews(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	reviews, err := s.reviewService.ListMine(c.UserContext(), caller, c.Query("email"))
	return respond(c, fiber.StatusOK, reviews, err)
}

// GetScholarshipReviews handles GET /api/review/scholarship/:id
// @Summary Reviews of a scholarship
// @Tags reviews
// @Produce json
// @Param id path int true "Scholarship ID"
// @Success 200 {array} models.Review
// @Failure 404 {object} models.ErrorResponse
// @Router /review/scholarship/{id} [get]
func (s *Server) GetScholarshipReviews(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return nil
	}
	reviews, err := s.reviewService.ListByScholarship(c.UserContext(), id)
	return respond(c, fiber.StatusOK, reviews, err)
}

// GetAllReviews handles GET /api/review/role/modaretor
// @Summary Review queue
// @Tags reviews
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset"
// @Success 200 {object} ReviewList
// @Router /review/role/modaretor [get]
func (s *Server) GetAllReviews(c *fiber.Ctx) error {
	page := pageFrom(c, 50)
	reviews, total, err := s.reviewService.ListAll(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(ReviewList{Data: reviews, Total: total})
}

// UpdateReview handles PUT /api/review/:id
// @Summary Edit my review
// @Tags reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Review ID"
// @Param request body service.UpdateReviewInput true "Review"
// @Success 200 {object} models.Review
// @Failure 403 {object} models.ErrorResponse
// @Router /review/{id} [put]
func (s *Server) UpdateReview(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return nil
	}
	var req service.UpdateReviewInput
	if !bindJSON(c, &req) {
		return nil
	}
	review, err := s.reviewService.Update(c.UserContext(), caller, id, req)
	return respond(c, fiber.StatusOK, review, err)
}

// DeleteReview handles DELETE /api/review/:id
// @Summary Delete my review
// @Tags reviews
// @Produce json
// @Security BearerAuth
// @Param id path int true "Review ID"
// @Success 200 {object} object{deletedCount=int}
// @Failure 403 {object} models.ErrorResponse
// @Router /review/{id} [delete]
func (s *Server) DeleteReview(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return nil
	}
	err := s.reviewService.Delete(c.UserContext(), caller, id)
	return respond(c, fiber.StatusOK, fiber.Map{"deletedCount": 1}, err)
}

// ModeratorDeleteReview handles DELETE /api/role/modaretor/:id
// @Summary Remove a review
// @Tags reviews
// @Produce json
// @Security BearerAuth
// @Param id path int true "Review ID"
// @Success 200 {object} object{deletedCount=int}
// @Failure 403 {object} models.ErrorResponse
// @Router /role/modaretor/{id} [delete]
func (s *Server) ModeratorDeleteReview(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return nil
	}
	err := s.reviewService.ModeratorDelete(c.UserContext(), caller, id)
	return respond(c, fiber.StatusOK, fiber.Map{"deletedCount": 1}, err)
}
