package server

import (
	"scholarhub/internal/repository"
	"scholarhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

const cheapestListingCount = 6

// SearchScholarships handles GET /api/scholarshipUniversity
// @Summary Search scholarships
// @Description Filter, sort and page the public catalogue
// @Tags scholarships
// @Produce json
// @Param search query string false "Matches name, university, country or subject"
// @Param subjectCategory query string false "Subject category"
// @Param scholarshipCategory query string false "Full fund, Partial fund or Self fund"
// @Param degree query string false "Diploma, Bachelor, Masters or PhD"
// @Param country query string false "University country"
// @Param sortBy query string false "newest, fees_asc, fees_desc, deadline or rank"
// @Param page query int false "Page, from 1" default(1)
// @Param limit query int false "Page size" default(10)
// @Success 200 {object} service.PagedScholarships
// @Router /scholarshipUniversity [get]
func (s *Server) SearchScholarships(c *fiber.Ctx) error {
	page, err := s.scholarshipService.Search(c.UserContext(), repository.ScholarshipFilter{
		Search:              c.Query("search"),
		SubjectCategory:     c.Query("subjectCategory"),
		ScholarshipCategory: c.Query("scholarshipCategory"),
		Degree:              c.Query("degree"),
		Country:             c.Query("country"),
		SortBy:              c.Query("sortBy"),
		Page:                c.QueryInt("page", 1),
		Limit:               c.QueryInt("limit", 0),
	})
	return respond(c, fiber.StatusOK, page, err)
}

// GetCheapestScholarships handles GET /api/scholarships/cheapest
// @Summary Cheapest scholarships
// @Description The six listings with the lowest application fee
// @Tags scholarships
// @Produce json
// @Success 200 {array} models.ScholarshipView
// @Router /scholarships/cheapest [get]
func (s *Server) GetCheapestScholarships(c *fiber.Ctx) error {
	items, err := s.scholarshipService.Cheapest(c.UserContext(), cheapestListingCount)
	return respond(c, fiber.StatusOK, items, err)
}

// GetScholarship handles GET /api/scholarships/:id
// @Summary Scholarship detail
// @Description A listing with its deadline countdown, rating summary and reviews
// @Tags scholarships
// @Produce json
// @Param id path int true "Scholarship ID"
// @Success 200 {object} service.ScholarshipDetail
// @Failure 404 {object} models.ErrorResponse
// @Router /scholarships/{id} [get]
func (s *Server) GetScholarship(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return nil
	}
	detail, err := s.scholarshipService.Get(c.UserContext(), id)
	return respond(c, fiber.StatusOK, detail, err)
}

// CreateScholarship handles POST /api/scholarship
// @Summary Add scholarship
// @Tags scholarships
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ScholarshipInput true "Listing"
// @Success 201 {object} models.Scholarship
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /scholarship [post]
func (s *Server) CreateScholarship(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	var req service.ScholarshipInput
	if !bindJSON(c, &req) {
		return nil
	}
	sch, err := s.scholarshipService.Create(c.UserContext(), caller, req)
	return respond(c, fiber.StatusCreated, sch, err)
}

// UpdateScholarship handles PATCH /api/managesholarship/:id
// @Summary Update scholarship
// @Tags scholarships
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Scholarship ID"
// @Param request body service.ScholarshipInput true "Listing"
// @Success 200 {object} models.Scholarship
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /managesholarship/{id} [patch]
func (s *Server) UpdateScholarship(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return nil
	}
	var req service.ScholarshipInput
	if !bindJSON(c, &req) {
		return nil
	}
	sch, err := s.scholarshipService.Update(c.UserContext(), caller, id, req)
	return respond(c, fiber.StatusOK, sch, err)
}

// DeleteScholarship handles DELETE /api/managescholarshipdelete/:id
// @Summary Delete scholarship
// @Tags scholarships
// @Produce json
// @Security BearerAuth
// @Param id path int true "Scholarship ID"
// @Success 200 {object} object{deletedCount=int}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /managescholarshipdelete/{id} [delete]
func (s *Server) DeleteScholarship(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return nil
	}
	err := s.scholarshipService.Delete(c.UserContext(), caller, id)
	return respond(c, fiber.StatusOK, fiber.Map{"deletedCount": 1}, err)
}
