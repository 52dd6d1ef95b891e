package server

import (
	"context"
	"errors"
	"time"

	"scholarhub/internal/models"
	"scholarhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UserList is one page of the admin user table.
type UserList struct {
	Data  []models.User `json:"data"`
	Total int64         `json:"total"`
}

// GetMyProfile handles GET /api/users/me
// @Summary My profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	user, err := s.userService.GetUserByID(c.UserContext(), caller.UserID)
	return respond(c, fiber.StatusOK, user, err)
}

// UpdateMyProfile handles PATCH /api/users/me
// @Summary Update my profile
// @Description Name, photo and theme. The role cannot be changed here.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.UpdateProfileInput true "Profile"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me [patch]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	var req service.UpdateProfileInput
	if !bindJSON(c, &req) {
		return nil
	}
	user, err := s.userService.UpdateProfile(c.UserContext(), caller.UserID, req)
	return respond(c, fiber.StatusOK, user, err)
}

// ListUsers handles GET /api/users
// @Summary Manage users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param searchText query string false "Name or email"
// @Param role query string false "student, moderator or admin"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset"
// @Success 200 {object} UserList
// @Failure 403 {object} models.ErrorResponse
// @Router /users [get]
func (s *Server) ListUsers(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	page := pageFrom(c, 50)
	users, total, err := s.userService.ListUsers(ctx, service.ListUsersInput{
		SearchText: c.Query("searchText"),
		Role:       c.Query("role"),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.Respond(c, models.NewTimeoutError("Request timeout"))
		}
		return models.Respond(c, err)
	}
	return c.JSON(UserList{Data: users, Total: total})
}

// ChangeUserRole handles PATCH /api/users/:id
// @Summary Change a user's role
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body object{role=string} true "New role"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /users/{id} [patch]
func (s *Server) ChangeUserRole(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return nil
	}
	var req struct {
		Role string `json:"role"`
	}
	if !bindJSON(c, &req) {
		return nil
	}
	user, err := s.userService.ChangeRole(c.UserContext(), caller, id, req.Role)
	return respond(c, fiber.StatusOK, user, err)
}

// DeleteUser handles DELETE /api/users/:id
// @Summary Delete a user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} object{deletedCount=int}
// @Failure 403 {object} models.ErrorResponse
// @Router /users/{id} [delete]
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return nil
	}
	err := s.userService.Delete(c.UserContext(), caller, id)
	return respond(c, fiber.StatusOK, fiber.Map{"deletedCount": 1}, err)
}
