package server

import (
	"scholarhub/internal/featureflags"
	"scholarhub/internal/models"
	"scholarhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Signup handles POST /api/auth/signup
// @Summary Student signup
// @Description Register a student account. Passwords need six characters, an uppercase letter and a special character.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.SignupInput true "Signup request"
// @Success 201 {object} service.Session
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req service.SignupInput
	if !bindJSON(c, &req) {
		return nil
	}
	session, err := s.authService.Signup(c.UserContext(), req)
	return respond(c, fiber.StatusCreated, session, err)
}

// Login handles POST /api/auth/login
// @Summary Email login
// @Description Authenticate with email and password and return a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Login credentials"
// @Success 200 {object} service.Session
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req service.LoginInput
	if !bindJSON(c, &req) {
		return nil
	}
	session, err := s.authService.Login(c.UserContext(), req)
	return respond(c, fiber.StatusOK, session, err)
}

// GoogleLogin handles POST /api/auth/google
// @Summary Google sign-in
// @Description Exchange a Google ID token for a JWT, creating a student account on first use
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{idToken=string} true "Google ID token"
// @Success 200 {object} service.Session
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /auth/google [post]
func (s *Server) GoogleLogin(c *fiber.Ctx) error {
	if !s.featureFlags.Enabled(featureflags.GoogleLogin, 0) {
		return models.RespondWithError(c, fiber.StatusNotFound, routeNotFound(c))
	}
	var req struct {
		IDToken string `json:"idToken"`
	}
	if !bindJSON(c, &req) {
		return nil
	}
	session, err := s.authService.GoogleLogin(c.UserContext(), req.IDToken)
	return respond(c, fiber.StatusOK, session, err)
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Revoke the presented token until it would have expired
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	if claims == nil {
		return unauthenticated(c)
	}
	if err := s.authService.Logout(c.UserContext(), claims); err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}
