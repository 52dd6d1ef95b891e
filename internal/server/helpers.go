package server

import (
	"strings"
	"unicode"

	"scholarhub/internal/middleware"
	"scholarhub/internal/models"
	"scholarhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

const maxPageSize = 100

// pageQuery is a parsed limit/offset window.
type pageQuery struct {
	Limit  int
	Offset int
}

// pageFrom reads limit plus either offset or a 1-based page. An explicit
// offset wins over page.
func pageFrom(c *fiber.Ctx, defaultLimit int) pageQuery {
	q := pageQuery{Limit: c.QueryInt("limit", defaultLimit), Offset: c.QueryInt("offset", 0)}
	switch {
	case q.Limit <= 0:
		q.Limit = defaultLimit
	case q.Limit > maxPageSize:
		q.Limit = maxPageSize
	}
	if n := c.QueryInt("page", 0); n > 1 && q.Offset == 0 {
		q.Offset = (n - 1) * q.Limit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// idParam reads a positive numeric route parameter. When it is missing or
// malformed the 400 is already written and the handler returns nil.
func idParam(c *fiber.Ctx, name string) (uint, bool) {
	n, err := c.ParamsInt(name)
	if err != nil || n <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid "+paramLabel(name)))
		return 0, false
	}
	return uint(n), true
}

// bindJSON decodes the request body into out or writes a 400.
func bindJSON(c *fiber.Ctx, out any) bool {
	if err := c.BodyParser(out); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
		return false
	}
	return true
}

// paramLabel turns a route parameter into words for error messages:
// "scholarshipId" reads "scholarship ID".
func paramLabel(name string) string {
	stem, isID := strings.CutSuffix(name, "Id")
	if name == "id" {
		return "ID"
	}
	if !isID {
		return name
	}
	var b strings.Builder
	for i, r := range stem {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String() + " ID"
}

// callerFrom returns the caller AuthRequired stored.
func callerFrom(c *fiber.Ctx) (service.Caller, bool) {
	caller, ok := c.Locals(localCaller).(service.Caller)
	return caller, ok
}

func claimsFrom(c *fiber.Ctx) *middleware.Claims {
	claims, _ := c.Locals(localClaims).(*middleware.Claims)
	return claims
}

func unauthenticated(c *fiber.Ctx) error {
	return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError("Authorization required"))
}

func routeNotFound(c *fiber.Ctx) *models.AppError {
	return &models.AppError{Code: models.CodeNotFound, Message: "Route " + c.Path() + " not found"}
}

// respond writes err mapped to its status, or data with okStatus.
func respond(c *fiber.Ctx, okStatus int, data any, err error) error {
	if err != nil {
		return models.Respond(c, err)
	}
	return c.Status(okStatus).JSON(data)
}
