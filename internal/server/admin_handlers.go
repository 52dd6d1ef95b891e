package server

import (
	"scholarhub/internal/models"
	"scholarhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags handles GET /api/admin/feature-flags
// @Summary Feature flags
// @Description Configured flags and their state for the calling admin
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{raw=map[string]string,evaluated=map[string]bool}
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID, _ := c.Locals(localUserID).(uint)

	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}

	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
	})
}

// StatsResponse is the admin dashboard.
type StatsResponse struct {
	*service.Stats
	Online int `json:"online"`
}

// GetStats handles GET /api/admin/stats
// @Summary Dashboard counters
// @Description Users by role, listings, applications by state, revenue and connected users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} StatsResponse
// @Router /admin/stats [get]
func (s *Server) GetStats(c *fiber.Ctx) error {
	stats, err := s.statsService.Get(c.UserContext())
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(StatsResponse{Stats: stats, Online: s.hub.OnlineCount(c.UserContext())})
}
