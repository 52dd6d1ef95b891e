package middleware

import (
	"strconv"
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus

	// APIErrors counts error responses by route and status.
	APIErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scholarhub_api_errors_total",
		Help: "Total API responses with status >= 400",
	}, []string{"route", "status"})
)

// InitMetrics returns the process-wide fiberprometheus instance. It registers
// collectors on the default registry, so repeated servers in one process
// share it.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New(serviceName)
	})
	return prom
}

// MetricsMiddleware records request metrics and error counts.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := p.Middleware(c)
		if status := c.Response().StatusCode(); status >= fiber.StatusBadRequest {
			route := c.Path()
			if r := c.Route(); r != nil && r.Path != "" {
				route = r.Path
			}
			APIErrors.WithLabelValues(route, strconv.Itoa(status)).Inc()
		}
		return err
	}
}
