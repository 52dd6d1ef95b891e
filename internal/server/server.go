// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "scholarhub/docs" // swagger docs
	"scholarhub/internal/config"
	"scholarhub/internal/featureflags"
	"scholarhub/internal/inflight"
	"scholarhub/internal/middleware"
	"scholarhub/internal/models"
	"scholarhub/internal/notifications"
	"scholarhub/internal/payment"
	"scholarhub/internal/repository"
	"scholarhub/internal/service"
	"scholarhub/internal/workflow"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	globalRequestsPerMinute = 100
	paymentNotificationPath = "/api/payments/notification"
)

// Locals keys set by AuthRequired.
const (
	localUserID = "userID"
	localCaller = "caller"
	localClaims = "claims"
)

// Server owns the route table and every dependency the handlers reach.
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo        repository.UserRepository
	scholarshipRepo repository.ScholarshipRepository
	applicationRepo repository.ApplicationRepository
	reviewRepo      repository.ReviewRepository
	paymentRepo     repository.PaymentRepository

	notifier     *notifications.Notifier
	hub          *notifications.Hub
	locker       *inflight.Locker
	gateway      payment.Gateway
	featureFlags *featureflags.Manager

	authService        *service.AuthService
	userService        *service.UserService
	statsService       *service.StatsService
	scholarshipService *service.ScholarshipService
	applicationService *service.ApplicationService
	paymentService     *service.PaymentService
	reviewService      *service.ReviewService
	imageService       *service.ImageService
}

// NewServerWithDeps builds the API over storage the caller opened. The
// payment gateway is Midtrans when a server key is configured and the
// in-process fake otherwise; production refuses the fake.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	var gateway payment.Gateway
	switch {
	case cfg.MidtransServerKey != "":
		gateway = payment.NewMidtrans(cfg.MidtransServerKey, cfg.MidtransProduction)
	case cfg.IsProduction():
		return nil, errors.New("MIDTRANS_SERVER_KEY is required in production")
	default:
		slog.Warn("MIDTRANS_SERVER_KEY not set, using the in-process fake payment gateway")
		gateway = payment.NewFake("dev-server-key")
	}
	return NewServerWithGateway(cfg, db, redisClient, gateway), nil
}

// NewServerWithGateway is NewServerWithDeps with an explicit payment gateway.
func NewServerWithGateway(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, gateway payment.Gateway) *Server {
	s := &Server{
		config:          cfg,
		db:              db,
		redis:           redisClient,
		promMiddleware:  middleware.InitMetrics("scholarhub-api"),
		userRepo:        repository.NewUserRepository(db),
		scholarshipRepo: repository.NewScholarshipRepository(db),
		applicationRepo: repository.NewApplicationRepository(db),
		reviewRepo:      repository.NewReviewRepository(db),
		paymentRepo:     repository.NewPaymentRepository(db),
		notifier:        notifications.NewNotifier(redisClient),
		hub:             notifications.NewHub(redisClient),
		locker:          inflight.New(redisClient, cfg.InFlightTTL),
		gateway:         gateway,
		featureFlags:    featureflags.NewManager(cfg.FeatureFlags),
	}

	var google service.IDTokenVerifier
	if cfg.GoogleClientID != "" {
		google = service.GoogleVerifier{ClientID: cfg.GoogleClientID}
	}

	s.authService = service.NewAuthService(s.userRepo, redisClient, google, cfg.JWTSecret)
	s.userService = service.NewUserService(s.userRepo)
	s.statsService = service.NewStatsService(s.userRepo, s.scholarshipRepo, s.applicationRepo, s.paymentRepo)
	s.scholarshipService = service.NewScholarshipService(s.scholarshipRepo, s.reviewRepo)
	s.applicationService = service.NewApplicationService(s.applicationRepo, s.scholarshipRepo, s.locker, s.notifier)
	s.paymentService = service.NewPaymentService(
		s.applicationRepo, s.paymentRepo, gateway, s.locker, s.notifier,
		cfg.PaymentCurrency, cfg.ClientURL,
	)
	s.reviewService = service.NewReviewService(s.reviewRepo, s.applicationRepo, s.scholarshipRepo)
	s.imageService = service.NewImageService(cfg)
	return s
}

// NewApp builds the fiber app with the error handler every route relies on.
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		AppName: "ScholarHub API",
		// Multipart image uploads are checked against the configured limit
		// by the image service.
		BodyLimit: 32 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				if fe.Code == fiber.StatusNotFound {
					return models.RespondWithError(c, fe.Code, routeNotFound(c))
				}
				return models.RespondWithError(c, fe.Code, &models.AppError{Code: models.CodeValidation, Message: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.Respond(c, err)
		},
	})
}

// SetupMiddleware installs the chain every request passes through. Order
// matters: request IDs before the context copy, CORS before the limiter.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Per-IP ceiling across the whole API.
	app.Use(limiter.New(limiter.Config{
		Max:        globalRequestsPerMinute,
		Expiration: time.Minute,
		// Preflights and gateway callbacks are never throttled.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || c.Path() == paymentNotificationPath
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes registers the public, authenticated and staff routes.
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	api.Get("/", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", s.AuthRequired(), s.RolesRequired(workflow.RoleAdmin), monitor.New(monitor.Config{
		Title: "ScholarHub Backend Metrics Dashboard",
	}))

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Processed uploads
	app.Static("/uploads", s.imageService.UploadDir(), fiber.Static{MaxAge: 86400})

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, middleware.SignupLimit), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, middleware.LoginLimit), s.Login)
	auth.Post("/google", middleware.RateLimit(s.redis, middleware.GoogleLimit), s.GoogleLogin)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Public catalogue
	api.Get("/scholarshipUniversity", middleware.RateLimit(s.redis, middleware.SearchLimit), s.SearchScholarships)
	api.Get("/scholarships/cheapest", s.GetCheapestScholarships)
	api.Get("/scholarships/:id", s.GetScholarship)
	api.Get("/review/scholarship/:id", s.GetScholarshipReviews)

	// Public tracking page
	api.Get("/trackings/:trackingId", s.GetTracking)

	// Gateway callback, authenticated by its signature
	app.Post(paymentNotificationPath, s.PaymentNotification)

	// Protected routes
	protected := api.Group("", s.AuthRequired())
	staff := s.RolesRequired(workflow.RoleModerator, workflow.RoleAdmin)
	adminOnly := s.RolesRequired(workflow.RoleAdmin)

	// Scholarship management
	protected.Post("/scholarship", adminOnly, s.CreateScholarship)
	protected.Patch("/managesholarship/:id", adminOnly, s.UpdateScholarship)
	protected.Delete("/managescholarshipdelete/:id", adminOnly, s.DeleteScholarship)

	// Applications. Specific paths before /application/:id.
	protected.Post("/application", middleware.RateLimit(s.redis, middleware.ApplyLimit), s.Apply)
	protected.Get("/application", s.ListApplications)
	protected.Patch("/application/feedback/:id", staff, s.SetApplicationFeedback)
	protected.Get("/application/:id", s.GetApplication)
	protected.Patch("/application/:id", s.EditApplication)
	protected.Delete("/application/:id", s.DeleteApplication)
	protected.Patch("/rolemoderator/:id", staff, s.ModerateApplication)
	protected.Get("/allapplication", staff, s.ListAllApplications)

	// Payments
	protected.Post("/payment-checkout-session", middleware.RateLimit(s.redis, middleware.CheckoutLimit), s.CreateCheckoutSession)
	protected.Patch("/payment-success", s.ConfirmPayment)

	// Reviews
	protected.Post("/review", s.CreateReview)
	protected.Get("/review", s.GetMyReviews)
	protected.Get("/review/role/modaretor", staff, s.GetAllReviews)
	protected.Put("/review/:id", s.UpdateReview)
	protected.Delete("/review/:id", s.DeleteReview)
	protected.Delete("/role/modaretor/:id", s.RolesRequired(workflow.RoleModerator), s.ModeratorDeleteReview)

	// Users
	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Patch("/me", s.UpdateMyProfile)
	users.Get("/", adminOnly, s.ListUsers)
	users.Patch("/:id", adminOnly, s.ChangeUserRole)
	users.Delete("/:id", adminOnly, s.DeleteUser)

	// Uploads
	protected.Post("/uploads/image", middleware.RateLimit(s.redis, middleware.UploadLimit), s.UploadImage)

	// Status push channel
	protected.Get("/ws", s.WebsocketUpgrade, s.WebsocketHandler())

	// Admin
	admin := protected.Group("/admin", adminOnly)
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/stats", s.GetStats)

	// JSON 404 for everything else
	app.Use(func(c *fiber.Ctx) error {
		return models.RespondWithError(c, fiber.StatusNotFound, routeNotFound(c))
	})
}

// AuthRequired validates the bearer token, rejects revoked tokens and loads
// the caller's current role from storage.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := middleware.BearerToken(c)
		if tokenString == "" && websocketRequest(c) {
			// Browsers cannot set headers on a websocket handshake.
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return deny(c, "Authorization required")
		}

		claims, err := middleware.ParseToken(s.config.JWTSecret, tokenString)
		if err != nil {
			return deny(c, "Invalid or expired token")
		}
		userID, err := claims.UserID()
		if err != nil {
			return deny(c, "Invalid user ID in token")
		}
		if s.revoked(c.UserContext(), claims.ID) {
			return deny(c, "Token has been revoked")
		}

		user, err := s.userRepo.GetByID(c.UserContext(), userID)
		if err != nil {
			if models.CodeOf(err) == models.CodeNotFound {
				return deny(c, "Account no longer exists")
			}
			return models.Respond(c, err)
		}

		c.Locals(localUserID, user.ID)
		c.Locals(localClaims, claims)
		c.Locals(localCaller, service.Caller{
			UserID:   user.ID,
			Role:     user.Role,
			Name:     user.Name,
			Email:    user.Email,
			PhotoURL: user.PhotoURL,
		})
		c.SetUserContext(middleware.WithUser(c.UserContext(), user.ID, string(user.Role)))

		return c.Next()
	}
}

func deny(c *fiber.Ctx, msg string) error {
	return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msg))
}

// revoked reports whether logout blacklisted jti. Without Redis, or when
// Redis errors, tokens stay valid until they expire.
func (s *Server) revoked(ctx context.Context, jti string) bool {
	if jti == "" || s.redis == nil {
		return false
	}
	n, err := s.redis.Exists(ctx, middleware.BlacklistKey(jti)).Result()
	return err == nil && n > 0
}

// RolesRequired admits only callers holding one of roles. It must run after
// AuthRequired.
func (s *Server) RolesRequired(roles ...workflow.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := c.Locals(localCaller).(service.Caller)
		switch workflow.Guard(ok, ok && caller.Role.Valid(), caller.Role, roles...) {
		case workflow.Allow:
			return c.Next()
		case workflow.Forbidden:
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("You do not have access to this resource"))
		default:
			return deny(c, "Authorization required")
		}
	}
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := NewApp()
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	go func() {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			slog.Error("failed to start hub wiring", slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
		}
	}()

	slog.Info("server starting", slog.String("port", s.config.Port), slog.String("payment_gateway", s.gateway.Name()))
	return app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests, then closes every status socket with
// a going-away frame. Storage belongs to the caller and stays open.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}
	var errs []error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http: %w", err))
		}
	}
	if err := s.hub.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("hub %s: %w", s.hub.Name(), err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	slog.Info("server shutdown complete")
	return nil
}
