package server

import (
	"scholarhub/internal/featureflags"
	"scholarhub/internal/models"

	"github.com/gofiber/fiber/v2"
)

// CheckoutResponse points the browser at the gateway.
type CheckoutResponse struct {
	URL       string  `json:"url"`
	SessionID string  `json:"sessionId"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	CancelURL string  `json:"cancelUrl"`
}

// CreateCheckoutSession handles POST /api/payment-checkout-session
// @Summary Start checkout
// @Description Open (or reuse) a gateway checkout for an approved, unpaid application
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{applicationId=int} true "Application"
// @Success 200 {object} CheckoutResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /payment-checkout-session [post]
func (s *Server) CreateCheckoutSession(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	var req struct {
		ApplicationID uint `json:"applicationId"`
	}
	if !bindJSON(c, &req) {
		return nil
	}
	if req.ApplicationID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("applicationId is required"))
	}

	session, err := s.paymentService.StartCheckout(c.UserContext(), caller, req.ApplicationID)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(CheckoutResponse{
		URL:       session.RedirectURL,
		SessionID: session.SessionID,
		Amount:    session.Amount,
		Currency:  session.Currency,
		CancelURL: s.paymentService.CancelURL(),
	})
}

// ConfirmPayment handles PATCH /api/payment-success
// @Summary Confirm payment
// @Description Called by the success page; marks the application paid once the gateway confirms. Safe to repeat.
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param session_id query string true "Checkout session ID"
// @Success 200 {object} service.PaymentResult
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /payment-success [patch]
func (s *Server) ConfirmPayment(c *fiber.Ctx) error {
	caller, ok := callerFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	result, err := s.paymentService.ConfirmPayment(c.UserContext(), caller, c.Query("session_id"))
	return respond(c, fiber.StatusOK, result, err)
}

// PaymentNotification handles POST /api/payments/notification
// @Summary Gateway notification
// @Description Server-to-server payment callback, authenticated by its signature
// @Tags payments
// @Accept json
// @Produce json
// @Success 200 {object} object{received=bool}
// @Failure 401 {object} models.ErrorResponse
// @Router /payments/notification [post]
func (s *Server) PaymentNotification(c *fiber.Ctx) error {
	if !s.featureFlags.Enabled(featureflags.PaymentWebhook, 0) {
		return models.RespondWithError(c, fiber.StatusNotFound, routeNotFound(c))
	}
	err := s.paymentService.HandleNotification(c.UserContext(), c.Body())
	return respond(c, fiber.StatusOK, fiber.Map{"received": true}, err)
}
