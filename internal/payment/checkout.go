package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/catalog"
)

var (
	ErrNotConfigured  = errors.New("checkout not configured")
	ErrGatewayFailure = errors.New("failed to create checkout session")
)

type CheckoutRequest struct {
	AmountCents int64
	Currency    string
	ProductName string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

type Session struct {
	ID  string `json:"id"`
	URL string `json:"checkout_url"`
}

// Gateway creates hosted checkout sessions with a payment provider.
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Session, error)
}

// Checkout starts payment for a catalog service.
type Checkout struct {
	gateway    Gateway
	catalog    catalog.Repository
	successURL string
	cancelURL  string
	log        zerolog.Logger
}

func NewCheckout(gw Gateway, cat catalog.Repository, successURL, cancelURL string, log zerolog.Logger) *Checkout {
	return &Checkout{
		gateway:    gw,
		catalog:    cat,
		successURL: successURL,
		cancelURL:  cancelURL,
		log:        log.With().Str("component", "checkout").Logger(),
	}
}

func (c *Checkout) Start(ctx context.Context, serviceID string) (*Session, error) {
	serviceID = strings.TrimSpace(serviceID)
	if serviceID == "" {
		return nil, apperr.Field("service_id", "is required")
	}
	svc, err := c.catalog.GetService(ctx, serviceID)
	if err != nil {
		if errors.Is(err, catalog.ErrServiceNotFound) {
			return nil, apperr.Field("service_id", "unknown service")
		}
		return nil, fmt.Errorf("load service: %w", err)
	}
	if !svc.Active {
		return nil, apperr.Field("service_id", "service is inactive")
	}
	if svc.Price.Amount <= 0 || svc.Price.Currency == "" {
		return nil, apperr.Field("service_id", "service has no price")
	}
	if c.gateway == nil || c.successURL == "" || c.cancelURL == "" {
		return nil, ErrNotConfigured
	}

	sess, err := c.gateway.CreateCheckout(ctx, CheckoutRequest{
		AmountCents: svc.Price.Amount,
		Currency:    strings.ToLower(svc.Price.Currency),
		ProductName: svc.Name,
		SuccessURL:  c.successURL,
		CancelURL:   c.cancelURL,
		Metadata:    map[string]string{"service_id": svc.ID},
	})
	if err != nil {
		c.log.Error().Err(err).Str("service_id", svc.ID).Msg("checkout session error")
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}
	if sess.URL == "" {
		return nil, fmt.Errorf("%w: response missing checkout url", ErrGatewayFailure)
	}

	c.log.Info().Str("service_id", svc.ID).Str("session_id", sess.ID).Msg("checkout session created")
	return sess, nil
}
