package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/catalog"
	"github.com/hackgods/clinic-booking/internal/store"
)

type fakeGateway struct {
	got CheckoutRequest
	err error
}

func (f *fakeGateway) CreateCheckout(_ context.Context, req CheckoutRequest) (*Session, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &Session{ID: "cs_test", URL: "https://checkout.example/cs_test"}, nil
}

func newCatalog(t *testing.T) catalog.Repository {
	t.Helper()
	cat := catalog.NewStoreRepository(store.NewMemoryStore())
	if err := cat.PutService(context.Background(), catalog.Service{
		ID: "consult", Name: "Consult", Price: catalog.Price{Amount: 12500, Currency: "USD"}, Active: true,
	}); err != nil {
		t.Fatalf("seed service: %v", err)
	}
	return cat
}

func TestCheckout_Start(t *testing.T) {
	gw := &fakeGateway{}
	c := NewCheckout(gw, newCatalog(t), "https://clinic.example/ok", "https://clinic.example/cancel", zerolog.Nop())

	sess, err := c.Start(context.Background(), "consult")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if sess.URL != "https://checkout.example/cs_test" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if gw.got.AmountCents != 12500 || gw.got.Currency != "usd" || gw.got.ProductName != "Consult" {
		t.Fatalf("unexpected request %+v", gw.got)
	}
	if gw.got.Metadata["service_id"] != "consult" {
		t.Fatalf("metadata = %+v", gw.got.Metadata)
	}
}

func TestCheckout_Errors(t *testing.T) {
	cat := newCatalog(t)

	c := NewCheckout(&fakeGateway{}, cat, "a", "b", zerolog.Nop())
	if _, err := c.Start(context.Background(), ""); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("missing service id: %v", err)
	}
	if _, err := c.Start(context.Background(), "nope"); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("unknown service: %v", err)
	}

	c = NewCheckout(&fakeGateway{}, cat, "", "", zerolog.Nop())
	if _, err := c.Start(context.Background(), "consult"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	c = NewCheckout(&fakeGateway{err: errors.New("card_declined")}, cat, "a", "b", zerolog.Nop())
	if _, err := c.Start(context.Background(), "consult"); !errors.Is(err, ErrGatewayFailure) {
		t.Fatalf("expected ErrGatewayFailure, got %v", err)
	}
}

type fakeSessions struct {
	params *stripe.CheckoutSessionParams
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = params
	return &stripe.CheckoutSession{ID: "cs_1", URL: "https://stripe.example/cs_1"}, nil
}

func TestStripeGateway_BuildsParams(t *testing.T) {
	fake := &fakeSessions{}
	g := &StripeGateway{sessions: fake}

	sess, err := g.CreateCheckout(context.Background(), CheckoutRequest{
		AmountCents: 12500,
		Currency:    "usd",
		ProductName: "Consult",
		SuccessURL:  "https://clinic.example/ok",
		CancelURL:   "https://clinic.example/cancel",
		Metadata:    map[string]string{"service_id": "consult"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.ID != "cs_1" || sess.URL != "https://stripe.example/cs_1" {
		t.Fatalf("unexpected session %+v", sess)
	}

	p := fake.params
	if *p.Mode != string(stripe.CheckoutSessionModePayment) || len(p.LineItems) != 1 {
		t.Fatalf("unexpected params %+v", p)
	}
	item := p.LineItems[0]
	if *item.Quantity != 1 || *item.PriceData.UnitAmount != 12500 || *item.PriceData.ProductData.Name != "Consult" {
		t.Fatalf("unexpected line item %+v", item)
	}
	if p.Metadata["service_id"] != "consult" {
		t.Fatalf("metadata = %+v", p.Metadata)
	}
}

func TestNewStripeGateway_RequiresKey(t *testing.T) {
	if _, err := NewStripeGateway(""); err == nil {
		t.Fatal("expected error for empty key")
	}
}
