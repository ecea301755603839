package stripepay

import (
	"context"
	"errors"
	"fmt"

	"oracleboxing-funnel-layer/internal/domain"
	"oracleboxing-funnel-layer/internal/ports"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

type paymentClient struct {
	sc     *client.API
	logger zerolog.Logger
}

// NewClient creates a Stripe adapter implementing ports.PaymentClient.
func NewClient(apiKey string, logger zerolog.Logger) ports.PaymentClient {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &paymentClient{sc: sc, logger: logger}
}

// classify wraps provider errors so handlers can map card declines to 402
// without importing the SDK.
func classify(err error, op string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Type == stripe.ErrorTypeCard {
			return fmt.Errorf("%s: %s: %w", op, stripeErr.Msg, domain.ErrCardDeclined)
		}
		if stripeErr.HTTPStatusCode == 404 {
			return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *paymentClient) FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := c.sc.Customers.List(params)
	for iter.Next() {
		cust := iter.Customer()
		return &domain.Customer{ID: cust.ID, Email: cust.Email, Name: cust.Name}, nil
	}
	if err := iter.Err(); err != nil {
		return nil, classify(err, "list customers")
	}
	return nil, nil
}

func (c *paymentClient) CreateCustomer(ctx context.Context, info domain.CustomerInfo) (*domain.Customer, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(info.Email),
		Name:  stripe.String(info.FullName()),
	}
	params.Context = ctx
	if info.Phone != "" {
		params.Phone = stripe.String(info.Phone)
	}

	cust, err := c.sc.Customers.New(params)
	if err != nil {
		return nil, classify(err, "create customer")
	}
	return &domain.Customer{ID: cust.ID, Email: cust.Email, Name: cust.Name}, nil
}

func (c *paymentClient) CreateCheckoutSession(ctx context.Context, req *domain.SessionRequest) (*domain.SessionResult, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(req.Mode)),
		Customer: stripe.String(req.CustomerID),
	}
	params.Context = ctx

	for _, item := range req.PriceIDs {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(item.PriceID),
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	if req.UIMode == "embedded" {
		params.UIMode = stripe.String("embedded")
		params.ReturnURL = stripe.String(req.ReturnURL)
	} else {
		params.SuccessURL = stripe.String(req.SuccessURL)
		params.CancelURL = stripe.String(req.CancelURL)
	}

	switch req.Mode {
	case domain.ModePayment:
		pid := &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		}
		if req.OffSession {
			// Saves the card so the post-purchase upsell can charge it
			// off-session.
			pid.SetupFutureUsage = stripe.String("off_session")
		}
		params.PaymentIntentData = pid
	case domain.ModeSubscription:
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: req.Metadata,
		}
	}

	sess, err := c.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, classify(err, "create checkout session")
	}

	result := &domain.SessionResult{SessionID: sess.ID, URL: sess.URL, ClientSecret: sess.ClientSecret}
	if sess.PaymentIntent != nil {
		result.PaymentIntentID = sess.PaymentIntent.ID
	}
	return result, nil
}

func (c *paymentClient) GetCheckoutSession(ctx context.Context, sessionID string) (*domain.ProviderSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")
	params.AddExpand("payment_intent.latest_charge")
	params.AddExpand("payment_intent.payment_method")
	params.AddExpand("subscription")

	sess, err := c.sc.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, classify(err, "get checkout session")
	}

	out := &domain.ProviderSession{
		ID:          sess.ID,
		Status:      string(sess.Status),
		AmountTotal: sess.AmountTotal,
		Currency:    string(sess.Currency),
		Metadata:    sess.Metadata,
	}
	if sess.Customer != nil {
		out.CustomerID = sess.Customer.ID
	}
	if sess.CustomerDetails != nil {
		out.CustomerEmail = sess.CustomerDetails.Email
		out.CustomerName = sess.CustomerDetails.Name
		out.CustomerPhone = sess.CustomerDetails.Phone
	}
	if sess.Subscription != nil {
		out.SubscriptionID = sess.Subscription.ID
	}
	if pi := sess.PaymentIntent; pi != nil {
		out.PaymentIntentID = pi.ID
		if pi.PaymentMethod != nil {
			out.PaymentMethodID = pi.PaymentMethod.ID
		}
		if pi.LatestCharge != nil && pi.LatestCharge.Customer != nil {
			out.ChargeCustomerID = pi.LatestCharge.Customer.ID
		}
		if out.PaymentMethodID == "" && pi.LatestCharge != nil && pi.LatestCharge.PaymentMethod != "" {
			out.PaymentMethodID = pi.LatestCharge.PaymentMethod
		}
	}
	if sess.LineItems != nil {
		for _, li := range sess.LineItems.Data {
			item := domain.LineItem{
				Description: li.Description,
				Quantity:    li.Quantity,
				Amount:      li.AmountTotal,
			}
			if li.Price != nil {
				item.PriceID = li.Price.ID
				if li.Price.Product != nil {
					item.ProductID = li.Price.Product.ID
				}
			}
			out.LineItems = append(out.LineItems, item)
		}
	}
	return out, nil
}

func (c *paymentClient) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.ProviderSession, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")
	params.AddExpand("customer")
	params.AddExpand("payment_method")

	pi, err := c.sc.PaymentIntents.Get(paymentIntentID, params)
	if err != nil {
		return nil, classify(err, "get payment intent")
	}

	out := &domain.ProviderSession{
		ID:              pi.ID,
		Status:          string(pi.Status),
		AmountTotal:     pi.Amount,
		Currency:        string(pi.Currency),
		PaymentIntentID: pi.ID,
		Metadata:        pi.Metadata,
	}
	if pi.Customer != nil {
		out.CustomerID = pi.Customer.ID
		out.CustomerEmail = pi.Customer.Email
		out.CustomerName = pi.Customer.Name
	}
	if pi.PaymentMethod != nil {
		out.PaymentMethodID = pi.PaymentMethod.ID
	}
	if pi.LatestCharge != nil && pi.LatestCharge.Customer != nil {
		out.ChargeCustomerID = pi.LatestCharge.Customer.ID
	}
	return out, nil
}

func (c *paymentClient) GetSubscription(ctx context.Context, subscriptionID string) (*domain.ProviderSession, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("customer")
	params.AddExpand("default_payment_method")

	sub, err := c.sc.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, classify(err, "get subscription")
	}

	out := &domain.ProviderSession{
		ID:             sub.ID,
		Status:         string(sub.Status),
		Currency:       string(sub.Currency),
		SubscriptionID: sub.ID,
		Metadata:       sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
		out.CustomerEmail = sub.Customer.Email
		out.CustomerName = sub.Customer.Name
	}
	if sub.DefaultPaymentMethod != nil {
		out.PaymentMethodID = sub.DefaultPaymentMethod.ID
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			li := domain.LineItem{Quantity: item.Quantity}
			if item.Price != nil {
				li.PriceID = item.Price.ID
				li.Amount = item.Price.UnitAmount * item.Quantity
				out.AmountTotal += li.Amount
				if item.Price.Product != nil {
					li.ProductID = item.Price.Product.ID
				}
			}
			out.LineItems = append(out.LineItems, li)
		}
	}
	return out, nil
}

func (c *paymentClient) GetPrice(ctx context.Context, priceID string) (*domain.Price, error) {
	params := &stripe.PriceParams{}
	params.Context = ctx

	price, err := c.sc.Prices.Get(priceID, params)
	if err != nil {
		return nil, classify(err, "get price")
	}
	return &domain.Price{
		ID:         price.ID,
		Currency:   domain.Currency(price.Currency),
		UnitAmount: price.UnitAmount,
		Recurring:  price.Type == stripe.PriceTypeRecurring,
	}, nil
}

func (c *paymentClient) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	params := &stripe.PaymentMethodAttachParams{Customer: stripe.String(customerID)}
	params.Context = ctx

	if _, err := c.sc.PaymentMethods.Attach(paymentMethodID, params); err != nil {
		return classify(err, "attach payment method")
	}
	return nil
}

func (c *paymentClient) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	params := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}
	params.Context = ctx

	if _, err := c.sc.Customers.Update(customerID, params); err != nil {
		return classify(err, "set default payment method")
	}
	return nil
}

func (c *paymentClient) CreateSubscription(ctx context.Context, req *domain.SubscriptionRequest) (*domain.SubscriptionResult, error) {
	params := &stripe.SubscriptionParams{
		Customer:             stripe.String(req.CustomerID),
		DefaultPaymentMethod: stripe.String(req.PaymentMethodID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(req.PriceID)},
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sub, err := c.sc.Subscriptions.New(params)
	if err != nil {
		return nil, classify(err, "create subscription")
	}
	return &domain.SubscriptionResult{SubscriptionID: sub.ID, Status: string(sub.Status)}, nil
}

func (c *paymentClient) ChargeOffSession(ctx context.Context, req *domain.OffSessionCharge) (*domain.ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(string(req.Currency)),
		Customer:      stripe.String(req.CustomerID),
		PaymentMethod: stripe.String(req.PaymentMethodID),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
	}
	params.Context = ctx
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := c.sc.PaymentIntents.New(params)
	if err != nil {
		// A declined off-session confirmation still returns the intent on
		// the error for diagnostics; classification is what matters here.
		return nil, classify(err, "off-session charge")
	}
	return &domain.ChargeResult{
		PaymentIntentID: pi.ID,
		Status:          string(pi.Status),
		ClientSecret:    pi.ClientSecret,
	}, nil
}
