// Package payment wraps the Razorpay order flow: order creation and checkout
// signature verification.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
)

var ErrSignatureMismatch = errors.New("payment signature verification failed")

// Order is a created payment order awaiting checkout.
type Order struct {
	ID          string `json:"id"`
	AmountPaise int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
	Status      string `json:"status"`
}

// Gateway abstracts the payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, amountPaise int64, receipt string) (*Order, error)
	VerifySignature(orderID, paymentID, signature string) error
}

// RazorpayGateway implements Gateway against the Razorpay API.
type RazorpayGateway struct {
	client *razorpay.Client
	secret string
}

func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	return &RazorpayGateway{
		client: razorpay.NewClient(keyID, keySecret),
		secret: keySecret,
	}
}

// CreateOrder creates a Razorpay order in INR for the given amount in paise.
func (g *RazorpayGateway) CreateOrder(_ context.Context, amountPaise int64, receipt string) (*Order, error) {
	data := map[string]interface{}{
		"amount":   amountPaise,
		"currency": "INR",
		"receipt":  receipt,
	}
	resp, err := g.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("create razorpay order: %w", err)
	}

	order := &Order{
		AmountPaise: amountPaise,
		Currency:    "INR",
		Receipt:     receipt,
	}
	if id, ok := resp["id"].(string); ok {
		order.ID = id
	}
	if status, ok := resp["status"].(string); ok {
		order.Status = status
	}
	if order.ID == "" {
		return nil, fmt.Errorf("razorpay order response missing id")
	}
	return order, nil
}

// VerifySignature checks the HMAC-SHA256 checkout signature Razorpay computes
// over "orderID|paymentID" with the key secret.
func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) error {
	return VerifySignature(g.secret, orderID, paymentID, signature)
}

// VerifySignature is the signature check shared with tests and webhooks.
func VerifySignature(secret, orderID, paymentID, signature string) error {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}

// MockGateway is a test double for Gateway.
type MockGateway struct {
	Orders        []Order
	NextOrderID   string
	CreateErr     error
	VerifyErr     error
	VerifiedCalls int
}

func (m *MockGateway) CreateOrder(_ context.Context, amountPaise int64, receipt string) (*Order, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	id := m.NextOrderID
	if id == "" {
		id = fmt.Sprintf("order_mock_%d", len(m.Orders)+1)
	}
	order := Order{ID: id, AmountPaise: amountPaise, Currency: "INR", Receipt: receipt, Status: "created"}
	m.Orders = append(m.Orders, order)
	return &order, nil
}

func (m *MockGateway) VerifySignature(orderID, paymentID, signature string) error {
	m.VerifiedCalls++
	return m.VerifyErr
}
