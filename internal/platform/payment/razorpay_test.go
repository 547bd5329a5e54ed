package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
)

func sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature_Valid(t *testing.T) {
	secret := "test-secret"
	sig := sign(secret, "order_123", "pay_456")
	if err := VerifySignature(secret, "order_123", "pay_456", sig); err != nil {
		t.Errorf("expected valid signature, got %v", err)
	}
}

func TestVerifySignature_Invalid(t *testing.T) {
	secret := "test-secret"
	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
	}{
		{"wrong signature", "order_123", "pay_456", "deadbeef"},
		{"signature for other order", "order_123", "pay_456", sign(secret, "order_999", "pay_456")},
		{"signature for other payment", "order_123", "pay_456", sign(secret, "order_123", "pay_999")},
		{"empty signature", "order_123", "pay_456", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(secret, tt.orderID, tt.paymentID, tt.signature)
			if !errors.Is(err, ErrSignatureMismatch) {
				t.Errorf("expected ErrSignatureMismatch, got %v", err)
			}
		})
	}
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	sig := sign("secret-a", "order_123", "pay_456")
	if err := VerifySignature("secret-b", "order_123", "pay_456", sig); !errors.Is(err, ErrSignatureMismatch) {
		t.Errorf("expected ErrSignatureMismatch, got %v", err)
	}
}
