package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the hex HMAC-SHA256 of "gatewayOrderID|gatewayPaymentID".
func Sign(secret []byte, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time. Malformed signatures never match.
func Verify(secret []byte, gatewayOrderID, gatewayPaymentID, signature string) bool {
	if len(secret) == 0 {
		return false
	}

	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	want, _ := hex.DecodeString(Sign(secret, gatewayOrderID, gatewayPaymentID))
	return hmac.Equal(want, got)
}
