// Package billing issues Telegram Stars invoices for pending questions and
// resolves their payloads back to the owning user.
package billing

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrMalformedPayload marks a confirmation payload that cannot be decoded to
// a user. There is nobody to apologize to for such events.
var ErrMalformedPayload = errors.New("malformed invoice payload")

// Payload ties an invoice to the user it was issued for. The nonce makes
// every payload unique, so stale or copied payloads are distinguishable in
// logs; routing itself relies on UserID alone.
type Payload struct {
	UserID int64  `json:"user_id"`
	Nonce  string `json:"nonce"`
}

// EncodePayload builds a fresh payload string scoped to userID.
func EncodePayload(userID int64) (string, error) {
	p := Payload{
		UserID: userID,
		Nonce:  uuid.NewString(),
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal invoice payload: %w", err)
	}
	return string(b), nil
}

// DecodePayload extracts the owning user from an invoice payload.
func DecodePayload(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.UserID == 0 {
		return Payload{}, fmt.Errorf("%w: missing user_id", ErrMalformedPayload)
	}
	return p, nil
}
