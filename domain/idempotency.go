package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// IdempotencyRecord stores the response produced for a client-supplied key.
// A record with StatusCode 0 is a claim whose handler has not finished yet.
type IdempotencyRecord struct {
	RequestID    string    `json:"request_id"`
	TraceID      string    `json:"trace_id"`
	CreatedAt    time.Time `json:"created_at"`
	Method       string    `json:"method"`
	Path         string    `json:"path"`
	RequestHash  string    `json:"request_hash"`
	StatusCode   int       `json:"status_code"`
	ResponseBody []byte    `json:"response_body"`
}

// Pending reports whether the record is an unfinished claim.
func (r *IdempotencyRecord) Pending() bool {
	return r != nil && r.StatusCode == 0
}

// Stale reports whether a pending claim is older than ttl at reference.
func (r *IdempotencyRecord) Stale(reference time.Time, ttl time.Duration) bool {
	if !r.Pending() || ttl <= 0 {
		return false
	}
	return reference.Sub(r.CreatedAt) > ttl
}

// RequestHash fingerprints the canonical form of a mutating request.
func RequestHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{'\n'})
	h.Write([]byte(path))
	h.Write([]byte{'\n'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
