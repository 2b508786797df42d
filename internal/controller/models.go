// Package controller provides an authenticated client for the APM
// controller's REST API: application and tier lookup plus the alerting
// resource namespaces (health rules, actions, policies).
package controller

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for controller operations.
var (
	// ErrAuthentication indicates the OAuth token exchange failed. Fatal for the run.
	ErrAuthentication = errors.New("controller authentication failed")
	// ErrNotFound indicates a named application, tier, or rule does not exist remotely.
	ErrNotFound = errors.New("not found on controller")
	// ErrUnavailable indicates the controller could not be reached after all retries.
	ErrUnavailable = errors.New("controller unavailable")
)

// ResourceKind identifies an alerting resource namespace.
type ResourceKind string

const (
	// KindHealthRules is the health-rule namespace. Creation conflicts on this
	// kind are treated as success (idempotent provisioning).
	KindHealthRules ResourceKind = "health-rules"
	// KindActions is the notification-action namespace.
	KindActions ResourceKind = "actions"
	// KindPolicies is the alerting-policy namespace.
	KindPolicies ResourceKind = "policies"
)

// Error provides detailed error information from a controller call.
type Error struct {
	Op      string // Operation that failed, e.g. "lookup application"
	Status  int    // HTTP status, 0 for transport failures
	Message string // Human-readable message
	Err     error  // Underlying sentinel or transport error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
	}
	if e.Err != nil {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RuleSummary is one entry of the health-rule collection listing.
type RuleSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ResourceSummary is one entry of a generic alerting collection listing,
// used to map human-provided names back to remote identifiers.
type ResourceSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Response is the raw outcome of a create or replace call. Business status
// codes (201, 409, 4xx) are carried here and interpreted by the caller; only
// transport failures surface as errors.
type Response struct {
	Status int
	Body   []byte
}

// Document decodes the response body as a JSON document. Returns false when
// the body is empty or not an object.
func (r *Response) Document() (Document, bool) {
	if len(r.Body) == 0 {
		return nil, false
	}
	var doc Document
	if err := json.Unmarshal(r.Body, &doc); err != nil {
		return nil, false
	}
	return doc, true
}

// Message extracts a human-readable message from the response: the document's
// "message" field when present, otherwise the raw body text.
func (r *Response) Message() string {
	if doc, ok := r.Document(); ok {
		if msg, ok := doc.Str("message"); ok && msg != "" {
			return msg
		}
	}
	return string(r.Body)
}
