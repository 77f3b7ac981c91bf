// Package errs defines the tagged error taxonomy shared across the bridge:
// every error that can escape a component boundary is categorized once here
// and mapped to a JSON-RPC error response at the protocol edge.
package errs

import (
	"encoding/json"
	"fmt"
)

// Category is the top-level discriminant for an error.
type Category string

const (
	CategoryAuth       Category = "auth"
	CategoryValidation Category = "validation"
	CategoryNotFound   Category = "not_found"
	CategoryBackend    Category = "backend"
	CategoryTimeout    Category = "timeout"
	CategoryDb         Category = "db"
	CategoryInternal   Category = "internal"
)

// Subcategory further discriminates CategoryBackend errors.
type Subcategory string

const (
	SubConflict        Subcategory = "conflict"
	SubRateLimit       Subcategory = "rate_limit"
	SubValidationError Subcategory = "validation_error"
	SubUnavailable     Subcategory = "unavailable"
	SubTimeout         Subcategory = "timeout"
	SubUnknown         Subcategory = "unknown"
)

// Err is the concrete tagged error type. All components return *Err (or
// something errors.As can unwrap to one) rather than ad-hoc error strings.
type Err struct {
	Category    Category
	Subcategory Subcategory
	Message     string
	Resolution  string
	HTTPStatus  int
	Field       string // set for CategoryValidation
	Cause       error
}

func (e *Err) Error() string {
	if e.Subcategory != "" {
		return fmt.Sprintf("%s/%s: %s", e.Category, e.Subcategory, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Err) Unwrap() error { return e.Cause }

func NewAuth(message string) *Err {
	return &Err{Category: CategoryAuth, Message: message, HTTPStatus: 401}
}

func NewValidation(field, message string) *Err {
	return &Err{Category: CategoryValidation, Field: field, Message: message, HTTPStatus: 400}
}

func NewNotFound(id string) *Err {
	return &Err{Category: CategoryNotFound, Message: fmt.Sprintf("not found: %s", id), HTTPStatus: 404}
}

func NewBackend(sub Subcategory, httpStatus int, message string) *Err {
	return &Err{Category: CategoryBackend, Subcategory: sub, Message: message, HTTPStatus: httpStatus}
}

func NewTimeout(message string) *Err {
	return &Err{Category: CategoryTimeout, Message: message}
}

func NewDb(message string, cause error) *Err {
	return &Err{Category: CategoryDb, Message: message, Cause: cause}
}

func NewInternal(message string, cause error) *Err {
	return &Err{Category: CategoryInternal, Message: message, Cause: cause}
}

// WithResolution attaches a resolution hint (e.g. "re-fetch and re-apply" for
// backend/conflict) and returns the same *Err for chaining at the call site.
func (e *Err) WithResolution(hint string) *Err {
	e.Resolution = hint
	return e
}

// JSONRPCCode maps the error category to a JSON-RPC 2.0 error code per the
// agent protocol's fixed code table.
func (e *Err) JSONRPCCode() int {
	switch e.Category {
	case CategoryValidation:
		return -32602 // Invalid params
	case CategoryNotFound:
		return -32602 // Invalid params (unknown identifier)
	case CategoryAuth:
		return -32000 // Server error
	case CategoryBackend, CategoryTimeout, CategoryDb, CategoryInternal:
		return -32000 // Server error
	default:
		return -32000
	}
}

// ToJSONRPC renders the error as the (code, message, data) triple the rpc
// server embeds in a JSON-RPC error response.
func (e *Err) ToJSONRPC() (code int, message string, data json.RawMessage) {
	payload := map[string]any{
		"category": e.Category,
	}
	if e.Subcategory != "" {
		payload["subcategory"] = e.Subcategory
	}
	if e.Field != "" {
		payload["field"] = e.Field
	}
	if e.Resolution != "" {
		payload["resolution"] = e.Resolution
	}
	raw, _ := json.Marshal(payload)
	return e.JSONRPCCode(), e.Message, raw
}

// As reports whether err is, or wraps, an *Err, mirroring errors.As without
// requiring callers to import "errors" just for this one check.
func As(err error) (*Err, bool) {
	for err != nil {
		if e, ok := err.(*Err); ok {
			return e, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}
