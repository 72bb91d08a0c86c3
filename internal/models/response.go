// Package models - API response types and error handling.
// This file defines all outgoing API response structures.
//
// Response Design Principles:
// - Consistent JSON structure across all endpoints
// - Optional fields use omitempty to reduce response size
// - Rate limit rejections carry only the configured message
// - RFC3339 timestamps for international compatibility
package models

import (
	"time"
)

// HelloResponse is returned by the hello endpoint of the starter API.
type HelloResponse struct {
	Message  string `json:"message"`
	Backend  string `json:"backend"`
	Frontend string `json:"frontend"`
}

// VersionResponse reports build metadata.
type VersionResponse struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildDate  string `json:"build_date"`
	InstanceID string `json:"instance_id"`
	Release    bool   `json:"release"`    // Version parsed as a semantic version
	Prerelease string `json:"prerelease"` // Semver prerelease tag, empty for stable builds
}

// RateLimitResponse is the body of every 429 response. Clients depend on its
// exact shape: {"error": "<message>"}.
type RateLimitResponse struct {
	Error string `json:"error"`
}

func NewRateLimitResponse(message string) *RateLimitResponse {
	return &RateLimitResponse{Error: message}
}

// ErrorResponse provides structured error information for everything other
// than rate limit rejections.
type ErrorResponse struct {
	Error     string            `json:"error"`                // Error type (always "error")
	Message   string            `json:"message"`              // Human-readable error description
	Code      string            `json:"code,omitempty"`       // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"`    // Field-specific error details
	Timestamp time.Time         `json:"timestamp"`            // Error occurrence time
	RequestID string            `json:"request_id,omitempty"` // Unique request identifier
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
	Metrics    map[string]interface{}     `json:"metrics,omitempty"`
}

type ComponentHealth struct {
	Status    string                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type TodoResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ListTodosResponse struct {
	Todos      []TodoResponse `json:"todos"`
	TotalCount int            `json:"total_count"`
}

type ValidationErrorResponse struct {
	Error  string            `json:"error"`
	Errors map[string]string `json:"errors"`
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"   // All systems operational
	StatusUnhealthy = "unhealthy" // Major system issues
	StatusDegraded  = "degraded"  // Partial functionality
)

// Standard HTTP Error Codes
const (
	ErrorCodeNotFound         = "NOT_FOUND"          // 404: Resource doesn't exist
	ErrorCodeBadRequest       = "BAD_REQUEST"        // 400: Invalid request format
	ErrorCodeInvalidRequest   = "INVALID_REQUEST"    // 400: Invalid request data
	ErrorCodeValidation       = "VALIDATION_ERROR"   // 422: Input validation failed
	ErrorCodeInternalError    = "INTERNAL_ERROR"     // 500: Server-side error
	ErrorCodeMethodNotAllowed = "METHOD_NOT_ALLOWED" // 405: Wrong HTTP method
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func NewValidationErrorResponse(errors map[string]string) *ValidationErrorResponse {
	return &ValidationErrorResponse{
		Error:  "validation_error",
		Errors: errors,
	}
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
		Metrics:    make(map[string]interface{}),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
	}
}

func (h *HealthCheckResponse) AddMetric(name string, value interface{}) {
	h.Metrics[name] = value
}
