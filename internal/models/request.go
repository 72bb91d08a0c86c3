// Package models - API request types and validation.
package models

import (
	"strings"
	"unicode/utf8"
)

// MaxTodoTitleLength bounds todo titles, counted in runes.
const MaxTodoTitleLength = 200

// CreateTodoRequest is the body of POST /api/todos.
type CreateTodoRequest struct {
	Title string `json:"title"`
}

// UpdateTodoRequest is the body of PUT /api/todos/{id}. Nil fields are left unchanged.
type UpdateTodoRequest struct {
	Title     *string `json:"title,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// Normalize trims surrounding whitespace from the title.
func (r *CreateTodoRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
}

// Validate returns field errors keyed by JSON field name, or nil.
func (r *CreateTodoRequest) Validate() map[string]string {
	return validateTitle(r.Title)
}

func (r *UpdateTodoRequest) Normalize() {
	if r.Title != nil {
		trimmed := strings.TrimSpace(*r.Title)
		r.Title = &trimmed
	}
}

func (r *UpdateTodoRequest) Validate() map[string]string {
	if r.Title == nil && r.Completed == nil {
		return map[string]string{"body": "at least one of title or completed is required"}
	}
	if r.Title != nil {
		return validateTitle(*r.Title)
	}
	return nil
}

func validateTitle(title string) map[string]string {
	switch {
	case title == "":
		return map[string]string{"title": "title is required"}
	case utf8.RuneCountInString(title) > MaxTodoTitleLength:
		return map[string]string{"title": "title must be at most 200 characters"}
	}
	return nil
}
