package model

import (
	"encoding/json"
	"time"

	"github.com/mbolis/dynamic-forms/schema"
)

type User struct {
	ID           int       `json:"id"`
	MobileNumber string    `json:"mobile_number"`
	FirstName    *string   `json:"first_name"`
	LastName     *string   `json:"last_name"`
	IsAdmin      bool      `json:"is_admin"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Credentials is the body of both signup and login.
type Credentials struct {
	MobileNumber string `json:"mobile_number"`
	Password     string `json:"password"`
}

type ProfileUpdate struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// Form carries its schema as a JSON encoded string, as stored.
type Form struct {
	ID          int       `json:"id"`
	Version     int       `json:"version"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	FormSchema  string    `json:"form_schema"`
	CreatedBy   int       `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type FormRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	FormSchema  string  `json:"form_schema"`
	Version     *int    `json:"version,omitempty"`
}

// FieldResult is returned by the field editing endpoints.
type FieldResult struct {
	Field   schema.Field `json:"field"`
	Version int          `json:"version"`
}

// VisibilityRequest carries label keyed answers. Values may be any JSON
// scalar.
type VisibilityRequest struct {
	Answers json.RawMessage `json:"answers"`
}

type VisibilityResult struct {
	Visible []string `json:"visible"`
}

type AccessInfo struct {
	UserID       int     `json:"user_id"`
	MobileNumber string  `json:"mobile_number"`
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	HasAccess    bool    `json:"has_access"`
}

type AccessUpdate struct {
	UserID    int  `json:"user_id"`
	HasAccess bool `json:"has_access"`
}

// Response is a stored submission. ResponseData is the stored id keyed JSON
// object; Answers is the same set keyed by label for display.
type Response struct {
	ID           int              `json:"id"`
	FormID       int              `json:"form_id"`
	UserID       int              `json:"user_id"`
	ResponseData string           `json:"response_data"`
	Answers      schema.AnswerSet `json:"answers"`
	IsActive     bool             `json:"is_active"`
	SubmittedAt  time.Time        `json:"submitted_at"`
}

// ResponseRequest carries label keyed answers as a JSON encoded string.
type ResponseRequest struct {
	ResponseData *string `json:"response_data"`
	IsActive     *bool   `json:"is_active"`
}

type ResponseTable struct {
	Columns []schema.Column `json:"columns"`
	Rows    []ResponseRow   `json:"rows"`
}

type ResponseRow struct {
	ID          int       `json:"id"`
	IsActive    bool      `json:"is_active"`
	SubmittedAt time.Time `json:"submitted_at"`
	Cells       []string  `json:"cells"`
}
