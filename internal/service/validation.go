package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/health-registry-api/internal/models"
	appErrors "github.com/noah-isme/health-registry-api/pkg/errors"
)

// NewValidator returns a validator reporting fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ProgramRequest is the full program payload used by create and replace.
type ProgramRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

// ProgramPatchRequest carries the fields supplied to a partial update.
type ProgramPatchRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (p ProgramPatchRequest) apply(base models.Program) ProgramRequest {
	req := ProgramRequest{Name: base.Name, Description: base.Description}
	if p.Name != nil {
		req.Name = *p.Name
	}
	if p.Description != nil {
		req.Description = *p.Description
	}
	return req
}

// ClientRequest is the full client payload used by create and replace.
type ClientRequest struct {
	FirstName   string       `json:"first_name" validate:"required,max=100"`
	LastName    string       `json:"last_name" validate:"required,max=100"`
	DateOfBirth *models.Date `json:"date_of_birth" validate:"required"`
	Gender      string       `json:"gender" validate:"required,oneof=M F O"`
	PhoneNumber string       `json:"phone_number" validate:"max=20"`
	Email       string       `json:"email" validate:"omitempty,max=254,email"`
	Address     string       `json:"address"`
}

// ClientPatchRequest carries the fields supplied to a partial update.
type ClientPatchRequest struct {
	FirstName   *string      `json:"first_name"`
	LastName    *string      `json:"last_name"`
	DateOfBirth *models.Date `json:"date_of_birth"`
	Gender      *string      `json:"gender"`
	PhoneNumber *string      `json:"phone_number"`
	Email       *string      `json:"email"`
	Address     *string      `json:"address"`
}

func (p ClientPatchRequest) apply(base models.Client) ClientRequest {
	dob := base.DateOfBirth
	req := ClientRequest{
		FirstName:   base.FirstName,
		LastName:    base.LastName,
		DateOfBirth: &dob,
		Gender:      base.Gender,
		PhoneNumber: base.PhoneNumber,
		Email:       base.Email,
		Address:     base.Address,
	}
	if p.FirstName != nil {
		req.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		req.LastName = *p.LastName
	}
	if p.DateOfBirth != nil {
		req.DateOfBirth = p.DateOfBirth
	}
	if p.Gender != nil {
		req.Gender = *p.Gender
	}
	if p.PhoneNumber != nil {
		req.PhoneNumber = *p.PhoneNumber
	}
	if p.Email != nil {
		req.Email = *p.Email
	}
	if p.Address != nil {
		req.Address = *p.Address
	}
	return req
}

// EnrollRequest is the body of the enroll action.
type EnrollRequest struct {
	ProgramID string `json:"program_id"`
}

// CreateEnrollmentRequest creates an enrollment row directly.
type CreateEnrollmentRequest struct {
	ClientID  string `json:"client_id" validate:"required"`
	ProgramID string `json:"program_id" validate:"required"`
	Active    *bool  `json:"active"`
	Notes     string `json:"notes"`
}

// UpdateEnrollmentRequest replaces the mutable enrollment fields.
type UpdateEnrollmentRequest struct {
	Active *bool  `json:"active" validate:"required"`
	Notes  string `json:"notes"`
}

// PatchEnrollmentRequest carries the fields supplied to a partial update.
type PatchEnrollmentRequest struct {
	Active *bool   `json:"active"`
	Notes  *string `json:"notes"`
}

func validateProgram(v *validator.Validate, req *ProgramRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	return validatePayload(v, req, "invalid program payload")
}

func validateClient(v *validator.Validate, req *ClientRequest) error {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Gender = strings.ToUpper(strings.TrimSpace(req.Gender))
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.Email = strings.TrimSpace(req.Email)
	req.Address = strings.TrimSpace(req.Address)
	if req.DateOfBirth != nil && req.DateOfBirth.IsZero() {
		req.DateOfBirth = nil
	}
	return validatePayload(v, req, "invalid client payload")
}

func validateEnrollment(v *validator.Validate, req *CreateEnrollmentRequest) error {
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.ProgramID = strings.TrimSpace(req.ProgramID)
	return validatePayload(v, req, "invalid enrollment payload")
}

func validatePayload(v *validator.Validate, payload interface{}, message string) error {
	if err := v.Struct(payload); err != nil {
		return appErrors.Validation(message, FieldErrors(err)...)
	}
	return nil
}

// FieldErrors converts validation and JSON decoding failures into field level messages.
func FieldErrors(err error) []appErrors.FieldError {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		out := make([]appErrors.FieldError, 0, len(validationErrs))
		for _, fe := range validationErrs {
			out = append(out, appErrors.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		return out
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []appErrors.FieldError{{Field: typeErr.Field, Message: fmt.Sprintf("Expected a %s value.", typeErr.Type)}}
	}
	return []appErrors.FieldError{{Field: "non_field_errors", Message: err.Error()}}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "oneof":
		return fmt.Sprintf("%q is not a valid choice.", fmt.Sprint(fe.Value()))
	default:
		return fmt.Sprintf("Failed the %q rule.", fe.Tag())
	}
}
