package authflow

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// LoginForm is submitted by the login page.
type LoginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TenantRegisterForm is the flattened tenant registration form.
type TenantRegisterForm struct {
	Name         string `json:"name" validate:"min=2"`
	Industry     string `json:"industry"`
	ContactEmail string `json:"contactEmail" validate:"required,email"`
	ContactPhone string `json:"contactPhone"`
	AddressLine1 string `json:"addressLine1"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
}

// TenantAdminRegisterForm registers the first administrator of a tenant.
// TenantID comes from the invitation link.
type TenantAdminRegisterForm struct {
	TenantID        string `json:"tenantId" validate:"required"`
	Name            string `json:"name" validate:"min=2"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"min=8,containsany=ABCDEFGHIJKLMNOPQRSTUVWXYZ,containsany=0123456789"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
}

// VerifyOTPForm confirms a registration.
type VerifyOTPForm struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"len=6,numeric"`
	Type  string `json:"type" validate:"oneof=tenant user"`
}

// ResendOTPForm asks for a new OTP.
type ResendOTPForm struct {
	Email string `json:"email" validate:"required,email"`
}

// AcceptInviteForm sets the password of an invited user.
type AcceptInviteForm struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"min=8,eqfield=Password"`
}

// InviteForm invites an operations manager.
type InviteForm struct {
	Name  string `json:"name" validate:"min=2"`
	Email string `json:"email" validate:"required,email"`
}

// ValidationError lists the first failure per form field.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// fieldMessages mirrors the form copy users see. Keyed by "field.tag".
var fieldMessages = map[string]string{
	"email.required":          "Invalid email address",
	"email.email":             "Invalid email address",
	"contactEmail.required":   "Invalid email address",
	"contactEmail.email":      "Invalid email address",
	"password.required":       "Password is required",
	"password.min":            "Password must be at least 8 characters",
	"password.containsany":    "Password must contain at least one uppercase letter and one number",
	"confirmPassword.eqfield": "Passwords don't match",
	"confirmPassword.min":     "Confirm Password must be at least 8 characters",
	"otp.len":                 "OTP must be 6 characters",
	"otp.numeric":             "OTP must be 6 characters",
	"type.oneof":              "Type must be tenant or user",
	"token.required":          "Invalid link. Invite token is missing.",
	"tenantId.required":       "Invalid link. Tenant ID is missing.",
}

var nameMessages = map[string]string{
	"TenantRegisterForm": "Business name must be at least 2 characters",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (f *Flow) validateForm(form any) error {
	err := f.validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := out.Fields[field]; seen {
			continue
		}
		out.Fields[field] = messageFor(form, fe)
	}
	return out
}

func messageFor(form any, fe validator.FieldError) string {
	if fe.Field() == "name" && fe.Tag() == "min" {
		if msg, ok := nameMessages[reflect.Indirect(reflect.ValueOf(form)).Type().Name()]; ok {
			return msg
		}
		return "Name must be at least 2 characters"
	}
	if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	return fe.Field() + " is invalid"
}
