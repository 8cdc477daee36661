package validation

import (
	"errors"
	"strings"

	val "github.com/go-playground/validator/v10"

	"homehelper/internal/failure"
)

var validate = val.New(val.WithRequiredStructEnabled())

var messages = map[string]string{
	"required": "{field} is required",
	"gt":       "{field} must be greater than {param}",
	"lte":      "{field} must be less than or equal to {param}",
	"max":      "{field} must be at most {param} characters",
	"oneof":    "{field} must be one of {param}",
	"url":      "{field} must be a valid URL",
}

// RejectRequest carries the provider's reason for rejecting a booking.
type RejectRequest struct {
	Reason string `json:"rejectionReason" validate:"required,max=500"`
}

// Normalize trims the reason so whitespace-only input fails "required".
func (r *RejectRequest) Normalize() {
	r.Reason = strings.TrimSpace(r.Reason)
}

// HoursRequest guards numeric hour inputs such as booking duration.
type HoursRequest struct {
	Hours float64 `json:"hours" validate:"gt=0,lte=24"`
}

// ValidateReject trims and checks a rejection reason. The message matches the
// dashboard's inline hint.
func ValidateReject(reason string) (RejectRequest, error) {
	req := RejectRequest{Reason: reason}
	req.Normalize()
	if err := validate.Struct(&req); err != nil {
		var valErrors val.ValidationErrors
		if errors.As(err, &valErrors) && len(valErrors) > 0 && valErrors[0].Tag() == "required" {
			return req, failure.Validation("Please enter a reason for rejection.")
		}
		return req, failure.Validation(message(err))
	}
	return req, nil
}

func ValidateStruct[T any](data *T) error {
	if err := validate.Struct(data); err != nil {
		return failure.Validation(message(err))
	}
	return nil
}

func ValidateVar(field any, tag string) error {
	if err := validate.Var(field, tag); err != nil {
		return failure.Validation(message(err))
	}
	return nil
}

func message(err error) string {
	var valErrors val.ValidationErrors
	if errors.As(err, &valErrors) {
		for _, valErr := range valErrors {
			msg := messages[valErr.Tag()]
			if msg == "" {
				continue
			}
			msg = strings.ReplaceAll(msg, "{field}", valErr.Field())
			msg = strings.ReplaceAll(msg, "{param}", valErr.Param())
			return msg
		}
		return valErrors.Error()
	}
	return err.Error()
}
