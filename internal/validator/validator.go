package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
)

var seatNumberRgx = regexp.MustCompile(`^[A-Z]{1,2}[0-9]{1,3}$`)

func NewValidator() *validator.Validate {
	validator := validator.New(validator.WithRequiredStructEnabled())

	// report fields by their JSON names
	validator.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	validator.RegisterValidation("seatnumber", validateSeatNumber)
	validator.RegisterValidation("payment_method", validatePaymentMethod)
	validator.RegisterValidation("payment_outcome", validatePaymentOutcome)

	return validator
}

func validateSeatNumber(fl validator.FieldLevel) bool {
	return seatNumberRgx.MatchString(fl.Field().String())
}

func validatePaymentMethod(fl validator.FieldLevel) bool {
	return domain.PaymentMethod(fl.Field().String()).Valid()
}

// payment outcomes reported from outside can only settle a pending booking
func validatePaymentOutcome(fl validator.FieldLevel) bool {
	switch domain.PaymentStatus(fl.Field().String()) {
	case domain.PaymentStatusPaid, domain.PaymentStatusFailed:
		return true
	}

	return false
}

// ValidationMessage converts validator errors into readable messages
func ValidationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return fmt.Sprintf("is required when %s is missing", err.Param())
	case "required_with":
		return fmt.Sprintf("is required together with %s", err.Param())
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "unique":
		return "must not contain duplicates"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", err.Param())
	case "min":
		switch err.Kind() {
		case reflect.Slice:
			return fmt.Sprintf("must contain at least %s items", err.Param())
		case reflect.String:
			return fmt.Sprintf("must be at least %s characters long", err.Param())
		}
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		switch err.Kind() {
		case reflect.Slice:
			return fmt.Sprintf("must contain at most %s items", err.Param())
		case reflect.String:
			return fmt.Sprintf("must be at most %s characters long", err.Param())
		}
		return fmt.Sprintf("must be at most %s", err.Param())
	case "seatnumber":
		return "must be a seat number such as A1 or AB12"
	case "payment_method":
		return "must be one of: momo, vnpay, visa, cod"
	case "payment_outcome":
		return "must be one of: paid, failed"
	default:
		return "is invalid"
	}
}
