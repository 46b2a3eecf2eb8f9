package validation

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"km-backend/internal/gateway"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("payment_provider", validateProvider)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidateStruct returns field errors keyed by json name, nil when data is valid
func ValidateStruct(data interface{}) url.Values {
	err := validate.Struct(data)
	if err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) url.Values {
	errorsMap := url.Values{}
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fieldErr := range validationErrs {
			errorsMap.Add(fieldErr.Field(), getErrorMessage(fieldErr))
		}
	} else {
		errorsMap.Add("general", "validation failed: "+err.Error())
	}
	return errorsMap
}

func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", err.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", err.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", err.Param())
	case "datetime":
		return fmt.Sprintf("must be a date in format %s", err.Param())
	case "payment_provider":
		return "must be one of: PAYME CLICK UZUM PAYNET"
	default:
		return fmt.Sprintf("invalid value for %s (tag: %s)", err.Field(), err.Tag())
	}
}

func validateProvider(fl validator.FieldLevel) bool {
	_, ok := gateway.ParseProvider(fl.Field().String())
	return ok
}
