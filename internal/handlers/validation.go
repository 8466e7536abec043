package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/models"
)

var registerOnce sync.Once

// RegisterValidators installs the custom tags used by request DTOs on gin's
// validator. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		// Money validates as its float value so numeric tags such as gt work on it
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if m, ok := field.Interface().(models.Money); ok {
				return m.InexactFloat64()
			}
			return nil
		}, models.Money{})

		_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			role, ok := models.ParseRole(fl.Field().String())
			return ok && role.SelfRegistrable()
		})

		_ = v.RegisterValidation("percent", func(fl validator.FieldLevel) bool {
			f := fl.Field()
			switch f.Kind() {
			case reflect.Float32, reflect.Float64:
				return f.Float() >= 0 && f.Float() <= 100
			case reflect.Int, reflect.Int64, reflect.Int32:
				return f.Int() >= 0 && f.Int() <= 100
			}
			return false
		})
	})
}

// bindJSON decodes and validates the body, rendering a 400 on failure
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		apperrors.HandleError(c, apperrors.ValidationError(validationDetails(err)))
		return false
	}
	return true
}

// validationDetails maps a binding error to field -> message
func validationDetails(err error) map[string]string {
	details := map[string]string{}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details[fieldPath(fe)] = fieldMessage(fe)
		}
		return details
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		details[typeErr.Field] = fmt.Sprintf("must be a %s", typeErr.Type.String())
	case errors.As(err, &syntaxErr):
		details["body"] = "malformed JSON"
	default:
		details["body"] = "invalid request body"
	}
	return details
}

// fieldPath drops the top-level struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "role":
		return "must be client or partner"
	case "percent":
		return "must be between 0 and 100"
	case "eq":
		return fmt.Sprintf("must be %s", fe.Param())
	case "url":
		return "must be a valid URL"
	}
	return "is invalid"
}
