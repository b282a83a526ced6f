package handler

import (
	"auth_service/internal/service"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type registerRequest struct {
	Name     string `json:"name" form:"name" binding:"required,max=255"`
	Email    string `json:"email" form:"email" binding:"required,max=255,email"`
	Password string `json:"password" form:"password" binding:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email" binding:"required,max=255,email"`
	Password string `json:"password" form:"password" binding:"required,min=8"`
}

var errMalformedBody = errors.New(errMalformedInput)

var registerTagNames sync.Once

// useJSONFieldNames makes validation errors report the wire name of a field.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// bindRequest decodes the body into req and validates it. An empty body is
// validated as an all-empty request. The error is either errMalformedBody or
// a *service.ValidationError.
func bindRequest(c *gin.Context, req any) error {
	err := c.ShouldBind(req)
	if errors.Is(err, io.EOF) {
		err = binding.Validator.ValidateStruct(req)
	}
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}

	verr := service.NewValidationError()
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), validationMessage(fe))
	}

	return verr
}

func validationMessage(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", field)
	case "min":
		return fmt.Sprintf("The %s must be at least %s characters.", field, fe.Param())
	case "max":
		return fmt.Sprintf("The %s must not be greater than %s characters.", field, fe.Param())
	default:
		return fmt.Sprintf("The %s is invalid.", field)
	}
}
