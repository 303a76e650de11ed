package http_utils

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

func SendResponse(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)

	if err != nil {
		log.Println(err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

// ValidateStruct runs v over s. It returns nil when s is valid.
func ValidateStruct(v *validator.Validate, s interface{}) *ValidationErrorResponse {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	response := NewValidationErrorResponse(FieldErrors(err))
	return &response
}

// FieldErrors flattens a validation failure into one message per field.
func FieldErrors(err error) []string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	return lo.Map(fieldErrs, func(item validator.FieldError, index int) string {
		return item.Error()
	})
}
