package util

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// report json field names instead of Go ones
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	v.RegisterValidation("roomcode", func(fl validator.FieldLevel) bool {
		return IsRoomCode(fl.Field().String())
	})

	return v
}

// IsRoomCode reports whether code has the shape of a room code. Any upper case
// letter or digit is accepted; only generated codes avoid the ambiguous ones.
func IsRoomCode(code string) bool {
	return roomCodePattern.MatchString(code)
}

// NormalizeRoomCode upper cases and trims what a player typed.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
