package rooms

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/judgegodwins/ludo-server/util"
	"github.com/samber/lo"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrGameAlreadyStarted = errors.New("game has already started")
	ErrRoomFull           = errors.New("room is full")
	ErrNotHost            = errors.New("only the host can do that")
	ErrNotEnoughPlayers   = errors.New("at least two players are needed to start")
	ErrCodeSpace          = errors.New("could not find a free room code")
)

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

func validate(s any) error {
	err := util.Validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	return &ValidationError{
		Errors: lo.Map(fieldErrs, func(item validator.FieldError, index int) string {
			return describe(item)
		}),
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "roomcode":
		return fe.Field() + " must be 6 letters or digits"
	default:
		return fe.Error()
	}
}
