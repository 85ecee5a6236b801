package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		mustRegister(v, "isodate", isoDateField)
		mustRegister(v, "nonblank", nonBlankField)
		mustRegister(v, "customertype", customerTypeField)
		mustRegister(v, "roomtype", roomTypeField)
		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

func validateStruct(s any) error {
	err := validatorInstance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidReservation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidReservation, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	// Namespace is "Reservation.rooms[0].roomType"; drop the struct name.
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "isodate":
		return field + " must be a valid YYYY-MM-DD date"
	case "nonblank":
		return field + " is required"
	case "customertype":
		return field + " must be one of 一般, 学生, 修学, 子供"
	case "roomtype":
		return field + " is not a known room"
	case "gt":
		return field + " must be greater than " + fe.Param()
	case "gte":
		return field + " must not be negative"
	case "max":
		if fe.Kind() == reflect.String {
			return field + " is too long"
		}
		return field + " must be at most " + fe.Param()
	default:
		return field + " failed " + fe.Tag()
	}
}

func isoDateField(fl validator.FieldLevel) bool {
	_, err := ParseDate(fl.Field().String())
	return err == nil
}

func nonBlankField(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func customerTypeField(fl validator.FieldLevel) bool {
	return CustomerType(fl.Field().String()).IsKnown()
}

func roomTypeField(fl validator.FieldLevel) bool {
	return RoomType(fl.Field().String()).IsKnown()
}
