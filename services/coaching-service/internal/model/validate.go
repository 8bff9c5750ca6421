package model

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/strideacademy/coachbook/services/coaching-service/internal/tier"
)

var hhmm = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			return hhmm.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("tier", func(fl validator.FieldLevel) bool {
			return tier.Tier(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("servicekind", func(fl validator.FieldLevel) bool {
			return ServiceKind(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("surface", func(fl validator.FieldLevel) bool {
			return Surface(fl.Field().String()).Valid()
		})
		validate = v
	})
	return validate
}

// Validate checks struct tags and converts failures to a ValidationError keyed
// by JSON field name.
func Validate(s any) error {
	err := validatorInstance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fieldPath(fe)] = describe(fe)
	}
	return out
}

// ParseHHMM splits a 24-hour "HH:MM" time. ok is false for anything else.
func ParseHHMM(s string) (hour, minute int, ok bool) {
	if !hhmm.MatchString(s) {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(s[:2])
	minute, _ = strconv.Atoi(s[3:])
	return hour, minute, true
}

// fieldPath drops the top-level struct name so nested fields read
// "athlete.firstName".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a UUID"
	case "hhmm":
		return "must be a 24-hour time formatted HH:MM"
	case "tier":
		return "must be one of " + tier.Names()
	case "servicekind":
		return "must be one of group_call, one_on_one, role_model"
	case "surface":
		return "must be one of home, parent_platform"
	default:
		return "is invalid"
	}
}
