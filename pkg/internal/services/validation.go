package services

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validation = validator.New(validator.WithRequiredStructEnabled())

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.]{2,32}$`)

func init() {
	validation.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || len(name) == 0 {
			return field.Name
		}
		return name
	})

	_ = validation.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, err := models.ParseCategory(fl.Field().String())
		return err == nil
	})
	_ = validation.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = validation.RegisterValidation("mood", func(fl validator.FieldLevel) bool {
		_, err := models.ParseMood(fl.Field().String())
		return err == nil
	})
}

// ValidateStruct checks v against its validate tags and reports every failed field.
func ValidateStruct(v any) error {
	err := validation.Struct(v)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	out := &models.ValidationError{}
	for _, item := range errs {
		out.Errors = append(out.Errors, models.FieldError{
			Field:   item.Field(),
			Message: describeFieldError(item),
		})
	}
	return out
}

func describeFieldError(item validator.FieldError) string {
	switch item.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", item.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", item.Param())
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid url"
	case "username":
		return "must be 2 to 32 letters, digits, dots or underscores"
	case "category":
		return "must be one of " + strings.Join(lo.Map(models.Categories, func(item models.CategoryInfo, _ int) string {
			return string(item.Name)
		}), ", ")
	case "mood":
		return "must be one of " + strings.Join(lo.Map(models.Moods, func(item models.Mood, _ int) string {
			return string(item)
		}), ", ")
	default:
		return "is invalid"
	}
}
