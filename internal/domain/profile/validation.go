// Package profile holds the candidate profile sub-records edited through the
// multi-entry forms, with their validation and sanitization rules.
package profile

import (
	"fmt"
	"html"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"profile-forms/internal/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

var yearPattern = regexp.MustCompile(`^\d{4}$`)

var (
	validatorOnce sync.Once
	validatorInst *validator.Validate

	sanitizerOnce sync.Once
	sanitizer     *bluemonday.Policy
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("year", func(fl validator.FieldLevel) bool {
			return yearPattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("score", func(fl validator.FieldLevel) bool {
			f, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
			return err == nil && f >= 0
		})
		v.RegisterStructValidation(educationStructValidation, Education{})
		v.RegisterStructValidation(experienceStructValidation, Experience{})
		v.RegisterStructValidation(certificateStructValidation, Certificate{})
		validatorInst = v
	})
	return validatorInst
}

// validate runs the struct rules and flattens them into a field → message map.
func validate(model any) apperr.FieldErrors {
	out := apperr.FieldErrors{}
	err := getValidator().Struct(model)
	if err == nil {
		return out
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = formatValidationMessage(fe)
	}
	return out
}

func formatValidationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "max":
		return fmt.Sprintf("must not exceed %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "year":
		return "must be a 4-digit year"
	case "score":
		return "must be a number"
	case "url":
		return "must be a valid URL"
	case "gtefield_year":
		return "must not be before " + fe.Param()
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// yearOrder reports an error on field when end < start. Both must already be
// valid years; format errors are reported by the field rules.
func yearOrder(sl validator.StructLevel, start, end string, field, param string) {
	if !yearPattern.MatchString(start) || !yearPattern.MatchString(end) {
		return
	}
	s, _ := strconv.Atoi(start)
	e, _ := strconv.Atoi(end)
	if e < s {
		sl.ReportError(end, field, field, "gtefield_year", param)
	}
}

func policy() *bluemonday.Policy {
	sanitizerOnce.Do(func() {
		sanitizer = bluemonday.StrictPolicy()
	})
	return sanitizer
}

const maxCleanPasses = 4

// clean strips markup and surrounding whitespace and returns plain text, so
// "AT&T" survives. Entity-encoded markup is decoded before sanitizing and the
// pass repeats until the text is stable; "&lt;b&gt;" never comes back as a tag.
func clean(s string) string {
	for i := 0; i < maxCleanPasses; i++ {
		next := html.UnescapeString(policy().Sanitize(html.UnescapeString(s)))
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}
	// Still changing: keep the policy's escaped form.
	return strings.TrimSpace(policy().Sanitize(html.UnescapeString(s)))
}
