package profile

import (
	"strings"

	"profile-forms/internal/apperr"

	"github.com/go-playground/validator/v10"
)

const (
	KindEducation   = "educations"
	KindExperience  = "experiences"
	KindCertificate = "certificates"
)

// Kinds lists the resource kinds a profile is made of, in form order.
var Kinds = []string{KindEducation, KindExperience, KindCertificate}

type Education struct {
	Institution  string `json:"institution" validate:"required,max=200"`
	Degree       string `json:"degree" validate:"required,max=200"`
	FieldOfStudy string `json:"field_of_study,omitempty" validate:"max=200"`
	StartYear    string `json:"start_year" validate:"required,year"`
	EndYear      string `json:"end_year,omitempty" validate:"omitempty,year"`
	Score        string `json:"score,omitempty" validate:"omitempty,score"`
	ScoreType    string `json:"score_type,omitempty" validate:"omitempty,oneof=percentage cgpa gpa"`
}

func (e Education) Validate() apperr.FieldErrors {
	return validate(e)
}

// Sanitize returns a trimmed, markup-free copy.
func (e Education) Sanitize() Education {
	e.Institution = clean(e.Institution)
	e.Degree = clean(e.Degree)
	e.FieldOfStudy = clean(e.FieldOfStudy)
	e.StartYear = strings.TrimSpace(e.StartYear)
	e.EndYear = strings.TrimSpace(e.EndYear)
	e.Score = strings.TrimSpace(e.Score)
	e.ScoreType = strings.ToLower(strings.TrimSpace(e.ScoreType))
	return e
}

// HasRequired reports whether any required field has a value.
func (e Education) HasRequired() bool {
	return strings.TrimSpace(e.Institution) != "" ||
		strings.TrimSpace(e.Degree) != "" ||
		strings.TrimSpace(e.StartYear) != ""
}

func educationStructValidation(sl validator.StructLevel) {
	e := sl.Current().Interface().(Education)
	if e.EndYear != "" {
		yearOrder(sl, e.StartYear, e.EndYear, "end_year", "start_year")
	}
	if e.Score != "" && e.ScoreType == "" {
		sl.ReportError(e.ScoreType, "score_type", "score_type", "required", "")
	}
}
