package profile

import (
	"strings"

	"profile-forms/internal/apperr"

	"github.com/go-playground/validator/v10"
)

type Experience struct {
	Company          string `json:"company" validate:"required,max=200"`
	Title            string `json:"title" validate:"required,max=200"`
	Location         string `json:"location,omitempty" validate:"max=200"`
	WorkMode         string `json:"work_mode,omitempty" validate:"omitempty,oneof=onsite remote hybrid"`
	StartYear        string `json:"start_year" validate:"required,year"`
	EndYear          string `json:"end_year,omitempty" validate:"omitempty,year"`
	CurrentlyWorking bool   `json:"currently_working"`
	Description      string `json:"description,omitempty" validate:"max=2000"`
}

func (e Experience) Validate() apperr.FieldErrors {
	return validate(e)
}

func (e Experience) Sanitize() Experience {
	e.Company = clean(e.Company)
	e.Title = clean(e.Title)
	e.Location = clean(e.Location)
	e.WorkMode = strings.ToLower(strings.TrimSpace(e.WorkMode))
	e.StartYear = strings.TrimSpace(e.StartYear)
	e.EndYear = strings.TrimSpace(e.EndYear)
	e.Description = clean(e.Description)
	if e.CurrentlyWorking {
		e.EndYear = ""
	}
	return e
}

func (e Experience) HasRequired() bool {
	return strings.TrimSpace(e.Company) != "" ||
		strings.TrimSpace(e.Title) != "" ||
		strings.TrimSpace(e.StartYear) != ""
}

func experienceStructValidation(sl validator.StructLevel) {
	e := sl.Current().Interface().(Experience)
	if e.CurrentlyWorking {
		return
	}
	if e.EndYear == "" {
		sl.ReportError(e.EndYear, "end_year", "end_year", "required", "")
		return
	}
	yearOrder(sl, e.StartYear, e.EndYear, "end_year", "start_year")
}
