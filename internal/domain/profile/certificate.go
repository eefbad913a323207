package profile

import (
	"strings"

	"profile-forms/internal/apperr"

	"github.com/go-playground/validator/v10"
)

type Certificate struct {
	Name          string `json:"certificate_name" validate:"required,max=200"`
	Issuer        string `json:"issuer" validate:"required,max=200"`
	IssueYear     string `json:"issue_year" validate:"required,year"`
	ExpiryYear    string `json:"expiry_year,omitempty" validate:"omitempty,year"`
	CredentialURL string `json:"credential_url,omitempty" validate:"omitempty,url"`
}

func (c Certificate) Validate() apperr.FieldErrors {
	return validate(c)
}

func (c Certificate) Sanitize() Certificate {
	c.Name = clean(c.Name)
	c.Issuer = clean(c.Issuer)
	c.IssueYear = strings.TrimSpace(c.IssueYear)
	c.ExpiryYear = strings.TrimSpace(c.ExpiryYear)
	c.CredentialURL = strings.TrimSpace(c.CredentialURL)
	return c
}

func (c Certificate) HasRequired() bool {
	return strings.TrimSpace(c.Name) != "" ||
		strings.TrimSpace(c.Issuer) != "" ||
		strings.TrimSpace(c.IssueYear) != ""
}

func certificateStructValidation(sl validator.StructLevel) {
	c := sl.Current().Interface().(Certificate)
	if c.ExpiryYear != "" {
		yearOrder(sl, c.IssueYear, c.ExpiryYear, "expiry_year", "issue_year")
	}
}
