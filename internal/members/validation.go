package members

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/nyaruka/phonenumbers"

	"alumni/internal/apperr"
)

// DefaultPhoneRegion is used for numbers entered without a country code.
const DefaultPhoneRegion = "US"

const firstGraduationYear = 1900

// NormalizePhone parses raw in region and returns it in E.164 form. Empty input stays empty.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	number, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return "", errors.New("must be a valid phone number")
	}
	return phonenumbers.Format(number, phonenumbers.E164), nil
}

// profileInput flattens ProfileFields for rule evaluation.
type profileInput struct {
	FirstName      string
	LastName       string
	Phone          string
	GraduationYear int
	Department     string
	Occupation     string
	Company        string
	City           string
	Bio            string
	PhotoURL       string
}

// ValidateFields checks self-service edits and normalises the phone number in place.
func ValidateFields(fields *ProfileFields, region string, now time.Time) error {
	input := profileInput{
		FirstName:  deref(fields.FirstName),
		LastName:   deref(fields.LastName),
		Phone:      deref(fields.Phone),
		Department: deref(fields.Department),
		Occupation: deref(fields.Occupation),
		Company:    deref(fields.Company),
		City:       deref(fields.City),
		Bio:        deref(fields.Bio),
		PhotoURL:   deref(fields.PhotoURL),
	}
	if fields.GraduationYear != nil && *fields.GraduationYear != nil {
		input.GraduationYear = **fields.GraduationYear
	}

	err := validation.ValidateStruct(&input,
		validation.Field(&input.FirstName, validation.Length(0, 80)),
		validation.Field(&input.LastName, validation.Length(0, 80)),
		validation.Field(&input.Phone, validation.By(func(value interface{}) error {
			_, err := NormalizePhone(value.(string), region)
			return err
		})),
		validation.Field(&input.GraduationYear, validation.Min(firstGraduationYear), validation.Max(now.Year()+6)),
		validation.Field(&input.Department, validation.Length(0, 120)),
		validation.Field(&input.Occupation, validation.Length(0, 120)),
		validation.Field(&input.Company, validation.Length(0, 120)),
		validation.Field(&input.City, validation.Length(0, 120)),
		validation.Field(&input.Bio, validation.Length(0, 2000)),
		validation.Field(&input.PhotoURL, is.URL, validation.Length(0, 2048)),
	)
	if err != nil {
		return apperr.Validation(renameFields(err))
	}

	if fields.Phone != nil {
		normalized, _ := NormalizePhone(*fields.Phone, region)
		fields.Phone = &normalized
	}
	return nil
}

// renameFields maps Go field names onto the JSON names clients send.
func renameFields(err error) error {
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	renamed := make(validation.Errors, len(fieldErrs))
	for key, value := range fieldErrs {
		renamed[jsonName(key)] = value
	}
	return renamed
}

func jsonName(field string) string {
	switch field {
	case "PhotoURL":
		return "photoUrl"
	case "":
		return field
	default:
		return strings.ToLower(field[:1]) + field[1:]
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
