package core

import (
	"reflect"
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// custom validation tags and their error texts; domain packages register
// their own tags via RegisterCustomTranslation.
const (
	tagAlphaNumUnder = "alphanum_"
	txtAlphaNumUnder = "only alphanumeric characters and underscores are allowed"

	txtRequired = "this field is required"
)

var usernameRegex = regexp.MustCompile(`^[\w\s]+$`)

// InitValidators wires the shared validator instance: English translations,
// JSON field names in error messages, and the custom tags below.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// report errors under the JSON name, not the Go struct field name
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(tagAlphaNumUnder, func(fl validator.FieldLevel) bool {
		return usernameRegex.MatchString(fl.Field().String())
	})
	RegisterCustomTranslation(validate, translator, tagAlphaNumUnder, txtAlphaNumUnder)

	// shorter texts than the stock translations
	RegisterCustomTranslation(validate, translator, "required", txtRequired, true)
	RegisterCustomTranslation(validate, translator, "required_with", txtRequired, true)
}

// RegisterCustomTranslation registers the error text for a validation tag,
// optionally overriding a stock translation.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}
