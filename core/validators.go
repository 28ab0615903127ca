package core

import (
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	httpMethodTag  = "httpmethod"
	httpMethodText = "{0} must be one of GET, POST, PUT, PATCH or DELETE"
	httpMethods    = map[string]bool{"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true}

	noTokenTag  = "notoken"
	noTokenText = "{0} must not carry an access token"
	tokenParams = []string{"token", "access_token", "api_token", "auth_token"}

	requiredTag  = "required"
	requiredText = "this field is required"
)

// NewValidator returns a validator and its english translator, ready for use.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	InitValidators(validate, translator)
	return validate, translator
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(httpMethodTag, httpMethodValidation)
	RegisterCustomTranslation(validate, translator, httpMethodTag, httpMethodText)

	_ = validate.RegisterValidation(noTokenTag, noTokenValidation)
	RegisterCustomTranslation(validate, translator, noTokenTag, noTokenText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
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

// Custom Global Validators

// httpMethodValidation only allows the methods spoken by the upstream APIs.
func httpMethodValidation(fl validator.FieldLevel) bool {
	return httpMethods[fl.Field().String()]
}

// noTokenValidation rejects paths or query values with a token-like query parameter.
func noTokenValidation(fl validator.FieldLevel) bool {
	field := fl.Field()
	switch field.Kind() {
	case reflect.String:
		return !HasTokenParam(field.String())
	case reflect.Map:
		if q, ok := field.Interface().(url.Values); ok {
			return !hasTokenKey(q)
		}
	}
	return true
}

// HasTokenParam reports whether the query part of a path carries a token-like parameter.
func HasTokenParam(path string) bool {
	i := strings.IndexByte(path, '?')
	if i < 0 {
		return false
	}
	q, err := url.ParseQuery(path[i+1:])
	if err != nil {
		return false
	}
	return hasTokenKey(q)
}

func hasTokenKey(q url.Values) bool {
	for key := range q {
		lkey := strings.ToLower(key)
		for _, p := range tokenParams {
			if lkey == p {
				return true
			}
		}
	}
	return false
}
