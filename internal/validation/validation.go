package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/pt_BR"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	pt_translations "github.com/go-playground/validator/v10/translations/pt_BR"

	"github.com/Simplici0/signworks/internal/model"
)

const (
	unitTag   = "unit"
	statusTag = "status"
)

var customTexts = map[string]map[string]string{
	"en": {
		unitTag:   "{0} must be m or m2",
		statusTag: "{0} must be quote, approved, production or completed",
	},
	"pt_BR": {
		unitTag:   "{0} deve ser m ou m2",
		statusTag: "{0} deve ser quote, approved, production ou completed",
	},
}

// Errors maps field names (JSON paths) to translated messages.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator validates records and translates failures into the shop's locale.
type Validator struct {
	validate    *validator.Validate
	translators map[string]ut.Translator
}

// New builds a Validator with the custom tags and both translations registered.
func New() (*Validator, error) {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, pt_BR.New())

	validate := validator.New()
	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := validate.RegisterValidation(unitTag, validUnit); err != nil {
		return nil, fmt.Errorf("register %s validation: %w", unitTag, err)
	}
	if err := validate.RegisterValidation(statusTag, validStatus); err != nil {
		return nil, fmt.Errorf("register %s validation: %w", statusTag, err)
	}

	v := &Validator{validate: validate, translators: map[string]ut.Translator{}}
	for _, name := range []string{"en", "pt_BR"} {
		trans, _ := uni.GetTranslator(name)
		var err error
		if name == "en" {
			err = en_translations.RegisterDefaultTranslations(validate, trans)
		} else {
			err = pt_translations.RegisterDefaultTranslations(validate, trans)
		}
		if err != nil {
			return nil, fmt.Errorf("register %s translations: %w", name, err)
		}
		for tag, text := range customTexts[name] {
			registerTranslation(validate, trans, tag, text)
		}
		v.translators[name] = trans
	}

	return v, nil
}

// Struct validates s and returns Errors translated for locale ("pt-BR" or "en-US").
func (v *Validator) Struct(s any, locale string) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	trans := v.translator(locale)
	out := make(Errors, len(verrs))
	for _, fe := range verrs {
		out[fieldPath(fe.Namespace())] = fe.Translate(trans)
	}
	return out
}

func (v *Validator) translator(locale string) ut.Translator {
	if model.NormalizeLocale(locale) == "pt-BR" {
		return v.translators["pt_BR"]
	}
	return v.translators["en"]
}

// fieldPath drops the root struct name: "ServiceOrder.materials[0].material_id" -> "materials[0].material_id".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func registerTranslation(validate *validator.Validate, trans ut.Translator, tag, text string) {
	_ = validate.RegisterTranslation(
		tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

func validUnit(fl validator.FieldLevel) bool {
	_, ok := model.ParseUnit(fl.Field().String())
	return ok
}

func validStatus(fl validator.FieldLevel) bool {
	return model.Status(fl.Field().String()).Valid()
}
