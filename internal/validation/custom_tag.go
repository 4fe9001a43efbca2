package validation

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// ISO 639 code with an optional region, e.g. "es", "pt-BR", "zh-Hant"
var langCodeRegex = regexp.MustCompile(`^[a-z]{2,3}(-[A-Za-z]{2,4})?$`)

type customTag struct {
	name  string
	fn    validator.Func
	alias string
}

var customTags = []customTag{
	{name: "langcode", fn: ValidateLangCode},
	{name: "wsurl", alias: "url,startswith=ws"},
	{name: "meetingid", alias: "printascii,min=1,max=256"},
}

func init() {
	MustRegisterGin()
}

func registerCustomTags(v *validator.Validate) error {
	for _, t := range customTags {
		if t.fn == nil {
			RegisterAlias(v, t.name, t.alias)
			continue
		}
		if err := Register(v, t.name, t.fn); err != nil {
			return err
		}
	}
	return nil
}

// New returns a standalone validator with the custom tags, for payloads
// decoded outside gin binding.
func New() *validator.Validate {
	v := validator.New()
	if err := registerCustomTags(v); err != nil {
		panic(err)
	}
	return v
}

func ValidateLangCode(fl validator.FieldLevel) bool {
	return langCodeRegex.MatchString(fl.Field().String())
}
