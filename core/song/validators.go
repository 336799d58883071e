package song

import (
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/ministerio/escalas/core"
)

var (
	songKeyTag   = "songkey"
	songKeyText  = "{0} must be a musical key such as C, F#m or Bb"
	songKeyRegex = regexp.MustCompile(`^[A-G][#b]?(m|maj|dim|aug|sus)?[0-9]?$`)
)

// InitValidators registers the song validations & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(songKeyTag, songKeyValidation)
	core.RegisterCustomTranslation(validate, translator, songKeyTag, songKeyText)
}

func songKeyValidation(fl validator.FieldLevel) bool {
	return songKeyRegex.MatchString(fl.Field().String())
}
