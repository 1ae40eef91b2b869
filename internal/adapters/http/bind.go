package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/kirillkom/error-review-admin/internal/core/domain"
)

const maxJSONBody = 1 << 20

type validatorSvc struct {
	validate   *validator.Validate
	translator ut.Translator
}

var (
	validatorOnce sync.Once
	validatorInst *validatorSvc
)

func getValidator() *validatorSvc {
	validatorOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = v.RegisterTranslation("notblank", trans,
			func(t ut.Translator) error {
				return t.Add("notblank", "{0} must not be blank", true)
			},
			func(t ut.Translator, fe validator.FieldError) string {
				msg, _ := t.T("notblank", fe.Field())
				return msg
			},
		)

		validatorInst = &validatorSvc{validate: v, translator: trans}
	})
	return validatorInst
}

// parseJSON decodes a single JSON object into T and validates it. Failures
// are reported as invalid input.
func parseJSON[T any](r *http.Request) (T, error) {
	var zero T
	defer r.Body.Close()

	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	var dst T
	if err := dec.Decode(&dst); err != nil {
		if errors.Is(err, io.EOF) {
			return zero, domain.WrapError(domain.ErrInvalidInput, "parse request", errors.New("empty body"))
		}
		return zero, domain.WrapError(domain.ErrInvalidInput, "parse request", fmt.Errorf("invalid json: %v", err))
	}
	if dec.More() {
		return zero, domain.WrapError(domain.ErrInvalidInput, "parse request", errors.New("unexpected trailing data"))
	}

	svc := getValidator()
	if err := svc.validate.Struct(dst); err != nil {
		return zero, domain.WrapError(domain.ErrInvalidInput, "parse request", errors.New(svc.message(err)))
	}
	return dst, nil
}

func (s *validatorSvc) message(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "validation error"
	}
	return fieldErrs[0].Translate(s.translator)
}
