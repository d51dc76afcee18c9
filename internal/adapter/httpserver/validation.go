package httpserver

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/pscheid92/screentime/internal/domain"
)

// sessionPayload is one ingested record. Pointers tell a missing field from
// its zero value.
type sessionPayload struct {
	SessionID  string     `json:"sessionId" validate:"max=128"`
	URL        string     `json:"url" validate:"max=2048"`
	Title      string     `json:"title" validate:"max=512"`
	Category   string     `json:"category" validate:"max=64"`
	StartedAt  *time.Time `json:"startedAt" validate:"required"`
	EndedAt    *time.Time `json:"endedAt" validate:"required"`
	Duration   *int       `json:"duration" validate:"required,gte=0"`
	Anonymized bool       `json:"anonymized"`
}

func (p sessionPayload) toInput() domain.SessionInput {
	return domain.SessionInput{
		SessionID:  p.SessionID,
		URL:        p.URL,
		Title:      p.Title,
		Category:   p.Category,
		StartedAt:  *p.StartedAt,
		EndedAt:    *p.EndedAt,
		Duration:   *p.Duration,
		Anonymized: p.Anonymized,
	}
}

type retentionPayload struct {
	Days           *int  `json:"days" validate:"omitempty,min=1,max=3650"`
	AnonymizedOnly *bool `json:"anonymizedOnly"`
}

func (p retentionPayload) toPolicy() domain.RetentionPolicy {
	policy := domain.DefaultRetentionPolicy()
	if p.Days != nil {
		policy.Days = *p.Days
	}
	if p.AnonymizedOnly != nil {
		policy.AnonymizedOnly = *p.AnonymizedOnly
	}
	return policy
}

// payloadValidator validates request payloads and renders field errors as
// English messages keyed by JSON field name.
type payloadValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func newPayloadValidator(validate *validator.Validate) *payloadValidator {
	english := en.New()
	uni := ut.New(english, english)
	translator, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &payloadValidator{validate: validate, translator: translator}
}

// Struct validates v. Field errors are added to details under prefix+field.
func (pv *payloadValidator) Struct(v any, prefix string, details map[string]string) error {
	err := pv.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	for _, fe := range fieldErrs {
		details[prefix+fe.Field()] = fe.Translate(pv.translator)
	}
	return err
}

func indexPrefix(i int) string {
	return strconv.Itoa(i) + "."
}
