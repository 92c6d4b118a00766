// Package validation wraps go-playground/validator with the form rules used
// across the application and converts its output into field-level messages.
package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldError describes a single rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Error collects every field-level violation found in one submission.
type Error struct {
	Fields []FieldError `json:"fields"`
}

func (e *Error) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(e.Messages(), "; ")
}

// Add appends a violation.
func (e *Error) Add(field, rule, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Rule: rule, Message: message})
}

// Merge appends the violations of other, if any.
func (e *Error) Merge(other error) {
	var ve *Error
	if errors.As(other, &ve) && ve != nil {
		e.Fields = append(e.Fields, ve.Fields...)
	}
}

// Has reports whether field failed the given rule.
func (e *Error) Has(field, rule string) bool {
	for _, f := range e.Fields {
		if f.Field == field && f.Rule == rule {
			return true
		}
	}
	return false
}

// Messages returns the human readable messages in reporting order.
func (e *Error) Messages() []string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return msgs
}

// OrNil returns e when it holds violations and nil otherwise.
func (e *Error) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

var (
	alphaSpaceRe = regexp.MustCompile(`^[A-Za-z\s]*$`)
	upperRe      = regexp.MustCompile(`[A-Z]`)
	lowerRe      = regexp.MustCompile(`[a-z]`)
	digitRe      = regexp.MustCompile(`[0-9]`)
	specialRe    = regexp.MustCompile(`[!@&]`)

	defaultOnce sync.Once
	defaultV    *validator.Validate
)

func engine() *validator.Validate {
	defaultOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		mustRegister(v, "alphaspace", alphaSpaceRe)
		mustRegister(v, "hasupper", upperRe)
		mustRegister(v, "haslower", lowerRe)
		mustRegister(v, "hasdigit", digitRe)
		mustRegister(v, "hasspecial", specialRe)
		mustRegisterFunc(v, "finite", func(fl validator.FieldLevel) bool {
			f := fl.Field().Float()
			return !math.IsInf(f, 0) && !math.IsNaN(f)
		})
		// maxbytes limits byte length, not rune count.
		mustRegisterFunc(v, "maxbytes", func(fl validator.FieldLevel) bool {
			n, err := strconv.Atoi(fl.Param())
			if err != nil {
				return false
			}
			return len(fl.Field().String()) <= n
		})
		defaultV = v
	})
	return defaultV
}

func mustRegister(v *validator.Validate, tag string, re *regexp.Regexp) {
	mustRegisterFunc(v, tag, func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	})
}

func mustRegisterFunc(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s: %v", tag, err))
	}
}

// Struct validates s against its `validate` tags. The returned error is
// always an *Error, or nil when s is valid.
//
// Field names come from the `form` tag. Messages come from the optional `msg`
// tag ("rule:message;rule:message"), falling back to a generic sentence built
// from the `label` tag.
func Struct(s any) error {
	err := engine().Struct(s)
	if err == nil {
		return nil
	}

	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return fmt.Errorf("validate: %w", err)
	}

	t := reflect.TypeOf(s)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	out := &Error{}
	for _, fe := range invalid {
		sf, _ := t.FieldByName(fe.StructField())
		out.Add(fe.Field(), fe.Tag(), message(sf, fe))
	}
	return out
}

func message(sf reflect.StructField, fe validator.FieldError) string {
	for _, part := range strings.Split(sf.Tag.Get("msg"), ";") {
		rule, text, ok := strings.Cut(part, ":")
		if ok && strings.TrimSpace(rule) == fe.Tag() {
			return strings.TrimSpace(text)
		}
	}

	label := sf.Tag.Get("label")
	if label == "" {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "min":
		return fmt.Sprintf("%s should be at least %s characters long", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s should be at most %s characters long", label, fe.Param())
	case "maxbytes":
		return fmt.Sprintf("%s should be at most %s bytes long", label, fe.Param())
	case "finite":
		return label + " must be a number"
	case "email":
		return "Please enter a valid email"
	case "alphaspace":
		return label + " should contain only alphabets"
	case "hasupper":
		return label + " should contain at least one uppercase letter"
	case "haslower":
		return label + " should contain at least one lowercase letter"
	case "hasdigit":
		return label + " should contain at least one number"
	case "hasspecial":
		return label + " should contain at least one special character"
	case "oneof":
		return "Invalid " + strings.ToLower(label)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", label, fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range", label)
	default:
		return label + " is invalid"
	}
}
