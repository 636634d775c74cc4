package quickstrategy

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"bot-builder-go/internal/program"
	"github.com/spf13/cast"
)

// FieldError describes one invalid form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field of a submitted form.
type ValidationError struct {
	Template string
	Fields   []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Message
	}
	return fmt.Sprintf("invalid %s form: %s", e.Template, strings.Join(parts, "; "))
}

// Messages returns the field errors keyed by field name, as shown under the
// form inputs.
func (e *ValidationError) Messages() map[string]string {
	m := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		m[f.Field] = f.Message
	}
	return m
}

// validateForm checks fields against the template's form schema and returns
// the normalized literal for every declared field.
func validateForm(t StrategyTemplate, fields map[string]any) (map[string]string, error) {
	values := make(map[string]string, len(t.Form))
	var invalid []FieldError
	for _, f := range t.Form {
		var value string
		if raw, ok := fields[f.Name]; ok && raw != nil {
			value = strings.TrimSpace(cast.ToString(raw))
		}
		if value == "" {
			if f.Required {
				invalid = append(invalid, FieldError{Field: f.Name, Message: "is required"})
				continue
			}
			if value = f.Default; value == "" {
				values[f.Name] = ""
				continue
			}
		}
		normalized, problem := f.check(value)
		if problem != "" {
			invalid = append(invalid, FieldError{Field: f.Name, Message: problem})
			continue
		}
		values[f.Name] = normalized
	}
	if len(invalid) > 0 {
		return nil, &ValidationError{Template: t.ID, Fields: invalid}
	}
	return values, nil
}

func (f FieldSchema) check(value string) (string, string) {
	switch f.Kind {
	case KindNumber, KindInteger:
		n, err := cast.ToFloat64E(value)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return "", "must be a number"
		}
		if f.Kind == KindInteger && n != math.Trunc(n) {
			return "", "must be a whole number"
		}
		if f.Min != nil && n < *f.Min {
			return "", "must be at least " + cast.ToString(*f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return "", "must be at most " + cast.ToString(*f.Max)
		}
		return cast.ToString(n), ""
	case KindSelect:
		if !slices.Contains(f.Options, value) {
			return "", "must be one of " + strings.Join(f.Options, ", ")
		}
	}
	return value, ""
}

// fragment instantiates the template topology. Block ids are the template's
// local ids behind prefix; placeholders are replaced from values.
func (t StrategyTemplate) fragment(values map[string]string, prefix string) *program.Fragment {
	frag := &program.Fragment{}
	for _, bt := range t.Blocks {
		b := program.NewBlock(prefix+bt.ID, bt.Type)
		for slot, v := range bt.Fields {
			b.WithField(slot, substitute(v, values))
		}
		for slot, child := range bt.Children {
			b.WithChild(slot, prefix+child)
		}
		frag.Blocks = append(frag.Blocks, b)
	}
	for _, name := range t.Variables {
		frag.Variables = append(frag.Variables, program.Variable{ID: prefix + "var_" + name, Name: name})
	}
	return frag
}

func substitute(value string, values map[string]string) string {
	return placeholder.ReplaceAllStringFunc(value, func(m string) string {
		return values[m[2:len(m)-2]]
	})
}
