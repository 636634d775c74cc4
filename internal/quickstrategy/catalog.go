package quickstrategy

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"regexp"
	"slices"

	"bot-builder-go/internal/program"
	"gopkg.in/yaml.v3"
)

//go:embed strategies.yaml
var defaultStrategies []byte

// ErrUnknownTemplate is returned when a template id is not in the catalog.
var ErrUnknownTemplate = errors.New("unknown strategy template")

// ItemType tags a long description item.
type ItemType string

const (
	ItemSubtitle       ItemType = "subtitle"
	ItemText           ItemType = "text"
	ItemSubtitleItalic ItemType = "subtitle_italic"
	ItemTextItalic     ItemType = "text_italic"
	ItemMedia          ItemType = "media"
)

// DescriptionItem is one entry of a template's long description. Text items
// carry Content fragments, media items carry Src and Alt.
type DescriptionItem struct {
	Type      ItemType `yaml:"type" json:"type"`
	Content   []string `yaml:"content,omitempty" json:"content,omitempty"`
	ClassName string   `yaml:"class_name,omitempty" json:"class_name,omitempty"`
	Src       string   `yaml:"src,omitempty" json:"src,omitempty"`
	Alt       string   `yaml:"alt,omitempty" json:"alt,omitempty"`
}

// FieldKind is the value type a form field accepts.
type FieldKind string

const (
	KindNumber  FieldKind = "number"
	KindInteger FieldKind = "integer"
	KindSelect  FieldKind = "select"
	KindText    FieldKind = "text"
)

// FieldSchema declares one form field.
type FieldSchema struct {
	Name     string    `yaml:"name" json:"name"`
	Label    string    `yaml:"label" json:"label"`
	Kind     FieldKind `yaml:"kind" json:"kind"`
	Required bool      `yaml:"required" json:"required"`
	Min      *float64  `yaml:"min,omitempty" json:"min,omitempty"`
	Max      *float64  `yaml:"max,omitempty" json:"max,omitempty"`
	Options  []string  `yaml:"options,omitempty" json:"options,omitempty"`
	Default  string    `yaml:"default,omitempty" json:"default,omitempty"`
}

// BlockTemplate is one block of a template's fixed topology. Field values may
// hold {{name}} placeholders naming form fields; Children maps slot names to
// other blocks of the same template.
type BlockTemplate struct {
	ID       string            `yaml:"id" json:"id"`
	Type     string            `yaml:"type" json:"type"`
	Fields   map[string]string `yaml:"fields,omitempty" json:"fields,omitempty"`
	Children map[string]string `yaml:"children,omitempty" json:"children,omitempty"`
}

// StrategyTemplate is a read-only catalog entry.
type StrategyTemplate struct {
	ID              string            `yaml:"id" json:"id"`
	Name            string            `yaml:"name" json:"name"`
	Description     string            `yaml:"description" json:"description"`
	LongDescription []DescriptionItem `yaml:"long_description" json:"long_description"`
	Form            []FieldSchema     `yaml:"form" json:"form"`
	Variables       []string          `yaml:"variables,omitempty" json:"variables,omitempty"`
	Blocks          []BlockTemplate   `yaml:"blocks" json:"blocks"`
}

func (t StrategyTemplate) clone() StrategyTemplate {
	t.LongDescription = slices.Clone(t.LongDescription)
	t.Form = slices.Clone(t.Form)
	t.Variables = slices.Clone(t.Variables)
	t.Blocks = slices.Clone(t.Blocks)
	return t
}

// Field returns the schema of a form field.
func (t StrategyTemplate) Field(name string) (FieldSchema, bool) {
	for _, f := range t.Form {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSchema{}, false
}

var placeholder = regexp.MustCompile(`\{\{(\w+)\}\}`)

func (t StrategyTemplate) validate(types program.TypeCatalog) error {
	if t.ID == "" {
		return errors.New("template without id")
	}
	if len(t.Blocks) == 0 {
		return fmt.Errorf("template %q has no blocks", t.ID)
	}
	for _, b := range t.Blocks {
		if types != nil && !types.Has(b.Type) {
			return fmt.Errorf("template %q block %q: unknown block type %q", t.ID, b.ID, b.Type)
		}
		for slot := range b.Children {
			if _, clash := b.Fields[slot]; clash {
				return fmt.Errorf("template %q block %q: slot %s is both a field and a child", t.ID, b.ID, slot)
			}
		}
		for slot, value := range b.Fields {
			for _, m := range placeholder.FindAllStringSubmatch(value, -1) {
				if _, ok := t.Field(m[1]); !ok {
					return fmt.Errorf("template %q block %q slot %s: undeclared field %q", t.ID, b.ID, slot, m[1])
				}
			}
		}
	}
	if err := t.fragment(nil, "").Validate(); err != nil {
		return fmt.Errorf("template %q: %w", t.ID, err)
	}
	return nil
}

// Catalog is the immutable set of strategy templates, in declaration order.
type Catalog struct {
	templates []StrategyTemplate
	byID      map[string]int
}

type catalogFile struct {
	Strategies []StrategyTemplate `yaml:"strategies"`
}

// LoadCatalog reads templates from YAML and checks their topology. Block types
// are checked against types unless it is nil.
func LoadCatalog(r io.Reader, types program.TypeCatalog) (*Catalog, error) {
	var file catalogFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode strategies: %w", err)
	}
	c := &Catalog{byID: make(map[string]int, len(file.Strategies))}
	for _, t := range file.Strategies {
		if err := t.validate(types); err != nil {
			return nil, err
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate template %q", t.ID)
		}
		c.byID[t.ID] = len(c.templates)
		c.templates = append(c.templates, t)
	}
	return c, nil
}

// LoadCatalogFile reads templates from a YAML file.
func LoadCatalogFile(path string, types program.TypeCatalog) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open strategies file: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f, types)
}

// DefaultCatalog returns the templates shipped with the binary.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(bytes.NewReader(defaultStrategies), program.DefaultTypes())
	if err != nil {
		panic(fmt.Sprintf("embedded strategies are invalid: %v", err))
	}
	return c
}

// All yields every template in declaration order. The sequence can be
// iterated any number of times.
func (c *Catalog) All() iter.Seq[StrategyTemplate] {
	return func(yield func(StrategyTemplate) bool) {
		for _, t := range c.templates {
			if !yield(t.clone()) {
				return
			}
		}
	}
}

// Get returns a template by id.
func (c *Catalog) Get(id string) (StrategyTemplate, error) {
	i, ok := c.byID[id]
	if !ok {
		return StrategyTemplate{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	return c.templates[i].clone(), nil
}

// Len returns the number of templates.
func (c *Catalog) Len() int { return len(c.templates) }
