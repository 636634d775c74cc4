package localization

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed en.yaml
var defaultMessages []byte

// Localizer resolves message ids and text fragments to display strings.
type Localizer interface {
	Translate(id string) string
}

// Catalog is a flat id -> text table. Ids without an entry translate to
// themselves.
type Catalog struct {
	messages map[string]string
}

var _ Localizer = (*Catalog)(nil)

// NewCatalog creates a catalog from a message table.
func NewCatalog(messages map[string]string) *Catalog {
	return &Catalog{messages: messages}
}

// Load reads a YAML message table.
func Load(r io.Reader) (*Catalog, error) {
	messages := make(map[string]string)
	if err := yaml.NewDecoder(r).Decode(&messages); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return NewCatalog(messages), nil
}

// LoadFile reads a YAML message table from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open locale file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the English catalog shipped with the binary.
func Default() *Catalog {
	messages := make(map[string]string)
	if err := yaml.Unmarshal(defaultMessages, &messages); err != nil {
		panic(fmt.Sprintf("embedded locale is invalid: %v", err))
	}
	return NewCatalog(messages)
}

// Translate returns the text for id, or id itself when the catalog has no
// entry. It never fails.
func (c *Catalog) Translate(id string) string {
	if c == nil {
		return id
	}
	if text, ok := c.messages[id]; ok && text != "" {
		return text
	}
	return id
}
