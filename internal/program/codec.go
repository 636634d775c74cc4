package program

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// Codec converts a graph to and from its persisted text form.
type Codec interface {
	Encode(g *Graph) ([]byte, error)
	Decode(data []byte, types TypeCatalog) (*Graph, error)
}

// XMLCodec reads and writes the block document format used by the editor:
// literal slots as <field>, child slots as <value> wrapping a nested <block>.
type XMLCodec struct{}

var _ Codec = XMLCodec{}

type xmlDocument struct {
	XMLName   xml.Name      `xml:"xml"`
	Variables []xmlVariable `xml:"variables>variable,omitempty"`
	Blocks    []*xmlBlock   `xml:"block"`
}

type xmlVariable struct {
	ID   string `xml:"id,attr"`
	Name string `xml:",chardata"`
}

type xmlBlock struct {
	Type   string     `xml:"type,attr"`
	ID     string     `xml:"id,attr"`
	Fields []xmlField `xml:"field"`
	Values []xmlValue `xml:"value"`
}

type xmlField struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type xmlValue struct {
	Name  string    `xml:"name,attr"`
	Block *xmlBlock `xml:"block"`
}

// Encode writes the graph as an indented XML document.
func (XMLCodec) Encode(g *Graph) ([]byte, error) {
	doc := xmlDocument{}
	for _, v := range g.variables {
		doc.Variables = append(doc.Variables, xmlVariable{ID: v.ID, Name: v.Name})
	}
	for _, id := range g.order {
		if _, hasParent := g.parents[id]; hasParent {
			continue
		}
		doc.Blocks = append(doc.Blocks, g.toXML(id))
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode program: %w", err)
	}
	return out, nil
}

func (g *Graph) toXML(id string) *xmlBlock {
	b := g.blocks[id]
	xb := &xmlBlock{Type: b.Type, ID: b.ID}
	for _, name := range b.SlotNames() {
		s := b.Slots[name]
		if s.IsChild() {
			xb.Values = append(xb.Values, xmlValue{Name: name, Block: g.toXML(s.Child)})
			continue
		}
		xb.Fields = append(xb.Fields, xmlField{Name: name, Value: s.Value})
	}
	return xb
}

// Decode parses a document and checks every block type against types. A nil
// catalog accepts any type. No partial graph is returned on failure.
func (XMLCodec) Decode(data []byte, types TypeCatalog) (*Graph, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &LoadError{Reason: "empty document"}
	}
	var doc xmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Reason: "malformed document", Err: err}
	}

	frag := &Fragment{}
	var flatten func(xb *xmlBlock) error
	flatten = func(xb *xmlBlock) error {
		if xb.Type == "" {
			return &LoadError{Reason: "block without type", BlockID: xb.ID}
		}
		if types != nil && !types.Has(xb.Type) {
			return &LoadError{Reason: "unknown block type", BlockID: xb.ID, BlockType: xb.Type}
		}
		if xb.ID == "" {
			return &LoadError{Reason: "block without id", BlockType: xb.Type}
		}
		b := NewBlock(xb.ID, xb.Type)
		for _, f := range xb.Fields {
			b.Slots[f.Name] = Slot{Value: f.Value}
		}
		frag.Blocks = append(frag.Blocks, b)
		for _, v := range xb.Values {
			if v.Block == nil {
				continue
			}
			b.Slots[v.Name] = Slot{Child: v.Block.ID}
			if err := flatten(v.Block); err != nil {
				return err
			}
		}
		return nil
	}
	for _, xb := range doc.Blocks {
		if err := flatten(xb); err != nil {
			return nil, err
		}
	}
	for _, v := range doc.Variables {
		frag.Variables = append(frag.Variables, Variable{ID: v.ID, Name: v.Name})
	}

	g := New()
	if err := g.Merge(frag); err != nil {
		return nil, &LoadError{Reason: "inconsistent document", Err: err}
	}
	return g, nil
}
