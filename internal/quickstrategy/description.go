package quickstrategy

import (
	"strings"

	"bot-builder-go/internal/localization"
)

// TabTradeParameters is the dialog tab showing the short description next to
// the form. Any other tab shows the long description.
const TabTradeParameters = "TRADE_PARAMETERS"

// FontSize is the text size the description is rendered at.
type FontSize string

const (
	FontSizeXXS FontSize = "xxs"
	FontSizeXS  FontSize = "xs"
	FontSizeS   FontSize = "s"
)

// RenderOptions adjusts rendering to where the description is shown.
type RenderOptions struct {
	// Tutorial renders a strategy picked from the tutorials page.
	Tutorial bool
	Mobile   bool
}

func (o RenderOptions) fontSize() FontSize {
	switch {
	case o.Mobile:
		return FontSizeXXS
	case o.Tutorial:
		return FontSizeS
	default:
		return FontSizeXS
	}
}

// Paragraph is one rendered line of text.
type Paragraph struct {
	Text      string `json:"text"`
	Bold      bool   `json:"bold,omitempty"`
	Italic    bool   `json:"italic,omitempty"`
	ClassName string `json:"class_name"`
}

// Image is a rendered media item.
type Image struct {
	Src       string `json:"src"`
	Alt       string `json:"alt,omitempty"`
	ClassName string `json:"class_name"`
}

// Section is the rendering of one long description item. Items of an
// unrecognized type render as a section with neither paragraphs nor image.
type Section struct {
	Type       ItemType    `json:"type"`
	Paragraphs []Paragraph `json:"paragraphs,omitempty"`
	Image      *Image      `json:"image,omitempty"`
}

// Content is the structured description shown in the strategy dialog.
type Content struct {
	Tab         string    `json:"tab"`
	FontSize    FontSize  `json:"font_size"`
	Description string    `json:"description,omitempty"`
	FormFields  any       `json:"form_fields,omitempty"`
	Sections    []Section `json:"sections,omitempty"`
}

const (
	titleClass   = "qs__long_description__title"
	contentClass = "qs__long_description__content"
	imageClass   = "qs__long_description__image"
)

// RenderDescription renders t for activeTab. The trade parameters tab gets the
// short description and formFields, passed through untouched; every other tab
// gets the long description. It never fails.
func RenderDescription(t StrategyTemplate, activeTab string, formFields any, opts RenderOptions, loc localization.Localizer) Content {
	if loc == nil {
		loc = (*localization.Catalog)(nil)
	}
	c := Content{Tab: activeTab, FontSize: opts.fontSize()}
	if activeTab == TabTradeParameters {
		c.Description = loc.Translate(t.Description)
		c.FormFields = formFields
		return c
	}
	c.Sections = make([]Section, 0, len(t.LongDescription))
	for _, item := range t.LongDescription {
		c.Sections = append(c.Sections, renderItem(item, loc))
	}
	return c
}

func renderItem(item DescriptionItem, loc localization.Localizer) Section {
	s := Section{Type: item.Type}
	switch item.Type {
	case ItemSubtitle, ItemSubtitleItalic:
		italic := item.Type == ItemSubtitleItalic
		for _, text := range item.Content {
			s.Paragraphs = append(s.Paragraphs, Paragraph{
				Text:      loc.Translate(text),
				Bold:      true,
				Italic:    italic,
				ClassName: classes(titleClass, italic, ""),
			})
		}
	case ItemText, ItemTextItalic:
		italic := item.Type == ItemTextItalic
		for _, text := range item.Content {
			s.Paragraphs = append(s.Paragraphs, Paragraph{
				Text:      loc.Translate(text),
				Italic:    italic,
				ClassName: classes(contentClass, italic, item.ClassName),
			})
		}
	case ItemMedia:
		s.Image = &Image{Src: item.Src, Alt: loc.Translate(item.Alt), ClassName: imageClass}
	}
	return s
}

func classes(base string, italic bool, extra string) string {
	names := []string{base}
	if italic {
		names = append(names, "italic")
	}
	if extra = strings.TrimSpace(extra); extra != "" {
		names = append(names, extra)
	}
	return strings.Join(names, " ")
}
