package quickstrategy

import (
	"testing"

	"bot-builder-go/internal/localization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTemplate() StrategyTemplate {
	return StrategyTemplate{
		ID:          "sample",
		Description: "Short description",
		LongDescription: []DescriptionItem{
			{Type: ItemSubtitle, Content: []string{"Heading"}},
			{Type: ItemText, Content: []string{"First", "Second"}, ClassName: "parameters"},
			{Type: "carousel", Content: []string{"Never shown"}},
			{Type: ItemSubtitleItalic, Content: []string{"Summary"}},
			{Type: ItemTextItalic, Content: []string{"Closing"}},
			{Type: ItemMedia, Src: "/img/sample.svg", Alt: "Chart"},
		},
	}
}

func TestRenderDescription_TradeParameters(t *testing.T) {
	form := map[string]string{"stake": "input"}

	c := RenderDescription(sampleTemplate(), TabTradeParameters, form, RenderOptions{}, nil)

	assert.Equal(t, "Short description", c.Description)
	assert.Equal(t, form, c.FormFields)
	assert.Empty(t, c.Sections)
	assert.Equal(t, FontSizeXS, c.FontSize)
}

func TestRenderDescription_LongDescription(t *testing.T) {
	loc := localization.NewCatalog(map[string]string{"Heading": "Titre", "Chart": "Graphique"})

	c := RenderDescription(sampleTemplate(), "OTHER_TAB", "ignored", RenderOptions{}, loc)

	assert.Empty(t, c.Description)
	assert.Nil(t, c.FormFields)
	require.Len(t, c.Sections, 6)

	assert.Equal(t, []Paragraph{{Text: "Titre", Bold: true, ClassName: "qs__long_description__title"}}, c.Sections[0].Paragraphs)
	assert.Equal(t, []Paragraph{
		{Text: "First", ClassName: "qs__long_description__content parameters"},
		{Text: "Second", ClassName: "qs__long_description__content parameters"},
	}, c.Sections[1].Paragraphs)

	unknown := c.Sections[2]
	assert.Empty(t, unknown.Paragraphs)
	assert.Nil(t, unknown.Image)

	assert.Equal(t, []Paragraph{{Text: "Summary", Bold: true, Italic: true, ClassName: "qs__long_description__title italic"}}, c.Sections[3].Paragraphs)
	assert.Equal(t, []Paragraph{{Text: "Closing", Italic: true, ClassName: "qs__long_description__content italic"}}, c.Sections[4].Paragraphs)
	assert.Equal(t, &Image{Src: "/img/sample.svg", Alt: "Graphique", ClassName: "qs__long_description__image"}, c.Sections[5].Image)
}

func TestRenderDescription_FontSize(t *testing.T) {
	testCases := []struct {
		name string
		opts RenderOptions
		want FontSize
	}{
		{name: "Desktop", opts: RenderOptions{}, want: FontSizeXS},
		{name: "Tutorial", opts: RenderOptions{Tutorial: true}, want: FontSizeS},
		{name: "Mobile", opts: RenderOptions{Mobile: true}, want: FontSizeXXS},
		{name: "MobileTutorial", opts: RenderOptions{Mobile: true, Tutorial: true}, want: FontSizeXXS},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := RenderDescription(sampleTemplate(), TabTradeParameters, nil, tc.opts, nil)
			assert.Equal(t, tc.want, c.FontSize)
		})
	}
}
