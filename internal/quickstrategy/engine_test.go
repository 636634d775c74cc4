package quickstrategy

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"bot-builder-go/internal/config"
	"bot-builder-go/internal/metrics"
	"bot-builder-go/internal/program"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// graphWorkspace is a Workspace backed directly by a program graph.
type graphWorkspace struct {
	g *program.Graph
}

func (w *graphWorkspace) AllBlocks() iter.Seq[*program.Block] { return w.g.Blocks() }

func (w *graphWorkspace) Merge(frag *program.Fragment) error { return w.g.Merge(frag) }

// MockWorkspace is a mock implementation of the Workspace interface.
type MockWorkspace struct {
	mock.Mock
}

func (m *MockWorkspace) AllBlocks() iter.Seq[*program.Block] {
	args := m.Called()
	return args.Get(0).(iter.Seq[*program.Block])
}

func (m *MockWorkspace) Merge(frag *program.Fragment) error {
	args := m.Called(frag)
	return args.Error(0)
}

func validForm() map[string]any {
	return map[string]any{
		"symbol":    "R_100",
		"tradetype": "callput",
		"type":      "CALL",
		"duration":  5,
		"stake":     "10",
		"profit":    100.0,
		"loss":      "50",
		"size":      2,
	}
}

func setupEngine(t *testing.T) (*Engine, *metrics.Metrics) {
	m := metrics.New(nil)
	n := 0
	next := func() string {
		n++
		return fmt.Sprintf("fresh-%d", n)
	}
	return NewEngine(zap.NewNop(), DefaultCatalog(), WithMetrics(m), WithIDGenerator(next)), m
}

func blankWorkspace(t *testing.T) *graphWorkspace {
	g, err := program.XMLCodec{}.Decode([]byte(program.BlankDocument), program.DefaultTypes())
	require.NoError(t, err)
	return &graphWorkspace{g: g}
}

func TestEngine_ListTemplates(t *testing.T) {
	engine, _ := setupEngine(t)

	var names []string
	for tmpl := range engine.ListTemplates() {
		names = append(names, tmpl.Name)
	}

	assert.Equal(t, []string{"Martingale", "D'Alembert", "Oscar's Grind", "Reverse Martingale"}, names)
}

func TestEngine_Expand(t *testing.T) {
	// Arrange
	engine, _ := setupEngine(t)

	// Act
	frag, err := engine.Expand("martingale", validForm())

	// Assert
	require.NoError(t, err)
	require.NoError(t, frag.Validate())
	assert.Equal(t, 23, frag.Len())
	assert.Equal(t, []string{"martingale_init_stake", "martingale_trade", "martingale_before", "martingale_after"}, frag.TopIDs())

	byID := make(map[string]*program.Block)
	for _, b := range frag.Blocks {
		byID[b.ID] = b
	}
	stake, _ := byID["martingale_init_stake_value"].Field("NUM")
	assert.Equal(t, "10", stake)
	duration, _ := byID["martingale_options"].Field("DURATION")
	assert.Equal(t, "5", duration)
	unit, _ := byID["martingale_options"].Field("DURATIONTYPE_LIST")
	assert.Equal(t, "t", unit, "optional fields fall back to their default")
	symbol, _ := byID["martingale_market"].Field("SYMBOL_LIST")
	assert.Equal(t, "R_100", symbol)
	assert.Equal(t, []string{"martingale_current_stake", "martingale_grow_size"}, byID["martingale_grow"].Children())

	var names []string
	for _, v := range frag.Variables {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"stake", "profit", "loss"}, names)
}

func TestEngine_ExpandValidation(t *testing.T) {
	engine, _ := setupEngine(t)

	form := validForm()
	delete(form, "stake")
	form["duration"] = 2.5
	form["size"] = "abc"
	form["type"] = "SIDEWAYS"
	form["loss"] = 0

	frag, err := engine.Expand("martingale", form)

	assert.Nil(t, frag)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "martingale", verr.Template)
	assert.Equal(t, map[string]string{
		"type":     "must be one of CALL, PUT",
		"duration": "must be a whole number",
		"stake":    "is required",
		"loss":     "must be at least 1",
		"size":     "must be a number",
	}, verr.Messages())
	assert.Len(t, verr.Fields, 5, "one entry per invalid field")
}

func TestEngine_ExpandRange(t *testing.T) {
	engine, _ := setupEngine(t)

	form := validForm()
	form["stake"] = "50001"
	_, err := engine.Expand("martingale", form)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []FieldError{{Field: "stake", Message: "must be at most 50000"}}, verr.Fields)
}

func TestEngine_ExpandUnknownTemplate(t *testing.T) {
	engine, _ := setupEngine(t)
	_, err := engine.Expand("fibonacci", validForm())
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestEngine_InsertMissingFieldLeavesGraph(t *testing.T) {
	engine, _ := setupEngine(t)
	ws := blankWorkspace(t)
	before := ws.g.Len()

	form := validForm()
	delete(form, "size")
	_, err := engine.Insert(ws, "martingale", form)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, before, ws.g.Len())
}

func TestEngine_InsertTwiceYieldsDisjointIDs(t *testing.T) {
	// Arrange
	engine, m := setupEngine(t)
	ws := blankWorkspace(t)
	before := ws.g.Len()

	// Act
	first, err := engine.Insert(ws, "martingale", validForm())
	require.NoError(t, err)
	afterFirst := ws.g.Len()
	second, err := engine.Insert(ws, "martingale", validForm())
	require.NoError(t, err)

	// Assert
	assert.Equal(t, before+first.Len(), afterFirst)
	assert.Equal(t, afterFirst+second.Len(), ws.g.Len())
	for _, id := range second.IDs() {
		assert.NotContains(t, first.IDs(), id)
	}
	assert.Equal(t, "fresh-1", second.IDs()[0])
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MergeCollisions))

	// Both copies share one binding per variable name.
	assert.Len(t, ws.g.Variables(), 3)

	// The reassigned copy kept its topology.
	parent, _, ok := ws.g.Parent(second.IDs()[1])
	assert.True(t, ok)
	assert.Equal(t, second.IDs()[0], parent)
}

func TestEngine_InsertDifferentTemplatesWithoutCollision(t *testing.T) {
	engine, m := setupEngine(t)
	ws := blankWorkspace(t)

	_, err := engine.Insert(ws, "martingale", validForm())
	require.NoError(t, err)
	form := validForm()
	form["unit"] = 1
	frag, err := engine.Insert(ws, "d_alembert", form)
	require.NoError(t, err)

	assert.Equal(t, "d_alembert_init_stake", frag.IDs()[0])
	assert.Equal(t, float64(0), testutil.ToFloat64(m.MergeCollisions))
}

func TestEngine_InsertMergeFailure(t *testing.T) {
	engine, _ := setupEngine(t)
	ws := new(MockWorkspace)
	ws.On("AllBlocks").Return(iter.Seq[*program.Block](slices.Values([]*program.Block{})))
	ws.On("Merge", mock.AnythingOfType("*program.Fragment")).Return(errors.New("workspace is not initialized"))

	frag, err := engine.Insert(ws, "oscars_grind", validForm())

	assert.Nil(t, frag)
	assert.EqualError(t, err, "insert oscars_grind: workspace is not initialized")
	ws.AssertExpectations(t)
}

func TestEngine_RenderDescription(t *testing.T) {
	engine, _ := setupEngine(t)

	c, err := engine.RenderDescription("martingale", "LEARN_MORE", nil, RenderOptions{Tutorial: true})
	require.NoError(t, err)
	assert.Equal(t, FontSizeS, c.FontSize)
	require.NotEmpty(t, c.Sections)
	assert.Equal(t, ItemSubtitle, c.Sections[0].Type)

	_, err = engine.RenderDescription("fibonacci", TabTradeParameters, nil, RenderOptions{})
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestFromConfig(t *testing.T) {
	t.Run("EmbeddedCatalogs", func(t *testing.T) {
		e, err := FromConfig(config.Workspace{}, zap.NewNop())
		require.NoError(t, err)
		assert.Len(t, slices.Collect(e.ListTemplates()), 4)
		assert.Equal(t, "Learn more", e.Localizer().Translate("qs-learn-more"))
	})

	t.Run("LocaleOverride", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fr.yaml")
		require.NoError(t, os.WriteFile(path, []byte("qs-learn-more: \"En savoir plus\"\n"), 0o600))

		e, err := FromConfig(config.Workspace{LocaleFile: path}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, "En savoir plus", e.Localizer().Translate("qs-learn-more"))
	})

	t.Run("MissingStrategiesFile", func(t *testing.T) {
		_, err := FromConfig(config.Workspace{StrategiesFile: filepath.Join(t.TempDir(), "none.yaml")}, zap.NewNop())
		assert.Error(t, err)
	})
}
