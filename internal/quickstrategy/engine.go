package quickstrategy

import (
	"fmt"
	"iter"

	"bot-builder-go/internal/config"
	"bot-builder-go/internal/localization"
	"bot-builder-go/internal/metrics"
	"bot-builder-go/internal/program"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Workspace is the live program a fragment is inserted into.
type Workspace interface {
	AllBlocks() iter.Seq[*program.Block]
	Merge(frag *program.Fragment) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocalizer sets the service translating description text.
func WithLocalizer(loc localization.Localizer) Option {
	return func(e *Engine) { e.localizer = loc }
}

// WithMetrics records collision resolutions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithIDGenerator replaces the source of fresh block ids used when a fragment
// collides with the live program.
func WithIDGenerator(next func() string) Option {
	return func(e *Engine) { e.newID = next }
}

// Engine expands quick strategy templates into program fragments.
type Engine struct {
	logger    *zap.Logger
	catalog   *Catalog
	localizer localization.Localizer
	metrics   *metrics.Metrics
	newID     func() string
}

// NewEngine creates an engine over an immutable catalog.
func NewEngine(logger *zap.Logger, catalog *Catalog, opts ...Option) *Engine {
	e := &Engine{
		logger:    logger.Named("quickstrategy"),
		catalog:   catalog,
		localizer: localization.Default(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.New(nil)
	}
	return e
}

// ListTemplates yields the catalog in declaration order.
func (e *Engine) ListTemplates() iter.Seq[StrategyTemplate] {
	return e.catalog.All()
}

// Template returns one template by id.
func (e *Engine) Template(id string) (StrategyTemplate, error) {
	return e.catalog.Get(id)
}

// Localizer returns the message catalog the engine renders with.
func (e *Engine) Localizer() localization.Localizer { return e.localizer }

// RenderDescription renders the description of template id for activeTab.
func (e *Engine) RenderDescription(id, activeTab string, formFields any, opts RenderOptions) (Content, error) {
	t, err := e.catalog.Get(id)
	if err != nil {
		return Content{}, err
	}
	return RenderDescription(t, activeTab, formFields, opts, e.localizer), nil
}

// Expand validates fields against the form schema of template id and builds
// the template's fragment. Every invalid field is reported in a single
// ValidationError. Expand has no effect on any live program.
func (e *Engine) Expand(id string, fields map[string]any) (*program.Fragment, error) {
	t, err := e.catalog.Get(id)
	if err != nil {
		return nil, err
	}
	values, err := validateForm(t, fields)
	if err != nil {
		return nil, err
	}
	return t.fragment(values, t.ID+"_"), nil
}

// Insert expands template id and merges the fragment into ws. When any
// fragment id is already taken in ws every fragment block gets a fresh id
// first, so existing blocks are never overwritten. It returns the fragment as
// merged.
func (e *Engine) Insert(ws Workspace, id string, fields map[string]any) (*program.Fragment, error) {
	frag, err := e.Expand(id, fields)
	if err != nil {
		return nil, err
	}

	taken := make(map[string]bool)
	for b := range ws.AllBlocks() {
		taken[b.ID] = true
	}
	for _, blockID := range frag.IDs() {
		if taken[blockID] {
			mapping := frag.Reassign(e.newID)
			e.metrics.MergeCollisions.Inc()
			e.logger.Info("Merge collision resolved",
				zap.String("template", id),
				zap.String("collided", blockID),
				zap.Any("reassigned", mapping))
			break
		}
	}

	if err := ws.Merge(frag); err != nil {
		return nil, fmt.Errorf("insert %s: %w", id, err)
	}
	return frag, nil
}

// FromConfig builds an engine from the configured catalog and locale files.
// Empty paths select the catalogs embedded in the binary.
func FromConfig(cfg config.Workspace, logger *zap.Logger, opts ...Option) (*Engine, error) {
	catalog := DefaultCatalog()
	if cfg.StrategiesFile != "" {
		c, err := LoadCatalogFile(cfg.StrategiesFile, program.DefaultTypes())
		if err != nil {
			return nil, err
		}
		catalog = c
	}
	if cfg.LocaleFile != "" {
		loc, err := localization.LoadFile(cfg.LocaleFile)
		if err != nil {
			return nil, err
		}
		opts = append([]Option{WithLocalizer(loc)}, opts...)
	}
	return NewEngine(logger, catalog, opts...), nil
}
