package workspace

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"bot-builder-go/internal/diff"
	"bot-builder-go/internal/event"
	"bot-builder-go/internal/metrics"
	"bot-builder-go/internal/notification"
	"bot-builder-go/internal/program"
	"bot-builder-go/internal/runstate"
	"go.uber.org/zap"
)

// ErrNotInitialized is returned by operations that need a mounted workspace.
var ErrNotInitialized = errors.New("workspace is not initialized")

// Surface is the rendering surface that draws the program and reports the
// edits the user makes to it.
type Surface interface {
	AddChangeListener(fn func(event.Raw)) event.ListenerID
	RemoveChangeListener(id event.ListenerID)
	Render(g *program.Graph) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithCodec replaces the XML document codec.
func WithCodec(codec program.Codec) Option {
	return func(c *Controller) { c.codec = codec }
}

// WithTypes replaces the catalog of known block types.
func WithTypes(types program.TypeCatalog) Option {
	return func(c *Controller) { c.types = types }
}

// WithMetrics records controller activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithClock sets the time source used to stamp change events.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller owns the program of one editing session together with its
// change subscribers, run-state guard and notification banner.
//
// Inbound work (surface edits, coordinator signals, merges, initialize and
// teardown) is processed one item at a time. Surface edits and coordinator
// signals that arrive while another item is in progress are queued and run
// right after it, in arrival order. Change handlers run inside that
// processing: they may read the workspace and subscribe, but must not call
// Initialize, Merge or Teardown.
type Controller struct {
	logger      *zap.Logger
	surface     Surface
	coordinator runstate.Coordinator
	codec       program.Codec
	types       program.TypeCatalog
	metrics     *metrics.Metrics
	now         func() time.Time

	registry *Registry
	guard    *runstate.Guard
	notices  *notification.Center

	// serial orders inbound work; pending holds callbacks queued behind it.
	serial  sync.Mutex
	qmu     sync.Mutex
	pending []func()

	rejected atomic.Uint64

	// mu guards the fields below for readers.
	mu sync.RWMutex

	graph             *program.Graph
	mounted           bool
	surfaceListener   event.ListenerID
	cancelCoordinator func()
}

// NewController creates an unmounted controller. coordinator may be nil when
// no bot can run, in which case the run state stays idle.
func NewController(logger *zap.Logger, surface Surface, coordinator runstate.Coordinator, opts ...Option) *Controller {
	c := &Controller{
		logger:      logger.Named("workspace"),
		surface:     surface,
		coordinator: coordinator,
		codec:       program.XMLCodec{},
		types:       program.DefaultTypes(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.New(nil)
	}
	c.guard = runstate.NewGuard(logger)
	c.notices = notification.NewCenter(logger)
	c.registry = NewRegistry(c.reportListenerError)
	return c
}

// Initialize builds the program from a serialized document, or from the blank
// default document when source is empty, and attaches the listeners.
//
// On failure the session is torn down, no graph is returned and the banner
// shows the load failure. Calling Initialize on a mounted controller replaces
// the program without attaching listeners a second time.
func (c *Controller) Initialize(source []byte) (*program.Graph, error) {
	c.serial.Lock()
	defer c.release()

	data := source
	if len(strings.TrimSpace(string(data))) == 0 {
		data = []byte(program.BlankDocument)
	}

	g, err := c.codec.Decode(data, c.types)
	if err != nil {
		c.failInitialize(err)
		return nil, err
	}
	if err := c.surface.Render(g.Clone()); err != nil {
		err = fmt.Errorf("render workspace: %w", err)
		c.failInitialize(err)
		return nil, err
	}

	c.mu.Lock()
	c.graph = g
	c.mu.Unlock()

	if !c.isMounted() {
		c.attach()
	}
	c.logger.Info("Workspace initialized", zap.Int("blocks", g.Len()))
	return g.Clone(), nil
}

func (c *Controller) failInitialize(err error) {
	c.logger.Warn("Failed to initialize workspace", zap.Error(err))
	c.metrics.LoadFailures.Inc()
	c.teardown()
	c.notices.Show(notification.WorkspaceLoadFailed)
}

func (c *Controller) attach() {
	c.registry.Subscribe(c.evaluateRunState)

	listener := c.surface.AddChangeListener(c.onSurfaceEvent)

	// Signals published while unmounted were dropped; start over from the
	// coordinator's current state.
	c.guard.Reset()
	var cancel func()
	if c.coordinator != nil {
		cancel = c.coordinator.Subscribe(c.onSignal)
		c.guard.OnRunStateChanged(c.coordinator.RunState())
	}

	c.mu.Lock()
	c.mounted = true
	c.surfaceListener = listener
	c.cancelCoordinator = cancel
	c.mu.Unlock()

	c.metrics.ActiveSessions.Inc()
}

// Teardown detaches every listener and discards the program. It must run on
// every exit path of the session; calls after the first do nothing.
func (c *Controller) Teardown() {
	c.serial.Lock()
	defer c.release()
	c.teardown()
}

func (c *Controller) teardown() {
	c.mu.Lock()
	wasMounted := c.mounted
	listener := c.surfaceListener
	cancel := c.cancelCoordinator
	c.mounted = false
	c.graph = nil
	c.surfaceListener = 0
	c.cancelCoordinator = nil
	c.mu.Unlock()

	if !wasMounted {
		return
	}
	c.surface.RemoveChangeListener(listener)
	if cancel != nil {
		cancel()
	}
	removed := c.registry.Clear()
	c.metrics.ActiveSessions.Dec()
	c.logger.Info("Workspace torn down", zap.Int("handlers_removed", removed))
}

func (c *Controller) isMounted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mounted
}

// Subscribe registers a change handler. Handlers run after the built-in
// run-state check, in registration order.
func (c *Controller) Subscribe(h Handler) (Handle, error) {
	// Holding mu keeps a concurrent teardown from missing the new handler.
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.mounted {
		return 0, ErrNotInitialized
	}
	return c.registry.Subscribe(h), nil
}

// Unsubscribe removes a change handler. Unknown handles are ignored.
func (c *Controller) Unsubscribe(h Handle) {
	c.registry.Unsubscribe(h)
}

// AllBlocks yields a copy of every block of the program. Each range over the
// sequence reads the program afresh; an unmounted workspace yields nothing.
func (c *Controller) AllBlocks() iter.Seq[*program.Block] {
	return func(yield func(*program.Block) bool) {
		c.mu.RLock()
		var blocks []*program.Block
		if c.graph != nil {
			blocks = slices.Collect(c.graph.Blocks())
		}
		c.mu.RUnlock()

		for _, b := range blocks {
			if !yield(b) {
				return
			}
		}
	}
}

// Graph returns a copy of the current program.
func (c *Controller) Graph() (*program.Graph, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.graph == nil {
		return nil, ErrNotInitialized
	}
	return c.graph.Clone(), nil
}

// Snapshot serializes the current program.
func (c *Controller) Snapshot() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.graph == nil {
		return nil, ErrNotInitialized
	}
	return c.codec.Encode(c.graph)
}

// Merge inserts a fragment into the program and announces each of its root
// blocks as created. A fragment whose ids clash with existing blocks is
// rejected and the program is left as it was.
func (c *Controller) Merge(frag *program.Fragment) error {
	c.serial.Lock()
	defer c.release()

	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	err := c.graph.Merge(frag)
	var rendered *program.Graph
	if err == nil {
		rendered = c.graph.Clone()
	}
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("merge fragment: %w", err)
	}

	if err := c.surface.Render(rendered); err != nil {
		c.logger.Error("Failed to render merged workspace", zap.Error(err))
	}
	c.logger.Info("Merged fragment", zap.Int("blocks", frag.Len()), zap.Strings("roots", frag.TopIDs()))
	for _, id := range frag.TopIDs() {
		c.dispatch(event.ChangeEvent{Kind: event.KindCreate, BlockID: id, Timestamp: c.now()})
	}
	return nil
}

// Notice returns the banner state for the UI.
func (c *Controller) Notice() notification.Notice {
	return c.notices.Current()
}

// DismissNotice hides the banner on user request. Dismissing is not a reset
// acknowledgement: the next edit during the same run shows it again.
func (c *Controller) DismissNotice() {
	c.notices.Dismiss()
}

// RunState returns the run state last reported by the coordinator.
func (c *Controller) RunState() runstate.State {
	return c.guard.State()
}

// Divergence compares the program the running bot was compiled from with the
// current program.
func (c *Controller) Divergence() ([]diff.Hunk, error) {
	current, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	var running []byte
	if c.coordinator != nil {
		running = c.coordinator.Snapshot()
	}
	return diff.Documents(string(running), string(current)), nil
}

// Flush waits until every surface edit and coordinator signal queued so far
// has been processed. It must not be called from a change handler.
func (c *Controller) Flush() {
	c.serial.Lock()
	c.release()
}

// RejectedEdits returns how many surface edits were refused because they
// would break the program's structure.
func (c *Controller) RejectedEdits() uint64 {
	return c.rejected.Load()
}

func (c *Controller) onSurfaceEvent(raw event.Raw) {
	c.post(func() { c.handleSurfaceEvent(raw) })
}

func (c *Controller) handleSurfaceEvent(raw event.Raw) {
	if !c.isMounted() {
		c.logger.Debug("Dropping surface event after teardown", zap.String("type", raw.Type))
		return
	}
	ev, ok := event.Normalize(raw, c.now())
	if !ok {
		return
	}
	if err := c.apply(raw); err != nil {
		c.rejected.Add(1)
		c.metrics.RejectedEdits.Inc()
		c.logger.Warn("Rejected surface edit",
			zap.String("type", raw.Type),
			zap.String("block_id", raw.BlockID),
			zap.Error(err))
		return
	}
	c.dispatch(ev)
}

// apply mirrors a surface edit into the program.
func (c *Controller) apply(raw event.Raw) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch raw.Type {
	case event.RawCreate:
		return c.applyCreate(raw)
	case event.RawDelete:
		return c.graph.Remove(raw.BlockID)
	case event.RawMove:
		return c.graph.Move(raw.BlockID, raw.NewParentID, raw.NewSlot)
	case event.RawChange:
		return c.graph.SetField(raw.BlockID, raw.Name, raw.NewValue)
	default:
		return nil
	}
}

func (c *Controller) applyCreate(raw event.Raw) error {
	doc := strings.TrimSpace(raw.XML)
	if doc == "" {
		return fmt.Errorf("create %q: missing block xml", raw.BlockID)
	}
	if !strings.HasPrefix(doc, "<xml") {
		doc = "<xml>" + doc + "</xml>"
	}
	created, err := c.codec.Decode([]byte(doc), c.types)
	if err != nil {
		return err
	}
	roots := created.TopBlocks()
	if len(roots) != 1 || roots[0].ID != raw.BlockID {
		return fmt.Errorf("create %q: xml does not describe a single block tree with that id", raw.BlockID)
	}
	frag := &program.Fragment{Blocks: slices.Collect(created.Blocks()), Variables: created.Variables()}
	return c.graph.Merge(frag)
}

func (c *Controller) onSignal(sig runstate.Signal) {
	c.post(func() { c.handleSignal(sig) })
}

func (c *Controller) handleSignal(sig runstate.Signal) {
	if !c.isMounted() {
		c.logger.Debug("Dropping run signal after teardown", zap.Stringer("state", sig.State))
		return
	}
	if sig.ResetRequested {
		c.guard.OnResetRequested()
		return
	}
	c.guard.OnRunStateChanged(sig.State)
}

// post queues a callback from the surface or the coordinator and runs the
// queue unless another goroutine is already processing.
func (c *Controller) post(work func()) {
	c.qmu.Lock()
	c.pending = append(c.pending, work)
	c.qmu.Unlock()

	if c.serial.TryLock() {
		c.release()
	}
}

// release runs queued callbacks and unlocks serial. Work queued between the
// last drain and the unlock is picked up by re-acquiring the lock.
func (c *Controller) release() {
	for {
		for {
			c.qmu.Lock()
			if len(c.pending) == 0 {
				c.qmu.Unlock()
				break
			}
			work := c.pending[0]
			c.pending = c.pending[1:]
			c.qmu.Unlock()
			work()
		}
		c.serial.Unlock()

		c.qmu.Lock()
		empty := len(c.pending) == 0
		c.qmu.Unlock()
		if empty || !c.serial.TryLock() {
			return
		}
	}
}

func (c *Controller) dispatch(ev event.ChangeEvent) {
	c.metrics.ChangeEvents.WithLabelValues(string(ev.Kind)).Inc()
	c.registry.Emit(ev)
}

// evaluateRunState is the first subscriber of every session: it projects the
// guard's verdict onto the banner.
func (c *Controller) evaluateRunState(ev event.ChangeEvent) error {
	if c.guard.OnChangeEvent(ev) {
		if c.notices.Show(notification.ChangesWillNotAffectRunningBot) {
			c.metrics.RunWarnings.Inc()
		}
		return nil
	}
	if c.notices.Current().MessageID == notification.ChangesWillNotAffectRunningBot {
		c.notices.Dismiss()
	}
	return nil
}

func (c *Controller) reportListenerError(err *ListenerError) {
	c.metrics.ListenerErrors.Inc()
	c.logger.Error("Change listener failed",
		zap.Uint64("handle", uint64(err.Handle)),
		zap.String("kind", string(err.Event.Kind)),
		zap.String("block_id", err.Event.BlockID),
		zap.Error(err.Err))
}
