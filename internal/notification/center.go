package notification

import (
	"sync"

	"go.uber.org/zap"
)

// Message ids shown by the workspace banner.
const (
	ChangesWillNotAffectRunningBot = "changes-will-not-affect-running-bot"
	WorkspaceLoadFailed            = "workspace-load-failed"
)

// Notice is what the banner UI renders: whether it is visible and which
// message it shows.
type Notice struct {
	Visible   bool   `json:"visible"`
	MessageID string `json:"message_id,omitempty"`
}

// Center holds the single workspace banner.
type Center struct {
	mu      sync.Mutex
	logger  *zap.Logger
	current Notice
}

// NewCenter creates a center with the banner hidden.
func NewCenter(logger *zap.Logger) *Center {
	return &Center{logger: logger.Named("notification")}
}

// Show makes the banner visible with messageID. Showing the message that is
// already visible does nothing. It reports whether the banner changed.
func (c *Center) Show(messageID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.Visible && c.current.MessageID == messageID {
		return false
	}
	c.current = Notice{Visible: true, MessageID: messageID}
	c.logger.Debug("Showing notification", zap.String("message_id", messageID))
	return true
}

// Dismiss hides the banner. It reports whether the banner was visible.
func (c *Center) Dismiss() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.current.Visible {
		return false
	}
	c.logger.Debug("Dismissing notification", zap.String("message_id", c.current.MessageID))
	c.current.Visible = false
	return true
}

// Current returns the banner state.
func (c *Center) Current() Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Visible reports whether the banner is shown.
func (c *Center) Visible() bool {
	return c.Current().Visible
}
