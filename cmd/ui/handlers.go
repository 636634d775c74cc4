package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"bot-builder-go/internal/client"
	"bot-builder-go/internal/database"
	"bot-builder-go/internal/event"
	"bot-builder-go/internal/models"
	"bot-builder-go/internal/program"
	"bot-builder-go/internal/quickstrategy"
	"bot-builder-go/internal/runner"
	"bot-builder-go/internal/session"
	"bot-builder-go/internal/workspace"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log        *zap.Logger
	documents  *database.DocumentStore
	sessions   *session.Manager
	strategies *quickstrategy.Engine
	runner     *runner.Engine
	accounts   client.AccountClient
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(
	log *zap.Logger,
	documents *database.DocumentStore,
	sessions *session.Manager,
	strategies *quickstrategy.Engine,
	bot *runner.Engine,
	accounts client.AccountClient,
) *APIHandler {
	return &APIHandler{
		log:        log.Named("api"),
		documents:  documents,
		sessions:   sessions,
		strategies: strategies,
		runner:     bot,
		accounts:   accounts,
	}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to write response", zap.Error(err))
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", zap.Error(err))
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// session resolves the {sessionID} URL parameter, writing a 404 when unknown.
func (h *APIHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	return s, true
}

// noticeResponse is the banner state with its message resolved for display.
type noticeResponse struct {
	Visible   bool   `json:"visible"`
	MessageID string `json:"message_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

func (h *APIHandler) notice(s *session.Session) noticeResponse {
	n := s.Workspace.Notice()
	resp := noticeResponse{Visible: n.Visible, MessageID: n.MessageID}
	if n.Visible {
		resp.Message = h.strategies.Localizer().Translate(n.MessageID)
	}
	return resp
}

type sessionResponse struct {
	ID       string         `json:"id"`
	Document string         `json:"document,omitempty"`
	Blocks   int            `json:"blocks"`
	RunState string         `json:"run_state"`
	Notice   noticeResponse `json:"notice"`
}

func (h *APIHandler) describeSession(s *session.Session) sessionResponse {
	count := 0
	for range s.Workspace.AllBlocks() {
		count++
	}
	return sessionResponse{
		ID:       s.ID,
		Document: s.Document,
		Blocks:   count,
		RunState: s.Workspace.RunState().String(),
		Notice:   h.notice(s),
	}
}

// OpenSession mounts a workspace for an optional saved document.
func (h *APIHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Document string `json:"document"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	s, err := h.sessions.Open(body.Document)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, h.describeSession(s))
}

// GetSession returns the session summary.
func (h *APIHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.describeSession(s))
}

// CloseSession tears the workspace down.
func (h *APIHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(chi.URLParam(r, "sessionID")); err != nil {
		h.writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Blocks returns every block of the session's program.
func (h *APIHandler) Blocks(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	blocks := slices.Collect(s.Workspace.AllBlocks())
	if blocks == nil {
		blocks = []*program.Block{}
	}
	h.writeJSON(w, http.StatusOK, blocks)
}

// PostEvent forwards an edit made in the browser editor to the workspace and
// returns the banner as it stands after the edit. An edit that would break the
// program is refused with 422. Edits sent concurrently to the same session
// may be counted against each other's response.
func (h *APIHandler) PostEvent(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var raw event.Raw
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	rejected := s.Workspace.RejectedEdits()
	s.Surface.Fire(raw)
	// Edits queue behind work already in progress; wait so the response
	// reflects this one.
	s.Workspace.Flush()
	if s.Workspace.RejectedEdits() > rejected {
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "edit rejected"})
		return
	}
	h.writeJSON(w, http.StatusAccepted, h.notice(s))
}

// Notice returns the banner state.
func (h *APIHandler) Notice(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.notice(s))
}

// DismissNotice hides the banner.
func (h *APIHandler) DismissNotice(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Workspace.DismissNotice()
	h.writeJSON(w, http.StatusOK, h.notice(s))
}

// SaveSession stores the program under the given or the original document name.
func (h *APIHandler) SaveSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if err := h.sessions.Save(s.ID, body.Name); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Divergence compares the running bot's program with the session's.
func (h *APIHandler) Divergence(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	hunks, err := s.Workspace.Divergence()
	if err != nil {
		h.writeError(w, http.StatusConflict, err)
		return
	}
	h.writeJSON(w, http.StatusOK, hunks)
}

// ListStrategies returns the quick strategy catalog.
func (h *APIHandler) ListStrategies(w http.ResponseWriter, r *http.Request) {
	templates := slices.Collect(h.strategies.ListTemplates())
	h.writeJSON(w, http.StatusOK, templates)
}

// DescribeStrategy renders a strategy description for a dialog tab. The form
// schema is returned as the form region of the trade parameters tab.
func (h *APIHandler) DescribeStrategy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "strategyID")
	q := r.URL.Query()
	tab := q.Get("tab")
	if tab == "" {
		tab = quickstrategy.TabTradeParameters
	}
	opts := quickstrategy.RenderOptions{
		Tutorial: cast.ToBool(q.Get("tutorial")),
		Mobile:   cast.ToBool(q.Get("mobile")),
	}

	t, err := h.strategies.Template(id)
	if err != nil {
		h.writeError(w, http.StatusNotFound, err)
		return
	}
	content, err := h.strategies.RenderDescription(id, tab, t.Form, opts)
	if err != nil {
		h.writeError(w, http.StatusNotFound, err)
		return
	}
	h.writeJSON(w, http.StatusOK, content)
}

// InsertStrategy expands a quick strategy from the submitted form into the
// session's program.
func (h *APIHandler) InsertStrategy(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	frag, err := h.strategies.Insert(s.Workspace, chi.URLParam(r, "strategyID"), fields)
	var verr *quickstrategy.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid form", Fields: verr.Messages()})
		return
	case errors.Is(err, quickstrategy.ErrUnknownTemplate):
		h.writeError(w, http.StatusNotFound, err)
		return
	case errors.Is(err, workspace.ErrNotInitialized):
		h.writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"blocks": frag.IDs(),
		"roots":  frag.TopIDs(),
	})
}

type runResponse struct {
	State   string             `json:"state"`
	Current *models.RunRecord  `json:"current,omitempty"`
	Recent  []models.RunRecord `json:"recent"`
}

// StartRun compiles the session's program and starts the bot.
func (h *APIHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	snapshot, err := s.Workspace.Snapshot()
	if err != nil {
		h.writeError(w, http.StatusConflict, err)
		return
	}
	id, err := h.runner.Start(r.Context(), snapshot)
	var loadErr *program.LoadError
	switch {
	case errors.Is(err, runner.ErrAlreadyRunning):
		h.writeError(w, http.StatusConflict, err)
		return
	case errors.As(err, &loadErr):
		h.writeError(w, http.StatusUnprocessableEntity, err)
		return
	case err != nil:
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"run": id})
}

// RunStatus returns the run state and recent runs.
func (h *APIHandler) RunStatus(w http.ResponseWriter, r *http.Request) {
	recent, err := h.runner.Runs(20)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp := runResponse{State: h.runner.RunState().String(), Recent: recent}
	if current, ok := h.runner.Current(); ok {
		resp.Current = &current
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// StopRun stops the bot and waits for it to be idle.
func (h *APIHandler) StopRun(w http.ResponseWriter, r *http.Request) {
	if err := h.runner.Stop(r.Context()); err != nil {
		h.writeError(w, http.StatusGatewayTimeout, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetRun records the user's acknowledgement that edits will not reach the
// running bot.
func (h *APIHandler) ResetRun(w http.ResponseWriter, r *http.Request) {
	h.runner.RequestReset()
	w.WriteHeader(http.StatusNoContent)
}

// accountError maps typed account API errors to a field-level response.
func (h *APIHandler) accountError(w http.ResponseWriter, err error) {
	var pwErr *client.PasswordError
	var inputErr *client.InputValidationFailed
	switch {
	case errors.As(err, &pwErr):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  client.CodePasswordError,
			Fields: map[string]string{"old_password": pwErr.Message},
		})
	case errors.As(err, &inputErr):
		field := inputErr.Field
		if field == "" {
			field = "new_password"
		}
		h.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  client.CodeInputValidationFailed,
			Fields: map[string]string{field: inputErr.Message},
		})
	default:
		h.writeError(w, http.StatusBadGateway, err)
	}
}

// ChangePassword changes a trading platform password.
func (h *APIHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req client.PasswordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.accounts.ChangePassword(r.Context(), req); err != nil {
		h.accountError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateAccount opens a trading platform account.
func (h *APIHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req client.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	account, err := h.accounts.CreateAccount(r.Context(), req)
	if err != nil {
		h.accountError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, account)
}

// Documents lists saved documents.
func (h *APIHandler) Documents(w http.ResponseWriter, r *http.Request) {
	names, err := h.documents.Names()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	h.writeJSON(w, http.StatusOK, names)
}

// DeleteDocument removes a saved document.
func (h *APIHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	err := h.documents.Delete(chi.URLParam(r, "name"))
	switch {
	case errors.Is(err, database.ErrDocumentNotFound):
		h.writeError(w, http.StatusNotFound, err)
	case err != nil:
		h.writeError(w, http.StatusInternalServerError, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
