package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/chemviz/dashboard/internal/derive"
	"github.com/chemviz/dashboard/internal/models"
	"github.com/chemviz/dashboard/internal/session"
	"github.com/chemviz/dashboard/internal/store"
	"github.com/chemviz/dashboard/internal/view"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultCookieName names the browser session cookie.
const DefaultCookieName = "equipviz_session"

// HeaderDashboardVersion carries the state version a fragment was built from.
const HeaderDashboardVersion = "X-Dashboard-Version"

// MIMEApplicationMsgpack is the content type of msgpack state responses.
const MIMEApplicationMsgpack = "application/msgpack"

// Options configure a Handler.
type Options struct {
	CookieName  string
	ViewOptions view.Options
	ChartSize   view.ChartSize
	BackendURL  string
	Version     string
}

// Handler serves the dashboard.
type Handler struct {
	sessions SessionManager
	renderer *view.Renderer
	opts     Options
}

// NewHandler creates a new dashboard handler.
func NewHandler(sessions SessionManager, renderer *view.Renderer, opts Options) *Handler {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	return &Handler{
		sessions: sessions,
		renderer: renderer,
		opts:     opts,
	}
}

// session resolves the browser session from its cookie, creating one and
// setting the cookie when needed.
func (h *Handler) session(c echo.Context) *session.SessionState {
	var id string
	if cookie, err := c.Cookie(h.opts.CookieName); err == nil {
		id = cookie.Value
	}

	state, created := h.sessions.GetOrCreate(id)
	if created || state.ID != id {
		c.SetCookie(&http.Cookie{
			Name:     h.opts.CookieName,
			Value:    state.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return state
}

func (h *Handler) buildPage(s *store.Store) (view.Page, store.Snapshot) {
	snap := s.Snapshot()
	return view.Build(snap, derive.Chart(snap.Dataset), h.opts.ViewOptions), snap
}

// HandleIndex renders the full dashboard. The first visit of a session
// triggers the initial dataset and history loads.
func (h *Handler) HandleIndex(c echo.Context) error {
	state := h.session(c)
	state.Store.Mount()

	page, _ := h.buildPage(state.Store)
	var buf bytes.Buffer
	if err := h.renderer.RenderPage(&buf, page); err != nil {
		return NewInternalError("failed to render page", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// HandleFragment renders only the dashboard body.
func (h *Handler) HandleFragment(c echo.Context) error {
	state := h.session(c)
	state.Store.Mount()

	page, _ := h.buildPage(state.Store)
	var buf bytes.Buffer
	if err := h.renderer.RenderBody(&buf, page); err != nil {
		return NewInternalError("failed to render fragment", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	c.Response().Header().Set(HeaderDashboardVersion, strconv.FormatUint(page.Version, 10))
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// HandleUpload accepts the selected CSV file and starts the upload in the
// background. An empty selection does nothing.
func (h *Handler) HandleUpload(c echo.Context) error {
	state := h.session(c)

	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) || (err == nil && fh.Filename == "") {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	if err != nil {
		return NewBadRequestError("invalid upload form", err)
	}

	src, err := fh.Open()
	if err != nil {
		return NewBadRequestError("failed to open uploaded file", err)
	}
	defer src.Close()

	// The request body is gone once the handler returns.
	data, err := io.ReadAll(src)
	if err != nil {
		return NewBadRequestError("failed to read uploaded file", err)
	}

	name := fh.Filename
	log.Info().Str("session", state.ID).Str("file", name).Int("bytes", len(data)).Msg("upload requested")
	// Loading is visible on the page the redirect lands on.
	if attempt := state.Store.BeginUpload(name); attempt != nil {
		state.Store.Go(func(ctx context.Context) {
			attempt.Run(ctx, bytes.NewReader(data))
		})
	}

	if wantsJSON(c) {
		return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted", "file": name})
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

// HandleReport downloads the PDF report and returns it as an attachment.
// On failure the error banner is set and the browser is sent back to the
// dashboard.
func (h *Handler) HandleReport(c echo.Context) error {
	state := h.session(c)

	saver := store.SaverFunc(func(name string, data []byte) error {
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
		return c.Blob(http.StatusOK, "application/pdf", data)
	})

	err := state.Store.DownloadReport(c.Request().Context(), saver)
	if err == nil || c.Response().Committed {
		return nil
	}
	if wantsJSON(c) {
		return RespondWithError(c, NewBadGatewayError(err.Error(), nil))
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

// HandleChart renders the distribution chart as an image.
func (h *Handler) HandleChart(format view.ChartFormat) echo.HandlerFunc {
	return func(c echo.Context) error {
		state := h.session(c)
		series := derive.Chart(state.Store.Snapshot().Dataset)
		if series == nil {
			return NewNotFoundError("chart", "no equipment distribution")
		}

		var buf bytes.Buffer
		if err := view.RenderChart(&buf, series, format, h.opts.ChartSize); err != nil {
			return NewInternalError("failed to render chart", err)
		}
		c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
		return c.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
	}
}

// StateResponse is the machine readable dashboard state.
type StateResponse struct {
	View    view.Page             `json:"view"`
	Dataset *models.Dataset       `json:"dataset"`
	History []models.HistoryEntry `json:"history"`
}

// HandleState returns the current state as JSON, or msgpack when asked for
// through the Accept header or ?format=msgpack.
func (h *Handler) HandleState(c echo.Context) error {
	state := h.session(c)
	page, snap := h.buildPage(state.Store)
	resp := StateResponse{View: page, Dataset: snap.Dataset, History: snap.History}

	if c.QueryParam("format") == "msgpack" || strings.Contains(c.Request().Header.Get(echo.HeaderAccept), MIMEApplicationMsgpack) {
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(resp); err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		return c.Blob(http.StatusOK, MIMEApplicationMsgpack, buf.Bytes())
	}
	return c.JSON(http.StatusOK, resp)
}

func wantsJSON(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}
