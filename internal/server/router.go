// Package server exposes the Registry over HTTP: the control plane every
// exeioctl-style client and the bundled pkg/client talk to.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/exeio/internal/apiauth"
	"github.com/loykin/exeio/internal/entry"
	"github.com/loykin/exeio/internal/logio"
	"github.com/loykin/exeio/internal/metrics"
	"github.com/loykin/exeio/internal/registry"
)

// maxInputBody bounds a single /input request; stdin delivery is for
// interactive control, not bulk file transfer.
const maxInputBody = 1 << 20 // 1 MiB

// Registry is the subset of *registry.Registry the router depends on,
// narrowed for testability.
type Registry interface {
	Add(spec entry.Spec) (entry.Snapshot, error)
	Get(id string) (entry.Snapshot, error)
	List() []entry.Snapshot
	Stop(id string) error
	Restart(id string) error
	Input(id string, data []byte) error
	Logs(id string, page, pageSize int) (logio.Page, error)
	ClearLog(id string) error
	Remove(id string) error
	StopAll() map[string]error
	RestartAll() map[string]error
}

// Router builds the gin engine backed by a Registry.
type Router struct {
	reg        Registry
	apiKey     string
	version    string
	bind       string
	startedAt  time.Time
	onShutdown func()
}

// Options configures a Router.
type Options struct {
	APIKey string
	// Version is reported by /info.
	Version string
	// Bind is the host:port this supervisor listens on, reported by /info.
	Bind string
	// OnShutdown is invoked each time /shutdown is called, after every
	// entry has been asked to stop. Typically wired to close the listener
	// and let main() return.
	OnShutdown func()
}

// NewRouter constructs the gin engine for reg.
func NewRouter(reg Registry, opts Options) *Router {
	return &Router{
		reg:        reg,
		apiKey:     opts.APIKey,
		version:    opts.Version,
		bind:       opts.Bind,
		startedAt:  time.Now(),
		onShutdown: opts.OnShutdown,
	}
}

// Handler returns the http.Handler to mount or serve directly.
func (rt *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	g.Use(apiauth.Middleware(rt.apiKey, "/info"))

	g.POST("/add", rt.handleAdd)
	g.POST("/restart/:id", rt.handleRestart)
	g.POST("/stop/:id", rt.handleStop)
	g.POST("/remove/:id", rt.handleRemove)
	g.GET("/list", rt.handleList)
	g.GET("/logs/:id", rt.handleLogs)
	g.POST("/input/:id", rt.handleInput)
	g.POST("/clear-log/:id", rt.handleClearLog)
	g.POST("/restart-all", rt.handleRestartAll)
	g.POST("/stop-all", rt.handleStopAll)
	g.POST("/shutdown", rt.handleShutdown)
	g.GET("/info", rt.handleInfo)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))

	return g
}

// NewServer wraps Handler() in an *http.Server with the teacher's usual
// timeouts, without starting it. opts.Bind defaults to addr when unset.
func NewServer(addr string, reg Registry, opts Options) *http.Server {
	if opts.Bind == "" {
		opts.Bind = addr
	}
	rt := NewRouter(reg, opts)
	return &http.Server{
		Addr:              addr,
		Handler:           rt.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (rt *Router) handleAdd(c *gin.Context) {
	var spec entry.Spec
	if err := c.ShouldBindJSON(&spec); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if spec.ID != "" && !isSafeID(spec.ID) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid id: allowed [A-Za-z0-9._-]"})
		return
	}

	snap, err := rt.reg.Add(spec)
	if err != nil {
		writeJSON(c, statusForError(err), errorResp{Error: err.Error()})
		return
	}
	metrics.IncStart(spec.ID)
	writeJSON(c, http.StatusOK, snap)
}

func (rt *Router) handleRestart(c *gin.Context) {
	id := c.Param("id")
	if err := rt.reg.Restart(id); err != nil {
		writeJSON(c, statusForError(err), errorResp{Error: err.Error()})
		return
	}
	metrics.IncRestart(id)
	snap, err := rt.reg.Get(id)
	if err != nil {
		writeJSON(c, statusForError(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, snap)
}

func (rt *Router) handleStop(c *gin.Context) {
	id := c.Param("id")
	if err := rt.reg.Stop(id); err != nil {
		writeJSON(c, statusForError(err), errorResp{Error: err.Error()})
		return
	}
	metrics.IncStop(id)
	snap, err := rt.reg.Get(id)
	if err != nil {
		writeJSON(c, statusForError(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, snap)
}

func (rt *Router) handleRemove(c *gin.Context) {
	id := c.Param("id")
	if err := rt.reg.Remove(id); err != nil {
		writeJSON(c, statusForError(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (rt *Router) handleList(c *gin.Context) {
	writeJSON(c, http.StatusOK, rt.reg.List())
}

func (rt *Router) handleLogs(c *gin.Context) {
	id := c.Param("id")
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", logio.DefaultPageSize)

	pg, err := rt.reg.Logs(id, page, pageSize)
	if err != nil {
		writeJSON(c, statusForError(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, pg)
}

// inputReq is the /input/{id} body: {"input":"..."}. The field is
// written to the child's stdin as given, followed by one newline.
type inputReq struct {
	Input string `json:"input"`
}

func (rt *Router) handleInput(c *gin.Context) {
	id := c.Param("id")
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxInputBody+1))
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "reading body: " + err.Error()})
		return
	}
	if len(data) > maxInputBody {
		writeJSON(c, http.StatusRequestEntityTooLarge, errorResp{Error: "input exceeds maximum size"})
		return
	}
	var req inputReq
	if err := json.Unmarshal(data, &req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := rt.reg.Input(id, []byte(req.Input)); err != nil {
		writeJSON(c, statusForError(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (rt *Router) handleClearLog(c *gin.Context) {
	id := c.Param("id")
	if err := rt.reg.ClearLog(id); err != nil {
		writeJSON(c, statusForError(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (rt *Router) handleRestartAll(c *gin.Context) {
	writeBatchResult(c, rt.reg.RestartAll())
}

func (rt *Router) handleStopAll(c *gin.Context) {
	writeBatchResult(c, rt.reg.StopAll())
}

func (rt *Router) handleShutdown(c *gin.Context) {
	writeBatchResult(c, rt.reg.StopAll())
	if rt.onShutdown != nil {
		go rt.onShutdown()
	}
}

type infoResp struct {
	Version   string `json:"version"`
	StartedAt string `json:"started_at"`
	Bind      string `json:"bind"`
}

func (rt *Router) handleInfo(c *gin.Context) {
	writeJSON(c, http.StatusOK, infoResp{
		Version:   rt.version,
		StartedAt: rt.startedAt.UTC().Format(time.RFC3339),
		Bind:      rt.bind,
	})
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entry.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, entry.ErrInvalidID), errors.Is(err, entry.ErrNoCommand),
		errors.Is(err, entry.ErrAutoRestartPeriodic), errors.Is(err, entry.ErrBadPeriod):
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}

// Serve runs srv until ctx is canceled, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return <-errCh
	}
}
