package graph

import (
	"context"
	"net/http"
	"path/filepath"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medkg/medkg/internal/platform/db"
	"github.com/medkg/medkg/internal/platform/middleware"
	"github.com/medkg/medkg/internal/platform/pipeline"
	"github.com/medkg/medkg/pkg/pagination"
)

// poolReporter is implemented by stores backed by a connection pool.
type poolReporter interface {
	PoolStats() *db.PoolStats
}

type statusHandler struct {
	store   Store
	backend string
	runsDir string
	log     zerolog.Logger
}

// NewStatusServer serves GET /health and GET /graph/counts over store, and
// GET /runs over the run summaries in runsDir.
func NewStatusServer(store Store, backend, runsDir string, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestID())
	e.Use(middleware.Recovery(log))
	e.Use(middleware.Logger(log))
	e.Use(middleware.RequestTimeout(30 * time.Second))

	h := &statusHandler{store: store, backend: backend, runsDir: runsDir, log: log}
	e.GET("/health", h.health)
	e.GET("/graph/counts", h.counts)
	e.GET("/runs", h.runs)
	return e
}

func (h *statusHandler) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	body := map[string]interface{}{"backend": h.backend}
	if pr, ok := h.store.(poolReporter); ok {
		body["pool"] = pr.PoolStats()
	}
	if err := h.store.Ping(ctx); err != nil {
		body["status"] = "unhealthy"
		body["error"] = err.Error()
		return c.JSON(http.StatusServiceUnavailable, body)
	}
	body["status"] = "healthy"
	return c.JSON(http.StatusOK, body)
}

func (h *statusHandler) counts(c echo.Context) error {
	ctx := c.Request().Context()
	nodes, err := h.store.CountNodes(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	edges, err := h.store.CountEdges(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, Report{Nodes: nodes, Edges: edges})
}

// runs lists stage summaries newest first. A summary that cannot be read is
// skipped and logged.
func (h *statusHandler) runs(c echo.Context) error {
	files, err := filepath.Glob(filepath.Join(h.runsDir, "*.summary.json"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	sums := make([]*pipeline.Summary, 0, len(files))
	for _, f := range files {
		s := &pipeline.Summary{}
		if err := pipeline.ReadJSON(f, s); err != nil {
			h.log.Warn().Err(err).Str("file", f).Msg("skipping unreadable run summary")
			continue
		}
		sums = append(sums, s)
	}
	sort.SliceStable(sums, func(i, j int) bool {
		return sums[i].StartedAt.After(sums[j].StartedAt)
	})

	if stage := c.QueryParam("stage"); stage != "" {
		kept := sums[:0]
		for _, s := range sums {
			if s.Stage == stage {
				kept = append(kept, s)
			}
		}
		sums = kept
	}

	p := pagination.FromContext(c)
	lo, hi := p.Window(len(sums))
	return c.JSON(http.StatusOK, pagination.NewResponse(sums[lo:hi], len(sums), p))
}
