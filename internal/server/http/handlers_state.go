package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scmc-ops/hoscad/internal/model"
)

// handleGetState returns the full board snapshot the console polls for:
// units, incidents, reference data, metrics, banner, and the caller's
// inbox in one round trip.
func (s *Server) handleGetState(c *gin.Context) {
	ctx := c.Request.Context()
	id := identity(c)

	units, err := s.board.ListUnits(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	incs, err := s.incidents.List(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	dests, err := s.refs.Destinations(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	metrics, err := s.reporter.GetMetrics(ctx, 0)
	if err != nil {
		s.fail(c, err)
		return
	}
	stale, err := s.reporter.Staleness(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	banner, err := s.refs.Banner(ctx, "dispatch")
	if err != nil {
		s.fail(c, err)
		return
	}
	msgs, err := s.messages.List(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"server_time":      model.FormatTime(s.now()),
		"stale_thresholds": s.reporter.Thresholds(),
		"statuses":         model.Statuses,
		"units":            units,
		"incidents":        incs,
		"destinations":     dests,
		"metrics":          metrics,
		"stale":            stale,
		"banner":           banner,
		"messages":         msgs,
		"actor":            id.Actor,
	})
}
