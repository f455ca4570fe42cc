package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) windowHours(c *gin.Context) int {
	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "0"))
	return hours
}

func (s *Server) handleMetrics(c *gin.Context) {
	m, err := s.reporter.GetMetrics(c.Request.Context(), s.windowHours(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) handleSystemStatus(c *gin.Context) {
	st, err := s.reporter.GetSystemStatus(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleStaleness(c *gin.Context) {
	stale, err := s.reporter.Staleness(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stale": stale})
}

func (s *Server) handleOOSReport(c *gin.Context) {
	rpt, err := s.reporter.GetOOSReport(c.Request.Context(), s.windowHours(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rpt)
}

func (s *Server) handleAuditCSV(c *gin.Context) {
	out, err := s.reporter.ExportAuditCSV(c.Request.Context(), s.windowHours(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="audit.csv"`)
	c.Data(http.StatusOK, "text/csv", out)
}

func (s *Server) handleSearch(c *gin.Context) {
	hits, err := s.admin.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": hits})
}

func (s *Server) handleListMessages(c *gin.Context) {
	msgs, err := s.messages.List(c.Request.Context(), identity(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (s *Server) handleSendMessage(c *gin.Context) {
	var req struct {
		To     string `json:"to"`
		Body   string `json:"message"`
		Urgent bool   `json:"urgent"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	ids, err := s.messages.Send(c.Request.Context(), identity(c), req.To, req.Body, req.Urgent)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message_ids": ids})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	if err := s.messages.MarkRead(c.Request.Context(), identity(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleDeleteMessage(c *gin.Context) {
	if err := s.messages.Delete(c.Request.Context(), identity(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleDeleteAllMessages(c *gin.Context) {
	n, err := s.messages.DeleteAll(c.Request.Context(), identity(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (s *Server) handleDestinations(c *gin.Context) {
	dests, err := s.refs.Destinations(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"destinations": dests})
}

func (s *Server) handleAddresses(c *gin.Context) {
	addrs, err := s.refs.Addresses(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addresses": addrs})
}

func (s *Server) handleGetBanner(c *gin.Context) {
	v, err := s.refs.Banner(c.Request.Context(), c.Param("key"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": v})
}

func (s *Server) handleSetBanner(c *gin.Context) {
	var req struct {
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	if err := s.refs.SetBanner(c.Request.Context(), c.Param("key"), req.Value); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleClearData(c *gin.Context) {
	var req struct {
		Target string `json:"target"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	if err := s.admin.ClearData(c.Request.Context(), identity(c), req.Target); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handlePurge(c *gin.Context) {
	rpt, err := s.admin.Purge(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rpt)
}

func (s *Server) handleClearSessions(c *gin.Context) {
	if err := s.auth.ClearSessions(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
