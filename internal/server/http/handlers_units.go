package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/scmc-ops/hoscad/internal/model"
)

type upsertUnitRequest struct {
	Patch             model.UnitPatch `json:"patch"`
	ExpectedUpdatedAt string          `json:"expected_updated_at"`
}

type tokenRequest struct {
	ExpectedUpdatedAt string `json:"expected_updated_at"`
}

func (s *Server) handleListUnits(c *gin.Context) {
	units, err := s.board.ListUnits(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"units": units})
}

func (s *Server) handleGetUnit(c *gin.Context) {
	unit, err := s.board.GetUnit(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func (s *Server) handleUpsertUnit(c *gin.Context) {
	var req upsertUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	unit, err := s.board.UpsertUnit(c.Request.Context(), c.Param("id"), &req.Patch,
		req.ExpectedUpdatedAt, identity(c).Actor)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func (s *Server) handleTouchUnit(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	unit, err := s.board.TouchUnit(c.Request.Context(), c.Param("id"),
		req.ExpectedUpdatedAt, identity(c).Actor)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func (s *Server) handleUndoUnit(c *gin.Context) {
	unit, err := s.board.UndoUnit(c.Request.Context(), c.Param("id"), identity(c).Actor)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func (s *Server) handleLogoffUnit(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	unit, err := s.board.LogoffUnit(c.Request.Context(), c.Param("id"),
		req.ExpectedUpdatedAt, identity(c).Actor)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func (s *Server) handleRidoffUnit(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	unit, err := s.board.RidoffUnit(c.Request.Context(), c.Param("id"),
		req.ExpectedUpdatedAt, identity(c).Actor)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func (s *Server) handleTouchAllOnScene(c *gin.Context) {
	touched, err := s.board.TouchAllOnScene(c.Request.Context(), identity(c).Actor)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"touched": touched})
}

func (s *Server) handleMassDispatch(c *gin.Context) {
	var req struct {
		Destination string `json:"destination"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	dispatched, err := s.board.MassDispatch(c.Request.Context(), req.Destination, identity(c).Actor)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dispatched": dispatched})
}

func (s *Server) handleLinkUnits(c *gin.Context) {
	var req struct {
		Unit1    string `json:"unit1"`
		Unit2    string `json:"unit2"`
		Incident string `json:"incident"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	units, err := s.board.LinkUnits(c.Request.Context(), req.Unit1, req.Unit2, req.Incident, identity(c).Actor)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"units": units})
}

func (s *Server) handleTransferIncident(c *gin.Context) {
	var req struct {
		From     string `json:"from"`
		To       string `json:"to"`
		Incident string `json:"incident"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	from, to, err := s.board.TransferIncident(c.Request.Context(), req.From, req.To, req.Incident, identity(c).Actor)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to})
}

func (s *Server) handleUnitHistory(c *gin.Context) {
	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "12"))
	entries, err := s.reporter.GetUnitHistory(c.Request.Context(), c.Param("id"), hours)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}
