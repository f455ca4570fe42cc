package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleListIncidents(c *gin.Context) {
	incs, err := s.incidents.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"incidents": incs})
}

func (s *Server) handleGetIncident(c *gin.Context) {
	inc, narrative, err := s.incidents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"incident": inc, "narrative": narrative})
}

func (s *Server) handleCreateQueued(c *gin.Context) {
	var req struct {
		Destination string `json:"destination"`
		Note        string `json:"note"`
		Urgent      bool   `json:"urgent"`
		AssignUnit  string `json:"assign_unit"`
		Type        string `json:"incident_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	id, err := s.incidents.CreateQueued(c.Request.Context(), req.Destination, req.Note,
		req.Urgent, req.AssignUnit, req.Type, identity(c).Actor)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"incident_id": id})
}

func (s *Server) handleUpdateIncident(c *gin.Context) {
	var req struct {
		Note        string  `json:"note"`
		Type        string  `json:"incident_type"`
		Destination *string `json:"destination"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	err := s.incidents.Update(c.Request.Context(), c.Param("id"), req.Note, req.Type,
		req.Destination, identity(c).Actor)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleAppendNote(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	if err := s.incidents.AppendNote(c.Request.Context(), c.Param("id"), req.Message, identity(c).Actor); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleTouchIncident(c *gin.Context) {
	if err := s.incidents.Touch(c.Request.Context(), c.Param("id"), identity(c).Actor); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleCloseIncident(c *gin.Context) {
	if err := s.incidents.Close(c.Request.Context(), c.Param("id"), identity(c).Actor); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleReopenIncident(c *gin.Context) {
	if err := s.incidents.Reopen(c.Request.Context(), c.Param("id"), identity(c).Actor); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
