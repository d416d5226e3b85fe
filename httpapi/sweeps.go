package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) handleChaseSweep(c *gin.Context) {
	result, err := s.chaser.Run(c.Request.Context())
	if err != nil {
		s.log.Error("chase sweep failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"scanned":   result.Scanned,
		"sent":      result.Sent,
		"withdrawn": result.Withdrawn,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	})
}

func (s *Server) handleUrgencySweep(c *gin.Context) {
	result, err := s.urgency.Run(c.Request.Context())
	if err != nil {
		s.log.Error("urgency sweep failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"scanned": result.Scanned,
		"updated": result.Updated,
		"failed":  result.Failed,
	})
}

func (s *Server) handleDeliverySweep(c *gin.Context) {
	result, err := s.delivery.DispatchDue(c.Request.Context())
	if err != nil {
		s.log.Error("delivery sweep failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"scanned": result.Scanned,
		"sent":    result.Sent,
		"failed":  result.Failed,
	})
}
