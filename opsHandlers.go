package main

import (
	"net/http"

	"github.com/DSQL-MONGKEY/e-email-kemtan/config"
	"github.com/DSQL-MONGKEY/e-email-kemtan/utils"
	"github.com/DSQL-MONGKEY/e-email-kemtan/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type outboxReplayRequest struct {
	RecordId int `json:"record_id"`
}

// outboxReplayHandler requeues a DEAD or FAILED letter event. Always requires a
// signed-in caller, whatever AUTH_REQUIRED says.
func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok || userId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidRequest(c)
			return
		}
		if req.RecordId <= 0 {
			respondError(c, utils.NewValidationError("record_id", "record_id is required"))
			return
		}

		rec, err := workflow.ReplayLetterEvent(c.Request.Context(), config.GetDB(), req.RecordId)
		if err != nil {
			respondError(c, err)
			return
		}

		config.GetLogger().WithFields(logrus.Fields{
			"record_id": rec.ID,
			"letter_id": rec.LetterId,
			"actor":     utils.ActorFromContext(c.Request.Context()),
		}).Info("[outbox.replay]")

		c.JSON(http.StatusOK, gin.H{
			"record_id":       rec.ID,
			"letter_id":       rec.LetterId,
			"publish_status":  rec.PublishStatus,
			"next_attempt_at": rec.NextAttemptAt,
		})
	}
}
