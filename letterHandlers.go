package main

import (
	"net/http"
	"time"

	"github.com/DSQL-MONGKEY/e-email-kemtan/config"
	"github.com/DSQL-MONGKEY/e-email-kemtan/middlewares"
	"github.com/DSQL-MONGKEY/e-email-kemtan/models"
	"github.com/DSQL-MONGKEY/e-email-kemtan/models/reports"
	"github.com/DSQL-MONGKEY/e-email-kemtan/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// respondError writes {"error": msg} (plus "fields" for validation errors)
// with the status of the error's kind.
func respondError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	body := gin.H{"error": err.Error()}
	if fields := utils.ValidationFields(err); len(fields) > 0 {
		body["fields"] = fields
	}
	c.AbortWithStatusJSON(status, body)
}

func invalidRequest(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

func generateNumberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewLetterNumber
		if err := c.ShouldBindJSON(&input); err != nil {
			invalidRequest(c)
			return
		}
		input.CreatedBy = utils.ActorFromContext(c.Request.Context())

		issued, err := models.GenerateLetterNumber(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}

		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.GetLogger().WithFields(logrus.Fields{
			"letter_id":      issued.Id,
			"number":         issued.Number,
			"created_by":     issued.CreatedBy,
			"correlation_id": cid,
		}).Info("[letter.issued]")

		c.JSON(http.StatusOK, issued)
	}
}

func bindLetterFilter(c *gin.Context) (models.LetterFilter, bool) {
	var input models.LetterFilterInput
	if err := c.ShouldBindQuery(&input); err != nil {
		invalidRequest(c)
		return models.LetterFilter{}, false
	}
	f, err := models.ParseLetterFilter(input)
	if err != nil {
		respondError(c, err)
		return models.LetterFilter{}, false
	}
	return f, true
}

// listNumbersHandler pages through letters. from, to, category and division
// narrow every search stage, q included; a free-text search never widens
// past the other filters.
func listNumbersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		f, ok := bindLetterFilter(c)
		if !ok {
			return
		}
		page, err := models.ListLetters(c.Request.Context(), f)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := middlewares.EnrichLetterRows(c.Request.Context(), page.Items); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func exportNumbersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		f, ok := bindLetterFilter(c)
		if !ok {
			return
		}
		rows, err := models.ExportLetters(c.Request.Context(), f)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := middlewares.EnrichLetterRows(c.Request.Context(), rows); err != nil {
			respondError(c, err)
			return
		}

		c.Header("Content-Type", xlsxContentType)
		c.Header("Content-Disposition", `attachment; filename="`+reports.LetterRegisterFilename(time.Now().In(config.AgencyLocation()))+`"`)
		c.Status(http.StatusOK)
		if err := reports.WriteLetterRegister(c.Writer, rows); err != nil {
			// headers are already out; just record it
			_ = c.Error(err)
		}
	}
}

func overviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		overview, err := models.GetOverview(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		if err := middlewares.EnrichLetterRows(c.Request.Context(), overview.RecentLetters); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, overview)
	}
}

func trackActivityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewActivity
		if err := c.ShouldBindJSON(&input); err != nil {
			invalidRequest(c)
			return
		}
		input.UserAgent = c.Request.UserAgent()

		if _, err := models.TrackActivity(c.Request.Context(), &input); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
