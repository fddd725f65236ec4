package main

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/DSQL-MONGKEY/e-email-kemtan/middlewares"
	"github.com/DSQL-MONGKEY/e-email-kemtan/models"
	"github.com/DSQL-MONGKEY/e-email-kemtan/utils"
	"github.com/gin-gonic/gin"
)

func mastersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		masters, err := models.GetMasters(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, masters)
	}
}

/* categories */

func listCategoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		activeOnly := strings.EqualFold(strings.TrimSpace(c.Query("active")), "true")
		items, err := models.ListCategories(c.Request.Context(), activeOnly)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func getCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		code := utils.NormalizeCode(c.Param("code"))
		item, err := middlewares.GetCategory(c.Request.Context(), code)
		if err != nil {
			respondError(c, err)
			return
		}
		if item == nil {
			respondError(c, utils.NewNotFoundError("category %s not found", code))
			return
		}
		c.JSON(http.StatusOK, gin.H{"item": item})
	}
}

func upsertCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewCategory
		if err := c.ShouldBindJSON(&input); err != nil {
			invalidRequest(c)
			return
		}
		item, err := models.UpsertCategory(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"item": item})
	}
}

func updateCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.UpdateCategory
		if err := c.ShouldBindJSON(&input); err != nil {
			invalidRequest(c)
			return
		}
		item, err := models.RenameCategory(c.Request.Context(), c.Param("code"), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"item": item})
	}
}

func deleteCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := models.DeleteCategory(c.Request.Context(), c.Param("code")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

/* divisions */

func divisionIdParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		respondError(c, utils.NewValidationError("id", "id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func listDivisionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := models.ListDivisions(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func getDivisionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := divisionIdParam(c)
		if !ok {
			return
		}
		item, err := middlewares.GetDivision(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if item == nil {
			respondError(c, utils.NewNotFoundError("division %d not found", id))
			return
		}
		c.JSON(http.StatusOK, gin.H{"item": item})
	}
}

func upsertDivisionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewDivision
		if err := c.ShouldBindJSON(&input); err != nil {
			invalidRequest(c)
			return
		}
		item, err := models.UpsertDivision(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"item": item})
	}
}

func updateDivisionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := divisionIdParam(c)
		if !ok {
			return
		}
		var input models.NewDivision
		if err := c.ShouldBindJSON(&input); err != nil {
			invalidRequest(c)
			return
		}
		item, err := models.RenameDivision(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"item": item})
	}
}

func deleteDivisionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := divisionIdParam(c)
		if !ok {
			return
		}
		if _, err := models.DeleteDivision(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
