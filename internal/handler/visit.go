package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"venue-wars/internal/service"
)

func (h *Handler) recordVisit(c *gin.Context) {
	var req service.VisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.control.RecordVisit(c.Request.Context(), h.appID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type checkinRequest struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	PlaceID     string `json:"placeId"`
	Competitive bool   `json:"competitive"`
}

func (h *Handler) recordCheckin(c *gin.Context) {
	var req checkinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	checkin, err := h.rivals.CheckIn(c.Request.Context(), h.appID(c), req.UserID, req.Username, req.PlaceID, req.Competitive)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkin)
}

func (h *Handler) findRivals(c *gin.Context) {
	placeID := c.Param("placeId")
	excluding := c.Query("user")

	rivals := h.rivals.FindRivals(c.Request.Context(), h.appID(c), placeID, excluding)
	c.JSON(http.StatusOK, gin.H{"rivals": rivals, "count": len(rivals)})
}
