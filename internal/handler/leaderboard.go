package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"venue-wars/internal/repository"
)

func (h *Handler) userBattleStats(c *gin.Context) {
	stats, err := h.leaderboards.UserBattleStats(c.Request.Context(), h.appID(c), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"totalBattles":      stats.TotalBattles,
		"wins":              stats.Wins,
		"losses":            stats.Losses,
		"currentStreak":     stats.CurrentStreak,
		"longestWinStreak":  stats.LongestWinStreak,
		"totalBattlePoints": stats.TotalBattlePoints,
		"winRate":           stats.WinRate(),
	})
}

func (h *Handler) userVenues(c *gin.Context) {
	venues := h.leaderboards.UserControlledVenues(c.Request.Context(), h.appID(c), c.Param("userId"))
	c.JSON(http.StatusOK, gin.H{"venues": venues, "count": len(venues)})
}

func (h *Handler) userTerritoryStats(c *gin.Context) {
	stats := h.leaderboards.UserTerritoryStats(c.Request.Context(), h.appID(c), c.Param("userId"))
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) venueLeaderboard(c *gin.Context) {
	entries := h.leaderboards.VenueLeaderboard(c.Request.Context(), h.appID(c), c.Param("placeId"), queryInt(c, "limit", 0))
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

func (h *Handler) globalLeaderboard(c *gin.Context) {
	entries := h.leaderboards.GlobalControlLeaderboard(c.Request.Context(), h.appID(c), queryInt(c, "limit", 0))
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

func (h *Handler) playerLeaderboard(c *gin.Context) {
	field := repository.StatsField(c.DefaultQuery("by", string(repository.FieldTerritories)))

	stats, err := h.leaderboards.PlayerLeaderboard(
		c.Request.Context(), h.appID(c), field,
		queryInt(c, "limit", 0), queryInt(c, "offset", 0),
	)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": stats})
}

func (h *Handler) battleLeaderboard(c *gin.Context) {
	entries := h.leaderboards.BattleLeaderboard(c.Request.Context(), h.appID(c), queryInt(c, "limit", 0))
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
