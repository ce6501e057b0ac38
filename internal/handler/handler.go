// Package handler exposes the engine over HTTP.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"venue-wars/internal/game/battle"
	"venue-wars/internal/repository"
	"venue-wars/internal/service"
)

// appIDHeader selects the tenant namespace for a request. Requests
// without it fall back to the configured default.
const appIDHeader = "X-App-ID"

// Handler wires the services into gin routes.
type Handler struct {
	control      *service.ControlService
	rivals       *service.RivalService
	battles      *service.BattleService
	leaderboards *service.LeaderboardService
	defaultAppID string
}

// New creates a new Handler instance.
func New(
	control *service.ControlService,
	rivals *service.RivalService,
	battles *service.BattleService,
	leaderboards *service.LeaderboardService,
	defaultAppID string,
) *Handler {
	return &Handler{
		control:      control,
		rivals:       rivals,
		battles:      battles,
		leaderboards: leaderboards,
		defaultAppID: defaultAppID,
	}
}

// Register mounts all routes under /api.
func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api")

	api.POST("/visits", h.recordVisit)
	api.POST("/checkins", h.recordCheckin)
	api.GET("/venues/:placeId/rivals", h.findRivals)

	api.POST("/battles", h.startBattle)
	api.GET("/battles/:battleId", h.getBattle)
	api.POST("/battles/:battleId/actions", h.recordAction)
	api.POST("/battles/:battleId/end", h.endBattle)
	api.GET("/battles/:battleId/live", h.liveBattle)

	api.GET("/users/:userId/battle-stats", h.userBattleStats)
	api.GET("/users/:userId/venues", h.userVenues)
	api.GET("/users/:userId/territory-stats", h.userTerritoryStats)

	api.GET("/leaderboards/venues/:placeId", h.venueLeaderboard)
	api.GET("/leaderboards/global", h.globalLeaderboard)
	api.GET("/leaderboards/players", h.playerLeaderboard)
	api.GET("/leaderboards/battles", h.battleLeaderboard)
}

func (h *Handler) appID(c *gin.Context) string {
	if id := c.GetHeader(appIDHeader); id != "" {
		return id
	}
	return h.defaultAppID
}

// fail maps service and repository errors onto HTTP statuses:
// validation 400, not-found 404, illegal state 409, everything else 500.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidVenue),
		errors.Is(err, service.ErrInvalidUser),
		errors.Is(err, service.ErrInvalidMode),
		errors.Is(err, service.ErrParticipantCount),
		errors.Is(err, service.ErrDuplicateParticipant),
		errors.Is(err, battle.ErrUnknownAction),
		errors.Is(err, repository.ErrUnknownStatsField):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrVenueNotFound),
		errors.Is(err, repository.ErrControlNotFound),
		errors.Is(err, repository.ErrBattleNotFound),
		errors.Is(err, repository.ErrStatsNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrBattleNotActive),
		errors.Is(err, service.ErrNotParticipant):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
