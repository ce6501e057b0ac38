package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"venue-wars/internal/game/battle"
	"venue-wars/internal/model"
)

type startBattleRequest struct {
	PlaceID      string              `json:"placeId"`
	VenueName    string              `json:"venueName"`
	Participants []model.Participant `json:"participants"`
}

func (h *Handler) startBattle(c *gin.Context) {
	var req startBattleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	battleID, err := h.battles.Start(c.Request.Context(), h.appID(c), req.PlaceID, req.VenueName, req.Participants)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"battleId": battleID})
}

func (h *Handler) getBattle(c *gin.Context) {
	session, err := h.battles.Get(c.Request.Context(), h.appID(c), c.Param("battleId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type actionRequest struct {
	UserID string `json:"userId"`
	Type   string `json:"type"`
	Value  int    `json:"value"`
}

func (h *Handler) recordAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	action := battle.Action{Type: battle.ActionType(req.Type), Value: req.Value}
	result, err := h.battles.RecordAction(c.Request.Context(), h.appID(c), c.Param("battleId"), req.UserID, action)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) endBattle(c *gin.Context) {
	result, err := h.battles.End(c.Request.Context(), h.appID(c), c.Param("battleId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// liveBattle streams the session state over a websocket: the current
// snapshot on connect, then the full state after every committed
// change. A null message means the session no longer exists.
func (h *Handler) liveBattle(c *gin.Context) {
	battleID := c.Param("battleId")
	appID := h.appID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("battle_id", battleID).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	client := newLiveClient(conn)
	defer client.close()

	unsubscribe := h.battles.Subscribe(c.Request.Context(), appID, battleID, func(session *model.BattleSession) {
		if err := client.send(session); err != nil {
			log.Debug().Err(err).Str("battle_id", battleID).Msg("Websocket write failed")
		}
	})
	defer unsubscribe()

	// Drain reads so we notice the peer closing. Inbound payloads are
	// ignored; all mutations go through the HTTP endpoints.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
