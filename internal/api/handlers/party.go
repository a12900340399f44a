package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huntparty/huntparty-backend/internal/models"
	"github.com/huntparty/huntparty-backend/internal/service"
)

// PartyHandler 파티 수명주기 API 처리
type PartyHandler struct {
	partyService  *service.PartyService
	assignService *service.RandomAssignService
}

// NewPartyHandler PartyHandler 생성
func NewPartyHandler(partyService *service.PartyService, assignService *service.RandomAssignService) *PartyHandler {
	return &PartyHandler{
		partyService:  partyService,
		assignService: assignService,
	}
}

// Create godoc
// @Summary Create a party
// @Description Create a new open party with the caller as leader.
// @Tags party
// @Accept json
// @Produce json
// @Success 201 {object} models.Party
// @Failure 409 {object} map[string]string "Already in a party"
// @Router /api/v1/parties [post]
// @Security BearerAuth
func (h *PartyHandler) Create(c *gin.Context) {
	userID := c.GetString("userID")

	var body struct {
		Job string `json:"job"`
	}
	// 본문 없는 생성도 허용 (직업 미지정 리더)
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
	}

	party, err := h.partyService.Create(userID, body.Job)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, party)
}

// Get godoc
// @Summary Get a party
// @Tags party
// @Produce json
// @Param partyId path string true "Party ID"
// @Success 200 {object} models.Party
// @Failure 404 {object} map[string]string "Party not found"
// @Router /api/v1/parties/{partyId} [get]
// @Security BearerAuth
func (h *PartyHandler) Get(c *gin.Context) {
	party, err := h.partyService.Get(c.Param("partyId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, party)
}

// GetMine godoc
// @Summary Get the caller's party
// @Tags party
// @Produce json
// @Success 200 {object} models.Party
// @Failure 404 {object} map[string]string "Not in a party"
// @Router /api/v1/parties/me [get]
// @Security BearerAuth
func (h *PartyHandler) GetMine(c *gin.Context) {
	userID := c.GetString("userID")

	party, err := h.partyService.GetByMember(userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, party)
}

// GetByMember godoc
// @Summary Look up a party by member
// @Tags party
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} models.Party
// @Failure 404 {object} map[string]string "User not in a party"
// @Router /api/v1/parties/member/{userId} [get]
// @Security BearerAuth
func (h *PartyHandler) GetByMember(c *gin.Context) {
	party, err := h.partyService.GetByMember(c.Param("userId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, party)
}

// Join godoc
// @Summary Join a party
// @Description Join an open party. Busy parties return 409 with retryable=true.
// @Tags party
// @Accept json
// @Produce json
// @Param partyId path string true "Party ID"
// @Success 200 {object} models.Party
// @Failure 409 {object} map[string]string "Full, busy or already in a party"
// @Router /api/v1/parties/{partyId}/join [post]
// @Security BearerAuth
func (h *PartyHandler) Join(c *gin.Context) {
	userID := c.GetString("userID")

	var body struct {
		Job string `json:"job"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	party, err := h.partyService.Join(c.Param("partyId"), userID, body.Job)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, party)
}

// Leave godoc
// @Summary Leave a party
// @Description Leave the party. Leadership transfers if the leader leaves; the party dissolves when empty.
// @Tags party
// @Produce json
// @Param partyId path string true "Party ID"
// @Success 200 {object} models.Party
// @Router /api/v1/parties/{partyId}/leave [post]
// @Security BearerAuth
func (h *PartyHandler) Leave(c *gin.Context) {
	userID := c.GetString("userID")

	party, err := h.partyService.Leave(c.Param("partyId"), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, party)
}

// UpdateBuffs godoc
// @Summary Update party buff totals
// @Description Partial update of the party's buff aggregate. Values clamp to [0, 999].
// @Tags party
// @Accept json
// @Produce json
// @Param partyId path string true "Party ID"
// @Param request body models.PartyBuffPatch true "Buff patch"
// @Success 200 {object} models.Party
// @Router /api/v1/parties/{partyId}/buffs [patch]
// @Security BearerAuth
func (h *PartyHandler) UpdateBuffs(c *gin.Context) {
	var patch models.PartyBuffPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	party, err := h.partyService.UpdateBuffs(c.Param("partyId"), patch)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, party)
}

// AssignChannel godoc
// @Summary Assign a game channel
// @Description Pin the party to a channel. The party closes for recruiting and members' queue records are stamped.
// @Tags party
// @Accept json
// @Produce json
// @Param partyId path string true "Party ID"
// @Success 200 {object} models.Party
// @Router /api/v1/parties/{partyId}/channel [put]
// @Security BearerAuth
func (h *PartyHandler) AssignChannel(c *gin.Context) {
	var body struct {
		Channel int `json:"channel" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	party, err := h.partyService.AssignChannel(c.Param("partyId"), body.Channel)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, party)
}

// SetOpen godoc
// @Summary Open or close recruiting
// @Tags party
// @Accept json
// @Produce json
// @Param partyId path string true "Party ID"
// @Success 200 {object} models.Party
// @Router /api/v1/parties/{partyId}/open [put]
// @Security BearerAuth
func (h *PartyHandler) SetOpen(c *gin.Context) {
	var body struct {
		IsOpen *bool `json:"isOpen" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	party, err := h.partyService.SetOpen(c.Param("partyId"), *body.IsOpen)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, party)
}

// TransferLeader godoc
// @Summary Transfer party leadership
// @Description Leader-only. The target must be a current member.
// @Tags party
// @Accept json
// @Produce json
// @Param partyId path string true "Party ID"
// @Success 200 {object} models.Party
// @Failure 403 {object} map[string]string "Not the leader or target not a member"
// @Router /api/v1/parties/{partyId}/leader [put]
// @Security BearerAuth
func (h *PartyHandler) TransferLeader(c *gin.Context) {
	userID := c.GetString("userID")

	var body struct {
		ToUserID string `json:"toUserId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	party, err := h.partyService.TransferOwnership(c.Param("partyId"), userID, body.ToUserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, party)
}

// Heartbeat godoc
// @Summary Party heartbeat
// @Description Extend the party's expiry and mark the caller active. Also served over WebSocket.
// @Tags party
// @Produce json
// @Param partyId path string true "Party ID"
// @Success 200 {object} models.Party
// @Router /api/v1/parties/{partyId}/heartbeat [post]
// @Security BearerAuth
func (h *PartyHandler) Heartbeat(c *gin.Context) {
	userID := c.GetString("userID")

	party, err := h.partyService.Heartbeat(c.Param("partyId"), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, party)
}

// Assign godoc
// @Summary Random party assignment
// @Description Score a random sample of open parties and join the best one.
// @Tags party
// @Accept json
// @Produce json
// @Success 200 {object} models.Party
// @Failure 404 {object} map[string]string "No open party available"
// @Failure 409 {object} map[string]string "Busy party, retry"
// @Router /api/v1/parties/assign [post]
// @Security BearerAuth
func (h *PartyHandler) Assign(c *gin.Context) {
	userID := c.GetString("userID")

	var body struct {
		Name    string   `json:"name"`
		Job     string   `json:"job" binding:"required"`
		Blocked []string `json:"blocked"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	party, err := h.assignService.Assign(service.AssignRequest{
		UserID:  userID,
		Name:    body.Name,
		Job:     body.Job,
		Blocked: body.Blocked,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, party)
}
