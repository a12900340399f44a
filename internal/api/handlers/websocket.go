package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huntparty/huntparty-backend/internal/service"
	"github.com/huntparty/huntparty-backend/internal/websocket"
	"github.com/huntparty/huntparty-backend/pkg/logger"
)

// WebSocketHandler WebSocket 연결 처리
type WebSocketHandler struct {
	hub          *websocket.Hub
	partyService *service.PartyService
}

// NewWebSocketHandler WebSocketHandler 생성
func NewWebSocketHandler(hub *websocket.Hub, partyService *service.PartyService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:          hub,
		partyService: partyService,
	}
}

// HandleWebSocket WebSocket 연결 엔드포인트.
// 인바운드는 파티 하트비트만 처리하고, 연결 종료 시 큐 제거는
// Hub의 disconnect 콜백이 담당한다.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	// 인증 미들웨어에서 설정한 userID 가져오기
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	heartbeat := func(uid, partyID string) {
		if _, err := h.partyService.Heartbeat(partyID, uid); err != nil {
			logger.Debug("Heartbeat ignored", "userId", uid, "partyId", partyID, "error", err)
		}
	}

	// WebSocket 연결 업그레이드
	websocket.ServeWs(h.hub, c.Writer, c.Request, userID.(string), heartbeat)
}
