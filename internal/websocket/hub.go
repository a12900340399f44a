package websocket

import (
	"sync"

	"github.com/huntparty/huntparty-backend/internal/models"
	"go.uber.org/zap"
)

// Hub WebSocket 연결 관리 및 브로드캐스트.
// 엔진의 커밋된 파티 변경을 연결된 클라이언트로 밀어내는 게이트웨이다.
type Hub struct {
	// 사용자별 연결 저장 (userID -> *Client)
	clients map[string]*Client
	mu      sync.RWMutex

	// 브로드캐스트 채널
	broadcast chan *Message

	// 등록/해제 채널
	register   chan *Client
	unregister chan *Client

	// 연결 종료 시 호출 (큐에서 참가자 제거용)
	onDisconnect func(userID string)

	logger *zap.Logger
}

// Message WebSocket 메시지
type Message struct {
	UserID  string      `json:"-"`       // 수신자 (빈 문자열이면 전체 브로드캐스트)
	Type    string      `json:"type"`    // 메시지 타입
	Payload interface{} `json:"payload"` // 메시지 내용
}

// NewHub Hub 생성
func NewHub() *Hub {
	logger, _ := zap.NewProduction()
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// SetOnDisconnect 연결 종료 콜백 설정 (Run 호출 전에 설정해야 한다)
func (h *Hub) SetOnDisconnect(f func(userID string)) {
	h.onDisconnect = f
}

// Run Hub 실행
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// registerClient 클라이언트 등록
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// 기존 연결이 있으면 닫기
	if oldClient, exists := h.clients[client.userID]; exists {
		close(oldClient.send)
		h.logger.Info("Replaced existing WebSocket connection",
			zap.String("userId", client.userID))
	}

	h.clients[client.userID] = client
	h.logger.Info("WebSocket client registered",
		zap.String("userId", client.userID),
		zap.Int("totalClients", len(h.clients)))
}

// unregisterClient 클라이언트 해제.
// 재연결로 교체된 구 연결의 해제가 새 연결을 지우지 않도록 동일성 확인.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()

	current, exists := h.clients[client.userID]
	if !exists || current != client {
		h.mu.Unlock()
		return
	}

	delete(h.clients, client.userID)
	close(client.send)
	h.logger.Info("WebSocket client unregistered",
		zap.String("userId", client.userID),
		zap.Int("totalClients", len(h.clients)))
	h.mu.Unlock()

	if h.onDisconnect != nil {
		h.onDisconnect(client.userID)
	}
}

// broadcastMessage 메시지 브로드캐스트
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if message.UserID == "" {
		// 전체 브로드캐스트
		for _, client := range h.clients {
			select {
			case client.send <- message:
			default:
				// 채널이 가득 찬 경우 연결 해제
				h.logger.Warn("Client send channel full, unregistering",
					zap.String("userId", client.userID))
				go func(c *Client) {
					h.unregister <- c
				}(client)
			}
		}
	} else {
		// 특정 사용자에게만 전송
		if client, exists := h.clients[message.UserID]; exists {
			select {
			case client.send <- message:
			default:
				h.logger.Warn("Client send channel full",
					zap.String("userId", message.UserID))
			}
		}
	}
}

// SendToUser 특정 사용자에게 메시지 전송
func (h *Hub) SendToUser(userID string, msgType string, payload interface{}) {
	h.broadcast <- &Message{
		UserID:  userID,
		Type:    msgType,
		Payload: payload,
	}
}

// Broadcast 모든 사용자에게 메시지 전송
func (h *Hub) Broadcast(msgType string, payload interface{}) {
	h.broadcast <- &Message{
		UserID:  "",
		Type:    msgType,
		Payload: payload,
	}
}

// NotifyParty 커밋된 파티 변경 스냅샷을 구성원 전원에게 전송
func (h *Hub) NotifyParty(snapshot models.PartySnapshot) {
	msgType := "party_state"
	if snapshot.Deleted {
		msgType = "party_deleted"
	}
	for _, m := range snapshot.Members {
		h.SendToUser(m.UserID, msgType, snapshot)
	}
}
