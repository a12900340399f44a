package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PartyEvent 인스턴스 간에 중계되는 파티 상태 이벤트.
// Payload는 게이트웨이가 클라이언트에 보내는 스냅샷 그대로다.
type PartyEvent struct {
	Type      string          `json:"type"` // "party_state", "party_deleted"
	PartyID   string          `json:"party_id"`
	Instance  string          `json:"instance"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// PartyEventBus Redis Pub/Sub 기반 파티 이벤트 중계.
// 여러 인스턴스가 떠 있을 때 한 인스턴스에서 커밋된 파티 변경을
// 나머지 인스턴스의 게이트웨이로 전달한다.
type PartyEventBus struct {
	client     *redis.Client
	logger     *zap.Logger
	instanceID string
	channel    string

	stopChan  chan struct{}
	cancelSub context.CancelFunc
}

// NewPartyEventBus 이벤트 버스 생성
func NewPartyEventBus(client *redis.Client, logger *zap.Logger) *PartyEventBus {
	return &PartyEventBus{
		client:     client,
		logger:     logger,
		instanceID: uuid.New().String(),
		channel:    "party:events",
		stopChan:   make(chan struct{}),
	}
}

// InstanceID 이 인스턴스의 고유 id
func (b *PartyEventBus) InstanceID() string {
	return b.instanceID
}

// Publish 파티 이벤트 발행
func (b *PartyEventBus) Publish(ctx context.Context, eventType, partyID string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := PartyEvent{
		Type:      eventType,
		PartyID:   partyID,
		Instance:  b.instanceID,
		Payload:   raw,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Start 이벤트 수신 시작. 자기 인스턴스가 발행한 이벤트는 건너뛴다.
func (b *PartyEventBus) Start(ctx context.Context, handler func(event PartyEvent)) error {
	subCtx, cancel := context.WithCancel(ctx)
	b.cancelSub = cancel

	pubsub := b.client.Subscribe(subCtx, b.channel)
	defer pubsub.Close()

	// 구독 확인
	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	b.logger.Info("Party event bus started",
		zap.String("instance_id", b.instanceID),
		zap.String("channel", b.channel))

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				continue
			}

			var event PartyEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Error("Failed to unmarshal party event", zap.Error(err))
				continue
			}
			if event.Instance == b.instanceID {
				continue
			}

			handler(event)

		case <-b.stopChan:
			b.logger.Info("Party event bus stopped")
			return nil

		case <-subCtx.Done():
			return subCtx.Err()
		}
	}
}

// Stop 이벤트 수신 중지
func (b *PartyEventBus) Stop() {
	close(b.stopChan)
	if b.cancelSub != nil {
		b.cancelSub()
	}
}
