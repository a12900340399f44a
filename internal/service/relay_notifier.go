package service

import (
	"context"
	"encoding/json"

	"github.com/huntparty/huntparty-backend/internal/models"
	"github.com/huntparty/huntparty-backend/pkg/distributed"
	"go.uber.org/zap"
)

// RelayNotifier 로컬 게이트웨이 전달에 더해 Redis 이벤트 버스로
// 다른 인스턴스에도 스냅샷을 중계하는 Notifier 데코레이터.
type RelayNotifier struct {
	local  Notifier
	bus    *distributed.PartyEventBus
	logger *zap.Logger
}

// NewRelayNotifier RelayNotifier 생성
func NewRelayNotifier(local Notifier, bus *distributed.PartyEventBus) *RelayNotifier {
	logger, _ := zap.NewProduction()
	return &RelayNotifier{
		local:  local,
		bus:    bus,
		logger: logger,
	}
}

// NotifyParty 로컬 전달 + 버스 발행. 발행 실패는 로컬 전달을 막지 않는다.
func (r *RelayNotifier) NotifyParty(snapshot models.PartySnapshot) {
	r.local.NotifyParty(snapshot)

	eventType := "party_state"
	if snapshot.Deleted {
		eventType = "party_deleted"
	}
	if err := r.bus.Publish(context.Background(), eventType, snapshot.PartyID, snapshot); err != nil {
		r.logger.Error("Failed to relay party snapshot",
			zap.String("partyId", snapshot.PartyID),
			zap.Error(err))
	}
}

// HandleRemote 다른 인스턴스가 발행한 이벤트를 로컬 게이트웨이로 전달
func (r *RelayNotifier) HandleRemote(event distributed.PartyEvent) {
	var snapshot models.PartySnapshot
	if err := json.Unmarshal(event.Payload, &snapshot); err != nil {
		r.logger.Error("Failed to decode remote party event",
			zap.String("partyId", event.PartyID),
			zap.Error(err))
		return
	}
	r.local.NotifyParty(snapshot)
}
