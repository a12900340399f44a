package service

import (
	"sync"
	"time"

	"github.com/huntparty/huntparty-backend/internal/models"
	"github.com/huntparty/huntparty-backend/internal/store"
	"go.uber.org/zap"
)

// Notifier 커밋된 파티 변경을 연결된 클라이언트에게 밀어내는 게이트웨이.
// 엔진이 호출하는 쪽이고 역방향 호출은 없다.
type Notifier interface {
	NotifyParty(snapshot models.PartySnapshot)
}

// PartyService 파티 연산 표면. 스토어 결과를 외부 계약으로 매핑하고
// 커밋된 변경마다 게이트웨이에 스냅샷을 전달한다. TTL 스윕 타이머도
// 매칭 틱과 독립적으로 여기서 돈다.
type PartyService struct {
	parties *store.PartyStore
	queue   *store.QueueIndex
	notify  Notifier
	logger  *zap.Logger

	sweepInterval time.Duration
	userGrace     time.Duration
	// sweepLeader 클러스터 모드에서 이번 회차 스윕 담당 여부 (nil = 항상 담당)
	sweepLeader func() bool

	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

// NewPartyService PartyService 생성
func NewPartyService(
	parties *store.PartyStore,
	queue *store.QueueIndex,
	notify Notifier,
	sweepInterval time.Duration,
	userGrace time.Duration,
) *PartyService {
	logger, _ := zap.NewProduction()

	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	if userGrace <= 0 {
		userGrace = 10 * time.Minute
	}
	return &PartyService{
		parties:       parties,
		queue:         queue,
		notify:        notify,
		logger:        logger,
		sweepInterval: sweepInterval,
		userGrace:     userGrace,
		stopChan:      make(chan struct{}),
	}
}

// SetSweepLeader 스윕 리더 판정 훅 설정 (Redis 락 기반 리더 선출용)
func (s *PartyService) SetSweepLeader(f func() bool) {
	s.sweepLeader = f
}

// Create 파티 생성 (유저 명시 행동)
func (s *PartyService) Create(leaderID, job string) (*models.Party, error) {
	if leaderID == "" {
		return nil, ErrMissingUser
	}
	p, err := s.parties.Create(leaderID, job)
	if err != nil {
		return nil, err
	}
	s.broadcast(p)
	return p, nil
}

// CreateForPair 매칭 커밋된 쌍으로 파티 생성 (스케줄러 호출)
func (s *PartyService) CreateForPair(a, b *models.Entrant) (*models.Party, error) {
	p, err := s.parties.CreateForPair(a, b)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Party created from queue match",
		zap.String("partyId", p.ID),
		zap.String("ground", a.GroundID),
		zap.String("a", a.ID),
		zap.String("b", b.ID))
	s.broadcast(p)
	return p, nil
}

// Join 파티 가입. store.ErrLockBusy는 재시도 가능 오류로 그대로 올린다.
func (s *PartyService) Join(partyID, userID, job string) (*models.Party, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	p, err := s.parties.Join(partyID, userID, job)
	if err != nil {
		return nil, err
	}
	s.queue.Touch(userID)
	s.broadcast(p)
	return p, nil
}

// Leave 파티 탈퇴. 마지막 구성원이면 파티가 삭제된다.
func (s *PartyService) Leave(partyID, userID string) (*models.Party, error) {
	p, deleted, err := s.parties.Leave(partyID, userID)
	if err != nil {
		return nil, err
	}
	if deleted {
		s.broadcastDeleted(p)
	} else {
		s.broadcast(p)
	}
	return p, nil
}

// UpdateBuffs 버프 집계 부분 갱신
func (s *PartyService) UpdateBuffs(partyID string, patch models.PartyBuffPatch) (*models.Party, error) {
	p, err := s.parties.UpdateBuffs(partyID, patch)
	if err != nil {
		return nil, err
	}
	s.broadcast(p)
	return p, nil
}

// AssignChannel 채널 배정. 구성원 참가자 레코드에도 반영한다.
func (s *PartyService) AssignChannel(partyID string, channel int) (*models.Party, error) {
	p, err := s.parties.AssignChannel(partyID, channel)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(p.Members))
	for _, m := range p.Members {
		ids = append(ids, m.UserID)
	}
	s.queue.AssignChannel(ids, channel)
	s.broadcast(p)
	return p, nil
}

// SetOpen 모집 여부 변경
func (s *PartyService) SetOpen(partyID string, isOpen bool) (*models.Party, error) {
	p, err := s.parties.SetOpen(partyID, isOpen)
	if err != nil {
		return nil, err
	}
	s.broadcast(p)
	return p, nil
}

// TransferOwnership 리더 위임
func (s *PartyService) TransferOwnership(partyID, fromID, toID string) (*models.Party, error) {
	p, err := s.parties.TransferOwnership(partyID, fromID, toID)
	if err != nil {
		return nil, err
	}
	s.broadcast(p)
	return p, nil
}

// Heartbeat 구성원 활동 신호로 만료 연장
func (s *PartyService) Heartbeat(partyID, userID string) (*models.Party, error) {
	p, err := s.parties.Heartbeat(partyID, userID)
	if err != nil {
		return nil, err
	}
	s.queue.Touch(userID)
	s.broadcast(p)
	return p, nil
}

// Get 파티 조회
func (s *PartyService) Get(partyID string) (*models.Party, error) {
	return s.parties.Get(partyID)
}

// GetByMember 구성원 id로 역조회
func (s *PartyService) GetByMember(userID string) (*models.Party, error) {
	return s.parties.GetByMember(userID)
}

// InParty 현재 파티 소속 여부
func (s *PartyService) InParty(userID string) bool {
	return s.parties.InParty(userID)
}

func (s *PartyService) broadcast(p *models.Party) {
	if s.notify == nil {
		return
	}
	s.notify.NotifyParty(p.Snapshot())
}

func (s *PartyService) broadcastDeleted(p *models.Party) {
	if s.notify == nil {
		return
	}
	snap := p.Snapshot()
	snap.Deleted = true
	s.notify.NotifyParty(snap)
}

// StartSweeper TTL 스윕 타이머 시작 (매칭 틱과 독립)
func (s *PartyService) StartSweeper() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting party sweeper", zap.Duration("interval", s.sweepInterval))

	s.wg.Add(1)
	go s.sweepLoop()
}

// StopSweeper 스윕 타이머 중지
func (s *PartyService) StopSweeper() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()
	s.logger.Info("Party sweeper stopped")
}

func (s *PartyService) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runSweep()
		case <-s.stopChan:
			return
		}
	}
}

// runSweep 만료 파티 삭제 + 유예 기간을 넘긴 참가자 정리.
// 만료/소멸은 정상 수명 주기라 오류로 보고하지 않는다.
func (s *PartyService) runSweep() {
	if s.sweepLeader != nil && !s.sweepLeader() {
		return
	}

	expired := s.parties.SweepExpired()
	for _, p := range expired {
		s.broadcastDeleted(p)
	}

	evicted := s.queue.EvictStale(s.userGrace, s.parties.InParty)

	if len(expired) > 0 || evicted > 0 {
		s.logger.Info("Sweep completed",
			zap.Int("expiredParties", len(expired)),
			zap.Int("evictedUsers", evicted))
	}
}
