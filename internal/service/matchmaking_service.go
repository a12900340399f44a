package service

import (
	"sync"
	"time"

	"github.com/huntparty/huntparty-backend/internal/models"
	"github.com/huntparty/huntparty-backend/internal/store"
	"go.uber.org/zap"
)

const (
	// defaultPairCap 틱당 사냥터당 최대 커밋 쌍 수
	defaultPairCap = 30

	// maxLookahead 파트너 스캔 상한 (실제 상한은 min(maxLookahead, 큐 길이+20))
	maxLookahead = 60
)

// MatchmakingService 주기 틱으로 dirty 사냥터를 순회하며 FIFO 후보를
// 호환성 필터에 통과시켜 쌍을 커밋한다. 외부로는 enqueue/leave/remove
// 연산을 노출한다.
type MatchmakingService struct {
	queue        *store.QueueIndex
	partyService *PartyService
	resolve      NameResolver
	logger       *zap.Logger
	interval     time.Duration
	pairCap      int
	stopChan     chan struct{}
	wg           sync.WaitGroup
	running      bool
	mu           sync.Mutex
}

// NewMatchmakingService 매칭 스케줄러 생성
func NewMatchmakingService(
	queue *store.QueueIndex,
	partyService *PartyService,
	resolve NameResolver,
	interval time.Duration,
) *MatchmakingService {
	logger, _ := zap.NewProduction()

	if interval <= 0 {
		interval = 150 * time.Millisecond
	}
	return &MatchmakingService{
		queue:        queue,
		partyService: partyService,
		resolve:      resolve,
		logger:       logger,
		interval:     interval,
		pairCap:      defaultPairCap,
		stopChan:     make(chan struct{}),
	}
}

// SetPairCap 틱당 사냥터당 커밋 쌍 상한 변경
func (s *MatchmakingService) SetPairCap(n int) {
	if n > 0 {
		s.pairCap = n
	}
}

// EnqueueRequest 큐 진입 요청
type EnqueueRequest struct {
	UserID   string            `json:"userId"`
	Name     string            `json:"name"`
	Level    int               `json:"level"`
	Job      string            `json:"job"`
	Power    int               `json:"power"`
	Supply   models.BuffSupply `json:"supply"`
	Demand   models.BuffDemand `json:"demand"`
	Blocked  []string          `json:"blocked"`
	GroundID string            `json:"groundId"`
}

// Enqueue 참가자를 검색 상태로 큐에 등록한다. 같은 id의 재등록은 갱신이다.
func (s *MatchmakingService) Enqueue(req EnqueueRequest) (*models.Entrant, error) {
	if req.UserID == "" {
		return nil, ErrMissingUser
	}
	if req.GroundID == "" {
		return nil, ErrMissingLocation
	}
	// 파티 소속 유저는 매칭되어도 파티를 만들 수 없으므로 받지 않는다
	if s.partyService.InParty(req.UserID) {
		return nil, store.ErrUserAlreadyInParty
	}

	e := &models.Entrant{
		ID:       req.UserID,
		Name:     req.Name,
		Level:    req.Level,
		Job:      req.Job,
		Power:    req.Power,
		Supply:   req.Supply,
		Demand:   req.Demand,
		Blocked:  req.Blocked,
		Status:   models.EntrantStatusSearching,
		GroundID: req.GroundID,
	}
	s.queue.Upsert(e)

	entrant, _ := s.queue.Get(req.UserID)
	return entrant, nil
}

// Leave 검색 중단 (유저 행동)
func (s *MatchmakingService) Leave(userID string) error {
	if userID == "" {
		return ErrMissingUser
	}
	return s.queue.Leave(userID)
}

// Remove 참가자 완전 제거 (연결 종료)
func (s *MatchmakingService) Remove(userID string) error {
	if userID == "" {
		return ErrMissingUser
	}
	s.queue.Remove(userID)
	return nil
}

// GroundStats 사냥터 상태 표시용 검색 인원 / 평균 대기시간
func (s *MatchmakingService) GroundStats(groundID string) (int, time.Duration) {
	return s.queue.Stats(groundID)
}

// Start 매칭 틱 시작
func (s *MatchmakingService) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting MatchmakingService", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.matchmakingLoop()
}

// Stop 매칭 틱 중지
func (s *MatchmakingService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping MatchmakingService")
	close(s.stopChan)
	s.wg.Wait()
	s.logger.Info("MatchmakingService stopped")
}

// matchmakingLoop 주기적 매칭 실행
func (s *MatchmakingService) matchmakingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runMatchmaking()
		case <-s.stopChan:
			return
		}
	}
}

// runMatchmaking dirty 사냥터를 모아 한 번씩 처리 (테스트에서 직접 호출 가능)
func (s *MatchmakingService) runMatchmaking() {
	for _, groundID := range s.queue.TakeDirty() {
		s.matchGround(groundID)
	}
}

// matchGround 한 사냥터의 FIFO 큐에서 호환 쌍을 찾아 커밋한다.
//
// 추첨된 머리 A에 대해 제한된 범위만 앞으로 스캔하고, 스캔했지만 짝이
// 되지 못한 후보는 원래 상대 순서로 꼬리에 되돌린다. 범위 제한과 틱당
// 상한이 틱 비용을 선형으로 묶고, 재삽입이 특정 후보와만 안 맞는
// 참가자의 기아를 막는다.
func (s *MatchmakingService) matchGround(groundID string) {
	if s.queue.SearchingCount(groundID) < 2 {
		return
	}

	pairs := 0
	for pairs < s.pairCap {
		a, ok := s.drawHead(groundID)
		if !ok {
			break
		}

		b, scanned := s.scanForPartner(groundID, a)
		if b == nil {
			// 이번 틱은 여기서 포기 - 호환 상대가 없는 큐에 대한 재시도 폭주 방지
			requeue := append([]string{a.ID}, scanned...)
			s.queue.Requeue(groundID, requeue...)
			break
		}

		if !s.commitPair(groundID, a, b, scanned) {
			continue
		}
		pairs++
	}

	if pairs > 0 {
		s.logger.Debug("Matchmaking pass completed",
			zap.String("ground", groundID),
			zap.Int("pairs", pairs))
	}

	// 상한 도달 혹은 남은 인원이 있으면 다음 틱에 재시도
	if s.queue.SearchingCount(groundID) >= 2 {
		s.queue.MarkDirty(groundID)
	}
}

// commitPair 쌍을 커밋하고 파티를 만든다.
//
// 스캔과 커밋 사이에 한쪽이 이탈하면 커밋이 거부되는데, 이때 머리와
// 파트너도 스캔분과 함께 원래 상대 순서로 되돌린다 - 둘 다 order에서
// 이미 빠진 뒤라 되돌리지 않으면 유효하게 남은 쪽이 다시는 추첨되지
// 못한다. 무효 id는 다음 추첨에서 버려진다. 커밋 후 파티 생성이
// 실패하면(이미 다른 파티 소속 등) 커밋을 되돌려 상대가 matched 상태로
// 좌초되지 않게 한다.
func (s *MatchmakingService) commitPair(groundID string, a, b *models.Entrant, scanned []string) bool {
	if !s.queue.CommitMatch(groundID, a.ID, b.ID) {
		requeue := make([]string, 0, len(scanned)+2)
		requeue = append(requeue, a.ID)
		requeue = append(requeue, scanned...)
		requeue = append(requeue, b.ID)
		s.queue.Requeue(groundID, requeue...)
		return false
	}
	s.queue.Requeue(groundID, scanned...)

	if _, err := s.partyService.CreateForPair(a, b); err != nil {
		s.logger.Error("Failed to create party for pair",
			zap.String("ground", groundID),
			zap.String("a", a.ID),
			zap.String("b", b.ID),
			zap.Error(err))
		for _, id := range []string{a.ID, b.ID} {
			if s.partyService.InParty(id) {
				// 이미 파티 소속 - 검색으로 되돌릴 수 없으니 큐에서 내린다
				_ = s.queue.Leave(id)
			} else {
				s.queue.RollbackMatch(groundID, id)
			}
		}
		return false
	}
	return true
}

// drawHead FIFO 머리에서 아직 검색 중인 참가자를 찾는다.
// 이미 이탈한 잔존 id는 버린다.
func (s *MatchmakingService) drawHead(groundID string) (*models.Entrant, bool) {
	for {
		id, ok := s.queue.PopOrder(groundID)
		if !ok {
			return nil, false
		}
		if e, valid := s.queue.ValidSearching(groundID, id); valid {
			return e, true
		}
	}
}

// scanForPartner A와 호환되는 첫 후보를 제한 범위 안에서 찾는다.
// 무효 항목은 집합에서도 제거하고, 스캔했지만 선택되지 않은 id 목록을
// 원래 순서대로 반환한다.
func (s *MatchmakingService) scanForPartner(groundID string, a *models.Entrant) (*models.Entrant, []string) {
	limit := s.queue.OrderLen(groundID) + 20
	if limit > maxLookahead {
		limit = maxLookahead
	}

	var scanned []string
	for i := 0; i < limit; i++ {
		id, ok := s.queue.PopOrder(groundID)
		if !ok {
			break
		}
		if id == a.ID {
			continue
		}
		e, valid := s.queue.ValidSearching(groundID, id)
		if !valid {
			s.queue.DropFromSet(groundID, id)
			continue
		}
		if Compatible(a, e, s.resolve) {
			return e, scanned
		}
		scanned = append(scanned, id)
	}
	return nil, scanned
}
