package service

import (
	"math/rand"
	"time"

	"github.com/huntparty/huntparty-backend/internal/models"
	"github.com/huntparty/huntparty-backend/internal/store"
	"go.uber.org/zap"
)

const (
	defaultSampleSize = 20
	minSampleSize     = 5
	maxSampleSize     = 50

	// ineligibleScore 이 점수 이하는 후보에서 제외
	ineligibleScore = -(1 << 20)

	memberBaseScore    = 10 // 구성원 1인당 기본 점수 - 완성에 가까운 파티 선호
	jobDiversityBonus  = 25 // 요청자 직업이 없는 파티 보너스
	ageBonusCapMinutes = 30 // 파티 나이 보너스 상한 (분)
)

// AssignRequest 랜덤 배정 요청
type AssignRequest struct {
	UserID  string   `json:"userId"`
	Name    string   `json:"name"`
	Job     string   `json:"job"`
	Blocked []string `json:"blocked,omitempty"`
}

// RandomAssignService 쌍별 큐를 거치지 않고 기존 모집 파티 중 하나를
// 점수화해 골라주는 보조 진입 경로. 전수 조사 대신 제한된 무작위
// 표본만 평가해 모집 파티가 많아도 비용이 묶인다.
type RandomAssignService struct {
	parties      *store.PartyStore
	queue        *store.QueueIndex
	partyService *PartyService
	resolve      NameResolver
	logger       *zap.Logger
	sampleSize   int
}

// NewRandomAssignService 랜덤 배정 매치메이커 생성
func NewRandomAssignService(
	parties *store.PartyStore,
	queue *store.QueueIndex,
	partyService *PartyService,
	resolve NameResolver,
	sampleSize int,
) *RandomAssignService {
	logger, _ := zap.NewProduction()

	if sampleSize <= 0 {
		sampleSize = defaultSampleSize
	}
	if sampleSize < minSampleSize {
		sampleSize = minSampleSize
	}
	if sampleSize > maxSampleSize {
		sampleSize = maxSampleSize
	}
	return &RandomAssignService{
		parties:      parties,
		queue:        queue,
		partyService: partyService,
		resolve:      resolve,
		logger:       logger,
		sampleSize:   sampleSize,
	}
}

// Assign 요청자에게 모집 파티 하나를 골라 가입시킨다.
// 직업 다양성 풀을 우선하고, 비어 있으면 전체 모집 파티로 폴백한다.
// 가입은 스토어의 잠금 경로를 거치며 ErrLockBusy는 재시도 대상이다.
func (s *RandomAssignService) Assign(req AssignRequest) (*models.Party, error) {
	if req.UserID == "" {
		return nil, ErrMissingUser
	}
	if req.Job == "" {
		return nil, ErrMissingJob
	}

	requester := s.requesterEntrant(req)

	pool := s.parties.OpenParties(req.Job)
	if len(pool) == 0 {
		pool = s.parties.OpenParties("")
	}
	if len(pool) == 0 {
		return nil, ErrNoOpenParty
	}

	sample := s.samplePool(pool)

	var best *models.Party
	bestScore := ineligibleScore
	for _, p := range sample {
		score := s.score(p, requester)
		if score <= ineligibleScore {
			continue
		}
		// 동점은 표본 순서 우선
		if score > bestScore {
			best = p
			bestScore = score
		}
	}
	if best == nil {
		return nil, ErrNoOpenParty
	}

	s.logger.Debug("Random assignment candidate selected",
		zap.String("userId", req.UserID),
		zap.String("partyId", best.ID),
		zap.Int("score", bestScore),
		zap.Int("sampled", len(sample)))

	return s.partyService.Join(best.ID, req.UserID, req.Job)
}

// requesterEntrant 큐에 기록이 있으면 그쪽 블랙리스트를 우선 사용
func (s *RandomAssignService) requesterEntrant(req AssignRequest) *models.Entrant {
	if e, ok := s.queue.Get(req.UserID); ok {
		return e
	}
	return &models.Entrant{
		ID:      req.UserID,
		Name:    req.Name,
		Job:     req.Job,
		Blocked: req.Blocked,
	}
}

// samplePool 비복원 무작위 표본 추출
func (s *RandomAssignService) samplePool(pool []*models.Party) []*models.Party {
	if len(pool) <= s.sampleSize {
		return pool
	}
	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	return pool[:s.sampleSize]
}

// score 후보 점수. 정원 초과/모집 종료/블랙리스트 충돌은 ineligibleScore.
func (s *RandomAssignService) score(p *models.Party, requester *models.Entrant) int {
	if !p.IsOpen || p.Status != models.PartyStatusOpen {
		return ineligibleScore
	}
	if len(p.Members) >= s.parties.MaxSize() {
		return ineligibleScore
	}
	if s.blacklistConflict(p, requester) {
		return ineligibleScore
	}

	score := len(p.Members) * memberBaseScore
	if !p.HasJob(requester.Job) {
		score += jobDiversityBonus
	}

	ageMinutes := int(time.Since(p.CreatedAt).Minutes())
	if ageMinutes > ageBonusCapMinutes {
		ageMinutes = ageBonusCapMinutes
	}
	if ageMinutes > 0 {
		score += ageMinutes
	}
	return score
}

// blacklistConflict 요청자와 기존 구성원 사이의 단방향 차단 여부
func (s *RandomAssignService) blacklistConflict(p *models.Party, requester *models.Entrant) bool {
	for _, m := range p.Members {
		member, ok := s.queue.Get(m.UserID)
		if !ok {
			member = &models.Entrant{ID: m.UserID, Job: m.Job}
		}
		if blocks(requester, member, s.resolve) || blocks(member, requester, s.resolve) {
			return true
		}
	}
	return false
}
