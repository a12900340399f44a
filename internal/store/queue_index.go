package store

import (
	"sync"
	"time"

	"github.com/huntparty/huntparty-backend/internal/models"
)

// waitEWMAAlpha 사냥터별 평균 대기시간 EWMA 평활 계수
const waitEWMAAlpha = 0.08

// groundQueue 사냥터별 큐 상태.
// searching이 멤버십의 기준이고 order는 추첨 순서 전용 - order에는
// 이미 탈퇴한 id가 남아 있을 수 있으므로 항상 searching을 재확인한다.
type groundQueue struct {
	searching map[string]struct{}
	order     []string
	avgWaitMs float64
}

// QueueIndex 사냥터별 검색 멤버십과 FIFO 진입 순서를 관리한다.
// 매칭 로직은 갖지 않는다.
type QueueIndex struct {
	mu       sync.Mutex
	entrants map[string]*models.Entrant
	grounds  map[string]*groundQueue
	dirty    map[string]struct{}
}

// NewQueueIndex QueueIndex 생성
func NewQueueIndex() *QueueIndex {
	return &QueueIndex{
		entrants: make(map[string]*models.Entrant),
		grounds:  make(map[string]*groundQueue),
		dirty:    make(map[string]struct{}),
	}
}

func (q *QueueIndex) ground(groundID string) *groundQueue {
	g, ok := q.grounds[groundID]
	if !ok {
		g = &groundQueue{searching: make(map[string]struct{})}
		q.grounds[groundID] = g
	}
	return g
}

// Upsert 참가자 등록/갱신. id 기준 멱등 - 같은 id의 재등록은 추가가 아니라 갱신이다.
// 사냥터가 바뀌면 이전 사냥터에서 먼저 제거하고, 검색 상태로 전환되면
// 멤버십 집합과 FIFO 꼬리에 넣고 검색 시작 시각을 기록한다.
func (q *QueueIndex) Upsert(e *models.Entrant) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	cur, exists := q.entrants[e.ID]

	if exists && cur.GroundID != "" && cur.GroundID != e.GroundID {
		// 사냥터 이동: 이전 집합에서 제거 (order의 잔존 항목은 추첨 시 버려짐)
		if g, ok := q.grounds[cur.GroundID]; ok {
			if _, in := g.searching[e.ID]; in {
				delete(g.searching, e.ID)
				q.dirty[cur.GroundID] = struct{}{}
			}
		}
	}

	next := e.Clone()
	next.LastSeenAt = now
	if exists {
		// 검색 시작 시각은 한 번만 기록
		if next.SearchStartedAt == nil {
			next.SearchStartedAt = cur.SearchStartedAt
		}
		if next.MatchedAt == nil {
			next.MatchedAt = cur.MatchedAt
		}
	}

	if next.Status == models.EntrantStatusSearching && next.GroundID != "" {
		g := q.ground(next.GroundID)
		if _, in := g.searching[next.ID]; !in {
			g.searching[next.ID] = struct{}{}
			g.order = append(g.order, next.ID)
			if next.SearchStartedAt == nil {
				t := now
				next.SearchStartedAt = &t
			}
		}
		q.dirty[next.GroundID] = struct{}{}
	} else if exists {
		// 검색 외 상태로 전환 시 집합에서 제거
		if g, ok := q.grounds[next.GroundID]; ok {
			if _, in := g.searching[next.ID]; in {
				delete(g.searching, next.ID)
				q.dirty[next.GroundID] = struct{}{}
			}
		}
	}

	q.entrants[next.ID] = next
}

// Leave 검색 중단. 상태를 idle로 돌리고 매칭/채널 메타데이터를 비운다.
func (q *QueueIndex) Leave(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entrants[id]
	if !ok {
		return ErrEntrantNotFound
	}

	wasSearching := e.Status == models.EntrantStatusSearching
	e.Status = models.EntrantStatusIdle
	e.SearchStartedAt = nil
	e.MatchedAt = nil
	e.Channel = 0
	e.LastSeenAt = time.Now()

	if g, ok := q.grounds[e.GroundID]; ok {
		if _, in := g.searching[id]; in {
			delete(g.searching, id)
			if wasSearching {
				q.dirty[e.GroundID] = struct{}{}
			}
		}
	}
	return nil
}

// Remove 참가자 완전 삭제 (연결 종료 시)
func (q *QueueIndex) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(id)
}

func (q *QueueIndex) removeLocked(id string) {
	e, ok := q.entrants[id]
	if !ok {
		return
	}
	if g, ok := q.grounds[e.GroundID]; ok {
		delete(g.searching, id)
	}
	delete(q.entrants, id)
}

// Get 참가자 조회 (복사본)
func (q *QueueIndex) Get(id string) (*models.Entrant, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entrants[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Touch 마지막 활동 시각 갱신
func (q *QueueIndex) Touch(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.entrants[id]; ok {
		e.LastSeenAt = time.Now()
	}
}

// MarkDirty 사냥터를 다음 틱 재평가 대상으로 표시
func (q *QueueIndex) MarkDirty(groundID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dirty[groundID] = struct{}{}
}

// TakeDirty dirty 사냥터 목록을 반환하고 플래그를 비운다
func (q *QueueIndex) TakeDirty() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.dirty) == 0 {
		return nil
	}
	out := make([]string, 0, len(q.dirty))
	for g := range q.dirty {
		out = append(out, g)
	}
	q.dirty = make(map[string]struct{})
	return out
}

// SearchingCount 사냥터의 현재 검색 인원
func (q *QueueIndex) SearchingCount(groundID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if g, ok := q.grounds[groundID]; ok {
		return len(g.searching)
	}
	return 0
}

// OrderLen FIFO 시퀀스 길이 (잔존 항목 포함)
func (q *QueueIndex) OrderLen(groundID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if g, ok := q.grounds[groundID]; ok {
		return len(g.order)
	}
	return 0
}

// Stats 사냥터 상태 표시용 검색 인원 / 평균 대기시간
func (q *QueueIndex) Stats(groundID string) (count int, avgWait time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	g, ok := q.grounds[groundID]
	if !ok {
		return 0, 0
	}
	return len(g.searching), time.Duration(g.avgWaitMs * float64(time.Millisecond))
}

// PopOrder FIFO 머리에서 id 하나를 꺼낸다. 멤버십 검증은 호출자 몫.
func (q *QueueIndex) PopOrder(groundID string) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	g, ok := q.grounds[groundID]
	if !ok || len(g.order) == 0 {
		return "", false
	}
	id := g.order[0]
	g.order = g.order[1:]
	return id, true
}

// ValidSearching id가 해당 사냥터에서 아직 검색 중이면 복사본을 반환한다
func (q *QueueIndex) ValidSearching(groundID, id string) (*models.Entrant, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	g, ok := q.grounds[groundID]
	if !ok {
		return nil, false
	}
	if _, in := g.searching[id]; !in {
		return nil, false
	}
	e, ok := q.entrants[id]
	if !ok || e.Status != models.EntrantStatusSearching || e.GroundID != groundID {
		return nil, false
	}
	return e.Clone(), true
}

// DropFromSet 스캔 중 무효로 판명된 항목을 집합에서 제거
func (q *QueueIndex) DropFromSet(groundID, id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if g, ok := q.grounds[groundID]; ok {
		delete(g.searching, id)
	}
}

// Requeue 스캔했지만 매칭되지 않은 id들을 원래 상대 순서대로 꼬리에 되돌린다
func (q *QueueIndex) Requeue(groundID string, ids ...string) {
	if len(ids) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	g := q.ground(groundID)
	g.order = append(g.order, ids...)
}

// CommitMatch 두 참가자를 matched로 전환하고 대기시간 EWMA를 갱신한다.
// 둘 중 하나라도 더 이상 유효하지 않으면 아무것도 바꾸지 않고 false를 반환한다.
func (q *QueueIndex) CommitMatch(groundID, aID, bID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	g, ok := q.grounds[groundID]
	if !ok {
		return false
	}
	a, aOK := q.entrants[aID]
	b, bOK := q.entrants[bID]
	if !aOK || !bOK {
		return false
	}
	if _, in := g.searching[aID]; !in {
		return false
	}
	if _, in := g.searching[bID]; !in {
		return false
	}
	if a.Status != models.EntrantStatusSearching || b.Status != models.EntrantStatusSearching {
		return false
	}

	now := time.Now()
	delete(g.searching, aID)
	delete(g.searching, bID)

	a.Status = models.EntrantStatusMatched
	b.Status = models.EntrantStatusMatched
	a.MatchedAt = &now
	b.MatchedAt = &now
	a.LastSeenAt = now
	b.LastSeenAt = now

	waitA := waitOf(a, now)
	waitB := waitOf(b, now)

	var sample float64
	switch {
	case waitA > 0 && waitB > 0:
		sample = (waitA + waitB) / 2
	case waitA > 0:
		sample = waitA
	case waitB > 0:
		sample = waitB
	}
	g.avgWaitMs += waitEWMAAlpha * (sample - g.avgWaitMs)

	return true
}

// RollbackMatch 커밋 직후 파티 생성에 실패한 참가자를 검색 상태로 되돌린다.
// matched 상태가 아니거나 이미 큐를 떠난 id는 건드리지 않는다.
// 검색 시작 시각은 유지되어 대기시간이 이어서 집계된다.
func (q *QueueIndex) RollbackMatch(groundID string, ids ...string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	g := q.ground(groundID)
	for _, id := range ids {
		e, ok := q.entrants[id]
		if !ok || e.GroundID != groundID || e.Status != models.EntrantStatusMatched {
			continue
		}
		e.Status = models.EntrantStatusSearching
		e.MatchedAt = nil
		if _, in := g.searching[id]; !in {
			g.searching[id] = struct{}{}
			g.order = append(g.order, id)
		}
		q.dirty[groundID] = struct{}{}
	}
}

func waitOf(e *models.Entrant, now time.Time) float64 {
	if e.SearchStartedAt == nil {
		return 0
	}
	ms := float64(now.Sub(*e.SearchStartedAt).Milliseconds())
	if ms < 0 {
		return 0
	}
	return ms
}

// AssignChannel 파티 채널 배정을 참가자들에게 반영
func (q *QueueIndex) AssignChannel(ids []string, channel int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range ids {
		if e, ok := q.entrants[id]; ok {
			e.Channel = channel
		}
	}
}

// EvictStale 유예 기간을 넘긴 참가자 제거. keep이 true를 반환하는 id는 건드리지 않는다
// (현재 파티 구성원 보호용).
func (q *QueueIndex) EvictStale(grace time.Duration, keep func(id string) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := time.Now().Add(-grace)
	evicted := 0
	for id, e := range q.entrants {
		if e.LastSeenAt.After(cutoff) {
			continue
		}
		if keep != nil && keep(id) {
			continue
		}
		q.removeLocked(id)
		evicted++
	}
	return evicted
}
