package store

import (
	"testing"
	"time"

	"github.com/huntparty/huntparty-backend/internal/models"
)

func searchingEntrant(id, groundID string) *models.Entrant {
	return &models.Entrant{
		ID:       id,
		Name:     id,
		Job:      models.JobWarrior,
		Status:   models.EntrantStatusSearching,
		GroundID: groundID,
	}
}

func TestQueueIndex_UpsertIsIdempotent(t *testing.T) {
	q := NewQueueIndex()

	q.Upsert(searchingEntrant("u1", "g1"))
	first, _ := q.Get("u1")

	// 같은 id 재등록은 추가가 아니라 갱신
	q.Upsert(searchingEntrant("u1", "g1"))

	if got := q.SearchingCount("g1"); got != 1 {
		t.Errorf("SearchingCount = %d, want 1", got)
	}
	if got := q.OrderLen("g1"); got != 1 {
		t.Errorf("OrderLen = %d, want 1", got)
	}

	second, _ := q.Get("u1")
	if second.SearchStartedAt == nil {
		t.Fatal("SearchStartedAt should be set")
	}
	if !second.SearchStartedAt.Equal(*first.SearchStartedAt) {
		t.Error("SearchStartedAt should survive re-upsert")
	}
}

func TestQueueIndex_UpsertMovesGround(t *testing.T) {
	q := NewQueueIndex()

	q.Upsert(searchingEntrant("u1", "g1"))
	q.Upsert(searchingEntrant("u1", "g2"))

	if got := q.SearchingCount("g1"); got != 0 {
		t.Errorf("SearchingCount(g1) = %d, want 0", got)
	}
	if got := q.SearchingCount("g2"); got != 1 {
		t.Errorf("SearchingCount(g2) = %d, want 1", got)
	}

	dirty := q.TakeDirty()
	found := map[string]bool{}
	for _, g := range dirty {
		found[g] = true
	}
	if !found["g1"] || !found["g2"] {
		t.Errorf("both grounds should be dirty after a move, got %v", dirty)
	}
}

func TestQueueIndex_LeaveClearsSearchState(t *testing.T) {
	q := NewQueueIndex()
	q.Upsert(searchingEntrant("u1", "g1"))

	if err := q.Leave("u1"); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	e, ok := q.Get("u1")
	if !ok {
		t.Fatal("entrant record should survive Leave")
	}
	if e.Status != models.EntrantStatusIdle {
		t.Errorf("Status = %s, want idle", e.Status)
	}
	if e.SearchStartedAt != nil {
		t.Error("SearchStartedAt should be cleared")
	}
	if got := q.SearchingCount("g1"); got != 0 {
		t.Errorf("SearchingCount = %d, want 0", got)
	}

	if err := q.Leave("unknown"); err != ErrEntrantNotFound {
		t.Errorf("Leave(unknown) = %v, want ErrEntrantNotFound", err)
	}
}

func TestQueueIndex_CommitMatch(t *testing.T) {
	q := NewQueueIndex()
	q.Upsert(searchingEntrant("a", "g1"))
	q.Upsert(searchingEntrant("b", "g1"))

	if !q.CommitMatch("g1", "a", "b") {
		t.Fatal("CommitMatch should succeed for two searching entrants")
	}

	for _, id := range []string{"a", "b"} {
		e, _ := q.Get(id)
		if e.Status != models.EntrantStatusMatched {
			t.Errorf("%s Status = %s, want matched", id, e.Status)
		}
		if e.MatchedAt == nil {
			t.Errorf("%s MatchedAt should be set", id)
		}
	}
	if got := q.SearchingCount("g1"); got != 0 {
		t.Errorf("SearchingCount = %d, want 0", got)
	}

	// 이미 매칭된 쌍은 다시 커밋되지 않는다
	if q.CommitMatch("g1", "a", "b") {
		t.Error("CommitMatch should fail on already-matched entrants")
	}
}

func TestQueueIndex_CommitMatchFailsAfterLeave(t *testing.T) {
	q := NewQueueIndex()
	q.Upsert(searchingEntrant("a", "g1"))
	q.Upsert(searchingEntrant("b", "g1"))

	if err := q.Leave("b"); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	if q.CommitMatch("g1", "a", "b") {
		t.Fatal("CommitMatch should fail when one side left")
	}

	a, _ := q.Get("a")
	if a.Status != models.EntrantStatusSearching {
		t.Errorf("a should still be searching, got %s", a.Status)
	}
}

func TestQueueIndex_RollbackMatchRestoresSearching(t *testing.T) {
	q := NewQueueIndex()
	q.Upsert(searchingEntrant("a", "g1"))
	q.Upsert(searchingEntrant("b", "g1"))

	// 커밋 전에 둘 다 추첨으로 order에서 빠진 상태를 재현한다
	q.PopOrder("g1")
	q.PopOrder("g1")
	if !q.CommitMatch("g1", "a", "b") {
		t.Fatal("CommitMatch should succeed")
	}
	q.TakeDirty()

	q.RollbackMatch("g1", "a", "b")

	for _, id := range []string{"a", "b"} {
		e, ok := q.ValidSearching("g1", id)
		if !ok {
			t.Fatalf("%s should be searching again after rollback", id)
		}
		if e.MatchedAt != nil {
			t.Errorf("%s MatchedAt should be cleared", id)
		}
		if e.SearchStartedAt == nil {
			t.Errorf("%s SearchStartedAt should survive the rollback", id)
		}
	}
	if got := q.OrderLen("g1"); got != 2 {
		t.Errorf("OrderLen = %d, want 2 (both drawable again)", got)
	}
	if dirty := q.TakeDirty(); len(dirty) != 1 || dirty[0] != "g1" {
		t.Errorf("rollback should re-dirty the ground, got %v", dirty)
	}

	// 큐를 떠난 참가자는 되살리지 않는다
	q.Remove("a")
	q.RollbackMatch("g1", "a")
	if _, ok := q.Get("a"); ok {
		t.Error("removed entrant should stay gone")
	}
}

func TestQueueIndex_RequeuePreservesOrder(t *testing.T) {
	q := NewQueueIndex()
	q.Upsert(searchingEntrant("a", "g1"))
	q.Upsert(searchingEntrant("b", "g1"))
	q.Upsert(searchingEntrant("c", "g1"))

	// 전부 꺼냈다가 b, c를 원래 상대 순서대로 되돌린다
	for i := 0; i < 3; i++ {
		if _, ok := q.PopOrder("g1"); !ok {
			t.Fatal("PopOrder should succeed")
		}
	}
	q.Requeue("g1", "b", "c")

	id1, _ := q.PopOrder("g1")
	id2, _ := q.PopOrder("g1")
	if id1 != "b" || id2 != "c" {
		t.Errorf("requeued order = [%s, %s], want [b, c]", id1, id2)
	}
}

func TestQueueIndex_EvictStaleKeepsPartyMembers(t *testing.T) {
	q := NewQueueIndex()
	q.Upsert(searchingEntrant("a", "g1"))
	q.Upsert(searchingEntrant("b", "g1"))

	time.Sleep(5 * time.Millisecond)

	keep := func(id string) bool { return id == "b" }
	evicted := q.EvictStale(time.Millisecond, keep)

	if evicted != 1 {
		t.Errorf("evicted = %d, want 1", evicted)
	}
	if _, ok := q.Get("a"); ok {
		t.Error("a should be evicted")
	}
	if _, ok := q.Get("b"); !ok {
		t.Error("b should be kept")
	}
}

func TestQueueIndex_StatsTracksAverageWait(t *testing.T) {
	q := NewQueueIndex()
	q.Upsert(searchingEntrant("a", "g1"))
	q.Upsert(searchingEntrant("b", "g1"))

	time.Sleep(10 * time.Millisecond)

	if !q.CommitMatch("g1", "a", "b") {
		t.Fatal("CommitMatch should succeed")
	}

	count, avgWait := q.Stats("g1")
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
	if avgWait <= 0 {
		t.Errorf("avgWait = %v, want > 0 after a commit", avgWait)
	}
}
