package service

import (
	"testing"
	"time"

	"github.com/huntparty/huntparty-backend/internal/models"
	"github.com/huntparty/huntparty-backend/internal/store"
)

// 틱을 돌리지 않고 runMatchmaking을 직접 호출하는 테스트 하네스
func newTestMatchmaking(t *testing.T) (*MatchmakingService, *store.QueueIndex, *store.PartyStore) {
	t.Helper()
	queue := store.NewQueueIndex()
	parties := store.NewPartyStore(6, time.Minute)
	partyService := NewPartyService(parties, queue, nil, time.Minute, 10*time.Minute)
	svc := NewMatchmakingService(queue, partyService, nil, 150*time.Millisecond)
	return svc, queue, parties
}

func enqueueOn(t *testing.T, svc *MatchmakingService, id, groundID string, blocked ...string) {
	t.Helper()
	_, err := svc.Enqueue(EnqueueRequest{
		UserID:   id,
		Name:     id,
		Job:      models.JobWarrior,
		GroundID: groundID,
		Blocked:  blocked,
	})
	if err != nil {
		t.Fatalf("Enqueue(%s) failed: %v", id, err)
	}
}

func TestMatchmakingService_PairsCompatibleEntrants(t *testing.T) {
	svc, queue, parties := newTestMatchmaking(t)

	enqueueOn(t, svc, "a", "g1")
	enqueueOn(t, svc, "b", "g1")

	svc.runMatchmaking()

	for _, id := range []string{"a", "b"} {
		e, _ := queue.Get(id)
		if e.Status != models.EntrantStatusMatched {
			t.Errorf("%s Status = %s, want matched", id, e.Status)
		}
	}
	if got := queue.SearchingCount("g1"); got != 0 {
		t.Errorf("SearchingCount = %d, want 0", got)
	}

	p, err := parties.GetByMember("a")
	if err != nil {
		t.Fatalf("no party created for the pair: %v", err)
	}
	if len(p.Members) != 2 || !p.HasMember("b") {
		t.Errorf("party should contain both entrants, got %+v", p.Members)
	}
}

func TestMatchmakingService_BlacklistPreventsMatch(t *testing.T) {
	svc, queue, parties := newTestMatchmaking(t)

	enqueueOn(t, svc, "a", "g1", "b")
	enqueueOn(t, svc, "b", "g1")

	svc.runMatchmaking()

	for _, id := range []string{"a", "b"} {
		e, _ := queue.Get(id)
		if e.Status != models.EntrantStatusSearching {
			t.Errorf("%s should still be searching, got %s", id, e.Status)
		}
	}
	if parties.Count() != 0 {
		t.Errorf("no party should exist, got %d", parties.Count())
	}
}

func TestMatchmakingService_SkipsIncompatibleCandidate(t *testing.T) {
	svc, queue, parties := newTestMatchmaking(t)

	// a는 b를 차단하지만 c와는 호환 - FIFO 순서상 b를 건너뛰고 c와 매칭
	enqueueOn(t, svc, "a", "g1", "b")
	enqueueOn(t, svc, "b", "g1")
	enqueueOn(t, svc, "c", "g1")

	svc.runMatchmaking()

	p, err := parties.GetByMember("a")
	if err != nil {
		t.Fatalf("a should be in a party: %v", err)
	}
	if !p.HasMember("c") {
		t.Error("a should be paired with c")
	}

	b, _ := queue.Get("b")
	if b.Status != models.EntrantStatusSearching {
		t.Errorf("b should remain searching, got %s", b.Status)
	}
	if got := queue.SearchingCount("g1"); got != 1 {
		t.Errorf("SearchingCount = %d, want 1", got)
	}
}

func TestMatchmakingService_SkippedCandidateMatchesNextPass(t *testing.T) {
	svc, queue, _ := newTestMatchmaking(t)

	enqueueOn(t, svc, "a", "g1", "b")
	enqueueOn(t, svc, "b", "g1")
	enqueueOn(t, svc, "c", "g1")

	svc.runMatchmaking()

	// 다음 참가자가 들어오면 남아 있던 b도 짝을 찾는다
	enqueueOn(t, svc, "d", "g1")
	svc.runMatchmaking()

	b, _ := queue.Get("b")
	if b.Status != models.EntrantStatusMatched {
		t.Errorf("b should be matched on the next pass, got %s", b.Status)
	}
}

func TestMatchmakingService_LeaveCancelsSearch(t *testing.T) {
	svc, queue, parties := newTestMatchmaking(t)

	enqueueOn(t, svc, "a", "g1")
	if err := svc.Leave("a"); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	enqueueOn(t, svc, "b", "g1")

	svc.runMatchmaking()

	b, _ := queue.Get("b")
	if b.Status != models.EntrantStatusSearching {
		t.Errorf("b should still be searching, got %s", b.Status)
	}
	if parties.Count() != 0 {
		t.Errorf("no party should exist, got %d", parties.Count())
	}
}

func TestMatchmakingService_EnqueueValidation(t *testing.T) {
	svc, _, _ := newTestMatchmaking(t)

	if _, err := svc.Enqueue(EnqueueRequest{GroundID: "g1"}); err != ErrMissingUser {
		t.Errorf("Enqueue without user = %v, want ErrMissingUser", err)
	}
	if _, err := svc.Enqueue(EnqueueRequest{UserID: "a"}); err != ErrMissingLocation {
		t.Errorf("Enqueue without ground = %v, want ErrMissingLocation", err)
	}
}

func TestMatchmakingService_ReenqueueAfterMatchMovesGround(t *testing.T) {
	svc, queue, parties := newTestMatchmaking(t)

	enqueueOn(t, svc, "a", "g1")
	enqueueOn(t, svc, "b", "g1")
	svc.runMatchmaking()

	// 파티를 떠난 참가자가 다른 사냥터로 재등록하면 다시 검색 상태가 된다
	p, err := parties.GetByMember("a")
	if err != nil {
		t.Fatalf("a should be in a party: %v", err)
	}
	if _, _, err := parties.Leave(p.ID, "a"); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	enqueueOn(t, svc, "a", "g2")

	a, _ := queue.Get("a")
	if a.Status != models.EntrantStatusSearching || a.GroundID != "g2" {
		t.Errorf("a = {status:%s ground:%s}, want searching on g2", a.Status, a.GroundID)
	}
}

func TestMatchmakingService_EnqueueRejectsPartyMember(t *testing.T) {
	svc, _, parties := newTestMatchmaking(t)

	if _, err := parties.Create("a", models.JobWarrior); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := svc.Enqueue(EnqueueRequest{UserID: "a", GroundID: "g1"})
	if err != store.ErrUserAlreadyInParty {
		t.Errorf("Enqueue while in a party = %v, want ErrUserAlreadyInParty", err)
	}
}

func TestMatchmakingService_PartyCreateFailureReleasesPair(t *testing.T) {
	svc, queue, parties := newTestMatchmaking(t)

	enqueueOn(t, svc, "a", "g1")
	enqueueOn(t, svc, "b", "g1")
	// a가 검색 중에 직접 파티를 만드는 경합 - 쌍 커밋 후 파티 생성이 실패한다
	if _, err := parties.Create("a", models.JobWarrior); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	svc.runMatchmaking()

	a, _ := queue.Get("a")
	if a.Status != models.EntrantStatusIdle {
		t.Errorf("a Status = %s, want idle (already in a party)", a.Status)
	}
	b, _ := queue.Get("b")
	if b.Status != models.EntrantStatusSearching {
		t.Errorf("b Status = %s, want searching again", b.Status)
	}
	if _, err := parties.GetByMember("b"); err != store.ErrPartyNotFound {
		t.Errorf("b should not be in a party, got err=%v", err)
	}

	// 되돌려진 b는 다음 참가자와 정상 매칭된다
	enqueueOn(t, svc, "c", "g1")
	svc.runMatchmaking()

	p, err := parties.GetByMember("b")
	if err != nil {
		t.Fatalf("b should pair with c after rollback: %v", err)
	}
	if !p.HasMember("c") {
		t.Errorf("b should be paired with c, got %+v", p.Members)
	}
}

func TestMatchmakingService_CommitRaceRequeuesSurvivor(t *testing.T) {
	svc, queue, parties := newTestMatchmaking(t)

	enqueueOn(t, svc, "a", "g1")
	enqueueOn(t, svc, "b", "g1")

	a, ok := svc.drawHead("g1")
	if !ok {
		t.Fatal("drawHead should return the queue head")
	}
	b, scanned := svc.scanForPartner("g1", a)
	if b == nil {
		t.Fatal("scan should find a partner")
	}

	// 스캔과 커밋 사이에 파트너가 검색을 취소하는 경합
	if err := svc.Leave("b"); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	if svc.commitPair("g1", a, b, scanned) {
		t.Fatal("commit should be rejected after the partner left")
	}
	if parties.Count() != 0 {
		t.Errorf("no party should exist, got %d", parties.Count())
	}

	// 살아남은 쪽은 되돌려져서 다음 참가자와 매칭 가능해야 한다
	enqueueOn(t, svc, "c", "g1")
	svc.runMatchmaking()

	got, _ := queue.Get("a")
	if got.Status != models.EntrantStatusMatched {
		t.Errorf("a Status = %s, want matched with the next entrant", got.Status)
	}
	if p, err := parties.GetByMember("a"); err != nil || !p.HasMember("c") {
		t.Errorf("a should be paired with c, err=%v", err)
	}
}
