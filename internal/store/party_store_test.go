package store

import (
	"sync"
	"testing"
	"time"

	"github.com/huntparty/huntparty-backend/internal/models"
)

func TestPartyStore_CreateAndGet(t *testing.T) {
	s := NewPartyStore(6, time.Minute)

	p, err := s.Create("leader", models.JobWarrior)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if p.LeaderID != "leader" {
		t.Errorf("LeaderID = %s, want leader", p.LeaderID)
	}
	if !p.IsOpen || p.Status != models.PartyStatusOpen {
		t.Errorf("new party should be open, got isOpen=%v status=%s", p.IsOpen, p.Status)
	}

	got, err := s.Get(p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Members) != 1 || got.Members[0].UserID != "leader" {
		t.Errorf("unexpected members: %+v", got.Members)
	}

	// 이미 파티에 있으면 새 파티를 만들 수 없다
	if _, err := s.Create("leader", models.JobMage); err != ErrUserAlreadyInParty {
		t.Errorf("second Create = %v, want ErrUserAlreadyInParty", err)
	}
}

func TestPartyStore_JoinClosesAtCapacity(t *testing.T) {
	s := NewPartyStore(3, time.Minute)
	p, _ := s.Create("u1", models.JobWarrior)

	if _, err := s.Join(p.ID, "u2", models.JobMage); err != nil {
		t.Fatalf("Join u2 failed: %v", err)
	}
	full, err := s.Join(p.ID, "u3", models.JobArcher)
	if err != nil {
		t.Fatalf("Join u3 failed: %v", err)
	}

	if full.Status != models.PartyStatusMatched || full.IsOpen {
		t.Errorf("full party should be matched+closed, got status=%s isOpen=%v", full.Status, full.IsOpen)
	}

	if _, err := s.Join(p.ID, "u4", models.JobThief); err != ErrPartyFull {
		t.Errorf("Join past capacity = %v, want ErrPartyFull", err)
	}
}

func TestPartyStore_JoinSamePartyIsIdempotent(t *testing.T) {
	s := NewPartyStore(6, time.Minute)
	p, _ := s.Create("u1", models.JobWarrior)
	s.Join(p.ID, "u2", models.JobMage)

	again, err := s.Join(p.ID, "u2", models.JobMage)
	if err != nil {
		t.Fatalf("repeat Join failed: %v", err)
	}
	if len(again.Members) != 2 {
		t.Errorf("members = %d, want 2", len(again.Members))
	}
}

func TestPartyStore_ConcurrentJoinNeverOverfills(t *testing.T) {
	s := NewPartyStore(6, time.Minute)
	p, _ := s.Create("leader", models.JobWarrior)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := "joiner-" + string(rune('a'+n))
			for {
				_, err := s.Join(p.ID, id, models.JobMage)
				if err != ErrLockBusy {
					return
				}
			}
		}(i)
	}
	wg.Wait()

	got, err := s.Get(p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Members) != 6 {
		t.Errorf("members = %d, want exactly 6", len(got.Members))
	}
}

func TestPartyStore_LeaveTransfersLeadership(t *testing.T) {
	s := NewPartyStore(6, time.Minute)
	p, _ := s.Create("u1", models.JobWarrior)
	s.Join(p.ID, "u2", models.JobMage)
	s.Join(p.ID, "u3", models.JobArcher)

	// u3를 가장 최근 활동자로 만든다
	time.Sleep(2 * time.Millisecond)
	if _, err := s.Heartbeat(p.ID, "u3"); err != nil {
		t.Fatalf("Heartbeat failed: %v", err)
	}

	after, deleted, err := s.Leave(p.ID, "u1")
	if err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	if deleted {
		t.Fatal("party should survive leader leaving")
	}
	if after.LeaderID != "u3" {
		t.Errorf("LeaderID = %s, want u3 (most recently active)", after.LeaderID)
	}
}

func TestPartyStore_LeaveLastMemberDeletes(t *testing.T) {
	s := NewPartyStore(6, time.Minute)
	p, _ := s.Create("u1", models.JobWarrior)

	gone, deleted, err := s.Leave(p.ID, "u1")
	if err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	if !deleted {
		t.Fatal("party should be deleted when last member leaves")
	}
	// 해산 통지가 떠나는 구성원에게 전달되도록 명단이 남아 있어야 한다
	if !gone.HasMember("u1") {
		t.Error("dissolved party should still list the departing member")
	}
	if _, err := s.Get(p.ID); err != ErrPartyNotFound {
		t.Errorf("Get after dissolve = %v, want ErrPartyNotFound", err)
	}
	if s.InParty("u1") {
		t.Error("u1 should no longer be indexed")
	}
}

func TestPartyStore_LeaveNonMember(t *testing.T) {
	s := NewPartyStore(6, time.Minute)
	p, _ := s.Create("u1", models.JobWarrior)

	if _, _, err := s.Leave(p.ID, "stranger"); err != ErrNotMember {
		t.Errorf("Leave by non-member = %v, want ErrNotMember", err)
	}
}

func TestPartyStore_UpdateBuffsClamps(t *testing.T) {
	s := NewPartyStore(6, time.Minute)
	p, _ := s.Create("u1", models.JobWarrior)

	over := 2000
	under := -5
	haste := 120
	got, err := s.UpdateBuffs(p.ID, models.PartyBuffPatch{
		HyperBody: &over,
		Bless:     &under,
		Haste:     &haste,
	})
	if err != nil {
		t.Fatalf("UpdateBuffs failed: %v", err)
	}
	if got.Buffs.HyperBody != models.MaxBuffValue {
		t.Errorf("HyperBody = %d, want %d", got.Buffs.HyperBody, models.MaxBuffValue)
	}
	if got.Buffs.Bless != 0 {
		t.Errorf("Bless = %d, want 0", got.Buffs.Bless)
	}
	if got.Buffs.Haste != 120 {
		t.Errorf("Haste = %d, want 120", got.Buffs.Haste)
	}
}

func TestPartyStore_TransferOwnership(t *testing.T) {
	s := NewPartyStore(6, time.Minute)
	p, _ := s.Create("u1", models.JobWarrior)
	s.Join(p.ID, "u2", models.JobMage)

	if _, err := s.TransferOwnership(p.ID, "u2", "u1"); err != ErrNotLeader {
		t.Errorf("transfer by non-leader = %v, want ErrNotLeader", err)
	}
	if _, err := s.TransferOwnership(p.ID, "u1", "stranger"); err != ErrNotMember {
		t.Errorf("transfer to non-member = %v, want ErrNotMember", err)
	}

	got, err := s.TransferOwnership(p.ID, "u1", "u2")
	if err != nil {
		t.Fatalf("TransferOwnership failed: %v", err)
	}
	if got.LeaderID != "u2" {
		t.Errorf("LeaderID = %s, want u2", got.LeaderID)
	}
}

func TestPartyStore_HeartbeatExtendsExpiry(t *testing.T) {
	s := NewPartyStore(6, time.Minute)
	p, _ := s.Create("u1", models.JobWarrior)

	time.Sleep(2 * time.Millisecond)
	after, err := s.Heartbeat(p.ID, "u1")
	if err != nil {
		t.Fatalf("Heartbeat failed: %v", err)
	}
	if !after.ExpiresAt.After(p.ExpiresAt) {
		t.Error("heartbeat should push expiry forward")
	}
}

func TestPartyStore_HeartbeatRejectsNonMember(t *testing.T) {
	s := NewPartyStore(6, time.Minute)
	p, _ := s.Create("u1", models.JobWarrior)

	if _, err := s.Heartbeat(p.ID, "stranger"); err != ErrNotMember {
		t.Errorf("Heartbeat by non-member = %v, want ErrNotMember", err)
	}

	after, _ := s.Get(p.ID)
	if !after.ExpiresAt.Equal(p.ExpiresAt) {
		t.Error("non-member heartbeat must not extend expiry")
	}
}

func TestPartyStore_SweepExpired(t *testing.T) {
	s := NewPartyStore(6, 5*time.Millisecond)
	p, _ := s.Create("u1", models.JobWarrior)
	fresh, _ := s.Create("u2", models.JobMage)

	time.Sleep(10 * time.Millisecond)
	// 대조군은 하트비트로 연장해 스윕에서 살아남아야 한다
	s.Heartbeat(fresh.ID, "u2")

	expired := s.SweepExpired()
	if len(expired) != 1 || expired[0].ID != p.ID {
		t.Fatalf("expired = %+v, want only the stale party", expired)
	}
	if _, err := s.Get(p.ID); err != ErrPartyNotFound {
		t.Error("swept party should be gone")
	}
	if _, err := s.Get(fresh.ID); err != nil {
		t.Error("fresh party should survive the sweep")
	}
}

func TestPartyStore_OpenPartiesFiltersByJob(t *testing.T) {
	s := NewPartyStore(6, time.Minute)
	warriors, _ := s.Create("u1", models.JobWarrior)
	mages, _ := s.Create("u2", models.JobMage)
	closed, _ := s.Create("u3", models.JobThief)
	s.SetOpen(closed.ID, false)

	all := s.OpenParties("")
	if len(all) != 2 {
		t.Errorf("open parties = %d, want 2", len(all))
	}

	noWarrior := s.OpenParties(models.JobWarrior)
	if len(noWarrior) != 1 || noWarrior[0].ID != mages.ID {
		t.Errorf("OpenParties(warrior) should return only the mage party, got %d", len(noWarrior))
	}
	_ = warriors
}
