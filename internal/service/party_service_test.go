package service

import (
	"testing"
	"time"

	"github.com/huntparty/huntparty-backend/internal/models"
	"github.com/huntparty/huntparty-backend/internal/store"
)

// recordingNotifier 브로드캐스트된 스냅샷을 기록하는 테스트용 게이트웨이
type recordingNotifier struct {
	snapshots []models.PartySnapshot
}

func (n *recordingNotifier) NotifyParty(snap models.PartySnapshot) {
	n.snapshots = append(n.snapshots, snap)
}

func newTestParty(t *testing.T) (*PartyService, *recordingNotifier) {
	t.Helper()
	notify := &recordingNotifier{}
	queue := store.NewQueueIndex()
	parties := store.NewPartyStore(6, time.Minute)
	return NewPartyService(parties, queue, notify, time.Minute, 10*time.Minute), notify
}

func TestPartyService_LeaveToEmptyNotifiesDepartingMember(t *testing.T) {
	svc, notify := newTestParty(t)

	p, err := svc.Create("u1", models.JobWarrior)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Leave(p.ID, "u1"); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	if len(notify.snapshots) == 0 {
		t.Fatal("dissolution should broadcast")
	}
	last := notify.snapshots[len(notify.snapshots)-1]
	if !last.Deleted {
		t.Fatal("dissolution should broadcast a deleted snapshot")
	}
	// 팬아웃이 구성원 명단을 따라가므로 떠나는 구성원이 명단에 있어야 한다
	if len(last.Members) != 1 || last.Members[0].UserID != "u1" {
		t.Errorf("deleted snapshot should list the departing member, got %+v", last.Members)
	}
}

func TestPartyService_LeaveBroadcastsRemainingMembers(t *testing.T) {
	svc, notify := newTestParty(t)

	p, err := svc.Create("u1", models.JobWarrior)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Join(p.ID, "u2", models.JobMage); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if _, err := svc.Leave(p.ID, "u2"); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	last := notify.snapshots[len(notify.snapshots)-1]
	if last.Deleted {
		t.Fatal("party with remaining members must not broadcast deleted")
	}
	if len(last.Members) != 1 || last.Members[0].UserID != "u1" {
		t.Errorf("snapshot should list only the remaining member, got %+v", last.Members)
	}
}
