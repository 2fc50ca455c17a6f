package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/dealerkit/recon/internal/recon/entity"
)

func newTestCase(status entity.CaseStatus) *entity.InspectionCase {
	return &entity.InspectionCase{
		ID:            "case-1",
		CreatedAt:     time.Now(),
		Mode:          entity.ModeAudit,
		Vehicle:       entity.Vehicle{VIN: "1HGBH41JXMN109186", Year: time.Now().Year() - 2, OdometerKM: 40000},
		CurrentStatus: status,
	}
}

func TestClassify(t *testing.T) {
	if tt, err := Classify(entity.StatusTopTier, entity.StatusWholesale); err != nil || tt != entity.TransitionDowngrade {
		t.Fatalf("top_tier -> wholesale: got (%s, %v), want downgrade", tt, err)
	}
	if tt, err := Classify(entity.StatusWholesale, entity.StatusTopTier); err != nil || tt != entity.TransitionUpgrade {
		t.Fatalf("wholesale -> top_tier: got (%s, %v), want upgrade", tt, err)
	}
	if tt, err := Classify(entity.StatusAsIs, entity.StatusWholesale); err != nil || tt != entity.TransitionDowngrade {
		t.Fatalf("as_is -> wholesale: got (%s, %v), want downgrade", tt, err)
	}
	if _, err := Classify(entity.StatusTopTier, "platinum"); err == nil {
		t.Fatalf("expected unknown status to fail classification")
	}
}

func TestTransitionAppendsHistory(t *testing.T) {
	c := newTestCase(entity.StatusCertified)
	now := time.Now()

	entry, err := Transition(c, entity.StatusTopTier, now)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if entry == nil {
		t.Fatalf("expected a transition entry")
	}
	if entry.From != entity.StatusCertified || entry.To != entity.StatusTopTier {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.Type != entity.TransitionUpgrade {
		t.Fatalf("expected upgrade, got %s", entry.Type)
	}
	if c.CurrentStatus != entity.StatusTopTier {
		t.Fatalf("expected current status top_tier, got %s", c.CurrentStatus)
	}
	if len(c.History) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(c.History))
	}
}

func TestTransitionIdempotentNoOp(t *testing.T) {
	c := newTestCase(entity.StatusCertified)

	entry, err := Transition(c, entity.StatusCertified, time.Now())
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if entry != nil {
		t.Fatalf("same-status transition must be a no-op, got %+v", entry)
	}
	if len(c.History) != 0 {
		t.Fatalf("no-op must not append history, got %d entries", len(c.History))
	}
}

func TestTransitionRejectionLeavesCaseUnmodified(t *testing.T) {
	c := newTestCase(entity.StatusCertified)
	c.Vehicle.Year = time.Now().Year() - 9 // too old for top tier

	_, err := Transition(c, entity.StatusTopTier, time.Now())
	var ie *IneligibleError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IneligibleError, got %v", err)
	}
	if c.CurrentStatus != entity.StatusCertified {
		t.Fatalf("rejected transition changed status to %s", c.CurrentStatus)
	}
	if len(c.History) != 0 {
		t.Fatalf("rejected transition appended history: %d entries", len(c.History))
	}
}

func TestTransitionHistoryIsMonotonic(t *testing.T) {
	c := newTestCase(entity.StatusCertified)
	now := time.Now()

	moves := []entity.CaseStatus{
		entity.StatusTopTier,
		entity.StatusTopTier, // no-op
		entity.StatusWholesale,
		entity.StatusMidTier,
		entity.StatusMidTier, // no-op
	}
	applied := 0
	for _, to := range moves {
		entry, err := Transition(c, to, now)
		if err != nil {
			t.Fatalf("Transition to %s: %v", to, err)
		}
		if entry != nil {
			applied++
		}
	}

	if applied != 3 {
		t.Fatalf("expected 3 applied transitions, got %d", applied)
	}
	if len(c.History) != applied {
		t.Fatalf("history length %d != applied transitions %d", len(c.History), applied)
	}
	if c.CurrentStatus != c.History[len(c.History)-1].To {
		t.Fatalf("current status %s != last history To %s", c.CurrentStatus, c.History[len(c.History)-1].To)
	}
}

func TestTransitionNextModelYearVehicle(t *testing.T) {
	// 次年款新车: 车型年份大于当前年份，车龄为负，按合格处理
	c := newTestCase(entity.StatusCertified)
	c.Vehicle.Year = time.Now().Year() + 1
	c.Vehicle.OdometerKM = 50

	entry, err := Transition(c, entity.StatusTopTier, time.Now())
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if entry == nil || entry.Type != entity.TransitionUpgrade {
		t.Fatalf("expected upgrade entry, got %+v", entry)
	}
	if c.CurrentStatus != entity.StatusTopTier {
		t.Fatalf("expected top_tier, got %s", c.CurrentStatus)
	}
}
