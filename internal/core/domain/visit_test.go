package domain

import "testing"

func TestVisitStateTerminal(t *testing.T) {
	terminal := []VisitState{VisitCompleted, VisitCancelled, VisitExpiredComplete, VisitExpiredIncomplete}
	for _, state := range terminal {
		if !state.Terminal() {
			t.Fatalf("expected %s to be terminal", state)
		}
	}

	open := []VisitState{VisitOpened, VisitWorking, VisitShared, VisitEscalated}
	for _, state := range open {
		if state.Terminal() {
			t.Fatalf("expected %s to be non-terminal", state)
		}
	}
}

func TestAddSharedSkipsOpenerAndDuplicates(t *testing.T) {
	session := VisitSession{OpenedBy: "user-1", SharedWith: []string{"user-2"}}

	added := session.AddShared([]string{"user-1", "user-2", "user-3", "user-3"})
	if len(added) != 1 || added[0] != "user-3" {
		t.Fatalf("expected only user-3 added, got %v", added)
	}
	if len(session.SharedWith) != 2 {
		t.Fatalf("expected shared set of 2, got %v", session.SharedWith)
	}
}

func TestNextShareStateMonotonicEscalation(t *testing.T) {
	session := VisitSession{State: VisitOpened}
	if got := session.NextShareState(false); got != VisitShared {
		t.Fatalf("expected Shared from Opened, got %s", got)
	}
	if got := session.NextShareState(true); got != VisitEscalated {
		t.Fatalf("expected Escalated with escalation, got %s", got)
	}

	session.State = VisitEscalated
	if got := session.NextShareState(false); got != VisitEscalated {
		t.Fatalf("expected escalation to stick, got %s", got)
	}

	session.State = VisitShared
	if got := session.NextShareState(false); got != VisitShared {
		t.Fatalf("expected Shared to stay Shared, got %s", got)
	}
}

func TestExpiredState(t *testing.T) {
	complete := VisitSession{PercentComplete: 100}
	if got := complete.ExpiredState(); got != VisitExpiredComplete {
		t.Fatalf("expected expired_complete at 100%%, got %s", got)
	}

	partial := VisitSession{PercentComplete: 40}
	if got := partial.ExpiredState(); got != VisitExpiredIncomplete {
		t.Fatalf("expected expired_incomplete at 40%%, got %s", got)
	}
}

func TestCanActOn(t *testing.T) {
	session := VisitSession{OpenedBy: "user-1", SharedWith: []string{"user-2"}}

	if !session.CanActOn("user-1") || !session.CanActOn("user-2") {
		t.Fatal("expected opener and shared user to act")
	}
	if session.CanActOn("user-3") {
		t.Fatal("expected outsider denied")
	}
}

func TestPercentComplete(t *testing.T) {
	if got := PercentComplete(0, 0); got != 0 {
		t.Fatalf("expected 0 with no expected observations, got %v", got)
	}
	if got := PercentComplete(1, 2); got != 50 {
		t.Fatalf("expected 50, got %v", got)
	}
	if got := PercentComplete(3, 3); got != 100 {
		t.Fatalf("expected 100, got %v", got)
	}
}
