package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLiteSink(t *testing.T) *SQLiteSink {
	t.Helper()
	s, err := NewSQLiteSink(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open sqlite sink: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteSinkRoundTrip(t *testing.T) {
	s := newTestSQLiteSink(t)

	now := time.Now().UTC()
	s.LogRoutingDecision(Decision{
		Agent:       "writer",
		TaskType:    "draft",
		Provider:    "cloud",
		Sensitivity: "public",
		Policy:      "default_local_first",
		Allowed:     true,
		Reason:      "policy check passed",
		Time:        now,
	})
	s.LogRoutingDecision(Decision{
		Agent:   "writer",
		Allowed: false,
		Reason:  "denied",
		Time:    now,
	})

	decisions, err := s.RecentDecisions(10)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(decisions))
	}

	// Newest first.
	if decisions[0].Allowed || !decisions[1].Allowed {
		t.Error("decisions out of order")
	}
	if decisions[1].Provider != "cloud" || decisions[1].Policy != "default_local_first" {
		t.Errorf("fields lost in round trip: %+v", decisions[1])
	}
}

func TestSQLiteSinkVetoInsert(t *testing.T) {
	s := newTestSQLiteSink(t)

	// Fire-and-forget: must not panic or error visibly.
	s.LogVetoEvent(Veto{
		Reason:         "provider not permitted",
		PolicyViolated: "enterprise_residency",
		Severity:       "critical",
		Details:        map[string]any{"provider": "cloud"},
		Time:           time.Now(),
	}, "enforce_policy")

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM veto_events").Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 veto row, got %d", count)
	}
}

func TestSQLiteSinkRecentDecisionsLimit(t *testing.T) {
	s := newTestSQLiteSink(t)

	for i := 0; i < 5; i++ {
		s.LogRoutingDecision(Decision{Agent: "a", Time: time.Now()})
	}

	decisions, err := s.RecentDecisions(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 3 {
		t.Errorf("expected 3 decisions, got %d", len(decisions))
	}
}
