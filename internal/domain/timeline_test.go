package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestTimelineEventJSONKeepsDetailVariant(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []TimelineEvent{
		NewTimelineEvent("e1", at, "Background check order created", "Case created for Ada", "hr", CreatedDetail{CandidateName: "Ada", Owner: "hr"}),
		NewTimelineEvent("e2", at, "RIGHT_TO_WORK: Clear", "", "ops", StatusChangeDetail{CheckType: CheckRightToWork, OldStatus: StatusNew, NewStatus: StatusCompletedClear}),
		NewTimelineEvent("e3", at, "Score: CLEAR", "", "system", ScoreChangeDetail{PreviousScore: ScorePending, NewScore: ScoreClear}),
		NewTimelineEvent("e4", at, "RIGHT_TO_WORK updated to ERROR", "Vendor: Acme", "Acme", CheckUpdatedDetail{CheckType: CheckRightToWork, PreviousStatus: StatusCompletedClear, Status: StatusError, Vendor: "Acme", VendorReference: "A-1"}),
		NewTimelineEvent("e5", at, "Admin Decision: APPROVED", "fine", "lead", AdminDecisionDetail{Decision: DecisionApproved, Reasoning: "fine"}),
	}

	b, err := json.Marshal(events)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"metadata":{"candidateName":"Ada","owner":"hr"}`) {
		t.Fatalf("created metadata missing: %s", b)
	}

	var decoded []TimelineEvent
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != len(events) {
		t.Fatalf("length mismatch: %d", len(decoded))
	}
	for i := range events {
		if decoded[i].EventType != events[i].EventType {
			t.Fatalf("event %d type mismatch: %s", i, decoded[i].EventType)
		}
		if decoded[i].Detail != events[i].Detail {
			t.Fatalf("event %d detail mismatch: %#v", i, decoded[i].Detail)
		}
	}
}

func TestTimelineEventTypeFollowsDetail(t *testing.T) {
	e := NewTimelineEvent("e1", time.Now(), "Score: CLEAR", "", "system", ScoreChangeDetail{})
	if e.EventType != EventScoreChange {
		t.Fatalf("got %s", e.EventType)
	}
}

func TestTimelineEventUnmarshalRejectsUnknownType(t *testing.T) {
	var e TimelineEvent
	err := json.Unmarshal([]byte(`{"id":"x","timestamp":"2026-03-01T00:00:00Z","eventType":"MYSTERY","title":"?","metadata":{"a":1}}`), &e)
	if err == nil {
		t.Fatalf("expected error for unknown event type")
	}

	err = json.Unmarshal([]byte(`{"id":"y","timestamp":"2026-03-01T00:00:00Z","eventType":"DECISION","title":"legacy"}`), &e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Detail != nil || e.EventType != EventDecision {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestCaseCloneDoesNotAlias(t *testing.T) {
	done := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := Case{
		CaseID: "c1",
		Checks: []Check{{CheckType: CheckIdentityVerification, CompletedAt: &done, VendorMetadata: &VendorMetadata{Vendor: "Acme"}}},
		Timeline: []TimelineEvent{
			NewTimelineEvent("e1", done, "t", "", "", CreatedDetail{}),
		},
	}
	cp := c.Clone()
	cp.Checks[0].Status = StatusError
	*cp.Checks[0].CompletedAt = done.Add(time.Hour)
	cp.Checks[0].VendorMetadata.Vendor = "Other"
	cp.Timeline = append(cp.Timeline, NewTimelineEvent("e2", done, "t2", "", "", ScoreChangeDetail{}))

	if c.Checks[0].Status != "" || !c.Checks[0].CompletedAt.Equal(done) || c.Checks[0].VendorMetadata.Vendor != "Acme" {
		t.Fatalf("clone aliased checks: %+v", c.Checks[0])
	}
	if len(c.Timeline) != 1 {
		t.Fatalf("clone aliased timeline")
	}
	if c.CheckIndex(CheckIdentityVerification) != 0 || c.CheckIndex(CheckRightToWork) != -1 {
		t.Fatalf("CheckIndex mismatch")
	}
	if c.VendorReferenceIndex("") != -1 {
		t.Fatalf("empty reference must never match")
	}
}
