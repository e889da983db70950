package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
)

func TestGeneratePublicURLRetriesOnCollision(t *testing.T) {
	calls := 0
	randToken := func(n int) string {
		calls++
		return fmt.Sprintf("candidate-%d", calls)
	}
	// 前三个候选都已被占用
	exists := func(candidate string) (bool, error) {
		return candidate == "candidate-1" || candidate == "candidate-2" || candidate == "candidate-3", nil
	}

	got, err := generatePublicURL(randToken, exists)
	if err != nil {
		t.Fatalf("generatePublicURL: %v", err)
	}
	if got != "candidate-4" {
		t.Errorf("expected candidate-4, got %q", got)
	}
	if calls != 4 {
		t.Errorf("expected 4 attempts, got %d", calls)
	}
}

func TestGeneratePublicURLExhaustsAttempts(t *testing.T) {
	randToken := func(n int) string { return "always-taken" }
	exists := func(string) (bool, error) { return true, nil }

	if _, err := generatePublicURL(randToken, exists); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
}

func TestGeneratePublicURLPropagatesExistsError(t *testing.T) {
	randToken := func(n int) string { return "x" }
	exists := func(string) (bool, error) { return false, fmt.Errorf("db down") }

	_, err := generatePublicURL(randToken, exists)
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("expected wrapped exists error, got %v", err)
	}
}

func TestRandomTokenLengthAndCharset(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		token := randomToken(publicURLLength)
		if len(token) != publicURLLength {
			t.Fatalf("expected length %d, got %d (%q)", publicURLLength, len(token), token)
		}
		for _, c := range token {
			if !strings.ContainsRune(publicURLCharset, c) {
				t.Fatalf("token %q contains byte outside charset", token)
			}
		}
		if seen[token] {
			t.Fatalf("duplicate token %q across 20 draws", token)
		}
		seen[token] = true
	}
}

func TestApplyIngestPayloadKeepsHistory(t *testing.T) {
	order := &entity.ServiceOrder{
		OrderID:       "SO-1001",
		ProcessStatus: entity.StatusApprovalLinkOpened,
		ProcessStatusRecords: entity.StatusRecordList{
			{ID: "rec-1", Status: entity.StatusSurveyCompleted},
			{ID: "rec-2", Status: entity.StatusApprovalLinkOpened},
		},
	}

	// 重复上报不带历史，不应清掉已有记录
	applyIngestPayload(order, &IngestPayload{
		ReferenceObject: entity.ReferenceObject{"orderId": "SO-1001"},
		DealerCode:      "D42",
	})

	if len(order.ProcessStatusRecords) != 2 {
		t.Fatalf("expected 2 history records to survive, got %d", len(order.ProcessStatusRecords))
	}
	if order.ProcessStatus != entity.StatusApprovalLinkOpened {
		t.Errorf("expected status to survive, got %q", order.ProcessStatus)
	}
	if order.DealerCode != "D42" {
		t.Errorf("expected dealer code applied, got %q", order.DealerCode)
	}
}

func TestApplyIngestPayloadOverridesHistoryWhenProvided(t *testing.T) {
	order := &entity.ServiceOrder{
		OrderID: "SO-1002",
		ProcessStatusRecords: entity.StatusRecordList{
			{ID: "rec-1", Status: entity.StatusSurveyCompleted},
		},
	}

	applyIngestPayload(order, &IngestPayload{
		ReferenceObject: entity.ReferenceObject{"orderId": "SO-1002"},
		ProcessStatusRecords: entity.StatusRecordList{
			{ID: "rec-9", Status: entity.StatusSurveyCompleted},
			{ID: "rec-10", Status: entity.StatusCustomerDecisionRecorded},
		},
		ProcessStatus: entity.StatusCustomerDecisionRecorded,
	})

	if len(order.ProcessStatusRecords) != 2 || order.ProcessStatusRecords[1].ID != "rec-10" {
		t.Fatalf("expected incoming history to replace, got %+v", order.ProcessStatusRecords)
	}
	if order.ProcessStatus != entity.StatusCustomerDecisionRecorded {
		t.Errorf("expected status replaced, got %q", order.ProcessStatus)
	}
}
