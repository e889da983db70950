package service

import (
	"testing"

	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
)

func strPtr(s string) *string { return &s }

func flexPtr(s string) *entity.FlexID {
	f := entity.FlexID(s)
	return &f
}

// makeDetail 按任务号造一个单回答单套餐多方案的 detail
func makeDetail(taskID string, variants ...entity.Variant) entity.Detail {
	return entity.Detail{
		TaskID: entity.FlexID(taskID),
		Answers: []entity.Answer{{
			Packages: []entity.Package{{Variants: variants}},
		}},
	}
}

func TestApplyDecisionDeferredMutualExclusivity(t *testing.T) {
	d1 := "2026-04-01"
	d3 := "2026-05-01"
	detail := makeDetail("1",
		entity.Variant{ID: "v1", DeferredTaskDate: &d1, ApprovedPriceExVat: 10},
		entity.Variant{ID: "v2", ApprovedPriceExVat: 20, Details: []entity.LineItem{{PositionAmountExVat: 20, PositionAmountIncVat: 24}}},
		entity.Variant{ID: "v3", DeferredTaskDate: &d3},
	)

	ok := applyDecision(&detail, DecisionItem{
		TaskID:           "1",
		VariantID:        flexPtr("v2"),
		CustomerApproved: entity.DecisionDeferred,
		DeferredTaskDate: strPtr("2026-06-15"),
	})
	if !ok {
		t.Fatalf("decision should apply")
	}

	variants := detail.PrimaryVariants()
	if variants[0].DeferredTaskDate != nil {
		t.Fatalf("variant 1 date should be cleared")
	}
	if variants[2].DeferredTaskDate != nil {
		t.Fatalf("variant 3 date should be cleared")
	}
	if variants[1].DeferredTaskDate == nil || *variants[1].DeferredTaskDate != "2026-06-15" {
		t.Fatalf("variant 2 date = %v, want 2026-06-15", variants[1].DeferredTaskDate)
	}
	if variants[1].ApprovedPriceExVat != 0 || variants[1].ApprovedPriceIncVat != 0 {
		t.Fatalf("deferred variant pricing should be zeroed")
	}
	if variants[1].Details[0].PositionAmountExVat != 0 {
		t.Fatalf("deferred line items should be zeroed")
	}
	if variants[1].CustomerApproved != entity.DecisionDeferred {
		t.Fatalf("customerApproved = %q", variants[1].CustomerApproved)
	}
}

func TestApplyDecisionApprovedClearsDate(t *testing.T) {
	date := "2026-04-01"
	detail := makeDetail("1",
		entity.Variant{ID: "v1", DeferredTaskDate: &date, ApprovedPriceExVat: 10},
	)

	applyDecision(&detail, DecisionItem{TaskID: "1", CustomerApproved: entity.DecisionApproved})

	v := detail.PrimaryVariants()[0]
	if v.DeferredTaskDate != nil {
		t.Fatalf("approved should clear deferredTaskDate")
	}
	if v.ApprovedPriceExVat != 10 {
		t.Fatalf("approved must keep pricing, got %v", v.ApprovedPriceExVat)
	}
}

func TestApplyDecisionRejectedZeroesPricing(t *testing.T) {
	for _, status := range []string{entity.DecisionRejected, entity.DecisionCancelled, entity.DecisionCanceledUS} {
		detail := makeDetail("1",
			entity.Variant{ID: "v1", ApprovedPriceExVat: 10, ApprovedPriceIncVat: 12,
				Details: []entity.LineItem{{PositionAmountExVat: 10, PositionAmountIncVat: 12}}},
		)
		applyDecision(&detail, DecisionItem{TaskID: "1", CustomerApproved: status})

		v := detail.PrimaryVariants()[0]
		if v.ApprovedPriceExVat != 0 || v.Details[0].PositionAmountIncVat != 0 {
			t.Fatalf("%s should zero pricing, got %+v", status, v)
		}
	}
}

func TestApplyDecisionCallbackSetsStatusOnly(t *testing.T) {
	date := "2026-04-01"
	detail := makeDetail("1",
		entity.Variant{ID: "v1", DeferredTaskDate: &date, ApprovedPriceExVat: 10},
	)
	applyDecision(&detail, DecisionItem{TaskID: "1", CustomerApproved: entity.DecisionCallback})

	v := detail.PrimaryVariants()[0]
	if v.CustomerApproved != entity.DecisionCallback {
		t.Fatalf("status not set")
	}
	if v.DeferredTaskDate == nil || v.ApprovedPriceExVat != 10 {
		t.Fatalf("callback must not touch date or pricing")
	}
}

func TestApplyDecisionIndexZeroFallback(t *testing.T) {
	detail := makeDetail("1",
		entity.Variant{ID: "v1"},
		entity.Variant{ID: "v2"},
	)

	// 没带 variantId
	applyDecision(&detail, DecisionItem{TaskID: "1", CustomerApproved: entity.DecisionApproved})
	if detail.PrimaryVariants()[0].CustomerApproved != entity.DecisionApproved {
		t.Fatalf("missing variantId should target index 0")
	}

	// variantId 没匹配上
	detail2 := makeDetail("1",
		entity.Variant{ID: "v1"},
		entity.Variant{ID: "v2"},
	)
	applyDecision(&detail2, DecisionItem{TaskID: "1", VariantID: flexPtr("nope"), CustomerApproved: entity.DecisionRejected})
	if detail2.PrimaryVariants()[0].CustomerApproved != entity.DecisionRejected {
		t.Fatalf("unmatched variantId should fall back to index 0")
	}
	if detail2.PrimaryVariants()[1].CustomerApproved != "" {
		t.Fatalf("other variants must stay untouched")
	}
}

func TestApplyDecisionMalformedTreeSkipped(t *testing.T) {
	noAnswers := entity.Detail{TaskID: "1"}
	if applyDecision(&noAnswers, DecisionItem{TaskID: "1", CustomerApproved: entity.DecisionApproved}) {
		t.Fatalf("detail without answers should be skipped")
	}

	emptyVariants := makeDetail("1")
	if applyDecision(&emptyVariants, DecisionItem{TaskID: "1", CustomerApproved: entity.DecisionApproved}) {
		t.Fatalf("detail without variants should be skipped")
	}
}

func TestSumApprovedTotals(t *testing.T) {
	details := entity.DetailList{
		makeDetail("1", entity.Variant{
			ID: "v1", CustomerApproved: entity.DecisionApproved,
			Details: []entity.LineItem{{PositionAmountExVat: 10, PositionAmountIncVat: 12}},
		}),
		makeDetail("2", entity.Variant{
			ID: "v1", CustomerApproved: entity.DecisionApproved,
			Details: []entity.LineItem{{PositionAmountExVat: 5, PositionAmountIncVat: 6}},
		}),
		makeDetail("3", entity.Variant{
			ID: "v1", CustomerApproved: entity.DecisionDeferred,
			Details: []entity.LineItem{},
		}),
	}

	ex, inc := sumApprovedTotals(details)
	if ex != 15.00 {
		t.Fatalf("orderAmountExVat = %v, want 15.00", ex)
	}
	if inc != 18.00 {
		t.Fatalf("orderAmountIncVat = %v, want 18.00", inc)
	}
}

func TestSumApprovedTotalsRounding(t *testing.T) {
	details := entity.DetailList{
		makeDetail("1", entity.Variant{
			ID: "v1", CustomerApproved: entity.DecisionApproved,
			Details: []entity.LineItem{
				{PositionAmountExVat: 0.1, PositionAmountIncVat: 0.125},
				{PositionAmountExVat: 0.2, PositionAmountIncVat: 0.12},
			},
		}),
	}

	ex, inc := sumApprovedTotals(details)
	if ex != 0.30 {
		t.Fatalf("exVat = %v, want 0.30", ex)
	}
	if inc != 0.25 {
		t.Fatalf("incVat = %v, want 0.25 (half-up)", inc)
	}
}

func TestIndexDecisionsLastOneWins(t *testing.T) {
	byTask := indexDecisions([]DecisionItem{
		{TaskID: "1", CustomerApproved: entity.DecisionApproved},
		{TaskID: "1", CustomerApproved: entity.DecisionRejected},
		{TaskID: "2", CustomerApproved: entity.DecisionDeferred},
	})

	if len(byTask) != 2 {
		t.Fatalf("expected 2 indexed tasks, got %d", len(byTask))
	}
	if byTask["1"].CustomerApproved != entity.DecisionRejected {
		t.Fatalf("duplicate taskId should keep the last decision, got %q", byTask["1"].CustomerApproved)
	}
}

func TestAllTerminalBatchScoped(t *testing.T) {
	// callback 在批次里 → 未完成
	batch := indexDecisions([]DecisionItem{
		{TaskID: "1", CustomerApproved: entity.DecisionApproved},
		{TaskID: "2", CustomerApproved: entity.DecisionCallback},
	})
	if allTerminal(batch) {
		t.Fatalf("callback in batch should block completion")
	}

	// 只补交任务2 → 完成，批次外的任务1不回看
	batch2 := indexDecisions([]DecisionItem{
		{TaskID: "2", CustomerApproved: entity.DecisionRejected},
	})
	if !allTerminal(batch2) {
		t.Fatalf("all-terminal batch should complete regardless of prior submissions")
	}

	if allTerminal(nil) {
		t.Fatalf("empty batch must not complete")
	}
}

func TestRoundMoney(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{1.004, 1.0},
		{1.006, 1.01},
		{0.125, 0.13}, // 12.5 分，half-up 进位
		{10.123456, 10.12},
		{-1.5, -1.5},
	}
	for _, c := range cases {
		if got := roundMoney(c.in); got != c.want {
			t.Fatalf("roundMoney(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
