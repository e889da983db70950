package service

import (
	"testing"

	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
)

func TestFillFromDetailFullTree(t *testing.T) {
	sel := true
	date := "2026-06-01"
	detail := entity.Detail{
		TaskID: "101",
		Answers: []entity.Answer{{
			ID:     "a-1",
			Status: "answered",
			Value:  "defect confirmed",
			Packages: []entity.Package{{
				ID:           "p-1",
				Category:     "brakes",
				CurrencyCode: "EUR",
				Description:  "Front brake pads",
				Variants: []entity.Variant{{
					ID:                  "v-1",
					Description:         "OEM pads",
					CustomerApproved:    entity.DecisionDeferred,
					DeferredTaskDate:    &date,
					Selected:            &sel,
					ApprovedPriceExVat:  120.5,
					ApprovedPriceIncVat: 145.8,
					Details:             []entity.LineItem{{PositionAmountExVat: 120.5}},
				}},
			}},
		}},
	}

	item := ReviewItem{Details: []entity.LineItem{}}
	fillFromDetail(&item, &detail)

	if item.AnswerID == nil || *item.AnswerID != "a-1" {
		t.Errorf("answerId = %v", item.AnswerID)
	}
	if item.PackageCategory == nil || *item.PackageCategory != "brakes" {
		t.Errorf("packageCategory = %v", item.PackageCategory)
	}
	if item.CurrencyCode == nil || *item.CurrencyCode != "EUR" {
		t.Errorf("currencyCode = %v", item.CurrencyCode)
	}
	if item.VariantID == nil || *item.VariantID != "v-1" {
		t.Errorf("variantId = %v", item.VariantID)
	}
	if item.CustomerApproved == nil || *item.CustomerApproved != entity.DecisionDeferred {
		t.Errorf("customerApproved = %v", item.CustomerApproved)
	}
	if item.DeferredTaskDate == nil || *item.DeferredTaskDate != date {
		t.Errorf("deferredTaskDate = %v", item.DeferredTaskDate)
	}
	if item.Selected == nil || !*item.Selected {
		t.Errorf("selected = %v", item.Selected)
	}
	if item.ApprovedPriceExVat != 120.5 || item.ApprovedPriceIncVat != 145.8 {
		t.Errorf("prices = %v / %v", item.ApprovedPriceExVat, item.ApprovedPriceIncVat)
	}
	if len(item.Details) != 1 {
		t.Errorf("details len = %d", len(item.Details))
	}
}

func TestFillFromDetailStopsAtMissingPackages(t *testing.T) {
	detail := entity.Detail{
		TaskID:  "102",
		Answers: []entity.Answer{{ID: "a-2", Status: "answered"}},
	}

	item := ReviewItem{Details: []entity.LineItem{}}
	fillFromDetail(&item, &detail)

	if item.AnswerID == nil || *item.AnswerID != "a-2" {
		t.Errorf("answerId = %v", item.AnswerID)
	}
	// 套餐层缺失，之后的字段全部保持 null
	if item.PackageID != nil || item.VariantID != nil || item.CustomerApproved != nil {
		t.Errorf("missing package layer must leave deeper fields null: %+v", item)
	}
	if item.ApprovedPriceExVat != 0 {
		t.Errorf("price should stay zero, got %v", item.ApprovedPriceExVat)
	}
}

func TestFillFromDetailStopsAtMissingVariants(t *testing.T) {
	detail := entity.Detail{
		TaskID: "103",
		Answers: []entity.Answer{{
			ID:       "a-3",
			Packages: []entity.Package{{ID: "p-3", CurrencyCode: "SEK"}},
		}},
	}

	item := ReviewItem{Details: []entity.LineItem{}}
	fillFromDetail(&item, &detail)

	if item.PackageID == nil || *item.PackageID != "p-3" {
		t.Errorf("packageId = %v", item.PackageID)
	}
	if item.VariantID != nil || item.Selected != nil {
		t.Errorf("missing variant layer must leave variant fields null: %+v", item)
	}
	if len(item.Details) != 0 {
		t.Errorf("details should stay empty, got %d", len(item.Details))
	}
}

func TestOptString(t *testing.T) {
	if optString("") != nil {
		t.Error("empty string should map to nil")
	}
	if p := optString("x"); p == nil || *p != "x" {
		t.Errorf("optString(x) = %v", p)
	}
}

func TestAtoiLoose(t *testing.T) {
	if atoiLoose("123") != 123 {
		t.Error("numeric string should parse")
	}
	if atoiLoose("ext-123") != 0 {
		t.Error("non-numeric id should map to 0")
	}
}
