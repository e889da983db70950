package handler

import (
	"net/http"
	"testing"

	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
	"github.com/bitfantasy/dealercare/internal/dealercare/testutil"
	"gorm.io/gorm"
)

const testPublicURL = "aB3xK9mQ7rT2wY5zL01"

// seedReviewOrder creates an order with two quoted defects and one without a quote
func seedReviewOrder(t *testing.T, db *gorm.DB) *entity.ServiceOrder {
	t.Helper()
	order := &entity.ServiceOrder{
		OrderID:         "SO-3001",
		PublicURL:       testPublicURL,
		ReferenceObject: entity.ReferenceObject{"orderId": "SO-3001"},
		ProcessStatus:   entity.StatusQuotesCreated,
		ProcessStatusRecords: entity.StatusRecordList{
			{ID: "rec-1", Status: entity.StatusSurveyCompleted, Timestamp: "2026-08-01T10:00:00Z"},
			{ID: "rec-2", Status: entity.StatusQuotesCreated, Timestamp: "2026-08-01T11:00:00Z"},
		},
		Tasks: entity.TaskList{
			{TaskID: "1", TaskName: "Front brake pads"},
			{TaskID: "2", TaskName: "Wiper blades"},
			{TaskID: "3", TaskName: "Cabin filter"},
		},
		Defects: entity.DefectList{
			{ID: "1", Title: "Front brake pads", Time: 12},
			{ID: "2", Title: "Wiper blades", Time: 47},
			{ID: "3", Title: "Cabin filter"},
		},
		Details: entity.DetailList{
			{
				TaskID: "1",
				Answers: []entity.Answer{{
					ID:     "a-1",
					Status: "answered",
					Packages: []entity.Package{{
						ID:           "p-1",
						CurrencyCode: "EUR",
						Variants: []entity.Variant{{
							ID:                  "v-1",
							Description:         "Replace front pads",
							ApprovedPriceExVat:  100,
							ApprovedPriceIncVat: 125,
							Details: []entity.LineItem{
								{PositionAmountExVat: 100, PositionAmountIncVat: 125},
							},
						}},
					}},
				}},
			},
			{
				TaskID: "2",
				Answers: []entity.Answer{{
					ID:     "a-2",
					Status: "answered",
					Packages: []entity.Package{{
						ID:           "p-2",
						CurrencyCode: "EUR",
						Variants: []entity.Variant{{
							ID:                  "v-2",
							Description:         "Replace wiper blades",
							ApprovedPriceExVat:  40.5,
							ApprovedPriceIncVat: 50.63,
							Details: []entity.LineItem{
								{PositionAmountExVat: 40.5, PositionAmountIncVat: 50.63},
							},
						}},
					}},
				}},
			},
		},
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed review order: %v", err)
	}
	return order
}

func TestPublicShowBuildsItems(t *testing.T) {
	router, db, _ := setupAPITest(t)
	seedReviewOrder(t, db)

	w := testutil.DoRequest(router, "GET", "/services/"+testPublicURL+"/show", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	if len(items) != 3 {
		t.Fatalf("Expected 3 items (unquoted defect included), got %d", len(items))
	}

	first := items[0].(map[string]interface{})
	if first["currencyCode"] != "EUR" {
		t.Errorf("Expected currencyCode EUR, got %v", first["currencyCode"])
	}
	if first["time"].(float64) != 12 {
		t.Errorf("Expected time 12, got %v", first["time"])
	}

	// Defect without a quote still shows, with the quote fields null
	third := items[2].(map[string]interface{})
	if third["title"] != "Cabin filter" {
		t.Errorf("Expected third item title Cabin filter, got %v", third["title"])
	}
	if third["packageId"] != nil || third["variantId"] != nil {
		t.Errorf("Expected null quote fields for unquoted defect, got %v / %v",
			third["packageId"], third["variantId"])
	}

	if data["service"] == nil {
		t.Error("Expected service payload in response")
	}
}

func TestPublicShowRecordsLinkOpenedOnce(t *testing.T) {
	router, db, _ := setupAPITest(t)
	seedReviewOrder(t, db)

	testutil.DoRequest(router, "GET", "/services/"+testPublicURL+"/show", nil, "")
	testutil.DoRequest(router, "GET", "/services/"+testPublicURL+"/show", nil, "")

	var order entity.ServiceOrder
	db.Where("public_url = ?", testPublicURL).First(&order)

	opened := 0
	for _, rec := range order.ProcessStatusRecords {
		if rec.Status == entity.StatusApprovalLinkOpened {
			opened++
		}
	}
	if opened != 1 {
		t.Errorf("Expected approvalLinkOpened recorded exactly once, got %d", opened)
	}
}

func TestPublicShowUnknownURL(t *testing.T) {
	router, _, _ := setupAPITest(t)

	w := testutil.DoRequest(router, "GET", "/services/doesnotexist1234567/show", nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitDecisionsApprovedTotals(t *testing.T) {
	router, db, _ := setupAPITest(t)
	seedReviewOrder(t, db)

	body := map[string]interface{}{
		"items": []map[string]interface{}{
			{"id": "1", "customerApproved": "approved"},
			{"id": "2", "customerApproved": "approved"},
		},
	}
	w := testutil.DoRequest(router, "POST", "/services/"+testPublicURL+"/decisions", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["success"] != true {
		t.Error("Expected success true")
	}
	if data["completed"] != true {
		t.Error("Expected completed true for all-terminal batch")
	}
	if data["orderAmountExVat"].(float64) != 140.5 {
		t.Errorf("Expected orderAmountExVat 140.5, got %v", data["orderAmountExVat"])
	}
	if data["orderAmountIncVat"].(float64) != 175.63 {
		t.Errorf("Expected orderAmountIncVat 175.63, got %v", data["orderAmountIncVat"])
	}

	var order entity.ServiceOrder
	db.Where("public_url = ?", testPublicURL).First(&order)
	if order.ProcessStatus != entity.StatusCustomerDecisionRecorded {
		t.Errorf("Expected customerDecisionRecorded, got %q", order.ProcessStatus)
	}
	if !order.Completed {
		t.Error("Expected order marked completed")
	}
	if order.ReferenceObject["orderAmountExVat"].(float64) != 140.5 {
		t.Errorf("Expected totals written back, got %v", order.ReferenceObject["orderAmountExVat"])
	}
}

func TestSubmitDecisionsDeferredAndCallback(t *testing.T) {
	router, db, _ := setupAPITest(t)
	seedReviewOrder(t, db)

	body := map[string]interface{}{
		"items": []map[string]interface{}{
			{"id": "1", "customerApproved": "deferred", "deferredTaskDate": "2026-09-15"},
			{"id": "2", "customerApproved": "callback"},
		},
	}
	w := testutil.DoRequest(router, "POST", "/services/"+testPublicURL+"/decisions", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["completed"] != false {
		t.Error("Expected completed false when batch has a callback")
	}
	if data["orderAmountExVat"].(float64) != 0 {
		t.Errorf("Expected zero totals without approvals, got %v", data["orderAmountExVat"])
	}

	var order entity.ServiceOrder
	db.Where("public_url = ?", testPublicURL).First(&order)

	variant := order.Details[0].PrimaryVariants()[0]
	if variant.CustomerApproved != entity.DecisionDeferred {
		t.Errorf("Expected deferred, got %q", variant.CustomerApproved)
	}
	if variant.DeferredTaskDate == nil || *variant.DeferredTaskDate != "2026-09-15" {
		t.Errorf("Expected deferred date set, got %v", variant.DeferredTaskDate)
	}
	if variant.ApprovedPriceExVat != 0 || variant.Details[0].PositionAmountExVat != 0 {
		t.Error("Expected deferred pricing zeroed")
	}
}

func TestSubmitDecisionsResubmissionKeepsStatus(t *testing.T) {
	router, db, _ := setupAPITest(t)
	seedReviewOrder(t, db)

	body := map[string]interface{}{
		"items": []map[string]interface{}{
			{"id": "1", "customerApproved": "approved"},
		},
	}
	for i := 0; i < 2; i++ {
		w := testutil.DoRequest(router, "POST", "/services/"+testPublicURL+"/decisions", body, "")
		if w.Code != http.StatusOK {
			t.Fatalf("Submission %d: expected 200, got %d: %s", i+1, w.Code, w.Body.String())
		}
	}

	var order entity.ServiceOrder
	db.Where("public_url = ?", testPublicURL).First(&order)
	if order.ProcessStatus != entity.StatusCustomerDecisionRecorded {
		t.Errorf("Expected customerDecisionRecorded after resubmission, got %q", order.ProcessStatus)
	}
	recorded := 0
	for _, rec := range order.ProcessStatusRecords {
		if rec.Status == entity.StatusCustomerDecisionRecorded {
			recorded++
		}
	}
	if recorded != 1 {
		t.Errorf("Expected one customerDecisionRecorded history record, got %d", recorded)
	}
}

func TestSubmitFeedbackUpserts(t *testing.T) {
	router, db, _ := setupAPITest(t)
	order := seedReviewOrder(t, db)

	feedback := map[string]interface{}{
		"info_usefulness": 5,
		"usability":       4,
		"video_content":   5,
		"video_image":     4,
		"video_sound":     3,
		"video_duration":  4,
		"comment":         "Clear walkthrough of the defects",
	}
	w := testutil.DoRequest(router, "POST", "/services/"+testPublicURL+"/review", feedback, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	feedback["comment"] = "Updated after second viewing"
	w = testutil.DoRequest(router, "POST", "/services/"+testPublicURL+"/review", feedback, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on resubmit, got %d: %s", w.Code, w.Body.String())
	}

	var reviews []entity.OrderReview
	db.Where("service_order_id = ?", order.ID).Find(&reviews)
	if len(reviews) != 1 {
		t.Fatalf("Expected single review row, got %d", len(reviews))
	}
	if reviews[0].Comment != "Updated after second viewing" {
		t.Errorf("Expected comment overwritten, got %q", reviews[0].Comment)
	}
}

func TestSubmitFeedbackRejectsBadRating(t *testing.T) {
	router, db, _ := setupAPITest(t)
	seedReviewOrder(t, db)

	feedback := map[string]interface{}{
		"info_usefulness": 6,
		"usability":       4,
		"video_content":   5,
		"video_image":     4,
		"video_sound":     3,
		"video_duration":  4,
	}
	w := testutil.DoRequest(router, "POST", "/services/"+testPublicURL+"/review", feedback, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for rating out of range, got %d: %s", w.Code, w.Body.String())
	}
}
