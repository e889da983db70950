package entity

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRecordStatusOnceIdempotent(t *testing.T) {
	order := &ServiceOrder{}
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if !order.RecordStatusOnce("id-1", StatusQuotesCreated, at) {
		t.Fatalf("first record should append")
	}
	for i := 0; i < 5; i++ {
		if order.RecordStatusOnce("id-dup", StatusQuotesCreated, at.Add(time.Hour)) {
			t.Fatalf("repeat %d should be a no-op", i)
		}
	}

	count := 0
	for _, r := range order.ProcessStatusRecords {
		if r.Status == StatusQuotesCreated {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one quotesCreated record, got %d", count)
	}
	if order.ProcessStatus != StatusQuotesCreated {
		t.Fatalf("ProcessStatus = %q, want %q", order.ProcessStatus, StatusQuotesCreated)
	}
	if order.ProcessStatusRecords[0].ID != "id-1" {
		t.Fatalf("kept record should be the first one, got id %q", order.ProcessStatusRecords[0].ID)
	}
}

func TestRecordStatusOnceDistinctStatuses(t *testing.T) {
	order := &ServiceOrder{}
	at := time.Now()

	order.RecordStatusOnce("a", StatusSurveyCompleted, at)
	order.RecordStatusOnce("b", StatusQuotesCreated, at)
	order.RecordStatusOnce("c", StatusApprovalLinkOpened, at)

	if len(order.ProcessStatusRecords) != 3 {
		t.Fatalf("expected 3 records, got %d", len(order.ProcessStatusRecords))
	}
	if order.ProcessStatus != StatusApprovalLinkOpened {
		t.Fatalf("ProcessStatus should track the latest append, got %q", order.ProcessStatus)
	}
}

func TestMergeDefectTasksDedup(t *testing.T) {
	order := &ServiceOrder{}

	order.MergeDefectTasks(DefectList{
		{ID: "1", Title: "A"},
	})
	order.MergeDefectTasks(DefectList{
		{ID: "1", Title: "B"},
		{ID: "2", Title: "C"},
	})

	want := []Task{
		{TaskID: "1", TaskName: "A"},
		{TaskID: "2", TaskName: "C"},
	}
	if len(order.Tasks) != len(want) {
		t.Fatalf("tasks = %+v, want %+v", order.Tasks, want)
	}
	for i, w := range want {
		if order.Tasks[i] != w {
			t.Fatalf("tasks[%d] = %+v, want %+v", i, order.Tasks[i], w)
		}
	}

	// defects 整体换成最后一批
	if len(order.Defects) != 2 || order.Defects[0].Title != "B" {
		t.Fatalf("defects should be replaced wholesale, got %+v", order.Defects)
	}
}

func TestFlexIDUnmarshal(t *testing.T) {
	var d Defect
	if err := json.Unmarshal([]byte(`{"id": 42, "title": "brakes"}`), &d); err != nil {
		t.Fatalf("numeric id: %v", err)
	}
	if d.ID.String() != "42" {
		t.Fatalf("numeric id = %q, want \"42\"", d.ID)
	}

	if err := json.Unmarshal([]byte(`{"id": "abc-7", "title": "tires"}`), &d); err != nil {
		t.Fatalf("string id: %v", err)
	}
	if d.ID.String() != "abc-7" {
		t.Fatalf("string id = %q, want \"abc-7\"", d.ID)
	}

	if err := json.Unmarshal([]byte(`{"id": true}`), &d); err == nil {
		t.Fatalf("bool id should fail")
	}
}

func TestPrimaryVariantsMissingBranches(t *testing.T) {
	d := Detail{TaskID: "1"}
	if d.PrimaryVariants() != nil {
		t.Fatalf("no answers should yield nil variants")
	}

	d.Answers = []Answer{{}}
	if d.PrimaryVariants() != nil {
		t.Fatalf("no packages should yield nil variants")
	}

	// 写回空链路不炸
	d.SetPrimaryVariants([]Variant{{ID: "v1"}})
}

func TestReferenceObjectOrderID(t *testing.T) {
	if got := (ReferenceObject{"orderId": "SO-1"}).OrderID(); got != "SO-1" {
		t.Fatalf("string orderId = %q", got)
	}
	if got := (ReferenceObject{"orderId": float64(12345)}).OrderID(); got != "12345" {
		t.Fatalf("numeric orderId = %q", got)
	}
	if got := (ReferenceObject{}).OrderID(); got != "" {
		t.Fatalf("missing orderId = %q, want empty", got)
	}
	var nilRef ReferenceObject
	if got := nilRef.OrderID(); got != "" {
		t.Fatalf("nil reference = %q, want empty", got)
	}
}
