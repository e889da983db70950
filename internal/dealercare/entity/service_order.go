package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// 流程状态常量（外部系统约定值，非数据库枚举）
const (
	StatusSurveyCompleted          = "surveyCompleted"
	StatusQuotesCreated            = "quotesCreated"
	StatusApprovalLinkOpened       = "approvalLinkOpened"
	StatusCustomerDecisionRecorded = "customerDecisionRecorded"
)

// 客户决策状态常量
const (
	DecisionApproved   = "approved"
	DecisionDeferred   = "deferred"
	DecisionRejected   = "rejected"
	DecisionCancelled  = "cancelled"
	DecisionCanceledUS = "canceled" // 美式拼写，与 cancelled 同义
	DecisionCallback   = "callback"
)

// IsTerminalDecision 判断决策状态是否终态（callback 不算）
func IsTerminalDecision(status string) bool {
	switch status {
	case DecisionApproved, DecisionDeferred, DecisionRejected, DecisionCancelled, DecisionCanceledUS:
		return true
	}
	return false
}

// FlexID 外部系统的 id 字段，数字和字符串混用，统一按字符串处理
type FlexID string

func (f FlexID) String() string { return string(f) }

func (f *FlexID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("flex id must be string or number: %s", string(b))
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(f))
}

// ProcessStatusRecord 流程状态审计记录，只追加
type ProcessStatusRecord struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Task 任务目录项（缺陷关联的 id+名称）
type Task struct {
	TaskID   string `json:"taskId"`
	TaskName string `json:"taskName"`
}

// Defect 检测缺陷，time 为视频内时间戳（秒），0 表示无
type Defect struct {
	ID    FlexID  `json:"id"`
	Title string  `json:"title"`
	Time  float64 `json:"time,omitempty"`
}

// LineItem 报价行项目
type LineItem struct {
	ID                   FlexID  `json:"id,omitempty"`
	Description          string  `json:"description,omitempty"`
	PositionAmountExVat  float64 `json:"positionAmountExVat"`
	PositionAmountIncVat float64 `json:"positionAmountIncVat"`
}

// Variant 任务的一个可购买方案，承载客户审批状态与价格
type Variant struct {
	ID                  FlexID     `json:"id"`
	Description         string     `json:"description,omitempty"`
	CustomerApproved    string     `json:"customerApproved,omitempty"`
	DeferredTaskDate    *string    `json:"deferredTaskDate"`
	Selected            *bool      `json:"selected,omitempty"`
	ApprovedPriceExVat  float64    `json:"approvedPriceExVat"`
	ApprovedPriceIncVat float64    `json:"approvedPriceIncVat"`
	Details             []LineItem `json:"details,omitempty"`
}

// ZeroAmounts 清零方案本身和所有行项目的金额
func (v *Variant) ZeroAmounts() {
	v.ApprovedPriceExVat = 0
	v.ApprovedPriceIncVat = 0
	for i := range v.Details {
		v.Details[i].PositionAmountExVat = 0
		v.Details[i].PositionAmountIncVat = 0
	}
}

// Package 报价包
type Package struct {
	ID           FlexID    `json:"id,omitempty"`
	Category     string    `json:"category,omitempty"`
	CurrencyCode string    `json:"currencyCode,omitempty"`
	Description  string    `json:"description,omitempty"`
	Variants     []Variant `json:"variants,omitempty"`
}

// Answer 调查问卷答案
type Answer struct {
	ID       FlexID      `json:"id,omitempty"`
	Custom   interface{} `json:"custom,omitempty"`
	Status   string      `json:"status,omitempty"`
	Value    string      `json:"value,omitempty"`
	Packages []Package   `json:"packages,omitempty"`
}

// Detail 一个任务的定价决策记录。外部数据经常缺分支，
// 访问统一走 PrimaryVariants，缺了就返回 nil。
type Detail struct {
	TaskID  FlexID   `json:"taskId"`
	Answers []Answer `json:"answers,omitempty"`
}

// PrimaryVariants 返回 answers[0].packages[0].variants，链路缺失返回 nil
func (d *Detail) PrimaryVariants() []Variant {
	if len(d.Answers) == 0 || len(d.Answers[0].Packages) == 0 {
		return nil
	}
	return d.Answers[0].Packages[0].Variants
}

// SetPrimaryVariants 写回 answers[0].packages[0].variants
func (d *Detail) SetPrimaryVariants(variants []Variant) {
	if len(d.Answers) == 0 || len(d.Answers[0].Packages) == 0 {
		return
	}
	d.Answers[0].Packages[0].Variants = variants
}

// HasAnswers 是否带有非空 answers
func (d *Detail) HasAnswers() bool {
	return len(d.Answers) > 0
}

// ReferenceObject 外部系统透传对象，引擎把计算出的订单总额写回其中
type ReferenceObject map[string]interface{}

// OrderID 外部订单号
func (r ReferenceObject) OrderID() string {
	if r == nil {
		return ""
	}
	if v, ok := r["orderId"].(string); ok {
		return v
	}
	if v, ok := r["orderId"].(float64); ok {
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

// SetOrderAmounts 回写审批后的订单总额
func (r ReferenceObject) SetOrderAmounts(exVat, incVat float64) {
	r["orderAmountExVat"] = exVat
	r["orderAmountIncVat"] = incVat
}

func (r ReferenceObject) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

func (r *ReferenceObject) Scan(value interface{}) error {
	return scanJSONB(value, r, "ReferenceObject")
}

// TaskList tasks 列（jsonb）
type TaskList []Task

func (l TaskList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *TaskList) Scan(value interface{}) error {
	return scanJSONB(value, l, "TaskList")
}

// DefectList defects 列（jsonb）
type DefectList []Defect

func (l DefectList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *DefectList) Scan(value interface{}) error {
	return scanJSONB(value, l, "DefectList")
}

// DetailList details 列（jsonb）
type DetailList []Detail

func (l DetailList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *DetailList) Scan(value interface{}) error {
	return scanJSONB(value, l, "DetailList")
}

// StatusRecordList processStatusRecords 列（jsonb）
type StatusRecordList []ProcessStatusRecord

func (l StatusRecordList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *StatusRecordList) Scan(value interface{}) error {
	return scanJSONB(value, l, "StatusRecordList")
}

func scanJSONB(value interface{}, dst interface{}, typ string) error {
	if value == nil {
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to scan %s: %v", typ, value)
	}
	return json.Unmarshal(bytes, dst)
}

// ServiceOrder 服务工单聚合根。一次车辆检测/报价审批流程的全部状态。
type ServiceOrder struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	OrderID   string `json:"order_id" gorm:"size:100;uniqueIndex;not null"`
	PublicURL string `json:"public_url" gorm:"size:32;uniqueIndex;not null"`

	ProcessStatus string `json:"processStatus" gorm:"size:50"`

	// 决策树及审计日志
	Tasks                TaskList         `json:"tasks" gorm:"type:jsonb"`
	Defects              DefectList       `json:"defects" gorm:"type:jsonb"`
	Details              DetailList       `json:"details" gorm:"type:jsonb"`
	ProcessStatusRecords StatusRecordList `json:"processStatusRecords" gorm:"type:jsonb"`
	ReferenceObject      ReferenceObject  `json:"referenceObject" gorm:"type:jsonb"`

	// 外部系统透传对象，原样存取
	Client              datatypes.JSON `json:"client,omitempty" gorm:"type:jsonb"`
	CarDriver           datatypes.JSON `json:"carDriver,omitempty" gorm:"type:jsonb"`
	CarOwner            datatypes.JSON `json:"carOwner,omitempty" gorm:"type:jsonb"`
	SurveyObject        datatypes.JSON `json:"surveyObject,omitempty" gorm:"type:jsonb"`
	Requester           datatypes.JSON `json:"requester,omitempty" gorm:"type:jsonb"`
	ResponsibleEmployee datatypes.JSON `json:"responsibleEmployee,omitempty" gorm:"type:jsonb"`

	// 外部系统透传标量
	SiteID              string     `json:"siteId,omitempty" gorm:"column:site_id;size:100"`
	LocationCode        string     `json:"locationCode,omitempty" gorm:"size:100"`
	ReviewCategory      string     `json:"reviewCategory,omitempty" gorm:"size:100"`
	ChangeTimeStamp     *time.Time `json:"changeTimeStamp,omitempty"`
	Closed              bool       `json:"closed"`
	Completed           bool       `json:"completed"`
	CompletionTimeStamp *time.Time `json:"completionTimeStamp,omitempty"`
	CreationTimestamp   *time.Time `json:"creationTimestamp,omitempty"`
	DealerCode          string     `json:"dealerCode,omitempty" gorm:"size:100"`
	HasSurveyRefs       bool       `json:"hasSurveyRefs"`
	ReviewID            string     `json:"reviewId,omitempty" gorm:"size:100"`
	VisitStartTime      *time.Time `json:"visitStartTime,omitempty"`
	ReviewType          string     `json:"reviewType,omitempty" gorm:"size:100"`
	SystemID            string     `json:"systemId,omitempty" gorm:"size:100"`
	ReviewTemplateID    string     `json:"reviewTemplateId,omitempty" gorm:"size:100"`
	ReviewName          string     `json:"reviewName,omitempty" gorm:"size:200"`
	TimeSpent           int        `json:"timeSpent"`

	// 首次提交缺陷的技师认领工单
	MechanicID *uint `json:"mechanic_id" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	Mechanic *User        `json:"mechanic,omitempty" gorm:"foreignKey:MechanicID"`
	Video    *Video       `json:"video,omitempty" gorm:"foreignKey:ServiceOrderID"`
	Review   *OrderReview `json:"review,omitempty" gorm:"foreignKey:ServiceOrderID"`
}

func (ServiceOrder) TableName() string {
	return "service_orders"
}

// HasStatusRecord 审计日志中是否已有该状态
func (o *ServiceOrder) HasStatusRecord(status string) bool {
	for _, r := range o.ProcessStatusRecords {
		if r.Status == status {
			return true
		}
	}
	return false
}

// RecordStatusOnce 幂等追加状态记录。已存在时不动，返回 false；
// 否则追加并同步 ProcessStatus，返回 true。调用方负责持久化。
func (o *ServiceOrder) RecordStatusOnce(id, status string, at time.Time) bool {
	if o.HasStatusRecord(status) {
		return false
	}
	o.ProcessStatusRecords = append(o.ProcessStatusRecords, ProcessStatusRecord{
		ID:        id,
		Status:    status,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	})
	o.ProcessStatus = status
	return true
}

// MergeDefectTasks 合并缺陷批次：tasks 先存量后增量按 taskId 去重（保留先出现的），
// defects 整体替换为本次批次。
func (o *ServiceOrder) MergeDefectTasks(incoming DefectList) {
	merged := make(TaskList, 0, len(o.Tasks)+len(incoming))
	seen := make(map[string]struct{}, len(o.Tasks)+len(incoming))
	for _, t := range o.Tasks {
		if _, ok := seen[t.TaskID]; ok {
			continue
		}
		seen[t.TaskID] = struct{}{}
		merged = append(merged, t)
	}
	for _, d := range incoming {
		id := d.ID.String()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, Task{TaskID: id, TaskName: d.Title})
	}
	o.Tasks = merged
	o.Defects = incoming
}

// FindDetail 按字符串化 taskId 查找 detail
func (o *ServiceOrder) FindDetail(taskID string) *Detail {
	for i := range o.Details {
		if o.Details[i].TaskID.String() == taskID {
			return &o.Details[i]
		}
	}
	return nil
}
