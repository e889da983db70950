package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
	"github.com/bitfantasy/dealercare/internal/dealercare/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DecisionService 客户决策回写引擎。合并提交的决策、重算订单总额、
// 幂等追加审计记录，全部在一个行锁事务内完成。
type DecisionService struct {
	orders *repository.ServiceOrderRepository
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func NewDecisionService(orders *repository.ServiceOrderRepository, logger *zap.Logger) *DecisionService {
	return &DecisionService{
		orders: orders,
		logger: logger,
		now:    defaultNow,
		newID:  defaultNewID,
	}
}

// DecisionItem 客户对单个任务的决策
type DecisionItem struct {
	TaskID           entity.FlexID  `json:"id" binding:"required"`
	VariantID        *entity.FlexID `json:"variantId"`
	CustomerApproved string         `json:"customerApproved" binding:"required,oneof=approved deferred rejected cancelled canceled callback"`
	DeferredTaskDate *string        `json:"deferredTaskDate"`
}

// DecisionResult 决策提交结果
type DecisionResult struct {
	Success           bool    `json:"success"`
	Completed         bool    `json:"completed"`
	OrderAmountExVat  float64 `json:"orderAmountExVat"`
	OrderAmountIncVat float64 `json:"orderAmountIncVat"`
}

// ApplyDecisions 按公开链接定位工单并回写一批客户决策。
// 行锁 + 单次保存，两个并发提交不会互相丢更新。
func (s *DecisionService) ApplyDecisions(ctx context.Context, publicURL string, items []DecisionItem) (*DecisionResult, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("decision batch must not be empty")
	}

	var result *DecisionResult
	err := s.orders.Transaction(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.LockByPublicURL(tx, publicURL)
		if err != nil {
			return err
		}

		byTask := indexDecisions(items)

		applied := 0
		for i := range order.Details {
			item, ok := byTask[order.Details[i].TaskID.String()]
			if !ok {
				continue
			}
			if applyDecision(&order.Details[i], item) {
				applied++
			}
		}

		exVat, incVat := sumApprovedTotals(order.Details)
		if order.ReferenceObject == nil {
			order.ReferenceObject = entity.ReferenceObject{}
		}
		order.ReferenceObject.SetOrderAmounts(exVat, incVat)

		order.RecordStatusOnce(s.newID(), entity.StatusCustomerDecisionRecorded, s.now())
		// 重复提交时历史已有该状态，RecordStatusOnce 不回写，这里单独刷新
		order.ProcessStatus = entity.StatusCustomerDecisionRecorded

		// 完成标记只看本次提交的批次，不回看历史决策
		order.Completed = allTerminal(byTask)

		if err := s.orders.SaveTx(tx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}

		s.logger.Info("customer decisions applied",
			zap.Uint("order_id", order.ID),
			zap.Int("submitted", len(items)),
			zap.Int("applied", applied),
			zap.Bool("completed", order.Completed),
			zap.Float64("amount_ex_vat", exVat),
		)

		result = &DecisionResult{
			Success:           true,
			Completed:         order.Completed,
			OrderAmountExVat:  exVat,
			OrderAmountIncVat: incVat,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// indexDecisions 建 taskId → 决策索引，重复 taskId 后者覆盖前者
func indexDecisions(items []DecisionItem) map[string]DecisionItem {
	byTask := make(map[string]DecisionItem, len(items))
	for _, item := range items {
		if item.TaskID.String() == "" {
			continue
		}
		byTask[item.TaskID.String()] = item
	}
	return byTask
}

// applyDecision 把决策落到 detail 的目标方案上。
// 决策树分支缺失时跳过（外部数据经常不全），返回是否落了。
func applyDecision(d *entity.Detail, item DecisionItem) bool {
	variants := d.PrimaryVariants()
	if len(variants) == 0 {
		return false
	}

	// variantId 按字符串匹配，没带或没匹配上退回第 0 个方案（历史兼容路径）
	target := 0
	if item.VariantID != nil {
		for i := range variants {
			if variants[i].ID.String() == item.VariantID.String() {
				target = i
				break
			}
		}
	}

	v := &variants[target]
	status := item.CustomerApproved
	v.CustomerApproved = status

	switch status {
	case entity.DecisionApproved:
		v.DeferredTaskDate = nil
	case entity.DecisionDeferred:
		// 同一任务只允许一个方案带延期日期
		for i := range variants {
			if i != target {
				variants[i].DeferredTaskDate = nil
			}
		}
		v.DeferredTaskDate = item.DeferredTaskDate
		v.ZeroAmounts()
	case entity.DecisionRejected, entity.DecisionCancelled, entity.DecisionCanceledUS:
		v.DeferredTaskDate = nil
		v.ZeroAmounts()
	}

	d.SetPrimaryVariants(variants)
	return true
}

// sumApprovedTotals 全量扫描决策树，汇总所有 approved 方案的行项目金额
func sumApprovedTotals(details entity.DetailList) (exVat, incVat float64) {
	for i := range details {
		for _, v := range details[i].PrimaryVariants() {
			if v.CustomerApproved != entity.DecisionApproved {
				continue
			}
			for _, pos := range v.Details {
				exVat += pos.PositionAmountExVat
				incVat += pos.PositionAmountIncVat
			}
		}
	}
	return roundMoney(exVat), roundMoney(incVat)
}

// roundMoney 金额四舍五入到分
func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// allTerminal 批次内的决策是否全部到达终态（callback 不算终态）
func allTerminal(byTask map[string]DecisionItem) bool {
	if len(byTask) == 0 {
		return false
	}
	for _, item := range byTask {
		if !entity.IsTerminalDecision(item.CustomerApproved) {
			return false
		}
	}
	return true
}
