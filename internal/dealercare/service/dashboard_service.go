package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
	"github.com/bitfantasy/dealercare/internal/dealercare/repository"
	"github.com/redis/go-redis/v9"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	dashboardCacheKey = "dealercare:dashboard:stats"
	dashboardCacheTTL = 30 * time.Second
)

// DashboardService 后台首页统计与工单导出
type DashboardService struct {
	orders *repository.ServiceOrderRepository
	rdb    *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewDashboardService(orders *repository.ServiceOrderRepository, rdb *redis.Client, logger *zap.Logger) *DashboardService {
	return &DashboardService{
		orders: orders,
		rdb:    rdb,
		logger: logger,
		now:    defaultNow,
	}
}

// StatusCount 按末次流程状态的工单数
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// DashboardStats 首页统计卡片
type DashboardStats struct {
	Total           int64         `json:"total"`
	WithHistory     int64         `json:"with_history"`
	WithoutHistory  int64         `json:"without_history"`
	Last24h         int64         `json:"last_24h"`
	LatestCreatedAt *time.Time    `json:"latest_created_at"`
	StatusCounts    []StatusCount `json:"status_counts"`
}

// Stats 统计数据，redis缓存30秒
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, dashboardCacheKey).Result(); err == nil && cached != "" {
			var stats DashboardStats
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				return &stats, nil
			}
		}
	}

	stats, err := s.computeStats(ctx)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if data, err := json.Marshal(stats); err == nil {
			s.rdb.Set(ctx, dashboardCacheKey, data, dashboardCacheTTL)
		}
	}
	return stats, nil
}

func (s *DashboardService) computeStats(ctx context.Context) (*DashboardStats, error) {
	total, err := s.orders.Count(ctx)
	if err != nil {
		return nil, err
	}
	last24h, err := s.orders.CountCreatedSince(ctx, s.now().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	latest, err := s.orders.LatestCreatedAt(ctx)
	if err != nil {
		return nil, err
	}
	histories, err := s.orders.ListStatusHistories(ctx)
	if err != nil {
		return nil, err
	}

	var withHistory int64
	counts := map[string]int64{}
	for _, history := range histories {
		if len(history) == 0 {
			continue
		}
		withHistory++
		last := strings.ToLower(history[len(history)-1].Status)
		if last != "" {
			counts[last]++
		}
	}

	statusCounts := make([]StatusCount, 0, len(counts))
	for status, count := range counts {
		statusCounts = append(statusCounts, StatusCount{Status: status, Count: count})
	}
	sort.Slice(statusCounts, func(i, j int) bool {
		if statusCounts[i].Count != statusCounts[j].Count {
			return statusCounts[i].Count > statusCounts[j].Count
		}
		return statusCounts[i].Status < statusCounts[j].Status
	})

	without := total - withHistory
	if without < 0 {
		without = 0
	}

	return &DashboardStats{
		Total:           total,
		WithHistory:     withHistory,
		WithoutHistory:  without,
		Last24h:         last24h,
		LatestCreatedAt: latest,
		StatusCounts:    statusCounts,
	}, nil
}

// ExportOrders 导出全部工单为xlsx
func (s *DashboardService) ExportOrders(ctx context.Context) (*excelize.File, error) {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := "Orders"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Order ID", "Public URL", "Status", "Dealer Code",
		"Completed", "Amount Ex VAT", "Amount Inc VAT", "Defects", "Created At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, order := range orders {
		exVat, incVat := orderAmounts(&order)
		values := []interface{}{
			order.ID,
			order.OrderID,
			order.PublicURL,
			order.ProcessStatus,
			order.DealerCode,
			order.Completed,
			exVat,
			incVat,
			len(order.Defects),
			order.CreatedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	s.logger.Info("orders exported", zap.Int("count", len(orders)))
	return f, nil
}

func orderAmounts(order *entity.ServiceOrder) (float64, float64) {
	var ex, inc float64
	if order.ReferenceObject != nil {
		ex = floatField(order.ReferenceObject, "orderAmountExVat")
		inc = floatField(order.ReferenceObject, "orderAmountIncVat")
	}
	return ex, inc
}

func floatField(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		var f float64
		fmt.Sscanf(v, "%f", &f)
		return f
	}
	return 0
}
