package service

import (
	"context"
	"strconv"

	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
	"github.com/bitfantasy/dealercare/internal/dealercare/repository"
)

// ReviewService 客户审批页面：缺陷条目视图的拼装与审批体验反馈
type ReviewService struct {
	reviews *repository.OrderReviewRepository
	frames  *FrameService
}

func NewReviewService(reviews *repository.OrderReviewRepository, frames *FrameService) *ReviewService {
	return &ReviewService{reviews: reviews, frames: frames}
}

// ReviewItem 公开页面的单条缺陷视图：缺陷、回答、套餐、方案四层拍平。
// 字段名沿用外部系统的命名约定。
type ReviewItem struct {
	ID    int     `json:"id"`
	Time  int     `json:"time"`
	Title *string `json:"title"`
	Image *string `json:"image"`

	AnswerID     *string     `json:"answerId"`
	AnswerCustom interface{} `json:"answerCustom"`
	AnswerStatus *string     `json:"answerStatus"`
	AnswerValue  *string     `json:"answerValue"`

	PackageID          *string `json:"packageId"`
	PackageCategory    *string `json:"packageCategory"`
	CurrencyCode       *string `json:"currencyCode"`
	PackageDescription *string `json:"packageDescription"`

	VariantID           *string `json:"variantId"`
	VariantDescription  *string `json:"variantDescription"`
	CustomerApproved    *string `json:"customerApproved"`
	DeferredTaskDate    *string `json:"deferredTaskDate"`
	Selected            *bool   `json:"selected"`
	ApprovedPriceExVat  float64 `json:"approvedPriceExVat"`
	ApprovedPriceIncVat float64 `json:"approvedPriceIncVat"`

	Details []entity.LineItem `json:"details"`
}

// BuildReviewItems 把工单的缺陷列表拼成公开页面条目。
// 每个缺陷都出条目，报价树断链的字段留 null，绝不悄悄丢缺陷。
func (s *ReviewService) BuildReviewItems(ctx context.Context, order *entity.ServiceOrder) ([]ReviewItem, error) {
	detailsByTask := make(map[string]*entity.Detail, len(order.Details))
	for i := range order.Details {
		detail := &order.Details[i]
		if !detail.HasAnswers() {
			continue
		}
		detailsByTask[detail.TaskID.String()] = detail
	}

	frameURLs, err := s.frames.MapByTask(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	items := make([]ReviewItem, 0, len(order.Defects))
	for _, defect := range order.Defects {
		taskID := defect.ID.String()

		item := ReviewItem{
			ID:      atoiLoose(taskID),
			Time:    int(defect.Time),
			Title:   optString(defect.Title),
			Details: []entity.LineItem{},
		}
		if url, ok := frameURLs[taskID]; ok {
			item.Image = &url
		}

		if detail, ok := detailsByTask[taskID]; ok {
			fillFromDetail(&item, detail)
		}
		items = append(items, item)
	}
	return items, nil
}

// fillFromDetail 首回答→首套餐→首方案，缺哪层停在哪层
func fillFromDetail(item *ReviewItem, detail *entity.Detail) {
	answer := &detail.Answers[0]
	item.AnswerID = optString(answer.ID.String())
	item.AnswerCustom = answer.Custom
	item.AnswerStatus = optString(answer.Status)
	item.AnswerValue = optString(answer.Value)

	if len(answer.Packages) == 0 {
		return
	}
	pkg := &answer.Packages[0]
	item.PackageID = optString(pkg.ID.String())
	item.PackageCategory = optString(pkg.Category)
	item.CurrencyCode = optString(pkg.CurrencyCode)
	item.PackageDescription = optString(pkg.Description)

	if len(pkg.Variants) == 0 {
		return
	}
	variant := &pkg.Variants[0]
	item.VariantID = optString(variant.ID.String())
	item.VariantDescription = optString(variant.Description)
	item.CustomerApproved = optString(variant.CustomerApproved)
	item.DeferredTaskDate = variant.DeferredTaskDate
	item.Selected = variant.Selected
	item.ApprovedPriceExVat = variant.ApprovedPriceExVat
	item.ApprovedPriceIncVat = variant.ApprovedPriceIncVat
	if variant.Details != nil {
		item.Details = variant.Details
	}
}

// FeedbackInput 审批体验反馈，评分 1..5
type FeedbackInput struct {
	InfoUsefulness int    `json:"info_usefulness" binding:"required,min=1,max=5"`
	Usability      int    `json:"usability" binding:"required,min=1,max=5"`
	VideoContent   int    `json:"video_content" binding:"required,min=1,max=5"`
	VideoImage     int    `json:"video_image" binding:"required,min=1,max=5"`
	VideoSound     int    `json:"video_sound" binding:"required,min=1,max=5"`
	VideoDuration  int    `json:"video_duration" binding:"required,min=1,max=5"`
	Comment        string `json:"comment" binding:"max=2000"`
}

// SubmitFeedback 一单一条反馈，重复提交覆盖之前的
func (s *ReviewService) SubmitFeedback(ctx context.Context, orderID uint, input FeedbackInput) (*entity.OrderReview, error) {
	review := &entity.OrderReview{
		ServiceOrderID: orderID,
		InfoUsefulness: input.InfoUsefulness,
		Usability:      input.Usability,
		VideoContent:   input.VideoContent,
		VideoImage:     input.VideoImage,
		VideoSound:     input.VideoSound,
		VideoDuration:  input.VideoDuration,
		Comment:        input.Comment,
	}
	if err := s.reviews.Upsert(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func atoiLoose(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
