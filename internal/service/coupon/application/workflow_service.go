package application

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bazaar/internal/metrics"
	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/coupon/domain"
	"bazaar/internal/service/coupon/domain/port"
)

// WorkflowService 承载优惠券变更的审批流程:
// 卖家提交 CREATE/UPDATE/DELETE 提案, 管理员裁决,
// 审批通过时在同一个事务里把提案效果落到优惠券表。
// PENDING -> {APPROVED, REJECTED}, 终态不可逆。
type WorkflowService struct {
	store  domain.Store
	shops  port.ShopOwnership
	events port.EventPublisher
	tracer trace.Tracer
	now    func() time.Time
}

// NewWorkflowService 创建审批流程服务。events 可为 nil。
func NewWorkflowService(store domain.Store, shops port.ShopOwnership, events port.EventPublisher, tracer trace.Tracer) *WorkflowService {
	return &WorkflowService{
		store:  store,
		shops:  shops,
		events: events,
		tracer: tracer,
		now:    time.Now,
	}
}

func (s *WorkflowService) checkOwnership(ctx context.Context, sellerID, shopID int64) error {
	owns, err := s.shops.OwnsShop(ctx, sellerID, shopID)
	if err != nil {
		return fmt.Errorf("ownership lookup failed: %w", err)
	}
	if !owns {
		return fmt.Errorf("%w: seller %d, shop %d", domain.ErrNotOwner, sellerID, shopID)
	}
	return nil
}

// SubmitCreate 受理新建优惠券的提案。只创建 PENDING 审批单，不触碰优惠券表。
func (s *WorkflowService) SubmitCreate(ctx context.Context, sellerID, shopID int64, draft domain.CouponDraft) (*domain.CouponApplication, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.SubmitCreate")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("seller.id", sellerID),
		attribute.Int64("shop.id", shopID),
	)

	if err := s.checkOwnership(ctx, sellerID, shopID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := domain.ValidateCreateDraft(draft); err != nil {
		span.RecordError(err)
		return nil, err
	}

	// 提交时先做一次重复预检, 尽早打回; 审批时还会复核
	dup, err := s.store.Coupons().ExistsActiveDuplicate(ctx, shopID, *draft.Code, *draft.Name, 0, s.now())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if dup.CodeExists || dup.NameExists {
		return nil, fmt.Errorf("%w: code=%v name=%v", domain.ErrDuplicate, dup.CodeExists, dup.NameExists)
	}

	app := domain.NewApplication(domain.ApplicationTypeCreate, sellerID, shopID, 0, draft)
	if err := s.store.Applications().Create(ctx, app); err != nil {
		span.RecordError(err)
		return nil, err
	}
	logger.Ctx(ctx).Printf("Seller %d submitted CREATE application %d for shop %d", sellerID, app.ID, shopID)
	return app, nil
}

// SubmitUpdate 受理修改优惠券的提案。草稿里只携带要变更的增量字段。
func (s *WorkflowService) SubmitUpdate(ctx context.Context, sellerID, targetCouponID int64, draft domain.CouponDraft) (*domain.CouponApplication, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.SubmitUpdate")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("seller.id", sellerID),
		attribute.Int64("coupon.id", targetCouponID),
	)

	target, err := s.store.Coupons().FindByID(ctx, targetCouponID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.checkOwnership(ctx, sellerID, target.ShopID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := domain.ValidateUpdateDraft(draft, target); err != nil {
		span.RecordError(err)
		return nil, err
	}

	app := domain.NewApplication(domain.ApplicationTypeUpdate, sellerID, target.ShopID, targetCouponID, draft)
	if err := s.store.Applications().Create(ctx, app); err != nil {
		span.RecordError(err)
		return nil, err
	}
	logger.Ctx(ctx).Printf("Seller %d submitted UPDATE application %d targeting coupon %d", sellerID, app.ID, targetCouponID)
	return app, nil
}

// SubmitDelete 受理删除优惠券的提案。
func (s *WorkflowService) SubmitDelete(ctx context.Context, sellerID, targetCouponID int64) (*domain.CouponApplication, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.SubmitDelete")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("seller.id", sellerID),
		attribute.Int64("coupon.id", targetCouponID),
	)

	target, err := s.store.Coupons().FindByID(ctx, targetCouponID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.checkOwnership(ctx, sellerID, target.ShopID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	app := domain.NewApplication(domain.ApplicationTypeDelete, sellerID, target.ShopID, targetCouponID, domain.CouponDraft{})
	if err := s.store.Applications().Create(ctx, app); err != nil {
		span.RecordError(err)
		return nil, err
	}
	logger.Ctx(ctx).Printf("Seller %d submitted DELETE application %d targeting coupon %d", sellerID, app.ID, targetCouponID)
	return app, nil
}

// CheckDuplicate 查询店铺内是否已有同码/同名的未过期优惠券。
func (s *WorkflowService) CheckDuplicate(ctx context.Context, shopID int64, code, name string) (domain.DuplicateCheck, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.CheckDuplicate")
	defer span.End()
	return s.store.Coupons().ExistsActiveDuplicate(ctx, shopID, code, name, 0, s.now())
}

// ListPending 返回所有等待裁决的审批单, 按提交时间排序。
func (s *WorkflowService) ListPending(ctx context.Context) ([]*domain.CouponApplication, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.ListPending")
	defer span.End()
	return s.store.Applications().ListPending(ctx)
}

// Approve 裁决通过一张审批单, 并把提案效果原子地落到优惠券表。
// 整个方法体是一个数据库事务: 任何一步失败都整体回滚,
// 审批单保持 PENDING。状态流转本身是 WHERE status='PENDING'
// 的条件更新, 两个并发 Approve 至多一个成功。
func (s *WorkflowService) Approve(ctx context.Context, applicationID, adminID int64) (*domain.CouponApplication, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.Approve")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("application.id", applicationID),
		attribute.Int64("admin.id", adminID),
	)

	app, err := s.store.Applications().FindByID(ctx, applicationID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if app.Status != domain.ApplicationStatusPending {
		return nil, fmt.Errorf("%w: application %d is %s", domain.ErrInvalidState, app.ID, app.Status)
	}

	err = s.store.InTx(ctx, func(tx domain.Store) error {
		switch app.Type {
		case domain.ApplicationTypeCreate:
			return s.approveCreate(ctx, tx, app)
		case domain.ApplicationTypeUpdate:
			return s.approveUpdate(ctx, tx, app)
		case domain.ApplicationTypeDelete:
			return s.approveDelete(ctx, tx, app)
		default:
			return fmt.Errorf("%w: unknown application type %q", domain.ErrValidation, app.Type)
		}
	})
	if err != nil {
		span.RecordError(err)
		metrics.ApplicationTransitions.WithLabelValues(string(app.Type), "conflict").Inc()
		return nil, err
	}

	app.Status = domain.ApplicationStatusApproved
	metrics.ApplicationTransitions.WithLabelValues(string(app.Type), "approved").Inc()
	logger.Ctx(ctx).Printf("Admin %d approved application %d (%s)", adminID, app.ID, app.Type)
	s.publishResolution(ctx, app, adminID)
	return app, nil
}

// approveCreate 在审批时刻复核重复。提交之后、裁决之前,
// 其他审批单可能已经落地, 提交时的校验结果不可信。
func (s *WorkflowService) approveCreate(ctx context.Context, tx domain.Store, app *domain.CouponApplication) error {
	draft := app.Draft
	dup, err := tx.Coupons().ExistsActiveDuplicate(ctx, app.ShopID, *draft.Code, *draft.Name, 0, s.now())
	if err != nil {
		return err
	}
	if dup.CodeExists || dup.NameExists {
		return fmt.Errorf("%w: code=%v name=%v", domain.ErrDuplicate, dup.CodeExists, dup.NameExists)
	}

	coupon := &domain.Coupon{ShopID: app.ShopID}
	draft.ApplyTo(coupon)
	if err := tx.Coupons().Create(ctx, coupon); err != nil {
		return err
	}

	ok, err := tx.Applications().Transition(ctx, app.ID, domain.ApplicationStatusPending, domain.ApplicationStatusApproved, "", coupon.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: application %d resolved concurrently", domain.ErrInvalidState, app.ID)
	}
	app.ResultingCouponID = coupon.ID
	return nil
}

func (s *WorkflowService) approveUpdate(ctx context.Context, tx domain.Store, app *domain.CouponApplication) error {
	// 目标可能在提交后被并发删除
	target, err := tx.Coupons().FindByID(ctx, app.TargetCouponID)
	if err != nil {
		return err
	}

	draft := app.Draft
	code := ""
	name := ""
	if draft.Code != nil {
		code = *draft.Code
	}
	if draft.Name != nil {
		name = *draft.Name
	}
	// 复核时把目标自己排除掉, 改回原值不算撞车
	dup, err := tx.Coupons().ExistsActiveDuplicate(ctx, app.ShopID, code, name, target.ID, s.now())
	if err != nil {
		return err
	}
	if dup.CodeExists || dup.NameExists {
		return fmt.Errorf("%w: code=%v name=%v", domain.ErrDuplicate, dup.CodeExists, dup.NameExists)
	}

	draft.ApplyTo(target)
	if err := domain.ValidateDateRange(target.StartDate, target.EndDate); err != nil {
		return err
	}
	if err := tx.Coupons().Update(ctx, target); err != nil {
		return err
	}

	ok, err := tx.Applications().Transition(ctx, app.ID, domain.ApplicationStatusPending, domain.ApplicationStatusApproved, "", 0)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: application %d resolved concurrently", domain.ErrInvalidState, app.ID)
	}
	return nil
}

func (s *WorkflowService) approveDelete(ctx context.Context, tx domain.Store, app *domain.CouponApplication) error {
	claims, err := tx.UserCoupons().CountByCoupon(ctx, app.TargetCouponID)
	if err != nil {
		return err
	}
	if claims > 0 {
		return fmt.Errorf("%w: %d users already redeemed coupon %d", domain.ErrHasClaims, claims, app.TargetCouponID)
	}
	if err := tx.Coupons().Delete(ctx, app.TargetCouponID); err != nil {
		return err
	}

	ok, err := tx.Applications().Transition(ctx, app.ID, domain.ApplicationStatusPending, domain.ApplicationStatusApproved, "", 0)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: application %d resolved concurrently", domain.ErrInvalidState, app.ID)
	}
	return nil
}

// Reject 裁决驳回一张审批单, 理由写入 adminNotes。从不触碰优惠券表。
func (s *WorkflowService) Reject(ctx context.Context, applicationID, adminID int64, reason string) (*domain.CouponApplication, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.Reject")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("application.id", applicationID),
		attribute.Int64("admin.id", adminID),
	)

	app, err := s.store.Applications().FindByID(ctx, applicationID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if app.Status != domain.ApplicationStatusPending {
		return nil, fmt.Errorf("%w: application %d is %s", domain.ErrInvalidState, app.ID, app.Status)
	}

	ok, err := s.store.Applications().Transition(ctx, app.ID, domain.ApplicationStatusPending, domain.ApplicationStatusRejected, reason, 0)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: application %d resolved concurrently", domain.ErrInvalidState, app.ID)
	}

	app.Status = domain.ApplicationStatusRejected
	app.AdminNotes = reason
	metrics.ApplicationTransitions.WithLabelValues(string(app.Type), "rejected").Inc()
	logger.Ctx(ctx).Printf("Admin %d rejected application %d: %s", adminID, app.ID, reason)
	s.publishResolution(ctx, app, adminID)
	return app, nil
}

// publishResolution 在事务提交之后发布领域事件。发布失败只记日志。
func (s *WorkflowService) publishResolution(ctx context.Context, app *domain.CouponApplication, adminID int64) {
	if s.events == nil {
		return
	}
	event := &port.CouponEvent{
		Kind:     port.EventKindApplicationResolved,
		SellerID: app.SellerID,
		CouponID: app.ResultingCouponID,
		Detail:   fmt.Sprintf("%s %s by admin %d", app.Type, app.Status, adminID),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		logger.Ctx(ctx).Printf("WARN: failed to publish application event for %d: %v", app.ID, err)
	}
}
