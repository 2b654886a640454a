// internal/service/coupon/infrastructure/gorm_store.go
package infrastructure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"bazaar/internal/service/coupon/domain"
)

// GormStore 是 domain.Store 的 GORM 实现。
// 同一个 GormStore 上的仓储共享同一个 *gorm.DB，
// InTx 里拿到的副本共享同一个事务句柄。
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建一个新的存储实例。
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate 建表。生产环境的 DDL 由迁移工具管理，这里服务于本地和测试。
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&CouponModel{},
		&CouponApplicationModel{},
		&CampaignModel{},
		&CampaignCouponModel{},
		&UserCouponModel{},
	)
}

func (s *GormStore) Coupons() domain.CouponRepository {
	return &gormCouponRepository{db: s.db}
}

func (s *GormStore) Applications() domain.ApplicationRepository {
	return &gormApplicationRepository{db: s.db}
}

func (s *GormStore) Campaigns() domain.CampaignRepository {
	return &gormCampaignRepository{db: s.db}
}

func (s *GormStore) UserCoupons() domain.UserCouponRepository {
	return &gormUserCouponRepository{db: s.db}
}

// InTx 在一个数据库事务里执行 fn，fn 返回错误时整体回滚。
func (s *GormStore) InTx(ctx context.Context, fn func(tx domain.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormStore(tx))
	})
}

// isDuplicateKey 识别不同驱动的唯一约束冲突。
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || // mysql
		strings.Contains(msg, "UNIQUE constraint failed") // sqlite
}

// --- CouponRepository ---

type gormCouponRepository struct {
	db *gorm.DB
}

func (r *gormCouponRepository) FindByID(ctx context.Context, id int64) (*domain.Coupon, error) {
	var model CouponModel
	err := r.db.WithContext(ctx).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: coupon %d", domain.ErrNotFound, id)
		}
		return nil, errors.Wrap(err, "find coupon")
	}
	return toDomainCoupon(&model), nil
}

func (r *gormCouponRepository) ExistsActiveDuplicate(ctx context.Context, shopID int64, code, name string, excludeCouponID int64, now time.Time) (domain.DuplicateCheck, error) {
	var out domain.DuplicateCheck
	if code == "" && name == "" {
		return out, nil
	}

	q := r.db.WithContext(ctx).Model(&CouponModel{}).
		Where("shop_id = ? AND end_date >= ?", shopID, now)
	if excludeCouponID > 0 {
		q = q.Where("id <> ?", excludeCouponID)
	}
	switch {
	case code != "" && name != "":
		q = q.Where("code = ? OR name = ?", code, name)
	case code != "":
		q = q.Where("code = ?", code)
	default:
		q = q.Where("name = ?", name)
	}

	var rows []CouponModel
	if err := q.Find(&rows).Error; err != nil {
		return out, errors.Wrap(err, "duplicate check")
	}
	for i := range rows {
		if code != "" && rows[i].Code == code {
			out.CodeExists = true
		}
		if name != "" && rows[i].Name == name {
			out.NameExists = true
		}
	}
	return out, nil
}

func (r *gormCouponRepository) Create(ctx context.Context, coupon *domain.Coupon) error {
	model := fromDomainCoupon(coupon)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrap(err, "create coupon")
	}
	coupon.ID = model.ID
	coupon.CreatedAt = model.CreatedAt
	coupon.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *gormCouponRepository) Update(ctx context.Context, coupon *domain.Coupon) error {
	model := fromDomainCoupon(coupon)
	model.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).Model(&CouponModel{}).Where("id = ?", coupon.ID).
		Select("*").Omit("id", "created_at").Updates(model)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update coupon")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: coupon %d", domain.ErrNotFound, coupon.ID)
	}
	return nil
}

func (r *gormCouponRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&CouponModel{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete coupon")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: coupon %d", domain.ErrNotFound, id)
	}
	return nil
}

// --- ApplicationRepository ---

type gormApplicationRepository struct {
	db *gorm.DB
}

func (r *gormApplicationRepository) Create(ctx context.Context, app *domain.CouponApplication) error {
	model, err := fromDomainApplication(app)
	if err != nil {
		return errors.Wrap(err, "marshal application draft")
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrap(err, "create application")
	}
	app.ID = model.ID
	return nil
}

func (r *gormApplicationRepository) FindByID(ctx context.Context, id int64) (*domain.CouponApplication, error) {
	var model CouponApplicationModel
	err := r.db.WithContext(ctx).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: application %d", domain.ErrNotFound, id)
		}
		return nil, errors.Wrap(err, "find application")
	}
	app, err := toDomainApplication(&model)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal application draft")
	}
	return app, nil
}

func (r *gormApplicationRepository) ListPending(ctx context.Context) ([]*domain.CouponApplication, error) {
	var models []*CouponApplicationModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(domain.ApplicationStatusPending)).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "list pending applications")
	}
	apps := make([]*domain.CouponApplication, 0, len(models))
	for _, m := range models {
		app, err := toDomainApplication(m)
		if err != nil {
			return nil, errors.Wrap(err, "unmarshal application draft")
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// Transition 是审批单状态流转的唯一落库路径。
// WHERE status=from 保证两个并发裁决至多一个成功。
func (r *gormApplicationRepository) Transition(ctx context.Context, id int64, from, to domain.ApplicationStatus, adminNotes string, resultingCouponID int64) (bool, error) {
	updates := map[string]interface{}{
		"status":     string(to),
		"updated_at": time.Now(),
	}
	if adminNotes != "" {
		updates["admin_notes"] = adminNotes
	}
	if resultingCouponID > 0 {
		updates["resulting_coupon_id"] = resultingCouponID
	}
	res := r.db.WithContext(ctx).Model(&CouponApplicationModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "transition application")
	}
	return res.RowsAffected == 1, nil
}

// --- CampaignRepository ---

type gormCampaignRepository struct {
	db *gorm.DB
}

func (r *gormCampaignRepository) CreateCampaign(ctx context.Context, campaign *domain.Campaign) error {
	model := fromDomainCampaign(campaign)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrap(err, "create campaign")
	}
	campaign.ID = model.ID
	return nil
}

func (r *gormCampaignRepository) FindCampaign(ctx context.Context, id int64) (*domain.Campaign, error) {
	var model CampaignModel
	err := r.db.WithContext(ctx).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: campaign %d", domain.ErrNotFound, id)
		}
		return nil, errors.Wrap(err, "find campaign")
	}
	return toDomainCampaign(&model), nil
}

func (r *gormCampaignRepository) FindCampaignCoupon(ctx context.Context, campaignID, couponID int64) (*domain.CampaignCoupon, error) {
	var model CampaignCouponModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND coupon_id = ?", campaignID, couponID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: campaign %d has no coupon %d", domain.ErrNotFound, campaignID, couponID)
		}
		return nil, errors.Wrap(err, "find campaign coupon")
	}
	return toDomainCampaignCoupon(&model), nil
}

func (r *gormCampaignRepository) AttachCoupon(ctx context.Context, cc *domain.CampaignCoupon) error {
	model := &CampaignCouponModel{
		CampaignID:        cc.CampaignID,
		CouponID:          cc.CouponID,
		TotalQuantity:     cc.TotalQuantity,
		RemainingQuantity: cc.RemainingQuantity,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: coupon %d already attached to campaign %d", domain.ErrConflict, cc.CouponID, cc.CampaignID)
		}
		return errors.Wrap(err, "attach coupon")
	}
	cc.ID = model.ID
	return nil
}

func (r *gormCampaignRepository) DetachCoupon(ctx context.Context, campaignID, couponID int64) error {
	res := r.db.WithContext(ctx).
		Where("campaign_id = ? AND coupon_id = ?", campaignID, couponID).
		Delete(&CampaignCouponModel{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "detach coupon")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: campaign %d has no coupon %d", domain.ErrNotFound, campaignID, couponID)
	}
	return nil
}

// DecrementRemaining 是配额扣减的唯一路径。
// 单条条件更新，remaining 永远不可能被扣成负数；
// 0 行命中即售罄。严禁改写成先查后写。
func (r *gormCampaignRepository) DecrementRemaining(ctx context.Context, campaignID, couponID int64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&CampaignCouponModel{}).
		Where("campaign_id = ? AND coupon_id = ? AND remaining_quantity > 0", campaignID, couponID).
		Updates(map[string]interface{}{
			"remaining_quantity": gorm.Expr("remaining_quantity - 1"),
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "decrement remaining quantity")
	}
	return res.RowsAffected, nil
}

// --- UserCouponRepository ---

type gormUserCouponRepository struct {
	db *gorm.DB
}

func (r *gormUserCouponRepository) FindByID(ctx context.Context, id int64) (*domain.UserCoupon, error) {
	var model UserCouponModel
	err := r.db.WithContext(ctx).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user coupon %d", domain.ErrNotFound, id)
		}
		return nil, errors.Wrap(err, "find user coupon")
	}
	return toDomainUserCoupon(&model), nil
}

func (r *gormUserCouponRepository) FindByUserAndCoupon(ctx context.Context, userID, couponID int64) (*domain.UserCoupon, error) {
	var model UserCouponModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND coupon_id = ?", userID, couponID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d has no coupon %d", domain.ErrNotFound, userID, couponID)
		}
		return nil, errors.Wrap(err, "find user coupon")
	}
	return toDomainUserCoupon(&model), nil
}

func (r *gormUserCouponRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.UserCoupon, error) {
	var models []*UserCouponModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("acquired_date DESC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "list user coupons")
	}
	coupons := make([]*domain.UserCoupon, len(models))
	for i, m := range models {
		coupons[i] = toDomainUserCoupon(m)
	}
	return coupons, nil
}

func (r *gormUserCouponRepository) CountByCoupon(ctx context.Context, couponID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&UserCouponModel{}).
		Where("coupon_id = ?", couponID).Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "count claims by coupon")
	}
	return count, nil
}

func (r *gormUserCouponRepository) CountByCampaignCoupon(ctx context.Context, campaignID, couponID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&UserCouponModel{}).
		Where("campaign_id = ? AND coupon_id = ?", campaignID, couponID).Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "count claims by campaign coupon")
	}
	return count, nil
}

func (r *gormUserCouponRepository) Create(ctx context.Context, uc *domain.UserCoupon) error {
	model := fromDomainUserCoupon(uc)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			// 查重和插入之间被并发穿透，唯一约束兜底
			return fmt.Errorf("%w: user %d coupon %d", domain.ErrAlreadyRedeemed, uc.UserID, uc.CouponID)
		}
		return errors.Wrap(err, "create user coupon")
	}
	uc.ID = model.ID
	return nil
}

// MarkUsed 状态守护的条件更新，保证一张券不会被两个订单同时核销。
func (r *gormUserCouponRepository) MarkUsed(ctx context.Context, id int64, orderID string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&UserCouponModel{}).
		Where("id = ? AND status = ?", id, string(domain.UserCouponStatusActive)).
		Updates(map[string]interface{}{
			"status":    string(domain.UserCouponStatusUsed),
			"order_id":  orderID,
			"used_date": now,
		})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "mark user coupon used")
	}
	return res.RowsAffected == 1, nil
}

// ExpireSweep 批量过期。与 MarkUsed 同样走状态守护更新，
// 并发时先落库者胜出，另一方是 no-op，可安全反复调用。
func (r *gormUserCouponRepository) ExpireSweep(ctx context.Context, now time.Time) (int64, error) {
	expiredCoupons := r.db.Model(&CouponModel{}).Select("id").Where("end_date < ?", now)
	res := r.db.WithContext(ctx).Model(&UserCouponModel{}).
		Where("status = ?", string(domain.UserCouponStatusActive)).
		Where("coupon_id IN (?)", expiredCoupons).
		Update("status", string(domain.UserCouponStatusExpired))
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "expire sweep")
	}
	return res.RowsAffected, nil
}
