// internal/service/coupon/infrastructure/mapper.go
package infrastructure

import (
	"database/sql"
	"encoding/json"

	"bazaar/internal/service/coupon/domain"
)

// --- 数据库模型与领域模型的互转 ---

func toDomainCoupon(m *CouponModel) *domain.Coupon {
	if m == nil {
		return nil
	}
	return &domain.Coupon{
		ID:            m.ID,
		ShopID:        m.ShopID,
		Code:          m.Code,
		Name:          m.Name,
		DiscountType:  domain.DiscountType(m.DiscountType),
		DiscountValue: m.DiscountValue,
		StartDate:     m.StartDate,
		EndDate:       m.EndDate,
		UsageLimit:    m.UsageLimit,
		UsagePerUser:  m.UsagePerUser,
		UsageRule:     m.UsageRule,
		Redeemed:      m.Redeemed,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func fromDomainCoupon(c *domain.Coupon) *CouponModel {
	if c == nil {
		return nil
	}
	return &CouponModel{
		ID:            c.ID,
		ShopID:        c.ShopID,
		Code:          c.Code,
		Name:          c.Name,
		DiscountType:  string(c.DiscountType),
		DiscountValue: c.DiscountValue,
		StartDate:     c.StartDate,
		EndDate:       c.EndDate,
		UsageLimit:    c.UsageLimit,
		UsagePerUser:  c.UsagePerUser,
		UsageRule:     c.UsageRule,
		Redeemed:      c.Redeemed,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func toDomainApplication(m *CouponApplicationModel) (*domain.CouponApplication, error) {
	if m == nil {
		return nil, nil
	}
	var draft domain.CouponDraft
	if m.Draft != "" {
		if err := json.Unmarshal([]byte(m.Draft), &draft); err != nil {
			return nil, err
		}
	}
	return &domain.CouponApplication{
		ID:                m.ID,
		Type:              domain.ApplicationType(m.Type),
		SellerID:          m.SellerID,
		ShopID:            m.ShopID,
		TargetCouponID:    m.TargetCouponID,
		Draft:             draft,
		Status:            domain.ApplicationStatus(m.Status),
		AdminNotes:        m.AdminNotes,
		ResultingCouponID: m.ResultingCouponID,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}, nil
}

func fromDomainApplication(a *domain.CouponApplication) (*CouponApplicationModel, error) {
	if a == nil {
		return nil, nil
	}
	draft, err := json.Marshal(a.Draft)
	if err != nil {
		return nil, err
	}
	return &CouponApplicationModel{
		ID:                a.ID,
		Type:              string(a.Type),
		SellerID:          a.SellerID,
		ShopID:            a.ShopID,
		TargetCouponID:    a.TargetCouponID,
		Draft:             string(draft),
		Status:            string(a.Status),
		AdminNotes:        a.AdminNotes,
		ResultingCouponID: a.ResultingCouponID,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}, nil
}

func toDomainCampaign(m *CampaignModel) *domain.Campaign {
	if m == nil {
		return nil
	}
	return &domain.Campaign{
		ID:        m.ID,
		ShopID:    m.ShopID,
		Name:      m.Name,
		Status:    domain.CampaignStatus(m.Status),
		StartDate: m.StartDate,
		EndDate:   m.EndDate,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func fromDomainCampaign(c *domain.Campaign) *CampaignModel {
	return &CampaignModel{
		ID:        c.ID,
		ShopID:    c.ShopID,
		Name:      c.Name,
		Status:    string(c.Status),
		StartDate: c.StartDate,
		EndDate:   c.EndDate,
	}
}

func toDomainCampaignCoupon(m *CampaignCouponModel) *domain.CampaignCoupon {
	if m == nil {
		return nil
	}
	return &domain.CampaignCoupon{
		ID:                m.ID,
		CampaignID:        m.CampaignID,
		CouponID:          m.CouponID,
		TotalQuantity:     m.TotalQuantity,
		RemainingQuantity: m.RemainingQuantity,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toDomainUserCoupon(m *UserCouponModel) *domain.UserCoupon {
	if m == nil {
		return nil
	}
	uc := &domain.UserCoupon{
		ID:           m.ID,
		UserID:       m.UserID,
		CouponID:     m.CouponID,
		CampaignID:   m.CampaignID,
		Status:       domain.UserCouponStatus(m.Status),
		AcquiredDate: m.AcquiredDate,
	}
	if m.UsedDate.Valid {
		uc.UsedDate = m.UsedDate.Time
	}
	if m.OrderID.Valid {
		uc.OrderID = m.OrderID.String
	}
	return uc
}

func fromDomainUserCoupon(uc *domain.UserCoupon) *UserCouponModel {
	if uc == nil {
		return nil
	}
	m := &UserCouponModel{
		ID:           uc.ID,
		UserID:       uc.UserID,
		CouponID:     uc.CouponID,
		CampaignID:   uc.CampaignID,
		Status:       string(uc.Status),
		AcquiredDate: uc.AcquiredDate,
	}
	if !uc.UsedDate.IsZero() {
		m.UsedDate = sql.NullTime{Time: uc.UsedDate, Valid: true}
	}
	if uc.OrderID != "" {
		m.OrderID = sql.NullString{String: uc.OrderID, Valid: true}
	}
	return m
}
