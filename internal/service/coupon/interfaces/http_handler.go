package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"bazaar/internal/service/coupon/application"
	"bazaar/internal/service/coupon/domain"
	"bazaar/internal/service/coupon/domain/port"
)

// CouponHandler 封装 coupon 服务的全部 HTTP 处理器。
type CouponHandler struct {
	workflow   *application.WorkflowService
	campaigns  *application.CampaignService
	redemption *application.RedemptionService
}

// NewCouponHandler 创建 HTTP 处理器。
func NewCouponHandler(workflow *application.WorkflowService, campaigns *application.CampaignService, redemption *application.RedemptionService) *CouponHandler {
	return &CouponHandler{
		workflow:   workflow,
		campaigns:  campaigns,
		redemption: redemption,
	}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *CouponHandler) RegisterRoutes(mux *http.ServeMux) {
	// 卖家
	mux.HandleFunc("/seller/applications/create", h.handleSubmitCreate)
	mux.HandleFunc("/seller/applications/update", h.handleSubmitUpdate)
	mux.HandleFunc("/seller/applications/delete", h.handleSubmitDelete)
	mux.HandleFunc("/seller/coupons/check_duplicate", h.handleCheckDuplicate)
	// 管理员
	mux.HandleFunc("/admin/applications/pending", h.handleListPending)
	mux.HandleFunc("/admin/applications/approve", h.handleApprove)
	mux.HandleFunc("/admin/applications/reject", h.handleReject)
	mux.HandleFunc("/admin/campaigns/attach", h.handleAttachCoupon)
	mux.HandleFunc("/admin/campaigns/detach", h.handleDetachCoupon)
	mux.HandleFunc("/admin/campaigns/quota", h.handleGetQuota)
	// 终端用户
	mux.HandleFunc("/coupons/redeem", h.handleRedeem)
	mux.HandleFunc("/users/coupons", h.handleListUserCoupons)
	// 订单子系统
	mux.HandleFunc("/coupons/use", h.handleUseCoupon)
	// 调度器
	mux.HandleFunc("/internal/expire_sweep", h.handleExpireSweep)
}

func extractCtx(r *http.Request) *http.Request {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	return r.WithContext(ctx)
}

// writeError 把领域错误翻译成 HTTP 状态码。
func writeError(w http.ResponseWriter, err error) {
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrValidation):
		statusCode = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotOwner):
		statusCode = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrExpiredOrInactive):
		statusCode = http.StatusForbidden
	case errors.Is(err, domain.ErrSoldOut):
		statusCode = http.StatusGone
	case errors.Is(err, domain.ErrDuplicate),
		errors.Is(err, domain.ErrAlreadyRedeemed),
		errors.Is(err, domain.ErrHasClaims),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrConflict):
		statusCode = http.StatusConflict
	default:
		statusCode = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), statusCode)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (h *CouponHandler) handleSubmitCreate(w http.ResponseWriter, r *http.Request) {
	r = extractCtx(r)
	var req application.SubmitCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	app, err := h.workflow.SubmitCreate(r.Context(), req.SellerID, req.ShopID, req.Coupon.ToDomain())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, application.NewApplicationResponse(app))
}

func (h *CouponHandler) handleSubmitUpdate(w http.ResponseWriter, r *http.Request) {
	r = extractCtx(r)
	var req application.SubmitUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	app, err := h.workflow.SubmitUpdate(r.Context(), req.SellerID, req.TargetCouponID, req.Coupon.ToDomain())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, application.NewApplicationResponse(app))
}

func (h *CouponHandler) handleSubmitDelete(w http.ResponseWriter, r *http.Request) {
	r = extractCtx(r)
	var req application.SubmitDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	app, err := h.workflow.SubmitDelete(r.Context(), req.SellerID, req.TargetCouponID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, application.NewApplicationResponse(app))
}

func (h *CouponHandler) handleCheckDuplicate(w http.ResponseWriter, r *http.Request) {
	r = extractCtx(r)
	shopID, err := strconv.ParseInt(r.URL.Query().Get("shop_id"), 10, 64)
	if err != nil {
		http.Error(w, "shop_id is required", http.StatusBadRequest)
		return
	}
	dup, err := h.workflow.CheckDuplicate(r.Context(), shopID, r.URL.Query().Get("code"), r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, application.DuplicateCheckResponse{
		CodeExists: dup.CodeExists,
		NameExists: dup.NameExists,
	})
}

func (h *CouponHandler) handleListPending(w http.ResponseWriter, r *http.Request) {
	r = extractCtx(r)
	apps, err := h.workflow.ListPending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]*application.ApplicationResponse, len(apps))
	for i, app := range apps {
		resp[i] = application.NewApplicationResponse(app)
	}
	writeJSON(w, resp)
}

func (h *CouponHandler) handleApprove(w http.ResponseWriter, r *http.Request) {
	r = extractCtx(r)
	var req application.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	app, err := h.workflow.Approve(r.Context(), req.ApplicationID, req.AdminID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, application.NewApplicationResponse(app))
}

func (h *CouponHandler) handleReject(w http.ResponseWriter, r *http.Request) {
	r = extractCtx(r)
	var req application.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	app, err := h.workflow.Reject(r.Context(), req.ApplicationID, req.AdminID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, application.NewApplicationResponse(app))
}

func (h *CouponHandler) handleAttachCoupon(w http.ResponseWriter, r *http.Request) {
	r = extractCtx(r)
	var req application.AttachCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cc, err := h.campaigns.AttachCoupon(r.Context(), req.CampaignID, req.CouponID, req.TotalQuantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, cc)
}

func (h *CouponHandler) handleDetachCoupon(w http.ResponseWriter, r *http.Request) {
	r = extractCtx(r)
	var req application.DetachCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.campaigns.DetachCoupon(r.Context(), req.CampaignID, req.CouponID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"success": true})
}

func (h *CouponHandler) handleGetQuota(w http.ResponseWriter, r *http.Request) {
	r = extractCtx(r)
	campaignID, err := strconv.ParseInt(r.URL.Query().Get("campaign_id"), 10, 64)
	if err != nil {
		http.Error(w, "campaign_id is required", http.StatusBadRequest)
		return
	}
	couponID, err := strconv.ParseInt(r.URL.Query().Get("coupon_id"), 10, 64)
	if err != nil {
		http.Error(w, "coupon_id is required", http.StatusBadRequest)
		return
	}
	cc, err := h.campaigns.GetQuota(r.Context(), campaignID, couponID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, cc)
}

func (h *CouponHandler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	r = extractCtx(r)
	var req application.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	uc, err := h.redemption.Redeem(r.Context(), req.UserID, req.CampaignID, req.CouponID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, application.NewUserCouponResponse(uc))
}

func (h *CouponHandler) handleListUserCoupons(w http.ResponseWriter, r *http.Request) {
	r = extractCtx(r)
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	coupons, err := h.redemption.ListUserCoupons(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]*application.UserCouponResponse, len(coupons))
	for i, uc := range coupons {
		resp[i] = application.NewUserCouponResponse(uc)
	}
	writeJSON(w, resp)
}

func (h *CouponHandler) handleUseCoupon(w http.ResponseWriter, r *http.Request) {
	r = extractCtx(r)
	var req application.UseCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	fact := port.UsageFact{OrderAmount: req.OrderAmount, ItemCount: req.ItemCount}
	if err := h.redemption.MarkUsed(r.Context(), req.UserCouponID, req.OrderID, fact); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"success": true})
}

func (h *CouponHandler) handleExpireSweep(w http.ResponseWriter, r *http.Request) {
	r = extractCtx(r)
	rows, err := h.redemption.ExpireSweep(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"expired": rows})
}
