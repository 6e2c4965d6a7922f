package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dailycart-backend/api/responses"
	"github.com/angelmondragon/dailycart-backend/api/validators"
	"github.com/angelmondragon/dailycart-backend/internal/coupons"
	"github.com/angelmondragon/dailycart-backend/pkg/db/models"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
	"github.com/angelmondragon/dailycart-backend/pkg/pagination"
)

type createCouponRequest struct {
	Code                 string           `json:"code" validate:"required,max=32"`
	Description          string           `json:"description" validate:"max=255"`
	DiscountType         string           `json:"discount_type" validate:"required,oneof=percentage fixed"`
	DiscountValue        decimal.Decimal  `json:"discount_value"`
	MaxDiscount          *decimal.Decimal `json:"max_discount,omitempty"`
	MinOrderAmount       decimal.Decimal  `json:"min_order_amount"`
	UsageLimit           *int             `json:"usage_limit,omitempty" validate:"omitempty,min=1"`
	UserUsageLimit       int              `json:"user_usage_limit" validate:"min=0"`
	ValidFrom            time.Time        `json:"valid_from" validate:"required"`
	ValidUntil           time.Time        `json:"valid_until" validate:"required"`
	IsFirstOrderOnly     bool             `json:"is_first_order_only"`
	IsReferralReward     bool             `json:"is_referral_reward"`
	ApplicableCategories []string         `json:"applicable_categories,omitempty"`
	ApplicableProducts   []string         `json:"applicable_products,omitempty"`
	ExcludedCategories   []string         `json:"excluded_categories,omitempty"`
	ExcludedProducts     []string         `json:"excluded_products,omitempty"`
}

type couponResponse struct {
	ID                   uuid.UUID          `json:"id"`
	Code                 string             `json:"code"`
	Description          string             `json:"description"`
	DiscountType         enums.DiscountType `json:"discount_type"`
	DiscountValue        decimal.Decimal    `json:"discount_value"`
	MaxDiscount          *decimal.Decimal   `json:"max_discount,omitempty"`
	MinOrderAmount       decimal.Decimal    `json:"min_order_amount"`
	UsageLimit           *int               `json:"usage_limit,omitempty"`
	UsedCount            int                `json:"used_count"`
	UserUsageLimit       int                `json:"user_usage_limit"`
	ValidFrom            time.Time          `json:"valid_from"`
	ValidUntil           time.Time          `json:"valid_until"`
	IsActive             bool               `json:"is_active"`
	IsFirstOrderOnly     bool               `json:"is_first_order_only"`
	IsReferralReward     bool               `json:"is_referral_reward"`
	ApplicableCategories []string           `json:"applicable_categories,omitempty"`
	ApplicableProducts   []string           `json:"applicable_products,omitempty"`
	ExcludedCategories   []string           `json:"excluded_categories,omitempty"`
	ExcludedProducts     []string           `json:"excluded_products,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
}

func newCouponResponse(c *models.Coupon) couponResponse {
	return couponResponse{
		ID:                   c.ID,
		Code:                 c.Code,
		Description:          c.Description,
		DiscountType:         c.DiscountType,
		DiscountValue:        c.DiscountValue,
		MaxDiscount:          c.MaxDiscount,
		MinOrderAmount:       c.MinOrderAmount,
		UsageLimit:           c.UsageLimit,
		UsedCount:            c.UsedCount,
		UserUsageLimit:       c.UserUsageLimit,
		ValidFrom:            c.ValidFrom,
		ValidUntil:           c.ValidUntil,
		IsActive:             c.IsActive,
		IsFirstOrderOnly:     c.IsFirstOrderOnly,
		IsReferralReward:     c.IsReferralReward,
		ApplicableCategories: c.ApplicableCategories,
		ApplicableProducts:   c.ApplicableProducts,
		ExcludedCategories:   c.ExcludedCategories,
		ExcludedProducts:     c.ExcludedProducts,
		CreatedAt:            c.CreatedAt,
	}
}

func AdminCreateCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("coupons"))
			return
		}
		var payload createCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		discountType, err := enums.ParseDiscountType(payload.DiscountType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type"))
			return
		}

		coupon, err := svc.Create(r.Context(), coupons.CreateInput{
			Code:                 payload.Code,
			Description:          validators.SanitizeString(payload.Description, 255),
			DiscountType:         discountType,
			DiscountValue:        payload.DiscountValue,
			MaxDiscount:          payload.MaxDiscount,
			MinOrderAmount:       payload.MinOrderAmount,
			UsageLimit:           payload.UsageLimit,
			UserUsageLimit:       payload.UserUsageLimit,
			ValidFrom:            payload.ValidFrom,
			ValidUntil:           payload.ValidUntil,
			IsFirstOrderOnly:     payload.IsFirstOrderOnly,
			IsReferralReward:     payload.IsReferralReward,
			ApplicableCategories: payload.ApplicableCategories,
			ApplicableProducts:   payload.ApplicableProducts,
			ExcludedCategories:   payload.ExcludedCategories,
			ExcludedProducts:     payload.ExcludedProducts,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCouponResponse(coupon))
	}
}

// AdminListCoupons pages through coupons. ?active=true hides deactivated codes.
func AdminListCoupons(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("coupons"))
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		activeOnly := strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("active")), "true")

		page, err := svc.List(r.Context(), params, activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]couponResponse, 0, len(page.Items))
		for i := range page.Items {
			items = append(items, newCouponResponse(&page.Items[i]))
		}
		responses.WriteSuccess(w, pagination.Page[couponResponse]{
			Items:      items,
			Page:       page.Page,
			Limit:      page.Limit,
			Total:      page.Total,
			TotalPages: page.TotalPages,
		})
	}
}

func AdminDeactivateCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("coupons"))
			return
		}
		code := strings.TrimSpace(chi.URLParam(r, "code"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required"))
			return
		}
		coupon, err := svc.Deactivate(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCouponResponse(coupon))
	}
}
