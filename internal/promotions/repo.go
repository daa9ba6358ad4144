package promotions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mydentalfly/quote-backend/internal/discounts"
	"github.com/mydentalfly/quote-backend/internal/repo"
	"github.com/mydentalfly/quote-backend/pkg/db/models"
	"github.com/mydentalfly/quote-backend/pkg/enums"
	pkgerrors "github.com/mydentalfly/quote-backend/pkg/errors"
	"github.com/mydentalfly/quote-backend/pkg/types"
)

// Repository reads promo codes, special offers and packages. It satisfies the
// discount resolver's validator and fetcher ports.
type Repository struct {
	repo.Base
	now func() time.Time
}

// NewRepository constructs a promotions repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db), now: time.Now}
}

// WithTx returns a repository that issues statements on tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Bind(tx), now: r.now}
}

// ValidatePromoCode returns the code when it is active, inside its validity
// window and below its usage cap.
func (r *Repository) ValidatePromoCode(ctx context.Context, code string) (*discounts.PromoCode, error) {
	code = discounts.NormalizeCode(code)
	var row models.PromoCode
	err := r.DB(ctx).Where("code = ?", code).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, discounts.ErrInvalidPromoCode
	}
	if err != nil {
		return nil, fmt.Errorf("load promo code %s: %w", code, err)
	}
	if !promoUsable(row, r.now()) {
		return nil, discounts.ErrInvalidPromoCode
	}
	return promoFromModel(row), nil
}

// GetSpecialOffer loads an active offer inside its validity window.
func (r *Repository) GetSpecialOffer(ctx context.Context, id string) (*discounts.SpecialOffer, error) {
	var row models.SpecialOffer
	err := r.DB(ctx).Where("id = ? AND active = ?", id, true).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, discounts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load special offer %s: %w", id, err)
	}
	if !withinWindow(row.ValidFrom, row.ValidUntil, r.now()) {
		return nil, discounts.ErrNotFound
	}
	return offerFromModel(row), nil
}

// GetPackage loads an active treatment package.
func (r *Repository) GetPackage(ctx context.Context, id string) (*discounts.Package, error) {
	var row models.TreatmentPackage
	err := r.DB(ctx).Where("id = ? AND active = ?", id, true).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, discounts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load package %s: %w", id, err)
	}
	return packageFromModel(row), nil
}

// ConsumePromoCode increments used_count for a submitted quote. The row is
// locked for the duration of the surrounding transaction; a code that became
// unusable since it was applied fails with ErrInvalidPromoCode.
func (r *Repository) ConsumePromoCode(ctx context.Context, code string) error {
	code = discounts.NormalizeCode(code)
	var row models.PromoCode
	err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", code).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, discounts.ErrInvalidPromoCode, fmt.Sprintf("promo code %s no longer exists", code))
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock promo code")
	}
	if !promoUsable(row, r.now()) {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, discounts.ErrInvalidPromoCode, fmt.Sprintf("promo code %s is no longer valid", code))
	}

	res := r.DB(ctx).Model(&models.PromoCode{}).
		Where("code = ?", code).
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "increment promo usage")
	}
	return nil
}

func promoUsable(row models.PromoCode, now time.Time) bool {
	if !row.Active {
		return false
	}
	if !withinWindow(row.ValidFrom, row.ValidUntil, now) {
		return false
	}
	if row.MaxUses != nil && row.UsedCount >= *row.MaxUses {
		return false
	}
	return true
}

func withinWindow(from, until *time.Time, now time.Time) bool {
	if from != nil && now.Before(*from) {
		return false
	}
	if until != nil && now.After(*until) {
		return false
	}
	return true
}

func promoFromModel(row models.PromoCode) *discounts.PromoCode {
	return &discounts.PromoCode{
		Code:          row.Code,
		DiscountType:  row.DiscountType,
		DiscountValue: row.DiscountValue,
		FixedValue:    types.NewMoney(row.FixedGBP, row.FixedUSD),
	}
}

func offerFromModel(row models.SpecialOffer) *discounts.SpecialOffer {
	offer := &discounts.SpecialOffer{
		ID:            row.ID,
		Title:         row.Title,
		ClinicID:      row.ClinicID,
		Mode:          row.Mode,
		DiscountType:  row.DiscountType,
		DiscountValue: row.DiscountValue,
		FixedValue:    types.NewMoney(row.FixedGBP, row.FixedUSD),
	}
	if offer.Mode == "" {
		offer.Mode = enums.OfferModePriceDiscount
	}
	if row.ApplicableTreatmentID != nil {
		offer.ApplicableTreatmentID = *row.ApplicableTreatmentID
	}
	if row.BonusTreatmentID != nil {
		offer.BonusTreatmentID = *row.BonusTreatmentID
	}
	return offer
}

func packageFromModel(row models.TreatmentPackage) *discounts.Package {
	return &discounts.Package{
		ID:                 row.ID,
		Title:              row.Title,
		ClinicID:           row.ClinicID,
		FixedPrice:         types.NewMoney(row.FixedPriceGBP, row.FixedPriceUSD),
		IncludedTreatments: append([]string(nil), row.IncludedTreatments...),
	}
}

var (
	_ discounts.PromoValidator = (*Repository)(nil)
	_ discounts.OfferFetcher   = (*Repository)(nil)
	_ discounts.PackageFetcher = (*Repository)(nil)
)
