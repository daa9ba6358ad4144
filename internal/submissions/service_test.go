package submissions

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mydentalfly/quote-backend/internal/discounts"
	"github.com/mydentalfly/quote-backend/internal/promotions"
	"github.com/mydentalfly/quote-backend/internal/quote"
	"github.com/mydentalfly/quote-backend/pkg/db/dbtest"
	"github.com/mydentalfly/quote-backend/pkg/db/models"
	"github.com/mydentalfly/quote-backend/pkg/enums"
	pkgerrors "github.com/mydentalfly/quote-backend/pkg/errors"
	"github.com/mydentalfly/quote-backend/pkg/types"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.NewSQLite(t)
	svc, err := NewService(conn, promotions.NewRepository(conn))
	require.NoError(t, err)
	return svc, conn
}

func promoState(t *testing.T, key string) quote.State {
	t.Helper()
	src, err := discounts.NewPromoSource(discounts.PromoCode{Code: "TEST10", DiscountType: enums.DiscountTypePercentage, DiscountValue: decimal.NewFromInt(10)})
	require.NoError(t, err)
	item := types.LineItem{ID: uuid.New(), TreatmentID: "dental_implant_standard", Quantity: 2, UnitPrice: types.NewMoney(875, 1120)}
	item.Recompute()
	return quote.State{
		QuoteKey:       key,
		LineItems:      types.LineItems{item},
		ActiveDiscount: src,
		DiscountState:  enums.DiscountStatePromoApplied,
		Subtotal:       types.NewMoney(1750, 2240),
		DiscountAmount: types.NewMoney(175, 224),
		Total:          types.NewMoney(1575, 2016),
	}
}

func TestSubmitRecordsQuoteAndPromoUsage(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	receipt, err := svc.Submit(ctx, promoState(t, "q-1"), quote.Contact{Email: " patient@example.com "})
	require.NoError(t, err)
	assert.Equal(t, "q-1", receipt.QuoteKey)
	assert.Equal(t, types.NewMoney(1575, 2016), receipt.Total)

	var row models.QuoteSubmission
	require.NoError(t, conn.Where("quote_key = ?", "q-1").First(&row).Error)
	assert.Equal(t, "patient@example.com", row.ContactEmail)
	require.NotNil(t, row.DiscountIdentity)
	assert.Equal(t, "promo:TEST10", *row.DiscountIdentity)
	require.Len(t, row.LineItems, 1)
	assert.Equal(t, int64(1575), row.TotalGBP)

	var promo models.PromoCode
	require.NoError(t, conn.Where("code = ?", "TEST10").First(&promo).Error)
	assert.Equal(t, 1, promo.UsedCount)
}

func TestSubmitTwiceConflicts(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, promoState(t, "q-1"), quote.Contact{})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, promoState(t, "q-1"), quote.Contact{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	var promo models.PromoCode
	require.NoError(t, conn.Where("code = ?", "TEST10").First(&promo).Error)
	assert.Equal(t, 1, promo.UsedCount, "rolled back submission must not count usage")
}

func TestSubmitRollsBackWhenPromoExhausted(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	require.NoError(t, conn.Model(&models.PromoCode{}).Where("code = ?", "TEST10").Update("active", false).Error)

	_, err := svc.Submit(ctx, promoState(t, "q-2"), quote.Contact{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, discounts.ErrInvalidPromoCode))

	var count int64
	require.NoError(t, conn.Model(&models.QuoteSubmission{}).Where("quote_key = ?", "q-2").Count(&count).Error)
	assert.Zero(t, count)
}

func TestSubmitWithoutDiscount(t *testing.T) {
	svc, conn := newTestService(t)
	st := promoState(t, "q-3")
	st.ActiveDiscount = nil
	st.DiscountState = enums.DiscountStateNone

	_, err := svc.Submit(context.Background(), st, quote.Contact{})
	require.NoError(t, err)

	var row models.QuoteSubmission
	require.NoError(t, conn.Where("quote_key = ?", "q-3").First(&row).Error)
	assert.Nil(t, row.DiscountKind)
	assert.Nil(t, row.DiscountIdentity)
}
