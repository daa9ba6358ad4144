package submissions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mydentalfly/quote-backend/internal/promotions"
	"github.com/mydentalfly/quote-backend/internal/quote"
	"github.com/mydentalfly/quote-backend/internal/repo"
	"github.com/mydentalfly/quote-backend/pkg/db"
	"github.com/mydentalfly/quote-backend/pkg/db/models"
	pkgerrors "github.com/mydentalfly/quote-backend/pkg/errors"
)

const quoteKeyConstraint = "quote_submissions_quote_key_key"

// sqlite reports unique failures by column rather than constraint name.
const quoteKeyColumn = "quote_submissions.quote_key"

// Service records submitted quotes. The submission row and the promo usage
// increment commit together.
type Service struct {
	repo.Base
	promos *promotions.Repository
	now    func() time.Time
}

// NewService builds a submission service backed by the provided DB.
func NewService(conn *gorm.DB, promos *promotions.Repository) (*Service, error) {
	if conn == nil {
		return nil, fmt.Errorf("db required")
	}
	if promos == nil {
		return nil, fmt.Errorf("promotions repository required")
	}
	return &Service{Base: repo.NewBase(conn), promos: promos, now: time.Now}, nil
}

// Submit persists state. A quote key can be submitted once.
func (s *Service) Submit(ctx context.Context, state quote.State, contact quote.Contact) (quote.Receipt, error) {
	row := toModel(state, contact, s.now().UTC())

	err := s.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			if db.IsUniqueViolation(err, quoteKeyConstraint) || db.IsUniqueViolation(err, quoteKeyColumn) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "quote has already been submitted")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store quote submission")
		}
		if promo := state.ActiveDiscount; promo != nil && promo.Promo != nil {
			return s.promos.WithTx(tx).ConsumePromoCode(ctx, promo.Promo.Code)
		}
		return nil
	})
	if err != nil {
		return quote.Receipt{}, err
	}

	return quote.Receipt{
		SubmissionID: row.ID,
		QuoteKey:     row.QuoteKey,
		Total:        state.Total,
		SubmittedAt:  row.SubmittedAt,
	}, nil
}

func toModel(state quote.State, contact quote.Contact, now time.Time) models.QuoteSubmission {
	row := models.QuoteSubmission{
		ID:           uuid.New(),
		QuoteKey:     state.QuoteKey,
		LineItems:    state.LineItems.Clone(),
		SubtotalGBP:  state.Subtotal.GBP,
		SubtotalUSD:  state.Subtotal.USD,
		DiscountGBP:  state.DiscountAmount.GBP,
		DiscountUSD:  state.DiscountAmount.USD,
		TotalGBP:     state.Total.GBP,
		TotalUSD:     state.Total.USD,
		ContactEmail: strings.TrimSpace(contact.Email),
		SubmittedAt:  now,
	}
	if src := state.ActiveDiscount; src != nil {
		kind := src.Kind
		identity := src.Identity()
		row.DiscountKind = &kind
		row.DiscountIdentity = &identity
	}
	return row
}

var _ quote.Submitter = (*Service)(nil)
