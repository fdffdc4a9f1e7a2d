package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eduspark/portal/pkg/identity"
	"github.com/eduspark/portal/pkg/storage"
)

const (
	referralPrefix = "EDU-"
	referralLength = 6
	base36         = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var (
	// ErrUnknownReferralCode is returned when redeeming a code nobody issued.
	ErrUnknownReferralCode = errors.New("unknown referral code")

	// ErrAlreadyRedeemed is returned when the user already redeemed a code.
	ErrAlreadyRedeemed = errors.New("a referral code has already been redeemed")
)

// ReferralCode grants a student access to one teacher's study guides.
type ReferralCode struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerateCode returns "EDU-" followed by six upper case base 36 characters.
func GenerateCode() string {
	id := uuid.New()

	var b strings.Builder
	b.WriteString(referralPrefix)
	// The first six bytes of a version 4 UUID are fully random.
	for _, c := range id[:referralLength] {
		b.WriteByte(base36[int(c)%len(base36)])
	}
	return b.String()
}

// Referrals issues and redeems referral codes.
type Referrals struct {
	store    storage.Driver
	identity identity.Provider
}

func NewReferrals(store storage.Driver, ids identity.Provider) *Referrals {
	return &Referrals{store: store, identity: ids}
}

// Generate issues a new code owned by the signed-in user.
func (r *Referrals) Generate(ctx context.Context) (ReferralCode, error) {
	sess, err := r.identity.CurrentUser(ctx)
	if err != nil {
		return ReferralCode{}, err
	}

	rec, err := r.store.Insert(ctx, collectionReferrals, storage.Record{
		"code":       GenerateCode(),
		"created_by": sess.UserID,
	})
	if err != nil {
		return ReferralCode{}, fmt.Errorf("storing referral code: %w", err)
	}

	var code ReferralCode
	if err := storage.Decode(rec, &code); err != nil {
		return ReferralCode{}, err
	}
	return code, nil
}

// List returns the signed-in user's codes, newest first.
func (r *Referrals) List(ctx context.Context) ([]ReferralCode, error) {
	sess, err := r.identity.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	q := storage.From(collectionReferrals).
		Where("created_by", sess.UserID).
		OrderBy(storage.ColumnCreatedAt, true)
	recs, err := r.store.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing referral codes: %w", err)
	}
	return storage.DecodeAll[ReferralCode](recs)
}

// Redeem links the signed-in student to the teacher that issued code.
// Codes are matched case-insensitively.
func (r *Referrals) Redeem(ctx context.Context, code string) error {
	sess, err := r.identity.CurrentUser(ctx)
	if err != nil {
		return err
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	issued, err := r.store.Single(ctx, storage.From(collectionReferrals).Where("code", code))
	if storage.IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrUnknownReferralCode, code)
	}
	if err != nil {
		return fmt.Errorf("looking up referral code: %w", err)
	}

	existing, err := r.store.Select(ctx, storage.From(collectionRedemptions).Where("user_id", sess.UserID))
	if err != nil {
		return fmt.Errorf("looking up redemptions: %w", err)
	}
	if len(existing) > 0 {
		return ErrAlreadyRedeemed
	}

	_, err = r.store.Insert(ctx, collectionRedemptions, storage.Record{
		"user_id":          sess.UserID,
		"referral_code_id": issued.ID(),
	})
	if err != nil {
		return fmt.Errorf("redeeming referral code: %w", err)
	}
	return nil
}

// teacherFor returns the issuer of the code userID redeemed, or "".
func (r *Referrals) teacherFor(ctx context.Context, userID string) (string, error) {
	redemption, err := r.store.Single(ctx, storage.From(collectionRedemptions).Where("user_id", userID))
	if storage.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up redemption: %w", err)
	}

	issued, err := r.store.Single(ctx, storage.From(collectionReferrals).
		Where(storage.ColumnID, redemption.String("referral_code_id")))
	if storage.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up referral code: %w", err)
	}
	return issued.String("created_by"), nil
}
