package portal_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eduspark/portal/pkg/identity"
	"github.com/eduspark/portal/pkg/portal"
	"github.com/eduspark/portal/pkg/storage"
	"github.com/eduspark/portal/pkg/storage/inmemory"
)

var _ = Describe("Referrals", func() {
	var (
		ctx   context.Context
		store *inmemory.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()
	})

	as := func(userID string) *portal.Referrals {
		return portal.NewReferrals(store, identity.Static{Session: &identity.Session{UserID: userID}})
	}

	It("generates codes in the EDU format", func() {
		for range 50 {
			Expect(portal.GenerateCode()).To(MatchRegexp(`^EDU-[0-9A-Z]{6}$`))
		}
	})

	It("stores generated codes for the teacher", func() {
		code, err := as("teacher-1").Generate(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(code.ID).NotTo(BeEmpty())
		Expect(code.Code).To(HavePrefix("EDU-"))
		Expect(code.CreatedBy).To(Equal("teacher-1"))
		Expect(code.CreatedAt).NotTo(BeZero())
	})

	It("lists only the teacher's codes, newest first", func() {
		for i, code := range []string{"EDU-AAAAAA", "EDU-BBBBBB"} {
			_, err := store.Insert(ctx, "referral_codes", storage.Record{
				"code":       code,
				"created_by": "teacher-1",
				"created_at": time.Date(2026, 2, 1+i, 0, 0, 0, 0, time.UTC).Format(storage.TimeFormat),
			})
			Expect(err).NotTo(HaveOccurred())
		}
		_, err := as("teacher-2").Generate(ctx)
		Expect(err).NotTo(HaveOccurred())

		codes, err := as("teacher-1").List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(codes).To(HaveLen(2))
		Expect(codes[0].Code).To(Equal("EDU-BBBBBB"))
		Expect(codes[1].Code).To(Equal("EDU-AAAAAA"))
	})

	It("requires a signed in user", func() {
		r := portal.NewReferrals(store, identity.Static{})
		_, err := r.Generate(ctx)
		Expect(err).To(MatchError(identity.ErrSignedOut))
		_, err = r.List(ctx)
		Expect(err).To(MatchError(identity.ErrSignedOut))
	})

	It("redeems a code once", func() {
		code, err := as("teacher-1").Generate(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(as("student-1").Redeem(ctx, " "+code.Code+" ")).To(Succeed())
		Expect(as("student-1").Redeem(ctx, code.Code)).To(MatchError(portal.ErrAlreadyRedeemed))
	})

	It("rejects unknown codes", func() {
		Expect(as("student-1").Redeem(ctx, "EDU-NOPE00")).To(MatchError(portal.ErrUnknownReferralCode))
	})
})
