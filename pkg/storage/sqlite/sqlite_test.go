package sqlite_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eduspark/portal/pkg/storage"
	"github.com/eduspark/portal/pkg/storage/sqlite"
	"github.com/eduspark/portal/pkg/storage/storagetest"
)

var _ = storagetest.DescribeDriver("sqlite", func() storage.Driver {
	d, err := sqlite.NewDriver(context.Background(), ":memory:")
	Expect(err).NotTo(HaveOccurred())
	return d
})

var _ = Describe("sqlite.Driver", func() {
	It("persists records across reopen", func() {
		ctx := context.Background()
		path := filepath.Join(GinkgoT().TempDir(), "eduspark.db")

		d, err := sqlite.NewDriver(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		rec, err := d.Insert(ctx, "referral_codes", storage.Record{"code": "EDU-ABC123", "created_by": "t1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Close()).To(Succeed())

		d, err = sqlite.NewDriver(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		got, err := d.Single(ctx, storage.From("referral_codes").Where("code", "EDU-ABC123"))
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID()).To(Equal(rec.ID()))
	})
})
