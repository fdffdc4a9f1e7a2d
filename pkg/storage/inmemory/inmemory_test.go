package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eduspark/portal/pkg/storage"
	"github.com/eduspark/portal/pkg/storage/inmemory"
	"github.com/eduspark/portal/pkg/storage/storagetest"
)

var _ = storagetest.DescribeDriver("inmemory", func() storage.Driver {
	return inmemory.NewDriver()
})

var _ = Describe("inmemory.Driver", func() {
	It("returns copies that callers may mutate", func() {
		ctx := context.Background()
		d := inmemory.NewDriver()

		rec, err := d.Insert(ctx, "profiles", storage.Record{"full_name": "Aline"})
		Expect(err).NotTo(HaveOccurred())
		rec["full_name"] = "changed"

		got, err := d.Single(ctx, storage.From("profiles").Where("id", rec.ID()))
		Expect(err).NotTo(HaveOccurred())
		Expect(got.String("full_name")).To(Equal("Aline"))
	})
})
