// Package storagetest holds the behaviour every storage.Driver must share,
// written as ginkgo specs that driver packages run against their own driver.
package storagetest

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eduspark/portal/pkg/storage"
)

// DescribeDriver registers the shared driver specs. newDriver is called before
// each test and must return an empty store.
func DescribeDriver(name string, newDriver func() storage.Driver) bool {
	return Describe(name+" driver", func() {
		var (
			ctx    context.Context
			driver storage.Driver
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = newDriver()
		})

		AfterEach(func() {
			if driver != nil {
				Expect(driver.Close()).To(Succeed())
			}
		})

		seedDownloads := func() {
			rows := []storage.Record{
				{"id": "d1", "user_id": "u1", "subject": "Math", "level": "P6", "count": 3, "completed": true, "created_at": "2026-01-01T10:00:00.000000Z"},
				{"id": "d2", "user_id": "u2", "subject": "Math", "level": "S1", "count": 10, "completed": false, "created_at": "2026-01-03T10:00:00.000000Z"},
				{"id": "d3", "user_id": "u1", "subject": "Biology", "level": "S1", "count": 1, "completed": true, "created_at": "2026-01-02T10:00:00.000000Z"},
			}
			for _, r := range rows {
				_, err := driver.Insert(ctx, "material_downloads", r)
				Expect(err).NotTo(HaveOccurred())
			}
		}

		ids := func(recs []storage.Record) []string {
			out := make([]string, 0, len(recs))
			for _, r := range recs {
				out = append(out, r.ID())
			}
			return out
		}

		Describe("Insert", func() {
			It("assigns an id and creation time", func() {
				rec, err := driver.Insert(ctx, "feedback", storage.Record{"comment": "Great guide", "rating": 5})
				Expect(err).NotTo(HaveOccurred())
				Expect(rec.ID()).NotTo(BeEmpty())
				Expect(rec.Time(storage.ColumnCreatedAt).IsZero()).To(BeFalse())
				Expect(rec["rating"]).To(Equal(float64(5)))

				got, err := driver.Single(ctx, storage.From("feedback").Where("id", rec.ID()))
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(rec))
			})

			It("keeps a provided id and rejects duplicates", func() {
				_, err := driver.Insert(ctx, "feedback", storage.Record{"id": "fixed"})
				Expect(err).NotTo(HaveOccurred())

				_, err = driver.Insert(ctx, "feedback", storage.Record{"id": "fixed"})
				Expect(err).To(HaveOccurred())
			})

			It("rejects unsafe identifiers", func() {
				_, err := driver.Insert(ctx, "bad-name; drop", storage.Record{"a": 1})
				Expect(errors.Is(err, storage.ErrInvalidIdentifier)).To(BeTrue())

				_, err = driver.Insert(ctx, "feedback", storage.Record{"Bad Column": 1})
				Expect(errors.Is(err, storage.ErrInvalidIdentifier)).To(BeTrue())
			})
		})

		Describe("Select", func() {
			BeforeEach(seedDownloads)

			It("returns everything in insertion order without filters", func() {
				recs, err := driver.Select(ctx, storage.From("material_downloads"))
				Expect(err).NotTo(HaveOccurred())
				Expect(ids(recs)).To(Equal([]string{"d1", "d2", "d3"}))
			})

			It("filters by string, number and boolean columns", func() {
				recs, err := driver.Select(ctx, storage.From("material_downloads").Where("user_id", "u1"))
				Expect(err).NotTo(HaveOccurred())
				Expect(ids(recs)).To(Equal([]string{"d1", "d3"}))

				recs, err = driver.Select(ctx, storage.From("material_downloads").Where("count", 10))
				Expect(err).NotTo(HaveOccurred())
				Expect(ids(recs)).To(Equal([]string{"d2"}))

				recs, err = driver.Select(ctx, storage.From("material_downloads").Where("completed", true).Where("level", "S1"))
				Expect(err).NotTo(HaveOccurred())
				Expect(ids(recs)).To(Equal([]string{"d3"}))
			})

			It("orders and limits", func() {
				recs, err := driver.Select(ctx, storage.From("material_downloads").OrderBy("created_at", true))
				Expect(err).NotTo(HaveOccurred())
				Expect(ids(recs)).To(Equal([]string{"d2", "d3", "d1"}))

				recs, err = driver.Select(ctx, storage.From("material_downloads").OrderBy("count", false).Take(2))
				Expect(err).NotTo(HaveOccurred())
				Expect(ids(recs)).To(Equal([]string{"d3", "d1"}))
			})

			It("breaks ties by insertion order", func() {
				recs, err := driver.Select(ctx, storage.From("material_downloads").OrderBy("subject", false))
				Expect(err).NotTo(HaveOccurred())
				Expect(ids(recs)).To(Equal([]string{"d3", "d1", "d2"}))

				recs, err = driver.Select(ctx, storage.From("material_downloads").OrderBy("subject", true))
				Expect(err).NotTo(HaveOccurred())
				Expect(ids(recs)).To(Equal([]string{"d2", "d1", "d3"}))
			})

			It("returns nothing for an unknown collection", func() {
				recs, err := driver.Select(ctx, storage.From("never_written"))
				Expect(err).NotTo(HaveOccurred())
				Expect(recs).To(BeEmpty())
			})

			It("rejects unsafe column names", func() {
				_, err := driver.Select(ctx, storage.From("material_downloads").Where("x' OR 1=1 --", 1))
				Expect(errors.Is(err, storage.ErrInvalidIdentifier)).To(BeTrue())
			})
		})

		Describe("Single", func() {
			BeforeEach(seedDownloads)

			It("returns the only match", func() {
				rec, err := driver.Single(ctx, storage.From("material_downloads").Where("subject", "Biology"))
				Expect(err).NotTo(HaveOccurred())
				Expect(rec.ID()).To(Equal("d3"))
			})

			It("reports not found", func() {
				_, err := driver.Single(ctx, storage.From("material_downloads").Where("subject", "History"))
				Expect(storage.IsNotFound(err)).To(BeTrue())
			})

			It("reports multiple rows", func() {
				_, err := driver.Single(ctx, storage.From("material_downloads").Where("subject", "Math"))
				Expect(err).To(MatchError(storage.ErrMultipleRows))
			})
		})

		Describe("Update", func() {
			BeforeEach(seedDownloads)

			It("merges the patch into matching records", func() {
				n, err := driver.Update(ctx, storage.From("material_downloads").Where("user_id", "u1"), storage.Record{"completed": false, "note": "reset"})
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(Equal(2))

				rec, err := driver.Single(ctx, storage.From("material_downloads").Where("id", "d1"))
				Expect(err).NotTo(HaveOccurred())
				Expect(rec.Bool("completed")).To(BeFalse())
				Expect(rec.String("note")).To(Equal("reset"))
				Expect(rec.String("subject")).To(Equal("Math"))
			})

			It("returns zero when nothing matches", func() {
				n, err := driver.Update(ctx, storage.From("material_downloads").Where("user_id", "nobody"), storage.Record{"note": "x"})
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(BeZero())
			})

			It("refuses to change the id", func() {
				_, err := driver.Update(ctx, storage.From("material_downloads"), storage.Record{"id": "other"})
				Expect(err).To(HaveOccurred())
			})
		})

		Describe("Delete", func() {
			BeforeEach(seedDownloads)

			It("removes matching records", func() {
				n, err := driver.Delete(ctx, storage.From("material_downloads").Where("subject", "Math"))
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(Equal(2))

				recs, err := driver.Select(ctx, storage.From("material_downloads"))
				Expect(err).NotTo(HaveOccurred())
				Expect(ids(recs)).To(Equal([]string{"d3"}))
			})
		})
	})
}
