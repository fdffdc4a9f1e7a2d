package portal_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eduspark/portal/pkg/identity"
	"github.com/eduspark/portal/pkg/logger"
	"github.com/eduspark/portal/pkg/portal"
	"github.com/eduspark/portal/pkg/storage"
	"github.com/eduspark/portal/pkg/storage/inmemory"
)

var _ = Describe("Tracker", func() {
	var (
		ctx   context.Context
		store *inmemory.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()
	})

	trackerFor := func(userID string) *portal.Tracker {
		ids := identity.Static{}
		if userID != "" {
			ids.Session = &identity.Session{UserID: userID}
		}
		return portal.NewTracker(store, ids, logger.Nop())
	}

	It("records downloads for the signed-in user", func() {
		t := trackerFor("student-1")
		Expect(t.Track(ctx, "Mathematics", "S1", "Mathematics")).To(Succeed())

		recs, err := store.Select(ctx, storage.From("material_downloads"))
		Expect(err).NotTo(HaveOccurred())
		Expect(recs).To(HaveLen(1))
		Expect(recs[0].String("user_id")).To(Equal("student-1"))
		Expect(recs[0].String("level")).To(Equal("S1"))
		Expect(recs[0].Bool("completed")).To(BeFalse())
	})

	It("ignores signed out users", func() {
		Expect(trackerFor("").Track(ctx, "Mathematics", "S1", "Mathematics")).To(Succeed())

		recs, err := store.Select(ctx, storage.From("material_downloads"))
		Expect(err).NotTo(HaveOccurred())
		Expect(recs).To(BeEmpty())
	})

	It("counts catalog downloads under the material key", func() {
		t := trackerFor("student-1")
		m := portal.Material{Level: "S1", Subject: "Physics"}
		Expect(t.TrackMaterial(ctx, m)).To(Succeed())
		Expect(t.TrackMaterial(ctx, m)).To(Succeed())
		Expect(t.Track(ctx, "Algebra notes", "S1", "Mathematics")).To(Succeed())

		counts, err := t.Counts(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(counts).To(Equal(map[string]int{"S1 - Physics": 2, "Algebra notes": 1}))
	})

	It("returns recent downloads newest first", func() {
		for i, name := range []string{"first", "second", "third"} {
			_, err := store.Insert(ctx, "material_downloads", storage.Record{
				"user_id":       "student-1",
				"material_name": name,
				"downloaded_at": time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC).Format(storage.TimeFormat),
			})
			Expect(err).NotTo(HaveOccurred())
		}

		recent, err := trackerFor("admin").Recent(ctx, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(recent).To(HaveLen(2))
		Expect(recent[0].MaterialName).To(Equal("third"))
		Expect(recent[1].MaterialName).To(Equal("second"))
		Expect(recent[0].DownloadedAt).To(BeTemporally("==", time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)))
	})

	It("marks only the user's own downloads completed", func() {
		Expect(trackerFor("student-1").Track(ctx, "Physics", "S1", "Physics")).To(Succeed())
		recs, err := store.Select(ctx, storage.From("material_downloads"))
		Expect(err).NotTo(HaveOccurred())
		id := recs[0].ID()

		err = trackerFor("student-2").Complete(ctx, id)
		Expect(storage.IsNotFound(err)).To(BeTrue())

		Expect(trackerFor("student-1").Complete(ctx, id)).To(Succeed())
		rec, err := store.Single(ctx, storage.From("material_downloads").Where("id", id))
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Bool("completed")).To(BeTrue())
	})
})

var _ = Describe("Summarize", func() {
	It("aggregates downloads", func() {
		var downloads []portal.Download
		for i := range 12 {
			downloads = append(downloads, portal.Download{
				ID:        string(rune('a' + i)),
				UserID:    []string{"s1", "s2", "s3"}[i%3],
				Subject:   []string{"Maths", "Physics"}[i%2],
				Level:     "S1",
				Completed: i < 4,
			})
		}

		s := portal.Summarize(downloads)
		Expect(s.Total).To(Equal(12))
		Expect(s.UniqueStudents).To(Equal(3))
		Expect(s.Completed).To(Equal(4))
		Expect(s.BySubject).To(Equal([]portal.Count{
			{Name: "Maths", Downloads: 6},
			{Name: "Physics", Downloads: 6},
		}))
		Expect(s.ByLevel).To(Equal([]portal.Count{{Name: "S1", Downloads: 12}}))
		Expect(s.Recent).To(HaveLen(10))
		Expect(s.Recent[0].ID).To(Equal("a"))
	})

	It("handles no downloads", func() {
		s := portal.Summarize(nil)
		Expect(s.Total).To(BeZero())
		Expect(s.BySubject).To(BeEmpty())
		Expect(s.Recent).To(BeEmpty())
	})
})
