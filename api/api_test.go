package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eduspark/portal/pkg/identity"
	"github.com/eduspark/portal/pkg/logger"
	"github.com/eduspark/portal/pkg/portal"
	"github.com/eduspark/portal/pkg/storage"
	"github.com/eduspark/portal/pkg/storage/inmemory"
)

const testSecret = "api-test-secret"

var testCatalog = []portal.Material{
	{Level: "S1", Subject: "Physics", Link: "https://example.com/s1-physics.pdf"},
	{Level: "S1", Subject: "Biology", Link: "https://example.com/s1-biology.pdf"},
	{Level: "S3", Subject: "Chemistry", Link: "https://example.com/s3-chemistry.pdf"},
}

var _ = Describe("Server", func() {
	var (
		server *Server
		store  *inmemory.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()
		server = NewServer(Config{
			ListenAddr: ":0",
			JWTSecret:  testSecret,
			Catalog:    testCatalog,
		}, store, logger.Nop())
	})

	AfterEach(func() {
		_ = server.Shutdown()
	})

	tokenFor := func(userID string) string {
		token, err := identity.Issue([]byte(testSecret), identity.Session{
			UserID:    userID,
			ExpiresAt: time.Now().Add(time.Hour),
		})
		Expect(err).NotTo(HaveOccurred())
		return token
	}

	do := func(method, path, token, body string) *http.Response {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, reader)
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	decode := func(resp *http.Response, v any) {
		Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
	}

	It("answers ping", func() {
		resp := do(http.MethodGet, "/ping", "", "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var body string
		decode(resp, &body)
		Expect(body).To(Equal("pong"))
	})

	Describe("authentication", func() {
		It("rejects an invalid bearer token", func() {
			resp := do(http.MethodGet, "/v1/referrals", "not-a-jwt", "")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

			var body ErrorResponse
			decode(resp, &body)
			Expect(body.Error).To(Equal("invalid access token"))
		})

		It("treats a missing token as signed out", func() {
			resp := do(http.MethodGet, "/v1/referrals", "", "")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

			var body ErrorResponse
			decode(resp, &body)
			Expect(body.Error).To(Equal(identity.ErrSignedOut.Error()))
		})
	})

	DescribeTable("bearerToken",
		func(header, want string, ok bool) {
			got, gotOK := bearerToken(header)
			Expect(gotOK).To(Equal(ok))
			Expect(got).To(Equal(want))
		},
		Entry("bearer", "Bearer abc", "abc", true),
		Entry("lower case scheme", "bearer abc", "abc", true),
		Entry("empty", "", "", false),
		Entry("basic auth", "Basic abc", "", false),
		Entry("scheme only", "Bearer ", "", false),
	)

	Describe("materials", func() {
		It("lists the catalog with download counts", func() {
			resp := do(http.MethodPost, "/v1/materials/downloads", tokenFor("student-1"), `{"level":"S3","subject":"Chemistry"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			resp = do(http.MethodGet, "/v1/materials?sort=most-downloaded", "", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body MaterialsResponse
			decode(resp, &body)
			Expect(body.Total).To(Equal(3))
			Expect(body.Levels).To(Equal([]string{"S1", "S3"}))
			Expect(body.Materials).To(HaveLen(3))
			Expect(body.Materials[0].Subject).To(Equal("Chemistry"))
			Expect(body.Materials[0].Downloads).To(Equal(1))
		})

		It("filters by level and search term", func() {
			resp := do(http.MethodGet, "/v1/materials?level=S1&search=bio", "", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body MaterialsResponse
			decode(resp, &body)
			Expect(body.Materials).To(HaveLen(1))
			Expect(body.Materials[0].Link).To(Equal("https://example.com/s1-biology.pdf"))
		})

		It("rejects an unknown sort", func() {
			resp := do(http.MethodGet, "/v1/materials?sort=oldest", "", "")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 for a material outside the catalog", func() {
			resp := do(http.MethodPost, "/v1/materials/downloads", "", `{"level":"S6","subject":"Latin"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("lets signed out students download without recording it", func() {
			resp := do(http.MethodPost, "/v1/materials/downloads", "", `{"level":"s1","subject":"physics"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var m portal.Material
			decode(resp, &m)
			Expect(m.Link).To(Equal("https://example.com/s1-physics.pdf"))

			recs, err := store.Select(ctx, storage.From("material_downloads"))
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(BeEmpty())
		})

		It("completes the caller's download", func() {
			rec, err := store.Insert(ctx, "material_downloads", storage.Record{
				"user_id":       "student-1",
				"material_name": "S1 - Physics",
				"level":         "S1",
				"subject":       "Physics",
				"completed":     false,
			})
			Expect(err).NotTo(HaveOccurred())

			resp := do(http.MethodPost, "/v1/materials/downloads/"+rec.ID()+"/complete", tokenFor("student-2"), "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			resp = do(http.MethodPost, "/v1/materials/downloads/"+rec.ID()+"/complete", tokenFor("student-1"), "")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			stored, err := store.Single(ctx, storage.From("material_downloads").Where(storage.ColumnID, rec.ID()))
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Bool("completed")).To(BeTrue())
		})
	})

	Describe("analytics", func() {
		It("summarizes downloads", func() {
			do(http.MethodPost, "/v1/materials/downloads", tokenFor("student-1"), `{"level":"S1","subject":"Physics"}`)
			do(http.MethodPost, "/v1/materials/downloads", tokenFor("student-2"), `{"level":"S1","subject":"Physics"}`)
			do(http.MethodPost, "/v1/materials/downloads", tokenFor("student-2"), `{"level":"S3","subject":"Chemistry"}`)

			resp := do(http.MethodGet, "/v1/analytics", "", "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body AnalyticsResponse
			decode(resp, &body)
			Expect(body.Total).To(Equal(3))
			Expect(body.UniqueStudents).To(Equal(2))
			Expect(body.BySubject).To(Equal([]CountResponse{
				{Name: "Physics", Downloads: 2},
				{Name: "Chemistry", Downloads: 1},
			}))
			Expect(body.ByLevel[0]).To(Equal(CountResponse{Name: "S1", Downloads: 2}))
			Expect(body.Recent).To(HaveLen(3))
		})

		It("rejects a negative limit", func() {
			resp := do(http.MethodGet, "/v1/analytics?limit=-1", "", "")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("guides", func() {
		BeforeEach(func() {
			for _, g := range []storage.Record{
				{"title": "Public algebra", "subject": "Mathematics", "education_level": "S1", "file_url": "/files/a.pdf", "created_by": nil},
				{"title": "Public optics", "subject": "Physics", "education_level": "S1", "file_url": "/files/b.pdf", "created_by": nil},
				{"title": "Private notes", "subject": "Physics", "education_level": "S1", "file_url": "/files/c.pdf", "created_by": "teacher-1"},
			} {
				_, err := store.Insert(ctx, "study_guides", g)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("requires a signed in student", func() {
			resp := do(http.MethodGet, "/v1/guides", "", "")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("lists public guides matching the search term", func() {
			resp := do(http.MethodGet, "/v1/guides?search=optics", tokenFor("student-1"), "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body struct {
				Count  int                 `json:"count"`
				Guides []portal.StudyGuide `json:"guides"`
			}
			decode(resp, &body)
			Expect(body.Count).To(Equal(1))
			Expect(body.Guides[0].Title).To(Equal("Public optics"))
		})

		It("stores feedback, helpful by default", func() {
			resp := do(http.MethodPost, "/v1/guides/guide-1/feedback", tokenFor("student-1"), `{"comment":"  clear  "}`)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			rec, err := store.Single(ctx, storage.From("feedback").Where("study_guide_id", "guide-1"))
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Bool("is_helpful")).To(BeTrue())
			Expect(rec.String("comment")).To(Equal("clear"))
		})

		It("rejects an overlong comment", func() {
			body, err := json.Marshal(FeedbackRequest{Comment: strings.Repeat("a", 1001)})
			Expect(err).NotTo(HaveOccurred())

			resp := do(http.MethodPost, "/v1/guides/guide-1/feedback", tokenFor("student-1"), string(body))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var errBody ErrorResponse
			decode(resp, &errBody)
			Expect(errBody.Error).To(Equal("Comment must be less than 1000 characters"))
		})
	})

	Describe("referrals", func() {
		It("generates, lists and redeems codes", func() {
			teacher := tokenFor("teacher-1")

			resp := do(http.MethodPost, "/v1/referrals", teacher, "")
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			var code portal.ReferralCode
			decode(resp, &code)
			Expect(code.Code).To(HavePrefix("EDU-"))

			resp = do(http.MethodGet, "/v1/referrals", teacher, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var list struct {
				Count int `json:"count"`
			}
			decode(resp, &list)
			Expect(list.Count).To(Equal(1))

			student := tokenFor("student-1")
			resp = do(http.MethodPost, "/v1/referrals/redeem", student, `{"code":"`+strings.ToLower(code.Code)+`"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			resp = do(http.MethodPost, "/v1/referrals/redeem", student, `{"code":"`+code.Code+`"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})

		It("returns 404 for an unknown code", func() {
			resp := do(http.MethodPost, "/v1/referrals/redeem", tokenFor("student-1"), `{"code":"EDU-ZZZZZZ"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})
})
