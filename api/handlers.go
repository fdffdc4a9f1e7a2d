package api

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/eduspark/portal/pkg/identity"
	"github.com/eduspark/portal/pkg/portal"
	"github.com/eduspark/portal/pkg/storage"
)

const localsIdentity = "identity"

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MaterialResponse is a catalog entry with its download count.
type MaterialResponse struct {
	Level     string `json:"level"`
	Subject   string `json:"subject"`
	Link      string `json:"link"`
	Downloads int    `json:"downloads"`
}

// MaterialsResponse is the filtered catalog.
type MaterialsResponse struct {
	Materials []MaterialResponse `json:"materials"`
	Total     int                `json:"total"`
	Levels    []string           `json:"levels"`
	Subjects  []string           `json:"subjects"`
}

// DownloadRequest names the catalog entry being downloaded.
type DownloadRequest struct {
	Level   string `json:"level"`
	Subject string `json:"subject"`
}

// CountResponse is one row of an analytics breakdown.
type CountResponse struct {
	Name      string `json:"name"`
	Downloads int    `json:"downloads"`
}

// AnalyticsResponse is the download dashboard.
type AnalyticsResponse struct {
	Total          int               `json:"total"`
	UniqueStudents int               `json:"unique_students"`
	Completed      int               `json:"completed"`
	BySubject      []CountResponse   `json:"by_subject"`
	ByLevel        []CountResponse   `json:"by_level"`
	Recent         []portal.Download `json:"recent"`
}

// FeedbackRequest rates a study guide. IsHelpful defaults to true.
type FeedbackRequest struct {
	IsHelpful *bool  `json:"is_helpful"`
	Comment   string `json:"comment"`
}

// RedeemRequest carries the code a student redeems.
type RedeemRequest struct {
	Code string `json:"code"`
}

// authenticate resolves the bearer token, if any, into the request's
// identity. Requests without one are treated as signed out.
func (s *Server) authenticate(c *fiber.Ctx) error {
	token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		c.Locals(localsIdentity, identity.Static{})
		return c.Next()
	}

	sess, err := identity.Verify([]byte(s.config.JWTSecret), token, time.Now)
	if err != nil {
		s.logger.Debug("rejecting access token", "error", err)
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "invalid access token"})
	}

	c.Locals(localsIdentity, identity.Static{Session: sess})
	return c.Next()
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func identityFor(c *fiber.Ctx) identity.Provider {
	if ids, ok := c.Locals(localsIdentity).(identity.Provider); ok {
		return ids
	}
	return identity.Static{}
}

// writeError maps portal errors onto HTTP statuses.
func (s *Server) writeError(c *fiber.Ctx, err error) error {
	var validation *portal.ValidationError

	status := fiber.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, identity.ErrSignedOut):
		status, msg = fiber.StatusUnauthorized, err.Error()
	case errors.As(err, &validation):
		status, msg = fiber.StatusBadRequest, err.Error()
	case storage.IsNotFound(err), errors.Is(err, portal.ErrUnknownReferralCode):
		status, msg = fiber.StatusNotFound, err.Error()
	case errors.Is(err, portal.ErrAlreadyRedeemed):
		status, msg = fiber.StatusConflict, err.Error()
	default:
		s.logger.Error("api request failed",
			"path", c.Path(),
			"error", err,
		)
	}

	return c.Status(status).JSON(ErrorResponse{Error: msg})
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListMaterials returns the catalog narrowed by the search, level,
// subject and sort query parameters.
func (s *Server) handleListMaterials(c *fiber.Ctx) error {
	sort := c.Query("sort", portal.SortNewest)
	if sort != portal.SortNewest && sort != portal.SortMostDownloaded {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid sort " + strconv.Quote(sort)})
	}

	tracker := portal.NewTracker(s.store, identityFor(c), s.logger)
	counts, err := tracker.Counts(c.Context())
	if err != nil {
		return s.writeError(c, err)
	}

	filtered := portal.FilterMaterials(s.config.Catalog, portal.Filter{
		Search:  c.Query("search"),
		Level:   c.Query("level"),
		Subject: c.Query("subject"),
		Sort:    sort,
	}, counts)

	materials := make([]MaterialResponse, 0, len(filtered))
	for _, m := range filtered {
		materials = append(materials, MaterialResponse{
			Level:     m.Level,
			Subject:   m.Subject,
			Link:      m.Link,
			Downloads: counts[m.Key()],
		})
	}

	return c.JSON(MaterialsResponse{
		Materials: materials,
		Total:     len(s.config.Catalog),
		Levels:    portal.Levels(s.config.Catalog),
		Subjects:  portal.Subjects(s.config.Catalog),
	})
}

// handleTrackDownload records a catalog download and returns its entry.
func (s *Server) handleTrackDownload(c *fiber.Ctx) error {
	var req DownloadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	for _, m := range s.config.Catalog {
		if !strings.EqualFold(m.Level, req.Level) || !strings.EqualFold(m.Subject, req.Subject) {
			continue
		}

		tracker := portal.NewTracker(s.store, identityFor(c), s.logger)
		if err := tracker.TrackMaterial(c.Context(), m); err != nil {
			return s.writeError(c, err)
		}
		return c.JSON(m)
	}

	return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "material not found"})
}

// handleCompleteDownload marks one of the caller's downloads as completed.
func (s *Server) handleCompleteDownload(c *fiber.Ctx) error {
	tracker := portal.NewTracker(s.store, identityFor(c), s.logger)
	if err := tracker.Complete(c.Context(), c.Params("id")); err != nil {
		return s.writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleAnalytics summarizes the most recent downloads. limit=0 covers all.
func (s *Server) handleAnalytics(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "limit must not be negative"})
	}

	tracker := portal.NewTracker(s.store, identityFor(c), s.logger)
	downloads, err := tracker.Recent(c.Context(), limit)
	if err != nil {
		return s.writeError(c, err)
	}

	summary := portal.Summarize(downloads)
	return c.JSON(AnalyticsResponse{
		Total:          summary.Total,
		UniqueStudents: summary.UniqueStudents,
		Completed:      summary.Completed,
		BySubject:      countResponses(summary.BySubject),
		ByLevel:        countResponses(summary.ByLevel),
		Recent:         summary.Recent,
	})
}

func countResponses(counts []portal.Count) []CountResponse {
	out := make([]CountResponse, 0, len(counts))
	for _, c := range counts {
		out = append(out, CountResponse{Name: c.Name, Downloads: c.Downloads})
	}
	return out
}

// handleListGuides lists the guides visible to the signed-in student.
func (s *Server) handleListGuides(c *fiber.Ctx) error {
	guides := portal.NewGuides(s.store, nil, identityFor(c), s.logger)
	visible, err := guides.ForStudent(c.Context())
	if err != nil {
		return s.writeError(c, err)
	}

	matched := portal.SearchGuides(visible, c.Query("search"))
	return c.JSON(map[string]any{
		"count":  len(matched),
		"guides": matched,
	})
}

// handleGuideFeedback stores the caller's rating of a guide.
func (s *Server) handleGuideFeedback(c *fiber.Ctx) error {
	var req FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	in := portal.FeedbackInput{
		GuideID:   c.Params("id"),
		IsHelpful: req.IsHelpful == nil || *req.IsHelpful,
		Comment:   req.Comment,
	}
	if err := portal.SubmitFeedback(c.Context(), s.store, identityFor(c), in); err != nil {
		return s.writeError(c, err)
	}
	return c.SendStatus(fiber.StatusCreated)
}

// handleListReferrals returns the caller's referral codes.
func (s *Server) handleListReferrals(c *fiber.Ctx) error {
	codes, err := portal.NewReferrals(s.store, identityFor(c)).List(c.Context())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(map[string]any{
		"count": len(codes),
		"codes": codes,
	})
}

// handleGenerateReferral issues a new referral code for the caller.
func (s *Server) handleGenerateReferral(c *fiber.Ctx) error {
	code, err := portal.NewReferrals(s.store, identityFor(c)).Generate(c.Context())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(code)
}

// handleRedeemReferral links the caller to the teacher that issued a code.
func (s *Server) handleRedeemReferral(c *fiber.Ctx) error {
	var req RedeemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if err := portal.NewReferrals(s.store, identityFor(c)).Redeem(c.Context(), req.Code); err != nil {
		return s.writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
