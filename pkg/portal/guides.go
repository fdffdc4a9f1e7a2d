package portal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/eduspark/portal/pkg/identity"
	"github.com/eduspark/portal/pkg/objectstore"
	"github.com/eduspark/portal/pkg/storage"
)

// ValidationError reports the first invalid field of an input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type fieldRule struct {
	field   string
	value   *string
	min     int
	max     int
	tooFew  string
	tooMany string
}

func validateFields(rules []fieldRule) error {
	for _, r := range rules {
		*r.value = strings.TrimSpace(*r.value)
		n := utf8.RuneCountInString(*r.value)
		if n < r.min {
			return &ValidationError{Field: r.field, Message: r.tooFew}
		}
		if n > r.max {
			return &ValidationError{Field: r.field, Message: r.tooMany}
		}
	}
	return nil
}

// GuideInput is the form a teacher fills in to publish a study guide.
type GuideInput struct {
	Title       string
	Subject     string
	Level       string
	Description string
}

// Validate trims every field in place and checks its length.
func (in *GuideInput) Validate() error {
	return validateFields([]fieldRule{
		{field: "title", value: &in.Title, min: 1, max: 200,
			tooFew: "Title is required", tooMany: "Title must be less than 200 characters"},
		{field: "subject", value: &in.Subject, min: 1, max: 100,
			tooFew: "Subject is required", tooMany: "Subject must be less than 100 characters"},
		{field: "level", value: &in.Level, min: 1, max: 50,
			tooFew: "Education level is required", tooMany: "Education level must be less than 50 characters"},
		{field: "description", value: &in.Description, max: 1000,
			tooMany: "Description must be less than 1000 characters"},
	})
}

// StudyGuide is one row of the study_guides collection. A nil CreatedBy
// marks a public guide.
type StudyGuide struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Subject        string    `json:"subject"`
	EducationLevel string    `json:"education_level"`
	Description    *string   `json:"description"`
	FileURL        string    `json:"file_url"`
	FileKey        string    `json:"file_key,omitempty"`
	CreatedBy      *string   `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// Guides publishes study guides and lists them for students.
type Guides struct {
	store     storage.Driver
	objects   objectstore.Driver
	identity  identity.Provider
	referrals *Referrals
	logger    *slog.Logger
}

func NewGuides(store storage.Driver, objects objectstore.Driver, ids identity.Provider, logger *slog.Logger) *Guides {
	return &Guides{
		store:     store,
		objects:   objects,
		identity:  ids,
		referrals: NewReferrals(store, ids),
		logger:    logger,
	}
}

// Publish uploads the guide file and records it for the signed-in teacher.
// The upload is removed again if the record cannot be stored.
func (g *Guides) Publish(ctx context.Context, in GuideInput, filename string, file io.Reader) (StudyGuide, error) {
	if err := in.Validate(); err != nil {
		return StudyGuide{}, err
	}

	sess, err := g.identity.CurrentUser(ctx)
	if err != nil {
		return StudyGuide{}, err
	}

	key := path.Join("guides", sess.UserID, uuid.NewString(), path.Base(filename))
	if _, err := objectstore.CleanKey(key); err != nil {
		return StudyGuide{}, err
	}
	if err := g.objects.Upload(ctx, key, file); err != nil {
		return StudyGuide{}, fmt.Errorf("uploading study guide: %w", err)
	}

	var description any
	if in.Description != "" {
		description = in.Description
	}
	rec, err := g.store.Insert(ctx, collectionGuides, storage.Record{
		"title":           in.Title,
		"subject":         in.Subject,
		"education_level": in.Level,
		"description":     description,
		"file_url":        g.objects.PublicURL(key),
		"file_key":        key,
		"created_by":      sess.UserID,
	})
	if err != nil {
		if delErr := g.objects.Delete(ctx, key); delErr != nil {
			g.logger.Warn("removing orphaned upload", "key", key, "error", delErr)
		}
		return StudyGuide{}, fmt.Errorf("storing study guide: %w", err)
	}

	var guide StudyGuide
	if err := storage.Decode(rec, &guide); err != nil {
		return StudyGuide{}, err
	}
	g.logger.Info("published study guide", "id", guide.ID, "title", guide.Title)
	return guide, nil
}

// Remove deletes one of the signed-in teacher's guides and its file.
func (g *Guides) Remove(ctx context.Context, id string) error {
	sess, err := g.identity.CurrentUser(ctx)
	if err != nil {
		return err
	}

	q := storage.From(collectionGuides).Where(storage.ColumnID, id).Where("created_by", sess.UserID)
	rec, err := g.store.Single(ctx, q)
	if err != nil {
		return err
	}

	if key := rec.String("file_key"); key != "" {
		if err := g.objects.Delete(ctx, key); err != nil {
			g.logger.Warn("removing study guide file", "key", key, "error", err)
		}
	}

	if _, err := g.store.Delete(ctx, q); err != nil {
		return fmt.Errorf("deleting study guide: %w", err)
	}
	return nil
}

// ForStudent lists the guides visible to the signed-in student, newest
// first. Students who redeemed a referral code see their teacher's guides;
// everyone else sees public guides. A profile education level narrows the
// list to that level.
func (g *Guides) ForStudent(ctx context.Context) ([]StudyGuide, error) {
	sess, err := g.identity.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	q := storage.From(collectionGuides).OrderBy(storage.ColumnCreatedAt, true)

	profile, err := g.store.Single(ctx, storage.From(collectionProfiles).Where(storage.ColumnID, sess.UserID))
	switch {
	case err == nil:
		if level := profile.String("education_level"); level != "" {
			q = q.Where("education_level", level)
		}
	case !storage.IsNotFound(err):
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	teacher, err := g.referrals.teacherFor(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if teacher != "" {
		q = q.Where("created_by", teacher)
	} else {
		q = q.Where("created_by", nil)
	}

	recs, err := g.store.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing study guides: %w", err)
	}
	return storage.DecodeAll[StudyGuide](recs)
}

// SearchGuides keeps guides whose title, subject or level contains term,
// ignoring case.
func SearchGuides(guides []StudyGuide, term string) []StudyGuide {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return guides
	}

	out := make([]StudyGuide, 0, len(guides))
	for _, guide := range guides {
		if strings.Contains(strings.ToLower(guide.Title), term) ||
			strings.Contains(strings.ToLower(guide.Subject), term) ||
			strings.Contains(strings.ToLower(guide.EducationLevel), term) {
			out = append(out, guide)
		}
	}
	return out
}
