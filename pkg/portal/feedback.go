package portal

import (
	"context"
	"fmt"

	"github.com/eduspark/portal/pkg/identity"
	"github.com/eduspark/portal/pkg/storage"
)

// FeedbackInput rates a study guide.
type FeedbackInput struct {
	GuideID   string
	IsHelpful bool
	Comment   string
}

// Validate trims the comment in place and checks its length.
func (in *FeedbackInput) Validate() error {
	return validateFields([]fieldRule{
		{field: "comment", value: &in.Comment, max: 1000,
			tooMany: "Comment must be less than 1000 characters"},
	})
}

// SubmitFeedback stores the signed-in user's rating of a guide.
func SubmitFeedback(ctx context.Context, store storage.Driver, ids identity.Provider, in FeedbackInput) error {
	if err := in.Validate(); err != nil {
		return err
	}

	sess, err := ids.CurrentUser(ctx)
	if err != nil {
		return err
	}

	var comment any
	if in.Comment != "" {
		comment = in.Comment
	}
	_, err = store.Insert(ctx, collectionFeedback, storage.Record{
		"user_id":        sess.UserID,
		"study_guide_id": in.GuideID,
		"is_helpful":     in.IsHelpful,
		"comment":        comment,
	})
	if err != nil {
		return fmt.Errorf("storing feedback: %w", err)
	}
	return nil
}
