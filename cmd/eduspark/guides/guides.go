// Package guidescmder provides the guides command for publishing study
// guides and browsing the ones a student can see.
package guidescmder

import (
	"github.com/spf13/cobra"
)

const guidesLongDesc string = `Publish and browse study guides.

Teachers publish guide files into the objects root; students see the guides of
the teacher whose referral code they redeemed, or the public guides otherwise.
Every command acts as the signed-in user (auth.access_token).

Examples:
  eduspark guides publish notes.pdf --title "Forces" --subject Physics --level S3
  eduspark guides list --search physics
  eduspark guides download <guide-id>
  eduspark guides feedback <guide-id> --helpful=false --comment "Too short"
  eduspark guides remove <guide-id>`

const guidesShortDesc string = "Publish and browse study guides"

func NewGuidesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guides",
		Short: guidesShortDesc,
		Long:  guidesLongDesc,
	}

	cmd.AddCommand(newPublishCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newDownloadCmd())
	cmd.AddCommand(newFeedbackCmd())
	cmd.AddCommand(newRemoveCmd())

	return cmd
}
