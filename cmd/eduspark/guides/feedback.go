package guidescmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eduspark/portal/cmd/eduspark/portalenv"
	"github.com/eduspark/portal/pkg/cliui"
	"github.com/eduspark/portal/pkg/portal"
)

func newFeedbackCmd() *cobra.Command {
	in := portal.FeedbackInput{}

	cmd := &cobra.Command{
		Use:   "feedback <guide-id>",
		Short: "Rate a study guide",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.GuideID = args[0]

			env, err := portalenv.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := portal.SubmitFeedback(cmd.Context(), env.Store, env.Identity, in); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s Thank you for your feedback!\n", cliui.SuccessMark)
			return nil
		},
	}

	cmd.Flags().BoolVar(&in.IsHelpful, "helpful", true, "Whether the guide was helpful")
	cmd.Flags().StringVar(&in.Comment, "comment", "", "Optional comment")
	portalenv.AddFlags(cmd)

	return cmd
}
