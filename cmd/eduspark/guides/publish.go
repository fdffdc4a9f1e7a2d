package guidescmder

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eduspark/portal/cmd/eduspark/portalenv"
	"github.com/eduspark/portal/pkg/cliui"
	"github.com/eduspark/portal/pkg/portal"
)

func newPublishCmd() *cobra.Command {
	var in portal.GuideInput

	cmd := &cobra.Command{
		Use:   "publish <file>",
		Short: "Publish a study guide file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := in.Validate(); err != nil {
				return err
			}

			env, err := portalenv.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			objects, err := env.RequireObjects()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening study guide file: %w", err)
			}
			defer f.Close()

			guide, err := portal.NewGuides(env.Store, objects, env.Identity, env.Logger).
				Publish(cmd.Context(), in, f.Name(), f)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s Published %s %s\n  %s\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(guide.Title),
				cliui.DimStyle.Render("("+guide.ID+")"),
				guide.FileURL,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Title, "title", "", "Guide title")
	cmd.Flags().StringVar(&in.Subject, "subject", "", "Subject the guide covers")
	cmd.Flags().StringVar(&in.Level, "level", "", "Education level the guide is written for")
	cmd.Flags().StringVar(&in.Description, "description", "", "Optional description")
	portalenv.AddFlags(cmd)

	return cmd
}

func newRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <guide-id>",
		Short: "Remove one of your study guides and its file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := portalenv.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			objects, err := env.RequireObjects()
			if err != nil {
				return err
			}

			if err := portal.NewGuides(env.Store, objects, env.Identity, env.Logger).Remove(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s Removed %s\n", cliui.SuccessMark, args[0])
			return nil
		},
	}
	portalenv.AddFlags(cmd)

	return cmd
}
