package guidescmder

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eduspark/portal/cmd/eduspark/portalenv"
	"github.com/eduspark/portal/pkg/cliui"
	"github.com/eduspark/portal/pkg/portal"
	"github.com/eduspark/portal/pkg/storage"
	"github.com/eduspark/portal/pkg/utils"
)

const titleWidth = 40

func newListCmd() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the study guides available to you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := portalenv.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			guides, err := visibleGuides(cmd.Context(), env)
			if err != nil {
				return err
			}
			guides = portal.SearchGuides(guides, search)

			out := cmd.OutOrStdout()
			if len(guides) == 0 {
				fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render("No study guides found."))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSUBJECT\tLEVEL\tFILE")
			for _, g := range guides {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", g.ID, utils.Truncate(g.Title, titleWidth), g.Subject, g.EducationLevel, g.FileURL)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Only show guides whose title, subject or level contains this text")
	portalenv.AddFlags(cmd)

	return cmd
}

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <guide-id>",
		Short: "Record a study guide download and print its link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := portalenv.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			guides, err := visibleGuides(cmd.Context(), env)
			if err != nil {
				return err
			}

			for _, g := range guides {
				if g.ID != args[0] {
					continue
				}

				tracker := portal.NewTracker(env.Store, env.Identity, env.Logger)
				if err := tracker.Track(cmd.Context(), g.Title, g.EducationLevel, g.Subject); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n  %s\n  %s\n",
					cliui.SuccessMark,
					cliui.NameStyle.Render(g.Title),
					g.FileURL,
					cliui.DimStyle.Render(fmt.Sprintf("Was it helpful? eduspark guides feedback %s --helpful=true|false", g.ID)),
				)
				return nil
			}

			return storage.NotFoundError{Collection: "study_guides"}
		},
	}
	portalenv.AddFlags(cmd)

	return cmd
}

// visibleGuides lists the guides the signed-in student may open.
func visibleGuides(ctx context.Context, env *portalenv.Env) ([]portal.StudyGuide, error) {
	// Listing never touches files, so a missing objects root is fine here.
	return portal.NewGuides(env.Store, env.Objects, env.Identity, env.Logger).ForStudent(ctx)
}
