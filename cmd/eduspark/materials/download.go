package materialscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eduspark/portal/cmd/eduspark/portalenv"
	"github.com/eduspark/portal/pkg/cliui"
	"github.com/eduspark/portal/pkg/portal"
)

const downloadLongDesc string = `Record a catalog download and print its link.

The download is counted for the signed-in student (auth.access_token). When
nobody is signed in the link is still printed but nothing is recorded.

Examples:
  eduspark materials download S3 Physics`

func newDownloadCmd(parent *materialsCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <level> <subject>",
		Short: "Record a catalog download and print its link",
		Long:  downloadLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			materials, err := parent.loadCatalog()
			if err != nil {
				return err
			}

			var found *portal.Material
			for i := range materials {
				if materials[i].Level == args[0] && materials[i].Subject == args[1] {
					found = &materials[i]
					break
				}
			}
			if found == nil {
				return fmt.Errorf("no material for level %q and subject %q", args[0], args[1])
			}

			env, err := portalenv.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			tracker := portal.NewTracker(env.Store, env.Identity, env.Logger)
			if err := tracker.TrackMaterial(cmd.Context(), *found); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n  %s\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(found.Key()),
				found.Link,
			)
			return nil
		},
	}
	portalenv.AddFlags(cmd)

	return cmd
}

func newCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <download-id>",
		Short: "Mark one of your downloads as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := portalenv.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			tracker := portal.NewTracker(env.Store, env.Identity, env.Logger)
			if err := tracker.Complete(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s Marked %s as completed\n", cliui.SuccessMark, args[0])
			return nil
		},
	}
	portalenv.AddFlags(cmd)

	return cmd
}
