// Package referralcmder provides the referral command. Teachers generate
// referral codes and students redeem one to see that teacher's study guides.
package referralcmder

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eduspark/portal/cmd/eduspark/portalenv"
	"github.com/eduspark/portal/pkg/cliui"
	"github.com/eduspark/portal/pkg/portal"
)

const referralLongDesc string = `Generate, list and redeem referral codes.

Every command acts as the signed-in user (auth.access_token).

Examples:
  eduspark referral generate
  eduspark referral list
  eduspark referral redeem EDU-4K2Q9Z`

const referralShortDesc string = "Generate, list and redeem referral codes"

func NewReferralCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "referral",
		Short: referralShortDesc,
		Long:  referralLongDesc,
	}

	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newRedeemCmd())

	return cmd
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Issue a new referral code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := portalenv.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			code, err := portal.NewReferrals(env.Store, env.Identity).Generate(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s Referral code %s\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(code.Code),
			)
			return nil
		},
	}
	portalenv.AddFlags(cmd)

	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the referral codes you issued",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := portalenv.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			codes, err := portal.NewReferrals(env.Store, env.Identity).List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(codes) == 0 {
				fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render("No referral codes yet. Run \"eduspark referral generate\"."))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tCREATED")
			for _, c := range codes {
				fmt.Fprintf(w, "%s\t%s\n", c.Code, c.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
	portalenv.AddFlags(cmd)

	return cmd
}

func newRedeemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redeem <code>",
		Short: "Redeem a teacher's referral code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := portalenv.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := portal.NewReferrals(env.Store, env.Identity).Redeem(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s Referral code redeemed. Your teacher's study guides are now listed by \"eduspark guides list\".\n",
				cliui.SuccessMark,
			)
			return nil
		},
	}
	portalenv.AddFlags(cmd)

	return cmd
}
