// Package edusparkcmder
package edusparkcmder

import (
	"github.com/spf13/cobra"

	analyticscmder "github.com/eduspark/portal/cmd/eduspark/analytics"
	chatcmder "github.com/eduspark/portal/cmd/eduspark/chat"
	configcmder "github.com/eduspark/portal/cmd/eduspark/config"
	guidescmder "github.com/eduspark/portal/cmd/eduspark/guides"
	materialscmder "github.com/eduspark/portal/cmd/eduspark/materials"
	referralcmder "github.com/eduspark/portal/cmd/eduspark/referral"
	servecmder "github.com/eduspark/portal/cmd/eduspark/serve"
	versioncmder "github.com/eduspark/portal/cmd/version"
)

const edusparkLongDesc string = `EduSpark is the student portal toolkit.

Run the chat relay and talk to it:
  eduspark serve       Run the chat relay
  eduspark chat        Chat with the study assistant

Work with the portal:
  eduspark materials   Browse the materials catalog
  eduspark analytics   Summarize material downloads
  eduspark referral    Generate and redeem referral codes
  eduspark guides      Publish and browse study guides
  eduspark config      Manage persistent configuration`

const edusparkShortDesc string = "EduSpark - Student Portal"

func NewEdusparkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "eduspark",
		Short:        edusparkShortDesc,
		Long:         edusparkLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .eduspark/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(materialscmder.NewMaterialsCmd())
	cmd.AddCommand(analyticscmder.NewAnalyticsCmd())
	cmd.AddCommand(referralcmder.NewReferralCmd())
	cmd.AddCommand(guidescmder.NewGuidesCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
