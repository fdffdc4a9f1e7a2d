package portalenv_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/eduspark/portal/cmd/eduspark/portalenv"
	"github.com/eduspark/portal/pkg/identity"
	"github.com/eduspark/portal/pkg/storage/inmemory"
	"github.com/eduspark/portal/pkg/storage/sqlite"
)

var _ = Describe("Open", func() {
	var (
		tmpDir    string
		configDir string
		env       *portalenv.Env
	)

	// open runs a throwaway command so flags and context are wired the way
	// the real commands see them.
	open := func(args ...string) error {
		root := &cobra.Command{Use: "eduspark"}
		root.PersistentFlags().Bool("debug", false, "")
		root.PersistentFlags().String("config-dir", configDir, "")

		var openErr error
		cmd := &cobra.Command{
			Use: "probe",
			RunE: func(cmd *cobra.Command, _ []string) error {
				env, openErr = portalenv.Open(cmd)
				return openErr
			},
		}
		portalenv.AddFlags(cmd)
		root.AddCommand(cmd)
		root.SetArgs(append([]string{"probe"}, args...))
		root.SetOut(GinkgoWriter)
		root.SetErr(GinkgoWriter)
		return root.Execute()
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		configDir = filepath.Join(tmpDir, ".eduspark")
		env = nil
	})

	AfterEach(func() {
		if env != nil {
			Expect(env.Close()).To(Succeed())
		}
	})

	It("defaults to in-memory storage and a signed out session", func() {
		Expect(open()).To(Succeed())
		Expect(env.Store).To(BeAssignableToTypeOf(&inmemory.Driver{}))

		_, err := env.Identity.CurrentUser(context.Background())
		Expect(err).To(MatchError(identity.ErrSignedOut))

		_, err = env.RequireObjects()
		Expect(err).To(MatchError(portalenv.ErrNoObjectsRoot))
	})

	It("honors storage flags", func() {
		Expect(open("--storage", "sqlite", "--sqlite", filepath.Join(tmpDir, "portal.db"))).To(Succeed())
		Expect(env.Store).To(BeAssignableToTypeOf(&sqlite.Driver{}))
	})

	It("opens the objects root when configured", func() {
		root := filepath.Join(tmpDir, "files")
		Expect(open("--objects-root", root)).To(Succeed())

		objects, err := env.RequireObjects()
		Expect(err).NotTo(HaveOccurred())
		Expect(objects.PublicURL("guides/a.pdf")).To(Equal("/files/guides/a.pdf"))

		_, err = os.Stat(root)
		Expect(err).NotTo(HaveOccurred())
	})

	It("resolves the session from the configured token", func() {
		secret := "portal-secret"
		token, err := identity.Issue([]byte(secret), identity.Session{
			UserID:    "student-7",
			Email:     "s7@example.com",
			ExpiresAt: time.Now().Add(time.Hour),
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(os.MkdirAll(configDir, 0o755)).To(Succeed())
		data := "[auth]\naccess_token = \"" + token + "\"\njwt_secret = \"" + secret + "\"\n"
		Expect(os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		Expect(open()).To(Succeed())
		sess, err := env.Identity.CurrentUser(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(sess.UserID).To(Equal("student-7"))
	})

	It("reports unknown storage providers", func() {
		Expect(open("--storage", "mongo")).To(MatchError(ContainSubstring("unsupported storage provider")))
	})
})
