package materialscmder_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	materialscmder "github.com/eduspark/portal/cmd/eduspark/materials"
	"github.com/eduspark/portal/pkg/identity"
)

const testCatalog = `[
  {"level": "S1", "subject": "Mathematics", "link": "https://example.com/s1-math"},
  {"level": "S1", "subject": "Physics", "link": "https://example.com/s1-physics"},
  {"level": "S3", "subject": "Physics", "link": "https://example.com/s3-physics"}
]`

var _ = Describe("Materials command", func() {
	var (
		tmpDir    string
		configDir string
		catalog   string
		out       *bytes.Buffer
	)

	run := func(args ...string) error {
		root := &cobra.Command{Use: "eduspark"}
		root.PersistentFlags().Bool("debug", false, "")
		root.PersistentFlags().String("config-dir", configDir, "")
		root.AddCommand(materialscmder.NewMaterialsCmd())
		root.SetOut(out)
		root.SetErr(out)

		full := append([]string{"materials"}, args...)
		full = append(full, "--catalog", catalog, "--storage", "sqlite", "--sqlite", filepath.Join(tmpDir, "portal.db"))
		root.SetArgs(full)
		return root.Execute()
	}

	signIn := func(userID string) {
		secret := "materials-secret"
		token, err := identity.Issue([]byte(secret), identity.Session{UserID: userID, ExpiresAt: time.Now().Add(time.Hour)})
		Expect(err).NotTo(HaveOccurred())
		data := "[auth]\naccess_token = \"" + token + "\"\njwt_secret = \"" + secret + "\"\n"
		Expect(os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(data), 0o600)).To(Succeed())
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		configDir = filepath.Join(tmpDir, ".eduspark")
		Expect(os.MkdirAll(configDir, 0o755)).To(Succeed())
		catalog = filepath.Join(tmpDir, "catalog.json")
		Expect(os.WriteFile(catalog, []byte(testCatalog), 0o600)).To(Succeed())
		out = &bytes.Buffer{}
	})

	It("lists the whole catalog", func() {
		Expect(run()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("https://example.com/s1-math"))
		Expect(out.String()).To(ContainSubstring("https://example.com/s3-physics"))
		Expect(out.String()).To(ContainSubstring("3 of 3 materials."))
	})

	It("filters by level and search term", func() {
		Expect(run("--level", "S1", "--search", "phys")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("s1-physics"))
		Expect(out.String()).NotTo(ContainSubstring("s3-physics"))
		Expect(out.String()).NotTo(ContainSubstring("s1-math"))
	})

	It("says so when nothing matches", func() {
		Expect(run("--subject", "History")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No materials match the current filters."))
	})

	It("rejects an unknown sort order", func() {
		Expect(run("--sort", "alphabetical")).To(MatchError(ContainSubstring("invalid sort")))
	})

	It("ranks by recorded downloads", func() {
		signIn("student-1")
		Expect(run("download", "S3", "Physics")).To(Succeed())
		Expect(run("download", "S3", "Physics")).To(Succeed())
		Expect(run("download", "S1", "Physics")).To(Succeed())
		out.Reset()

		Expect(run("--sort", "most-downloaded")).To(Succeed())
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		Expect(lines[1]).To(ContainSubstring("s3-physics"))
		Expect(lines[1]).To(MatchRegexp(`S3\s+Physics\s+2`))
		Expect(lines[2]).To(ContainSubstring("s1-physics"))
		Expect(lines[3]).To(ContainSubstring("s1-math"))
	})

	It("prints the link without recording when signed out", func() {
		Expect(run("download", "S1", "Mathematics")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("https://example.com/s1-math"))
		out.Reset()

		Expect(run()).To(Succeed())
		Expect(out.String()).To(MatchRegexp(`S1\s+Mathematics\s+0`))
	})

	It("rejects materials that are not in the catalog", func() {
		Expect(run("download", "P6", "Chemistry")).To(MatchError(ContainSubstring("no material")))
	})

	It("requires a signed-in user to complete a download", func() {
		Expect(run("complete", "abc")).To(MatchError(identity.ErrSignedOut))
	})

	It("reports unknown downloads on complete", func() {
		signIn("student-1")
		Expect(run("complete", "missing")).To(MatchError(ContainSubstring("not found")))
	})
})
