package servecmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	servecmder "github.com/eduspark/portal/cmd/eduspark/serve"
)

var _ = Describe("NewServeCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := servecmder.NewServeCmd()
		Expect(cmd.Use).To(Equal("serve"))
	})

	DescribeTable("registers relay flags with config defaults",
		func(name, shorthand, def string) {
			cmd := servecmder.NewServeCmd()
			flag := cmd.Flags().Lookup(name)
			Expect(flag).NotTo(BeNil())
			Expect(flag.Shorthand).To(Equal(shorthand))
			Expect(flag.DefValue).To(Equal(def))
		},
		Entry("listen", "listen", "l", ":8080"),
		Entry("api-listen", "api-listen", "a", ":8081"),
		Entry("upstream", "upstream", "u", "https://api.openai.com/v1/chat/completions"),
		Entry("model", "model", "m", "gpt-4o-mini"),
		Entry("rate-limit", "rate-limit", "", "20"),
		Entry("workers", "workers", "", "3"),
		Entry("storage", "storage", "s", "memory"),
		Entry("sqlite", "sqlite", "", ""),
		Entry("postgres", "postgres", "", ""),
		Entry("objects-root", "objects-root", "", ""),
		Entry("kafka-brokers", "kafka-brokers", "", ""),
	)
})

var _ = Describe("Serve command execution", func() {
	var (
		tmpDir string
		root   *cobra.Command
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()

		root = &cobra.Command{Use: "eduspark"}
		root.PersistentFlags().BoolP("debug", "d", false, "")
		root.PersistentFlags().String("config-dir", filepath.Join(tmpDir, ".eduspark"), "")
		root.AddCommand(servecmder.NewServeCmd())
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
	})

	It("rejects an unknown storage provider", func() {
		root.SetArgs([]string{"serve", "--storage", "mongo"})
		Expect(root.Execute()).To(MatchError(ContainSubstring("unsupported storage provider: mongo")))
	})

	It("requires a DSN for PostgreSQL storage", func() {
		root.SetArgs([]string{"serve", "--storage", "postgres"})
		Expect(root.Execute()).To(MatchError(ContainSubstring("connection string")))
	})

	It("fails when the listen address is invalid", func() {
		root.SetArgs([]string{"serve", "--listen", "not-an-address", "--api-listen", "127.0.0.1:0"})
		Expect(root.Execute()).To(MatchError(ContainSubstring("relay error")))
	})

	It("fails when the API address is invalid", func() {
		root.SetArgs([]string{"serve", "--api-listen", "not-an-address"})
		Expect(root.Execute()).To(MatchError(ContainSubstring("API server error")))
	})

	It("also writes logs to the log file", func() {
		logFile := filepath.Join(tmpDir, "serve.log")
		root.SetArgs([]string{"serve", "--listen", "not-an-address", "--api-listen", "127.0.0.1:0", "--log-file", logFile})
		Expect(root.Execute()).To(HaveOccurred())

		data, err := os.ReadFile(logFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("using in-memory storage"))
	})

	It("creates the objects root before serving", func() {
		objects := filepath.Join(tmpDir, "files")
		root.SetArgs([]string{"serve", "--listen", "not-an-address", "--api-listen", "127.0.0.1:0", "--objects-root", objects})
		Expect(root.Execute()).To(HaveOccurred())

		info, err := os.Stat(objects)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
	})

	It("reads settings from config.toml", func() {
		dir := filepath.Join(tmpDir, ".eduspark")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[storage]\nprovider = \"cassandra\"\n"), 0o600)).To(Succeed())

		root.SetArgs([]string{"serve"})
		Expect(root.Execute()).To(MatchError(ContainSubstring("unsupported storage provider: cassandra")))
	})
})
