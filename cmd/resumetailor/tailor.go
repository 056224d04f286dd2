package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/resumetailor/internal/config"
	"github.com/amishk599/resumetailor/internal/jobdesc"
	"github.com/amishk599/resumetailor/internal/model"
	"github.com/amishk599/resumetailor/internal/resume"
)

var tailorFlags struct {
	jd   string
	role string
	in   string
	name string
	out  string
}

var tailorCmd = &cobra.Command{
	Use:   "tailor",
	Short: "Tailor a resume to a job description",
	Long: "Starts a new session from the resume template (or --in), rewrites it for the role " +
		"and job description, and prints the result. The job description can be a file, " +
		"an HTML page, a job posting URL, or - for stdin.",
	Example: "  resumetailor tailor --jd https://boards.greenhouse.io/acme/jobs/123 --role \"Backend Engineer\"\n" +
		"  pbpaste | resumetailor tailor --jd - --role SRE -o resume.tex",
	RunE: runTailor,
}

func init() {
	f := tailorCmd.Flags()
	f.StringVar(&tailorFlags.jd, "jd", "", "job description source: file, .html file, URL, or - for stdin")
	f.StringVarP(&tailorFlags.role, "role", "r", "", "target role (default: resume.role from config, then the posting title)")
	f.StringVarP(&tailorFlags.in, "in", "i", "", "LaTeX resume to start from (default: resume template)")
	f.StringVarP(&tailorFlags.name, "name", "n", "", "session name (default: company or posting title)")
	f.StringVarP(&tailorFlags.out, "output", "o", "", "write the document to this file instead of stdout")
	_ = tailorCmd.MarkFlagRequired("jd")
	rootCmd.AddCommand(tailorCmd)
}

func runTailor(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := setupPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up model client", "error", err)
		os.Exit(1)
	}
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	posting, err := jobdesc.NewLoader(newHTTPClient(), os.Stdin, logger).Load(ctx, tailorFlags.jd)
	if err != nil {
		logger.Error("failed to load job description", "error", err)
		os.Exit(1)
	}

	base, err := startingDocument(cfg, tailorFlags.in)
	if err != nil {
		logger.Error("failed to load resume", "error", err)
		os.Exit(1)
	}

	role := firstNonEmpty(tailorFlags.role, cfg.Resume.Role, posting.Title)
	sess := model.Session{Name: firstNonEmpty(tailorFlags.name, posting.Company, posting.Title)}
	op := model.Operation{Kind: model.KindTailor, Role: role, JobDescription: posting.Text}
	sess, next, rev, err := tailorNewSession(ctx, p, st, sess, base, op)
	if err != nil {
		logger.Error("tailor failed", "error", err)
		os.Exit(1)
	}

	if err := writeDocument(tailorFlags.out, next.Document); err != nil {
		logger.Error("failed to write document", "error", err)
		os.Exit(1)
	}
	logger.Info("resume tailored", "session", sess.ID, "revision", rev.Seq, "role", role)
	return nil
}

// startingDocument reads the resume to start from: path when set, the
// configured template otherwise.
func startingDocument(cfg *config.Config, path string) (string, error) {
	if path == "" {
		return loadTemplate(cfg)
	}
	return resume.LoadTemplate(path)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
