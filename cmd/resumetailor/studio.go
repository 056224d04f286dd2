package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/resumetailor/internal/config"
	"github.com/amishk599/resumetailor/internal/handoff"
	"github.com/amishk599/resumetailor/internal/jobdesc"
	"github.com/amishk599/resumetailor/internal/model"
	"github.com/amishk599/resumetailor/internal/studio"
)

const pickerLimit = 20

var studioFlags struct {
	sessionID string
	jd        string
	role      string
	in        string
	name      string
}

var studioCmd = &cobra.Command{
	Use:   "studio",
	Short: "Edit a resume interactively (TUI)",
	Long: "Opens a split view with the document on the left and a chat on the right. " +
		"Type a change and press enter to refine, ctrl+s to shorten, ctrl+z to undo, ctrl+o to open Overleaf. " +
		"Without flags a session picker is shown first; with --jd a new session is tailored on open.",
	Args: cobra.NoArgs,
	RunE: runStudio,
}

func init() {
	f := studioCmd.Flags()
	f.StringVarP(&studioFlags.sessionID, "session", "s", "", "open this session directly")
	f.StringVar(&studioFlags.jd, "jd", "", "start a new session tailored to this job description (file, URL, or -)")
	f.StringVarP(&studioFlags.role, "role", "r", "", "target role for --jd")
	f.StringVarP(&studioFlags.in, "in", "i", "", "LaTeX resume to start a new session from (default: resume template)")
	f.StringVarP(&studioFlags.name, "name", "n", "", "name for a new session")
	studioCmd.MarkFlagsMutuallyExclusive("session", "jd")
	rootCmd.AddCommand(studioCmd)
}

func runStudio(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Everything below runs under the alt screen, so nothing may log.
	quiet := silentLogger()

	p, err := setupPipeline(ctx, cfg, quiet)
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

	opts := studio.Options{
		Runner: p,
		Store:  st,
		Editor: handoff.New(cfg.Handoff.URL, cfg.Handoff.Engine),
	}

	switch {
	case studioFlags.sessionID != "":
		opts.Session, err = st.GetSession(ctx, studioFlags.sessionID)
	case studioFlags.jd != "":
		opts.Session, opts.Initial, err = newTailoredSession(ctx, cfg, st)
	default:
		var quit bool
		opts.Session, quit, err = pickSession(ctx, cfg, st)
		if quit {
			return nil
		}
	}
	if err != nil {
		logger.Error("failed to open session", "error", err)
		os.Exit(1)
	}

	if err := studio.Run(ctx, opts); err != nil {
		logger.Error("studio error", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Session %s saved. Resume it with: resumetailor studio --session %s\n", opts.Session.ID, opts.Session.ID)
	return nil
}

// pickSession shows the picker and returns the chosen or newly created
// session.
func pickSession(ctx context.Context, cfg *config.Config, st model.DocumentStore) (model.Session, bool, error) {
	sessions, err := st.ListSessions(ctx, pickerLimit)
	if err != nil {
		return model.Session{}, false, err
	}

	if len(sessions) > 0 {
		choice, err := studio.RunSessionPicker(sessions)
		if err != nil {
			return model.Session{}, false, err
		}
		switch {
		case choice.Quit:
			return model.Session{}, true, nil
		case !choice.New:
			return choice.Session, false, nil
		}
	}

	base, err := startingDocument(cfg, studioFlags.in)
	if err != nil {
		return model.Session{}, false, err
	}
	sess, err := st.CreateSession(ctx, model.Session{
		Name: studioFlags.name,
		Role: firstNonEmpty(studioFlags.role, cfg.Resume.Role),
	}, base)
	return sess, false, err
}

// newTailoredSession creates a session for --jd and returns the tailor
// operation the studio runs on open.
func newTailoredSession(ctx context.Context, cfg *config.Config, st model.DocumentStore) (model.Session, *model.Operation, error) {
	if studioFlags.jd == "-" {
		// The TUI reads keys from stdin.
		return model.Session{}, nil, errors.New("--jd - cannot be used with the studio; save the description to a file")
	}
	posting, err := jobdesc.NewLoader(newHTTPClient(), os.Stdin, silentLogger()).Load(ctx, studioFlags.jd)
	if err != nil {
		return model.Session{}, nil, err
	}

	base, err := startingDocument(cfg, studioFlags.in)
	if err != nil {
		return model.Session{}, nil, err
	}
	role := firstNonEmpty(studioFlags.role, cfg.Resume.Role, posting.Title)
	sess, err := st.CreateSession(ctx, model.Session{
		Name:           firstNonEmpty(studioFlags.name, posting.Company, posting.Title),
		Role:           role,
		JobDescription: posting.Text,
	}, base)
	if err != nil {
		return model.Session{}, nil, err
	}
	return sess, &model.Operation{Kind: model.KindTailor, Role: role, JobDescription: posting.Text}, nil
}
