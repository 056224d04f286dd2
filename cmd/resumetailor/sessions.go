package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/resumetailor/internal/studio"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored sessions",
	Long:  "Prints a table of the most recently used sessions.",
	Args:  cobra.NoArgs,
	RunE:  runSessions,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id> [seq]",
	Short: "Print a session's document",
	Long:  "Prints the current document of a session, or the revision with the given sequence number.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runSessionsShow,
}

var sessionsHistoryCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "List a session's revisions",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsHistory,
}

var sessionsRevertCmd = &cobra.Command{
	Use:   "revert <session-id> <seq>",
	Short: "Make an earlier revision current again",
	Long:  "Appends a copy of revision <seq> to the session. History is never rewritten.",
	Args:  cobra.ExactArgs(2),
	RunE:  runSessionsRevert,
}

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "l", 20, "maximum sessions to list")
	sessionsCmd.AddCommand(sessionsShowCmd, sessionsHistoryCmd, sessionsRevertCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustConfig(logger)
	ctx := context.Background()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	sessions, err := st.ListSessions(ctx, sessionsLimit)
	if err != nil {
		logger.Error("failed to list sessions", "error", err)
		os.Exit(1)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions yet. Start one with `resumetailor tailor` or `resumetailor studio`.")
		return nil
	}

	fmt.Printf("%-36s  %-20s  %-25s  %s\n", "ID", "Name", "Role", "Updated")
	fmt.Println(strings.Repeat("─", 96))
	now := time.Now()
	for _, s := range sessions {
		fmt.Printf("%-36s  %-20s  %-25s  %s\n", s.ID, truncate(s.Name, 20), truncate(s.Role, 25), studio.RelativeAge(s.UpdatedAt, now))
	}
	fmt.Printf("\nTotal: %d sessions\n", len(sessions))
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustConfig(logger)
	ctx := context.Background()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if len(args) == 1 {
		cur, err := st.CurrentRevision(ctx, args[0])
		if err != nil {
			logger.Error("failed to load session", "error", err)
			os.Exit(1)
		}
		return writeDocument("", cur.Content)
	}

	seq := mustSeq(logger, args[1])
	revs, err := st.Revisions(ctx, args[0])
	if err != nil {
		logger.Error("failed to load session", "error", err)
		os.Exit(1)
	}
	for _, r := range revs {
		if r.Seq == seq {
			return writeDocument("", r.Content)
		}
	}
	logger.Error("revision not found", "session", args[0], "seq", seq)
	os.Exit(1)
	return nil
}

func runSessionsHistory(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustConfig(logger)
	ctx := context.Background()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	revs, err := st.Revisions(ctx, args[0])
	if err != nil {
		logger.Error("failed to load session", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%-5s  %-8s  %-19s  %s\n", "Seq", "Kind", "Created", "Instruction")
	fmt.Println(strings.Repeat("─", 72))
	for _, r := range revs {
		fmt.Printf("%-5d  %-8s  %-19s  %s\n", r.Seq, r.Kind, r.CreatedAt.Local().Format(time.DateTime), truncate(r.Instruction, 36))
	}
	return nil
}

func runSessionsRevert(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	rev, err := st.Revert(ctx, args[0], mustSeq(logger, args[1]))
	if err != nil {
		logger.Error("failed to revert", "error", err)
		os.Exit(1)
	}
	logger.Info("reverted", "session", args[0], "revision", rev.Seq, "from", args[1])
	return nil
}

func mustSeq(logger *slog.Logger, raw string) int {
	seq, err := strconv.Atoi(raw)
	if err != nil || seq < 0 {
		logger.Error("seq must be a non-negative integer", "seq", raw)
		os.Exit(1)
	}
	return seq
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
