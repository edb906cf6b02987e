// Package main provides the adopr CLI for reviewing Azure DevOps pull
// requests from the terminal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/J03Fr0st/ado-pr-review/internal/azdevops"
	"github.com/J03Fr0st/ado-pr-review/internal/config"
	"github.com/J03Fr0st/ado-pr-review/internal/domain"
	"github.com/J03Fr0st/ado-pr-review/internal/sanitize"
	"github.com/J03Fr0st/ado-pr-review/internal/syncer"
)

var (
	configPath   string
	verbose      bool
	syncInterval int
)

var rootCmd = &cobra.Command{
	Use:   "adopr",
	Short: "Review Azure DevOps pull requests from the terminal",
	Long: `adopr lists, inspects, and acts on Azure DevOps pull requests.

Environment variables:
  ADO_ORG_URL  Organization URL (https://dev.azure.com/<org>)
  ADO_PROJECT  Project name
  ADO_TOKEN    Personal access token

A .env file in the working directory is loaded if present. Values may also
come from a YAML config file (--config); environment variables win.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verbose)
	},
}

// setupLogging installs the sanitizing log handler as the process default.
// Runs after cobra has parsed flags so --verbose is honored in any form.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := sanitize.NewLogHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(slog.New(handler))
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List active pull requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := buildClient()
		if err != nil {
			return err
		}
		prs, err := client.ListPullRequests(cmd.Context())
		if err != nil {
			return err
		}
		if len(prs) == 0 {
			fmt.Println("No active pull requests.")
			return nil
		}
		for _, pr := range prs {
			fmt.Printf("#%-6d %-50.50s %s -> %s  (%s)\n",
				pr.ID, pr.Title, shortRef(pr.SourceRef), shortRef(pr.TargetRef), voteSummary(pr))
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a pull request and its comment threads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		client, err := buildClient()
		if err != nil {
			return err
		}
		pr, err := client.GetPullRequest(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("#%d %s\n", pr.ID, pr.Title)
		fmt.Printf("  status:  %s\n", pr.Status)
		fmt.Printf("  author:  %s\n", pr.CreatedBy.DisplayName)
		fmt.Printf("  branch:  %s -> %s\n", shortRef(pr.SourceRef), shortRef(pr.TargetRef))
		for _, r := range pr.Reviewers {
			fmt.Printf("  review:  %s: %s\n", r.DisplayName, r.Vote)
		}
		if pr.Description != "" {
			fmt.Printf("\n%s\n", pr.Description)
		}

		threads, err := client.ListThreads(cmd.Context(), id)
		if err != nil {
			return err
		}
		for _, thread := range threads {
			fmt.Printf("\nthread %d (%s)\n", thread.ID, thread.Status)
			for _, comment := range thread.Comments {
				fmt.Printf("  %s: %s\n", comment.Author.DisplayName, comment.Content)
			}
		}
		return nil
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment <id> <text>",
	Short: "Start a comment thread on a pull request",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		client, err := buildClient()
		if err != nil {
			return err
		}
		thread, err := client.PostComment(cmd.Context(), id, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Comment posted (thread %d).\n", thread.ID)
		return nil
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a pull request",
	Args:  cobra.ExactArgs(1),
	RunE:  voteRunE(domain.VoteApproved, "approved"),
}

var rejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a pull request",
	Args:  cobra.ExactArgs(1),
	RunE:  voteRunE(domain.VoteRejected, "rejected"),
}

var abandonCmd = &cobra.Command{
	Use:   "abandon <id>",
	Short: "Abandon a pull request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		client, err := buildClient()
		if err != nil {
			return err
		}
		if err := client.Abandon(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Pull request %d abandoned.\n", id)
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Validate credentials and show the authenticated user",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := buildClient()
		if err != nil {
			return err
		}
		user, err := client.ValidateCredentials(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s)\n", user.DisplayName, user.UniqueName)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch pull requests and print changes as they happen",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := buildClient()
		if err != nil {
			return err
		}

		creds, err := config.Load(configPath)
		if err != nil {
			return err
		}
		provider := config.NewStaticProvider(creds)

		interval := syncer.DefaultInterval
		if syncInterval > 0 {
			interval = time.Duration(syncInterval) * time.Second
		}

		s := syncer.New(client, provider, syncer.NewTicker(interval), slog.Default(),
			func(delta domain.ChangeDelta) {
				for _, id := range delta.Added {
					fmt.Printf("new pull request: #%d\n", id)
				}
				for _, id := range delta.Updated {
					fmt.Printf("updated: #%d\n", id)
				}
				for _, id := range delta.Removed {
					fmt.Printf("closed: #%d\n", id)
				}
			},
			func(err error) {
				fmt.Fprintf(os.Stderr, "sync failed, will retry: %s\n", sanitize.Error(err))
			},
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s.Start()
		defer s.Stop()
		s.RefreshNow()

		fmt.Printf("Watching pull requests every %s, press Ctrl-C to stop.\n", interval)
		<-ctx.Done()
		fmt.Println("\nStopping...")
		return nil
	},
}

func voteRunE(vote domain.Vote, verb string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		client, err := buildClient()
		if err != nil {
			return err
		}
		if err := client.Vote(cmd.Context(), id, vote); err != nil {
			return err
		}
		fmt.Printf("Pull request %d %s.\n", id, verb)
		return nil
	}
}

// buildClient resolves configuration and constructs the API client.
func buildClient() (*azdevops.Client, error) {
	creds, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return azdevops.New(creds, slog.Default())
}

func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid pull request id %q", raw)
	}
	return id, nil
}

func shortRef(ref string) string {
	const prefix = "refs/heads/"
	if len(ref) > len(prefix) && ref[:len(prefix)] == prefix {
		return ref[len(prefix):]
	}
	return ref
}

func voteSummary(pr domain.PullRequestSummary) string {
	approved, waiting, rejected := 0, 0, 0
	for _, r := range pr.Reviewers {
		switch {
		case r.Vote >= domain.VoteApprovedWithSuggestions:
			approved++
		case r.Vote == domain.VoteWaitingForAuthor:
			waiting++
		case r.Vote == domain.VoteRejected:
			rejected++
		}
	}
	return fmt.Sprintf("%d approved, %d waiting, %d rejected", approved, waiting, rejected)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	watchCmd.Flags().IntVar(&syncInterval, "interval", 0, "sync interval in seconds (default 60)")

	rootCmd.AddCommand(listCmd, showCmd, commentCmd, approveCmd, rejectCmd, abandonCmd, whoamiCmd, watchCmd)
}

func main() {
	// Load .env if present (local development), ignore if missing.
	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", sanitize.Error(err))
		os.Exit(1)
	}
}
