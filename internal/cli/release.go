package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// NewReleaseCmd создаёт группу команд для управления релизами.
func NewReleaseCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Manage releases",
	}

	cmd.AddCommand(
		newReleaseListCmd(clientFn, outputFn),
		newReleaseCreateCmd(clientFn, outputFn),
		newReleaseShowCmd(clientFn, outputFn),
		newReleaseStatusCmd(clientFn, outputFn),
		newReleaseProgressCmd(clientFn, outputFn),
		newReleaseWatchCmd(clientFn, outputFn),
	)

	return cmd
}

var releaseHeaders = []string{"ID", "VERSION", "TITLE", "STATUS", "ASSIGNED", "CREATED"}

func releaseRow(out *Output, r ReleaseResponse) []string {
	return []string{r.ID, r.VersionLabel, r.Title, out.Status(r.Status), r.AssignedTo, r.CreatedAt}
}

func newReleaseListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListReleasesOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List releases",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			releases, err := clientFn().ListReleases(opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(releases))
			for i, r := range releases {
				rows[i] = releaseRow(out, r)
			}
			out.Print(releaseHeaders, rows, releases)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "Filter by project ID")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (DRAFT, IN_PROGRESS, STAGING, PRODUCTION_PENDING, PRODUCTION, COMPLETED, CANCELLED)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newReleaseCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateReleaseRequest
	var target string

	cmd := &cobra.Command{
		Use:   "create PROJECT_ID",
		Short: "Create a release with the standard pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			if target != "" {
				t, err := time.Parse(time.DateOnly, target)
				if err != nil {
					return fmt.Errorf("invalid --target date %q, expected YYYY-MM-DD", target)
				}
				req.TargetReleaseDate = t.Format(time.RFC3339)
			}

			created, err := clientFn().CreateRelease(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Release created: %s (%d steps)", created.Release.ID, len(created.Steps)))
			out.Print(releaseHeaders, [][]string{releaseRow(out, created.Release)}, created)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Version, "version", "", "Release version, e.g. 2.1.0 (required)")
	cmd.Flags().StringVar(&req.Title, "title", "", "Release title (default: Release vVERSION)")
	cmd.Flags().StringVar(&req.Description, "description", "", "Release description")
	cmd.Flags().StringVar(&req.AssignedTo, "assignee", "", "Release manager")
	cmd.Flags().StringVar(&req.Notes, "notes", "", "Release notes")
	cmd.Flags().StringVar(&target, "target", "", "Target release date (YYYY-MM-DD)")
	cmd.MarkFlagRequired("version")

	return cmd
}

func newReleaseShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show release details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			rel, err := clientFn().GetRelease(args[0])
			if err != nil {
				return err
			}
			out.Print(releaseHeaders, [][]string{releaseRow(out, *rel)}, rel)
			return nil
		},
	}
}

func newReleaseStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Change release status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			rel, err := clientFn().UpdateReleaseStatus(args[0], args[1])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Release %s is now %s", rel.VersionLabel, rel.Status))
			out.Print(releaseHeaders, [][]string{releaseRow(out, *rel)}, rel)
			return nil
		},
	}
}

func newReleaseProgressCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "progress ID",
		Short: "Show release progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := clientFn().ReleaseProgress(args[0])
			if err != nil {
				return err
			}

			next := "-"
			if p.Next != nil {
				next = fmt.Sprintf("#%d %s", p.Next.StepNumber, p.Next.Title)
			}
			outputFn().Print(
				[]string{"TOTAL", "DONE", "PERCENT", "REMAINING", "NEXT"},
				[][]string{{
					strconv.Itoa(p.Total),
					strconv.Itoa(p.Done),
					fmt.Sprintf("%.0f%%", p.Percent),
					(time.Duration(p.RemainingMin) * time.Minute).String(),
					next,
				}},
				p,
			)
			return nil
		},
	}
}

func newReleaseWatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "watch ID",
		Short: "Stream step updates until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return clientFn().WatchSteps(ctx, args[0], func(steps []StepResponse) error {
				out.Success(time.Now().Format(time.TimeOnly))
				printSteps(out, steps)
				return nil
			})
		},
	}
}
