package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewStepCmd создаёт группу команд для работы с шагами релиза.
func NewStepCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Drive release steps",
	}

	cmd.AddCommand(
		newStepListCmd(clientFn, outputFn),
		newStepShowCmd(clientFn, outputFn),
		newStepActionCmd(clientFn, outputFn, "start", "start", "Start a pending step", false),
		newStepActionCmd(clientFn, outputFn, "complete", "complete", "Complete a step", true),
		newStepActionCmd(clientFn, outputFn, "fail", "fail", "Mark a step as failed", true),
		newStepActionCmd(clientFn, outputFn, "retry", "retry", "Restart a failed step", false),
		newStepActionCmd(clientFn, outputFn, "skip", "skip", "Skip a step", true),
		newStepActionCmd(clientFn, outputFn, "pr", "pull-request", "Open the step pull request on GitHub", false),
		newStepActionCmd(clientFn, outputFn, "pr-refresh", "pull-request/refresh", "Sync pull request state from GitHub", false),
		newStepMergeCmd(clientFn, outputFn),
		newStepBuildCmd(clientFn, outputFn),
		newStepActionCmd(clientFn, outputFn, "build-refresh", "build/refresh", "Sync workflow run state from GitHub", false),
	)

	return cmd
}

var stepHeaders = []string{"#", "ID", "TITLE", "STATUS", "BY", "LINK"}

func stepRow(out *Output, s StepResponse) []string {
	return []string{strconv.Itoa(s.StepNumber), s.ID, s.Title, out.Status(s.Status), s.CompletedBy, s.Link()}
}

func printSteps(out *Output, steps []StepResponse) {
	rows := make([][]string, len(steps))
	for i, s := range steps {
		rows[i] = stepRow(out, s)
	}
	out.Print(stepHeaders, rows, steps)
}

func newStepListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list RELEASE_ID",
		Short: "List release steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := clientFn().ListSteps(args[0])
			if err != nil {
				return err
			}
			printSteps(outputFn(), steps)
			return nil
		},
	}
}

func newStepShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show step details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			step, err := clientFn().GetStep(args[0])
			if err != nil {
				return err
			}
			out.Print(stepHeaders, [][]string{stepRow(out, *step)}, step)
			return nil
		},
	}
}

func newStepActionCmd(clientFn func() *Client, outputFn func() *Output, use, action, short string, withNote bool) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			step, err := clientFn().StepAction(args[0], action, note)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Step #%d %s: %s", step.StepNumber, step.Title, step.Status))
			out.Print(stepHeaders, [][]string{stepRow(out, *step)}, step)
			return nil
		},
	}

	if withNote {
		cmd.Flags().StringVar(&note, "note", "", "Comment or reason")
	}

	return cmd
}

func newStepMergeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var method string

	cmd := &cobra.Command{
		Use:   "pr-merge ID",
		Short: "Request a pull request merge (merging is done in the GitHub UI)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().MergePullRequest(args[0], method); err != nil {
				return err
			}
			outputFn().Success("Merge requested")
			return nil
		},
	}

	cmd.Flags().StringVar(&method, "method", "merge", "Merge method (merge, squash, rebase)")

	return cmd
}

func newStepBuildCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var ref string

	cmd := &cobra.Command{
		Use:   "build ID",
		Short: "Trigger the step CI workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			step, err := clientFn().TriggerBuild(args[0], ref)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Workflow dispatched: %s", step.ActionURL))
			out.Print(stepHeaders, [][]string{stepRow(out, *step)}, step)
			return nil
		},
	}

	cmd.Flags().StringVar(&ref, "ref", "", "Git ref when the workflow reference has no branch")

	return cmd
}
