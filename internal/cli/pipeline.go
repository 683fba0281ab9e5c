package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewPipelineCmd создаёт команду вывода шаблона pipeline.
func NewPipelineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "pipeline",
		Short: "Show the release pipeline template",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			p, err := clientFn().GetPipeline()
			if err != nil {
				return err
			}

			rows := make([][]string, len(p.Steps))
			for i, s := range p.Steps {
				branches := ""
				if s.SourceBranch != "" {
					branches = s.SourceBranch + " → " + s.TargetBranch
				}
				required := "yes"
				if !s.IsRequired {
					required = "no"
				}
				rows[i] = []string{
					strconv.Itoa(s.StepNumber),
					s.Type,
					s.Title,
					required,
					strconv.Itoa(s.EstimatedDurationMin),
					s.RepositoryType,
					branches,
				}
			}

			out.Success(fmt.Sprintf("Pipeline template v%d, %d steps, ~%dh", p.Version, len(p.Steps), p.EstimatedDurationMin/60))
			out.Print([]string{"#", "TYPE", "TITLE", "REQUIRED", "EST (MIN)", "REPO", "BRANCHES"}, rows, p)
			return nil
		},
	}
}
