package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewProjectCmd создаёт группу команд для управления проектами.
func NewProjectCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	cmd.AddCommand(
		newProjectListCmd(clientFn, outputFn),
		newProjectCreateCmd(clientFn, outputFn),
		newProjectShowCmd(clientFn, outputFn),
		newProjectConfigCmd(clientFn, outputFn),
	)

	return cmd
}

var projectHeaders = []string{"ID", "NAME", "DESCRIPTION", "CREATED"}

func projectRow(p ProjectResponse) []string {
	return []string{p.ID, p.Name, p.Description, p.CreatedAt}
}

func newProjectListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, err := clientFn().ListProjects()
			if err != nil {
				return err
			}

			rows := make([][]string, len(projects))
			for i, p := range projects {
				rows[i] = projectRow(p)
			}
			outputFn().Print(projectHeaders, rows, projects)
			return nil
		},
	}
}

func newProjectCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			project, err := clientFn().CreateProject(args[0], description)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Project created: %s", project.ID))
			out.Print(projectHeaders, [][]string{projectRow(*project)}, project)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Project description")

	return cmd
}

func newProjectShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show project details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := clientFn().GetProject(args[0])
			if err != nil {
				return err
			}
			outputFn().Print(projectHeaders, [][]string{projectRow(*project)}, project)
			return nil
		},
	}
}

// --- GitHub config ---

func newProjectConfigCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage project GitHub integration",
	}

	cmd.AddCommand(
		newConfigShowCmd(clientFn, outputFn),
		newConfigSetCmd(clientFn, outputFn),
		newConfigValidateCmd(clientFn, outputFn),
	)

	return cmd
}

func printGitHubConfig(out *Output, cfg *GitHubConfigResponse) {
	rows := [][]string{
		{"app repository", cfg.AppRepositoryURL},
		{"bff repository", cfg.BFFRepositoryURL},
		{"access token", fmt.Sprintf("%t", cfg.HasAccessToken)},
		{"default base branch", cfg.DefaultBaseBranch},
		{"default target branch", cfg.DefaultTargetBranch},
	}

	types := make([]string, 0, len(cfg.WorkflowURLs))
	for t := range cfg.WorkflowURLs {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		rows = append(rows, []string{"workflow " + t, cfg.WorkflowURLs[t]})
	}

	out.Print([]string{"SETTING", "VALUE"}, rows, cfg)
}

func newConfigShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show PROJECT_ID",
		Short: "Show GitHub configuration (token is never printed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := clientFn().GetGitHubConfig(args[0])
			if err != nil {
				return err
			}
			printGitHubConfig(outputFn(), cfg)
			return nil
		},
	}
}

func newConfigSetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string
	var req GitHubConfigRequest
	var workflows []string

	cmd := &cobra.Command{
		Use:   "set PROJECT_ID",
		Short: "Save GitHub configuration",
		Long: `Save GitHub configuration for a project.

Values come from --file (YAML) and are overridden by flags.
An empty token keeps the stored one. Example file:

  app_repository_url: acme/app
  bff_repository_url: acme/bff
  default_base_branch: release
  default_target_branch: develop
  workflow_urls:
    FUNCTIONAL_BUILD_AND_SHARE: acme/app/build.yml?branch=release&version={{release.version}}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			final := GitHubConfigRequest{}
			if file != "" {
				loaded, err := LoadGitHubConfigFile(file)
				if err != nil {
					return err
				}
				final = *loaded
			}

			flags := cmd.Flags()
			if flags.Changed("app-repo") {
				final.AppRepositoryURL = req.AppRepositoryURL
			}
			if flags.Changed("bff-repo") {
				final.BFFRepositoryURL = req.BFFRepositoryURL
			}
			if flags.Changed("token") {
				final.AccessToken = req.AccessToken
			}
			if env := os.Getenv("RELEASETRAIN_GITHUB_TOKEN"); env != "" && final.AccessToken == "" {
				final.AccessToken = env
			}
			if flags.Changed("base-branch") {
				final.DefaultBaseBranch = req.DefaultBaseBranch
			}
			if flags.Changed("target-branch") {
				final.DefaultTargetBranch = req.DefaultTargetBranch
			}
			if len(workflows) > 0 {
				if final.WorkflowURLs == nil {
					final.WorkflowURLs = make(map[string]string, len(workflows))
				}
				for _, kv := range workflows {
					stepType, ref, ok := strings.Cut(kv, "=")
					if !ok {
						return fmt.Errorf("invalid workflow format %q, expected STEP_TYPE=REFERENCE", kv)
					}
					final.WorkflowURLs[stepType] = ref
				}
			}

			cfg, err := clientFn().SetGitHubConfig(args[0], final)
			if err != nil {
				return err
			}

			out.Success("GitHub configuration saved")
			printGitHubConfig(out, cfg)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with the configuration")
	cmd.Flags().StringVar(&req.AppRepositoryURL, "app-repo", "", "App repository (owner/repo or URL)")
	cmd.Flags().StringVar(&req.BFFRepositoryURL, "bff-repo", "", "BFF repository (owner/repo or URL)")
	cmd.Flags().StringVar(&req.AccessToken, "token", "", "GitHub access token (or RELEASETRAIN_GITHUB_TOKEN)")
	cmd.Flags().StringVar(&req.DefaultBaseBranch, "base-branch", "", "Default PR head branch")
	cmd.Flags().StringVar(&req.DefaultTargetBranch, "target-branch", "", "Default PR base branch")
	cmd.Flags().StringSliceVar(&workflows, "workflow", nil, "Workflow reference as STEP_TYPE=REFERENCE (repeatable)")

	return cmd
}

// LoadGitHubConfigFile читает GitHub конфигурацию из YAML файла.
func LoadGitHubConfigFile(path string) (*GitHubConfigRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var req GitHubConfigRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &req, nil
}

func newConfigValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate PROJECT_ID",
		Short: "Check the token and repositories against GitHub",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := clientFn().ValidateGitHubConfig(args[0])
			if err != nil {
				return err
			}

			rows := [][]string{
				{"credential", validity(&res.CredentialValid)},
				{"app repository", validity(res.AppRepositoryValid)},
				{"bff repository", validity(res.BFFRepositoryValid)},
			}
			outputFn().Print([]string{"CHECK", "RESULT"}, rows, res)
			return nil
		},
	}
}

func validity(v *bool) string {
	switch {
	case v == nil:
		return "not checked"
	case *v:
		return "ok"
	default:
		return "invalid"
	}
}
