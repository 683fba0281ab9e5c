// ReleaseTrain CLI — инструмент командной строки для управления
// проектами, релизами и шагами релизного pipeline через HTTP API.
//
// Использование:
//
//	releasetrain [--api-url URL] [--actor NAME] [-o table|json|yaml] <command> <subcommand> [flags]
//
// Команды:
//
//	project   Управление проектами и GitHub конфигурацией
//	release   Управление релизами
//	step      Действия над шагами релиза
//	pipeline  Шаблон pipeline
package main

import (
	"os"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/shaiso/ReleaseTrain/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var actor string
	var outputFormat string
	var format cli.Format

	rootCmd := &cobra.Command{
		Use:           "releasetrain",
		Short:         "ReleaseTrain CLI — mobile release orchestration",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			f, err := cli.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			format = f
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("RELEASETRAIN_API_URL", "http://localhost:8080"), "API server URL")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", envOr("RELEASETRAIN_ACTOR", currentUser()), "User recorded on step changes")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL, actor) }
	outputFn := func() *cli.Output { return cli.NewOutput(format) }

	rootCmd.AddCommand(
		cli.NewProjectCmd(clientFn, outputFn),
		cli.NewReleaseCmd(clientFn, outputFn),
		cli.NewStepCmd(clientFn, outputFn),
		cli.NewPipelineCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		cli.NewOutput(format).Error(err.Error())
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}
