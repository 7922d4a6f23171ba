package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/depscout/depscout/pkg/config"
	"github.com/depscout/depscout/pkg/errors"
	"github.com/depscout/depscout/pkg/fetch"
	"github.com/depscout/depscout/pkg/gradle"
	"github.com/depscout/depscout/pkg/pipeline"
	"github.com/depscout/depscout/pkg/scheduler"
)

// analyzeOutput is the JSON document printed by the analyze command.
type analyzeOutput struct {
	Repository  string         `json:"repository"`
	Dependency  string         `json:"dependency"`
	Matches     []gradle.Match `json:"matches"`
	Descriptors []string       `json:"descriptors,omitempty"`
	Note        string         `json:"note,omitempty"`
}

func newAnalyzeCmd(configPath *string) *cobra.Command {
	var (
		ref     string
		mode    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "analyze <owner/repo> <dependency>",
		Short: "Analyze one repository in the foreground",
		Long: `Analyze fetches the repository snapshot, resolves its Gradle dependency
reports, and prints every occurrence of the target dependency as JSON.

A GITHUB_TOKEN environment variable, when set, is used to access private
repositories.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			repository, dependency := args[0], args[1]

			if err := errors.ValidateRepository(repository); err != nil {
				return err
			}
			if err := errors.ValidateDependencyName(dependency); err != nil {
				return err
			}
			if err := errors.ValidateRef(ref); err != nil {
				return err
			}
			matchMode := gradle.MatchMode(mode)
			if !gradle.ValidMatchModes[matchMode] {
				return errors.New(errors.ErrCodeInvalidMatchMode, "unknown match mode %q", mode)
			}

			settings, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			runner, err := pipeline.NewRunner(
				fetch.NewClient(settings.WorkspaceRoot),
				&gradle.Collector{GradlePath: settings.GradlePath},
				settings.PipelineOptions(),
				logger,
			)
			if err != nil {
				return err
			}

			if timeout <= 0 {
				timeout = settings.JobTimeout.Std()
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			owner, repo, _ := strings.Cut(repository, "/")
			req := scheduler.Request{
				Spec: fetch.RepositorySpec{
					Owner: owner,
					Repo:  repo,
					Ref:   ref,
					Token: os.Getenv("GITHUB_TOKEN"),
				},
				Target: dependency,
				Mode:   matchMode,
			}

			prog := newProgress(logger)
			res, err := runner.Run(ctx, req)
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Found %d matches across %d descriptors",
				len(res.Matches), len(res.Descriptors)))

			out := analyzeOutput{
				Repository:  repository,
				Dependency:  dependency,
				Matches:     res.Matches,
				Descriptors: res.Descriptors,
				Note:        res.Note,
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&ref, "ref", "", "branch, tag, or commit (default: main, then master)")
	cmd.Flags().StringVar(&mode, "mode", string(gradle.MatchExact), "match mode: exact or substring")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "analysis time budget (default: configured job timeout)")
	return cmd
}
