package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/huangsam/repohealth/core/checks"
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/internal/metadata"
	"github.com/huangsam/repohealth/internal/outwriter"
	"github.com/huangsam/repohealth/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runCmd evaluates one registered repository.
var runCmd = &cobra.Command{
	Use:   "run <repository-id>",
	Short: "Fetch, lint and score a single registered repository.",
	Long: `Run the full pipeline for one repository from the registry.

The repository is cloned or updated in the fetch cache, linted against every
applicable check, scored, and compared with the last stored score. A snapshot
is archived only when the score or the check set version changed, or when
--force is given.

Examples:
  # Evaluate one repository
  repohealth run artifact-hub/hub --registry data.yaml

  # Force a new snapshot and print JSON
  repohealth run artifact-hub/hub --force --output json`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetup,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		report, err := a.tracker.RunOnce(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("cannot evaluate %s: %w", args[0], err)
		}
		return outwriter.NewOutWriter().WriteReport(scoreRecord(report, a.weights), cfg)
	},
}

// lintCmd lints a local directory without fetching or storing anything.
var lintCmd = &cobra.Command{
	Use:   "lint [path]",
	Short: "Lint a local directory and print its score.",
	Long: `Lint a directory on disk against the check catalogue.

Nothing is fetched and nothing is stored. When the directory is inside a git
working copy its history is available to the checks; when --url points at a
GitHub repository its remote metadata is used as well.

Examples:
  # Lint the current directory as a primary repository
  repohealth lint

  # Lint with the documentation check set only
  repohealth lint ./docs-site --check-sets docs

  # Fail a CI job when the score drops below 75 (rating A)
  repohealth lint --min-score 75`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: configSetup,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := "."
		if len(args) == 1 {
			path = args[0]
		}
		dir, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return fmt.Errorf("%s is not a directory", path)
		}

		repo, err := localRepository(dir, viper.GetString("url"), viper.GetString("role"), viper.GetString("check-sets"))
		if err != nil {
			return err
		}

		lint, weights, err := newLinter()
		if err != nil {
			return err
		}

		in := &checks.Input{
			Repository: repo,
			Tree:       os.DirFS(dir),
			Now:        time.Now(),
		}
		git := contract.NewLocalGitClient(cfg.GitHubToken)
		if root, err := git.GetRepoRoot(ctx, dir); err == nil {
			in.History = &contract.GitHistory{Client: git, Dir: root}
			if head, err := git.GetRepoHash(ctx, root); err == nil {
				in.Commit = head
			}
		}
		if repo.URL != "" {
			md, err := metadata.NewGitHubProvider(cfg.GitHubToken, nil, metadata.WithLogger(log)).Metadata(ctx, repo)
			if err != nil {
				log.Warn("remote metadata unavailable", "url", repo.URL, "error", err)
			}
			in.Metadata = md
		}

		report, err := lint.Lint(ctx, in)
		if err != nil {
			return err
		}
		rec := scoreRecord(report, weights)
		if err := outwriter.NewOutWriter().WriteReport(rec, cfg); err != nil {
			return err
		}
		if minScore := viper.GetInt("min-score"); rec.Score.Global < minScore {
			return fmt.Errorf("global score %d is below the required %d", rec.Score.Global, minScore)
		}
		return nil
	},
}

// localRepository describes a directory on disk as a repository.
func localRepository(dir, url, role, checkSets string) (schema.Repository, error) {
	name := filepath.Base(dir)
	repo := schema.Repository{
		ID:      "local/" + name,
		Project: "local",
		Name:    name,
		URL:     strings.TrimSpace(url),
		Role:    schema.RepositoryRole(strings.ToLower(role)),
	}
	switch repo.Role {
	case "":
		repo.Role = schema.PrimaryRole
	case schema.PrimaryRole, schema.SecondaryRole:
	default:
		return repo, fmt.Errorf("invalid role %q. must be primary or secondary", role)
	}
	for _, raw := range strings.Split(checkSets, ",") {
		cs := schema.CheckSet(strings.ToLower(strings.TrimSpace(raw)))
		if cs == "" {
			continue
		}
		if _, ok := schema.ValidCheckSets[cs]; !ok {
			return repo, fmt.Errorf("invalid check set %q", raw)
		}
		repo.CheckSets = append(repo.CheckSets, cs)
	}
	return repo, nil
}
