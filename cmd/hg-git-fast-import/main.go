// Command hg-git-fast-import converts a Mercurial repository's
// history into a Git fast-import stream, in single-source,
// multi-source aggregation, and marks-reconciliation modes (spec §6).
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilork/hg-git-fast-import/internal/author"
	"github.com/kilork/hg-git-fast-import/internal/baton"
	"github.com/kilork/hg-git-fast-import/internal/buildmarks"
	"github.com/kilork/hg-git-fast-import/internal/config"
	"github.com/kilork/hg-git-fast-import/internal/driver"
	"github.com/kilork/hg-git-fast-import/internal/hgsource"
	"github.com/kilork/hg-git-fast-import/internal/logging"
	"github.com/kilork/hg-git-fast-import/internal/multi"
	"github.com/kilork/hg-git-fast-import/internal/target"
)

// commonFlags holds the option set shared by single and multi (spec
// §6 "Recognized options").
type commonFlags struct {
	configPath                string
	authorsPath               string
	verify                    bool
	limitHigh                 int
	activeBranches            int
	logPath                   string
	clean                     bool
	cron                      bool
	targetPush                bool
	targetPull                bool
	sourcePull                bool
	noCleanClosedBranches     bool
	fixWrongBranchNames       bool
	defaultBranch             string
	ignoreUnknownRequirements bool
}

func addCommonFlags(cmd *cobra.Command, f *commonFlags) {
	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "path to a TOML configuration file")
	flags.StringVar(&f.authorsPath, "authors", "", "path to an author mapping file")
	flags.BoolVar(&f.verify, "verify", false, "compare the imported target against the source after conversion")
	flags.IntVar(&f.limitHigh, "limit-high", 0, "exclusive upper bound on the source revisions to import (0 means unbounded)")
	flags.IntVar(&f.activeBranches, "git-active-branches", 0, "cap on git fast-import --active-branches (0 means unset)")
	flags.StringVar(&f.logPath, "log", "", "redirect logging to this path instead of stderr")
	flags.BoolVar(&f.clean, "clean", false, "remove any existing target before importing")
	flags.BoolVar(&f.cron, "cron", false, "suppress progress output for unattended runs")
	flags.BoolVar(&f.targetPush, "target-push", false, "push the target after a successful import")
	flags.BoolVar(&f.targetPull, "target-pull", false, "run git pull in the target after the import and cleanup")
	flags.BoolVar(&f.sourcePull, "source-pull", false, "pull the source before reading it")
	flags.BoolVar(&f.noCleanClosedBranches, "no-clean-closed-branches", false, "accepted but has no effect: a closed branch is always archived under refs/tags/archive/ and its branch ref reset")
	flags.BoolVar(&f.fixWrongBranchNames, "fix-wrong-branch-names", false, "apply the extra branch-name repair pass")
	flags.StringVar(&f.defaultBranch, "default-branch", "", "override the default branch name")
	flags.BoolVar(&f.ignoreUnknownRequirements, "ignore-unknown-requirements", false, "don't fail on an unrecognized Mercurial requirement string")
}

func (f *commonFlags) environment(globalAuthors map[string]string) config.Environment {
	return config.Environment{
		Clean:                     f.clean,
		Cron:                      f.cron,
		TargetPush:                f.targetPush,
		TargetPull:                f.targetPull,
		SourcePull:                f.sourcePull,
		NoCleanClosedBranches:     f.noCleanClosedBranches,
		FixWrongBranchname:        f.fixWrongBranchNames,
		IgnoreUnknownRequirements: f.ignoreUnknownRequirements,
		GlobalAuthors:             globalAuthors,
	}
}

func loadGlobalAuthors(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	return config.LoadAuthors(path)
}

// openHgSource is the revlog parser hook. The revlog parser itself is
// an external collaborator this core never implements (spec §1); a
// deployment wires in a real one.
var openHgSource hgsource.OpenFunc = func(path string, opts hgsource.OpenOptions) (hgsource.Source, error) {
	return nil, fmt.Errorf("no Mercurial revlog parser is wired into this build for %s", path)
}

func newSingleCommand() *cobra.Command {
	f := &commonFlags{}
	cmd := &cobra.Command{
		Use:   "single <hg_repo> [<git_repo>]",
		Short: "Convert one Mercurial repository to Git fast-import commands",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(f.cron, f.logPath)
			if err != nil {
				return err
			}

			globalAuthors, err := loadGlobalAuthors(f.authorsPath)
			if err != nil {
				return err
			}

			rc := &config.RepoConfig{Authors: map[string]string{}, Branches: map[string]string{}}
			if f.configPath != "" {
				rc, err = config.LoadSingle(f.configPath)
				if err != nil {
					return err
				}
			}
			if f.defaultBranch != "" {
				rc.DefaultBranch = f.defaultBranch
			}

			hgRepo := args[0]
			source, err := openHgSource(hgRepo, hgsource.OpenOptions{IgnoreUnknownRequirements: f.ignoreUnknownRequirements})
			if err != nil {
				return err
			}

			var tgt target.Target
			if len(args) == 2 {
				tgt = target.NewGitTarget(args[1], f.environment(globalAuthors))
			} else {
				tgt = target.NewStdoutTarget(os.Stdout)
			}

			fixer := author.NewFixer(rc.Authors, globalAuthors)
			opts := driver.Options{
				Offset:              rc.Offset,
				AllowUnnamedHeads:   rc.AllowUnnamedHeads,
				DefaultBranch:       rc.DefaultBranch,
				PathPrefix:          rc.PathPrefix,
				BranchPrefix:        rc.BranchPrefix,
				TagPrefix:           rc.TagPrefix,
				PrefixDefaultBranch: rc.PrefixDefaultBranch,
				FixWrongBranchName:  f.fixWrongBranchNames,
				Clean:               f.clean,
				SourcePull:          f.sourcePull,
				Verify:              f.verify,
				ActiveBranchesCap:   f.activeBranches,
			}
			if f.limitHigh > 0 {
				opts.LimitHigh = &f.limitHigh
			}

			progress := baton.New(os.Stderr, f.cron)
			result, err := driver.Run(source, tgt, fixer, opts, progress)
			if err != nil {
				return err
			}
			logger.Infof("imported %d commits from %s", result.Emitted, hgRepo)
			return nil
		},
	}
	addCommonFlags(cmd, f)
	return cmd
}

func newMultiCommand() *cobra.Command {
	f := &commonFlags{}
	cmd := &cobra.Command{
		Use:   "multi",
		Short: "Aggregate several Mercurial repositories into one Git repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.configPath == "" {
				return fmt.Errorf("multi requires --config")
			}
			logger, err := logging.New(f.cron, f.logPath)
			if err != nil {
				return err
			}

			globalAuthors, err := loadGlobalAuthors(f.authorsPath)
			if err != nil {
				return err
			}

			mc, err := config.LoadMulti(f.configPath)
			if err != nil {
				return err
			}

			fixer := author.NewFixer(nil, globalAuthors)
			progress := baton.New(os.Stderr, f.cron)
			env := f.environment(globalAuthors)

			if err := multi.Run(mc, env, multi.OpenSource(openHgSource), fixer, progress); err != nil {
				return err
			}
			logger.Infof("aggregated %d repositories into %s", len(mc.Repositories), mc.PathGit)
			return nil
		},
	}
	addCommonFlags(cmd, f)
	return cmd
}

func newBuildMarksCommand() *cobra.Command {
	var offset int
	var noBackup bool
	var authorsPath string

	cmd := &cobra.Command{
		Use:   "build-marks <hg_repo> <git_repo>",
		Short: "Reconstruct the fast-import marks file against an existing Git history",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hgRepo, gitRepo := args[0], args[1]

			globalAuthors, err := loadGlobalAuthors(authorsPath)
			if err != nil {
				return err
			}
			source, err := openHgSource(hgRepo, hgsource.OpenOptions{})
			if err != nil {
				return err
			}

			fixer := author.NewFixer(nil, globalAuthors)
			marksPath := gitRepo + "/.git/hg-git-fast-import-marks"
			outcomes, err := buildmarks.Run(source, fixer, marksPath, buildmarks.Options{
				TargetDir: gitRepo,
				Offset:    offset,
				NoBackup:  noBackup,
			}, time.Now().Unix(), buildmarks.NewReadlineChooser())
			if err != nil {
				return err
			}
			for _, o := range outcomes {
				fmt.Printf("revision %d (mark :%d): %s\n", o.Revision, o.Mark, o.Status)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "mark offset for this source")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "skip backing up the existing marks file")
	cmd.Flags().StringVar(&authorsPath, "authors", "", "path to an author mapping file")
	return cmd
}

func newCompletionsCommand(root *cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "completions <shell>",
		Short:     "Generate shell completion scripts",
		Hidden:    true,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "fish", "zsh"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return root.GenBashCompletion(os.Stdout)
			case "fish":
				return root.GenFishCompletion(os.Stdout, true)
			case "zsh":
				return root.GenZshCompletion(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell %q", args[0])
			}
		},
	}
	return cmd
}

func main() {
	root := &cobra.Command{
		Use:   "hg-git-fast-import",
		Short: "Convert Mercurial history into Git fast-import commands",
	}
	root.AddCommand(newSingleCommand())
	root.AddCommand(newMultiCommand())
	root.AddCommand(newBuildMarksCommand())
	root.AddCommand(newCompletionsCommand(root))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
