package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"qvcs/internal/errors"
	"qvcs/internal/quantum"
	"qvcs/internal/session"
	"qvcs/internal/watch"
	"qvcs/shared/types"
	"qvcs/shared/utils"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new qvcs repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}

			if err := session.Initialize(dir); err != nil {
				return fmt.Errorf("initializing repository: %w", err)
			}

			fmt.Println("Initialized empty qvcs repository in", dir)
			return nil
		},
	}
}

func commitCmd() *cobra.Command {
	var (
		probs   map[string]string
		moves   map[string]string
		message string
		author  string
	)

	cmd := &cobra.Command{
		Use:   "commit [paths...]",
		Short: "Register a superposed commit",
		Long: `Registers the given paths as one commit, superposed across the branches
given with --prob. The probabilities must sum to 1.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(moves) == 0 {
				return fmt.Errorf("specify files to commit")
			}

			return withSession(true, func(s *session.Session) error {
				distribution := s.Config.WatchProbabilities()
				if len(probs) > 0 {
					var err error
					if distribution, err = parseProbabilities(probs); err != nil {
						return err
					}
				}

				tracker := s.Tracker()
				var moved []shared.FileChange
				for _, oldPath := range utils.SortedKeys(moves) {
					ch, err := tracker.Move(oldPath, moves[oldPath])
					if err != nil {
						return err
					}
					moved = append(moved, ch)
				}

				id, err := tracker.Commit(args, moved, distribution,
					quantum.WithMessage(message), quantum.WithAuthor(author))
				if err != nil {
					return fmt.Errorf("committing: %w", err)
				}

				c, err := s.Repo.Commit(id)
				if err != nil {
					return err
				}
				printCommit(c, s.Repo)
				return nil
			})
		},
	}

	cmd.Flags().StringToStringVarP(&probs, "prob", "p", nil, "branch=probability, repeatable")
	cmd.Flags().StringToStringVar(&moves, "move", nil, "old=new, record a rename")
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&author, "author", os.Getenv("USER"), "commit author")
	return cmd
}

func observeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "observe <branch>",
		Short: "Observe a branch, collapsing superposed commits onto it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			branch := args[0]
			return withSession(true, func(s *session.Session) error {
				head, err := s.Repo.Observe(branch)
				if errors.IsType(err, errors.ErrorTypeNoCollapse) {
					color.Yellow("Nothing collapsed onto %s", branch)
					return nil
				}
				if err != nil {
					return err
				}

				color.Green("%s is now at %s", branch, shortID(head))
				return nil
			})
		},
	}
}

func collapseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collapse <commit> <branch>",
		Short: "Collapse one commit onto a branch without drawing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(true, func(s *session.Session) error {
				id, err := resolveCommit(s.Repo, args[0])
				if err != nil {
					return err
				}
				if err := s.Repo.CollapseTo(id, args[1]); err != nil {
					return err
				}

				color.Green("%s collapsed onto %s", shortID(id), args[1])
				return nil
			})
		},
	}
}

func mergeCmd() *cobra.Command {
	var (
		strategies map[string]string
		write      bool
	)

	cmd := &cobra.Command{
		Use:   "merge <branch> [commits...]",
		Short: "Resolve commits into one change per path",
		Long: `Merges the given commits, or every commit collapsed onto the branch when
none are given, into one change per path. Each path is resolved by the
configured strategy; --strategy overrides it per path.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			branch := args[0]
			return withSession(false, func(s *session.Session) error {
				merger, err := s.Merger(strategies)
				if err != nil {
					return err
				}

				commits := s.Repo.BranchCommits(branch)
				if len(args) > 1 {
					commits = commits[:0]
					for _, arg := range args[1:] {
						id, err := resolveCommit(s.Repo, arg)
						if err != nil {
							return err
						}
						c, err := s.Repo.Commit(id)
						if err != nil {
							return err
						}
						commits = append(commits, c)
					}
				}

				merged, err := merger.Merge(commits, branch)
				if err != nil {
					return err
				}

				for _, ch := range merged {
					fmt.Printf("%s  %s\n", color.CyanString("%-8s", ch.Operation.Type), ch.Path)
					if write {
						if err := apply(s.Root, ch); err != nil {
							return err
						}
					}
				}
				if write {
					color.Green("Wrote %d paths", len(merged))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringToStringVar(&strategies, "strategy", nil, "path=strategy, repeatable")
	cmd.Flags().BoolVar(&write, "write", false, "write the merged changes to the working tree")
	return cmd
}

// apply writes one merged change to the working tree
func apply(root string, ch shared.FileChange) error {
	path := filepath.Join(root, ch.Path)
	switch ch.Operation.Type {
	case shared.Delete:
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", ch.Path, err)
		}
		return nil
	case shared.Move:
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", ch.Path, err)
		}
		path = filepath.Join(root, ch.Operation.NewPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", ch.Path, err)
	}
	return os.WriteFile(path, ch.ContentDelta, 0644)
}

func logCmd() *cobra.Command {
	var branch string

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List commits in registration order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(false, func(s *session.Session) error {
				commits := s.Repo.Commits()
				if branch != "" {
					commits = s.Repo.BranchCommits(branch)
				}
				if len(commits) == 0 {
					fmt.Println("No commits found")
					return nil
				}

				heads := make(map[uuid.UUID][]string)
				for b, id := range s.Repo.Heads() {
					heads[id] = append(heads[id], b)
				}

				for _, c := range commits {
					state := color.YellowString("superposed")
					if b, ok := c.Branch(); ok {
						state = color.GreenString("on %s", b)
					}
					fmt.Printf("%s  %s  %s  %s",
						color.CyanString(shortID(c.ID)),
						c.Timestamp.Format(time.RFC3339),
						state,
						c.Message,
					)
					if hs := heads[c.ID]; len(hs) > 0 {
						fmt.Printf("  %s", color.MagentaString("%v", hs))
					}
					fmt.Println()
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&branch, "branch", "b", "", "only commits collapsed onto this branch")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <commit>",
		Short: "Show a stored commit and its entanglements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(false, func(s *session.Session) error {
				id, err := resolveCommit(s.Repo, args[0])
				if err != nil {
					return err
				}
				c, err := s.Store.GetCommit(id)
				if err != nil {
					return err
				}
				printCommit(c, s.Repo)
				return nil
			})
		},
	}
}

func printCommit(c *quantum.Commit, repo *quantum.Repository) {
	fmt.Printf("commit %s\n", color.CyanString(c.ID.String()))
	if c.Author != "" {
		fmt.Printf("Author: %s\n", c.Author)
	}
	fmt.Printf("Date:   %s\n", c.Timestamp.Format(time.RFC3339))
	fmt.Printf("Hash:   %s\n", c.ContentHash)
	if c.Message != "" {
		fmt.Printf("\n    %s\n", c.Message)
	}

	fmt.Println("\nStates:")
	for _, b := range utils.SortedKeys(c.SuperpositionStates) {
		fmt.Printf("  %-20s %.4f\n", b, c.SuperpositionStates[b])
	}
	if c.Collapsed {
		color.Green("  collapsed")
	}

	fmt.Println("\nChanges:")
	for _, ch := range c.Changes {
		fmt.Printf("  %s  %s  (%d lines mapped)\n", color.CyanString("%-8s", ch.Operation), ch.Path, len(ch.LineMappings))
	}

	ents, err := repo.Entanglements(c.ID)
	if err == nil && len(ents) > 0 {
		fmt.Println("\nEntangled with:")
		for _, e := range ents {
			fmt.Printf("  %s  %.4f\n", shortID(e.Commit), e.Strength)
		}
	}
}

func diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <paths...>",
		Short: "Show working tree changes against the last recorded content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(false, func(s *session.Session) error {
				tracker := s.Tracker()
				for _, path := range args {
					res, err := tracker.Diff(path)
					if err != nil {
						return err
					}
					if len(res.Hunks) == 0 {
						continue
					}
					color.New(color.Bold).Printf("%s (+%d -%d)\n", path, res.Stats.Additions, res.Stats.Deletions)
					printColoredDiff(res.Format())
				}
				return nil
			})
		},
	}
}

func superposedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "superposed <path>",
		Short: "List the uncollapsed commits touching a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(false, func(s *session.Session) error {
				for _, id := range s.Repo.Superposed(args[0]) {
					c, err := s.Repo.Commit(id)
					if err != nil {
						return err
					}
					fmt.Printf("%s  %v\n", color.CyanString(shortID(id)), c.SuperpositionStates)
				}
				return nil
			})
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Register a commit for every file change until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(true, func(s *session.Session) error {
				logger := s.Logger.Component("watch")
				w, err := watch.NewWatcher(s.Tracker(), s.Config.WatchProbabilities(),
					watch.WithDebounce(s.Config.Watch.Debounce.Std()),
					watch.WithOnRegister(func(id uuid.UUID, ch shared.FileChange) {
						if err := s.Save(); err != nil {
							logger.Error("saving repository", zap.Error(err))
						}
					}),
				)
				if err != nil {
					return err
				}
				defer w.Close()

				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				fmt.Println("Watching", s.Root, "(Ctrl-C to stop)")
				if err := w.Run(ctx); err != nil && !stderrors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		},
	}
}
