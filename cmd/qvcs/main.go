// cmd/qvcs/main.go
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"qvcs/internal/config"
	"qvcs/internal/logging"
	"qvcs/internal/quantum"
	"qvcs/internal/session"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "qvcs",
	Short: "qvcs is a version control system with superposed commits",
	Long: `qvcs registers every commit on several branches at once, each with a
probability. Observing a branch collapses commits onto it; commits that share
lines with a collapsed one lose probability mass.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default config/config.<QVCS_ENV>.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(
		initCmd(),
		commitCmd(),
		observeCmd(),
		collapseCmd(),
		mergeCmd(),
		logCmd(),
		showCmd(),
		diffCmd(),
		superposedCmd(),
		watchCmd(),
	)
}

func loadConfig(root string) (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.ResolvePath(root)
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// openSession opens the repository in the working directory
func openSession() (*session.Session, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := loadConfig(cwd)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	return session.Open(cwd, cfg, logger)
}

// withSession runs fn against an open session, saving afterwards when save
// is set and fn succeeded
func withSession(save bool, fn func(s *session.Session) error) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	defer s.Logger.Sync()

	if err := fn(s); err != nil {
		return err
	}
	if save {
		if err := s.Save(); err != nil {
			return fmt.Errorf("saving repository: %w", err)
		}
	}
	return nil
}

// parseProbabilities turns branch=p pairs into a distribution
func parseProbabilities(pairs map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(pairs))
	for branch, raw := range pairs {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("probability for %s: %w", branch, err)
		}
		out[branch] = p
	}
	return out, nil
}

// resolveCommit accepts a full id or an unambiguous prefix
func resolveCommit(repo *quantum.Repository, arg string) (uuid.UUID, error) {
	if id, err := uuid.Parse(arg); err == nil {
		return id, nil
	}

	var match uuid.UUID
	found := 0
	for _, c := range repo.Commits() {
		if strings.HasPrefix(c.ID.String(), arg) {
			match = c.ID
			found++
		}
	}
	switch found {
	case 0:
		return uuid.Nil, fmt.Errorf("no commit matches %q", arg)
	case 1:
		return match, nil
	default:
		return uuid.Nil, fmt.Errorf("commit prefix %q is ambiguous", arg)
	}
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func printColoredDiff(diff string) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)

	for _, line := range strings.Split(strings.TrimSuffix(diff, "\n"), "\n") {
		switch {
		case line == "":
			fmt.Println()
		case strings.HasPrefix(line, "@@"):
			header.Println(line)
		case strings.HasPrefix(line, "+"):
			added.Println(line)
		case strings.HasPrefix(line, "-"):
			removed.Println(line)
		default:
			fmt.Println(line)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
