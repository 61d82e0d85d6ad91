package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/epuerta/applypatch/internal/config"
	"github.com/epuerta/applypatch/internal/fileops"
	"github.com/epuerta/applypatch/internal/logging"
	"github.com/epuerta/applypatch/internal/ui"
	"github.com/epuerta/applypatch/pkg/patch"
)

var (
	// Version is set during build
	Version = "dev"
	// GitCommit is set during build
	GitCommit = "none"
	// BuildDate is set during build
	BuildDate = "unknown"

	// Logger instance - global within main package for simplicity
	appLogger logging.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "applypatch",
	Short: "Apply model-generated patches from standard input",
	Long: `applypatch reads a patch in the custom *** Begin Patch format from
standard input and applies it to the files under the working directory.

The engine tolerates the usual defects of model output - trailing
whitespace drift, Unicode look-alike punctuation, malformed hunk headers,
narration around the diff - and refuses to apply anything whose context
is genuinely ambiguous.

Examples:
  applypatch < changes.patch
  some-agent | applypatch --dir ./repo
  applypatch --dry-run < changes.patch`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCmdImpl(cmd)
	},
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("dir", "C", "", "Directory to apply the patch under (default: current directory)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress the per-file summary, print only Done!")
	rootCmd.PersistentFlags().BoolP("dry-run", "n", false, "Parse the patch and print the summary without writing files")

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging to a file")
	rootCmd.PersistentFlags().String("log-file", "", "Path to the log file (default: ~/.cache/applypatch/logs/applypatch-<timestamp>.log)")

	rootCmd.AddCommand(completionCmd())
}

// completionCmd creates the completion command for shell completion scripts
func completionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "completion [bash|zsh|fish]",
		Short:     "Generate shell completion scripts",
		Args:      cobra.ExactValidArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish"},
		Run: func(cmd *cobra.Command, args []string) {
			switch args[0] {
			case "bash":
				cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				cmd.Root().GenFishCompletion(os.Stdout, true)
			}
		},
	}

	return cmd
}

// runCmdImpl implements the root command functionality
func runCmdImpl(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("dir")
	quiet, _ := cmd.Flags().GetBool("quiet")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	debugFlag, _ := cmd.Flags().GetBool("debug")
	logFileFlag, _ := cmd.Flags().GetString("log-file")

	// --- Initialize Logger FIRST ---
	runID := uuid.New().String()
	if debugFlag {
		logPath := logFileFlag
		if logPath == "" {
			cacheDir, err := os.UserCacheDir()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: Could not get user cache directory: %v. Logging to current dir.\n", err)
				cacheDir = "."
			}
			logDir := filepath.Join(cacheDir, "applypatch", "logs")
			logFile := fmt.Sprintf("applypatch-%s.log", time.Now().Format("20060102-150405"))
			logPath = filepath.Join(logDir, logFile)
		}
		var err error
		appLogger, err = logging.NewFileLogger(logPath, runID)
		if err != nil {
			return fmt.Errorf("creating file logger: %w", err)
		}
		defer func() {
			if closeErr := appLogger.Close(); closeErr != nil {
				fmt.Fprintf(os.Stderr, "Error closing logger: %v\n", closeErr)
			}
		}()

		appLogger.Log("--- applypatch run start --- Version: %s, Commit: %s, Built: %s", Version, GitCommit, BuildDate)
		appLogger.Log("Debug logging enabled. Log file: %s", logPath)
	} else {
		appLogger = logging.NewNilLogger()
	}
	// --- End Logger Initialization ---

	cfg, err := config.Load()
	if err != nil {
		appLogger.Log("Error loading config: %v", err)
		return fmt.Errorf("loading config: %w", err)
	}

	// Flags override config
	if dir != "" {
		cfg.Dir = dir
	}
	if quiet {
		cfg.Quiet = true
	}
	if dryRun {
		cfg.DryRun = true
	}
	cfg.Debug = debugFlag
	cfg.LogFile = logFileFlag

	appLogger.Log("Config loaded: Dir=%s, Quiet=%v, DryRun=%v", cfg.Dir, cfg.Quiet, cfg.DryRun)

	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		appLogger.Log("Error reading stdin: %v", err)
		return fmt.Errorf("reading patch from stdin: %w", err)
	}

	return applyInput(string(input), cfg, os.Stdout)
}

// applyInput runs the full pipeline over the raw patch text: sanitize,
// split into blocks, parse, build and (unless dry-run) apply each commit.
func applyInput(text string, cfg *config.Config, out io.Writer) error {
	fs := fileops.New(cfg.Dir)

	lines, warnings := patch.SanitizePatchText(text)
	for _, warning := range warnings {
		appLogger.Log("sanitizer: %s", warning)
	}
	lines = patch.RepairHunkHeaders(lines)

	blocks, err := patch.SplitBlocks(lines)
	if err != nil {
		return err
	}
	if len(blocks) == 0 {
		return &patch.DiffError{
			Kind:    patch.ErrInvalidPatchEnvelope,
			Message: "Invalid patch format: must begin with '*** Begin Patch' and end with '*** End Patch'",
		}
	}
	appLogger.Log("Parsed %d block(s) from %d sanitized line(s)", len(blocks), len(lines))

	for i, block := range blocks {
		blockText := strings.Join(block, "\n")

		orig, err := patch.LoadFiles(patch.IdentifyFilesNeeded(blockText), fs.Read)
		if err != nil {
			return err
		}

		parsed, fuzz, err := patch.TextToPatch(blockText, orig)
		if err != nil {
			return err
		}
		if fuzz > 0 {
			appLogger.Log("Block %d parsed with fuzz %d", i+1, fuzz)
		}

		commit, err := patch.PatchToCommit(parsed, orig)
		if err != nil {
			return err
		}

		if !cfg.DryRun {
			if err := patch.ApplyCommit(commit, fs.Write, fs.Remove); err != nil {
				return err
			}
		}

		if !cfg.Quiet && len(commit.Changes) > 0 {
			fmt.Fprintln(out, ui.RenderCommit(commit))
		}
	}

	if cfg.DryRun {
		return nil
	}

	fmt.Fprintln(out, "Done!")
	return nil
}

// main is the entry point of the application
func main() {
	if err := rootCmd.Execute(); err != nil {
		if appLogger != nil && appLogger.IsEnabled() {
			appLogger.Log("Run failed: %v", err)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
