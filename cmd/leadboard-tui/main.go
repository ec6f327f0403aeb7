// leadboard-tui is a terminal dashboard over the leads API. It shares the
// Store, client and consultant roster with the web server.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/leadboard/leadboard/internal/leads"
	"github.com/leadboard/leadboard/internal/tui"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		apiURL      string
		timeout     time.Duration
		consultants string
		pageSize    int
		logOutput   string
	)

	flagSet := pflag.NewFlagSet("leadboard-tui", pflag.ContinueOnError)
	flagSet.StringVar(&apiURL, "api-url", envOr("LEADS_API_URL", leads.DefaultBaseURL), "base URL of the leads API")
	flagSet.DurationVar(&timeout, "timeout", 15*time.Second, "timeout of each API request")
	flagSet.StringVar(&consultants, "consultants", os.Getenv("CONSULTANTS_FILE"), "YAML consultant roster (default: built-in)")
	flagSet.IntVar(&pageSize, "page-size", 12, "leads per page")
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON log records to this file")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if pageSize <= 0 {
		return fmt.Errorf("--page-size must be positive, got %d", pageSize)
	}

	logger, closeLog, err := openLogger(logOutput)
	if err != nil {
		return fmt.Errorf("cannot open log file %s: %w", logOutput, err)
	}
	defer closeLog()

	directory, err := leads.LoadDirectory(consultants)
	if err != nil {
		return err
	}

	notifier := tui.NewStatusNotifier(logger)
	store := leads.NewStore(leads.StoreConfig{
		API:       leads.NewClient(apiURL, leads.WithTimeout(timeout), leads.WithLogger(logger)),
		Directory: directory,
		Notifier:  notifier,
		Logger:    logger,
	})

	model := tui.NewModel(tui.Config{
		Store:    store,
		Notifier: notifier,
		PageSize: pageSize,
		Timeout:  timeout + 5*time.Second,
	})
	logger.Info("starting leadboard-tui", slog.String("api_url", apiURL))
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}

// openLogger writes JSON records to path, or discards them when path is
// empty. Anything on stderr would corrupt the alternate screen.
func openLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler), func() { _ = file.Close() }, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `leadboard-tui: terminal dashboard for leads.

Usage:
  leadboard-tui [flags]

Keys:
  j/k move  h/l page  g/G first/last  / search  enter details
  t toggle status  d then y delete  a assign  r refresh  q quit

Flags:
%s`, flagSet.FlagUsages())
}
