package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fileindex/internal/database"
	"fileindex/internal/indexer"
	"fileindex/internal/mediatypes"
	"fileindex/internal/startup"

	"golang.org/x/term"
)

const (
	// Timeout for single queries and mutations; builds run until done.
	defaultTimeout = 30 * time.Second
	// How often build progress is redrawn.
	progressInterval = 250 * time.Millisecond
)

func main() {
	// Create a context that cancels on interrupt signals
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stdout)
		return 1
	}
	command, rest := args[0], args[1:]

	cfg, err := startup.Load(os.Getenv(startup.ConfigFileEnv))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	engine, err := indexer.New(ctx, cfg.Engine(nil))
	if err != nil {
		fmt.Fprintf(stderr, "Error: Failed to open index: %v\n", err)
		fmt.Fprintf(stderr, "Make sure MEDIA_DIR and DATABASE_DIR are set correctly (current: %s, %s)\n", cfg.MediaDir, cfg.DatabaseDir)
		return 1
	}
	defer func() {
		if err := engine.Close(); err != nil {
			fmt.Fprintf(stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	switch command {
	case "build":
		err = runBuild(ctx, engine, stdout)
	case "stats":
		err = withTimeout(ctx, func(ctx context.Context) error {
			return printJSON(stdout, engine.Stats(ctx))
		})
	case "search":
		if len(rest) < 1 {
			err = errors.New("usage: indexctl search <query> [dir]")
			break
		}
		err = withTimeout(ctx, func(ctx context.Context) error {
			return printJSON(stdout, engine.Search(ctx, database.SearchOptions{
				Query:     rest[0],
				Directory: argOr(rest, 1, ""),
				Recursive: true,
			}))
		})
	case "children":
		err = withTimeout(ctx, func(ctx context.Context) error {
			return printJSON(stdout, engine.DirectoryChildren(ctx, database.ListOptions{
				Directory:    argOr(rest, 0, ""),
				IncludeCover: true,
			}))
		})
	case "media":
		mt, ok := mediatypes.ParseMediaType(argOr(rest, 0, ""))
		if !ok {
			err = errors.New("usage: indexctl media <image|audio|video> [dir]")
			break
		}
		err = withTimeout(ctx, func(ctx context.Context) error {
			return printJSON(stdout, engine.FindMedia(ctx, database.MediaOptions{
				Directory: argOr(rest, 1, ""),
				MediaType: mt,
				Recursive: true,
			}))
		})
	case "random":
		err = withTimeout(ctx, func(ctx context.Context) error {
			rec := engine.RandomImage(ctx, argOr(rest, 0, ""))
			if rec == nil {
				return errors.New("no image found")
			}
			return printJSON(stdout, rec)
		})
	case "export":
		enc := json.NewEncoder(stdout)
		err = engine.Export(ctx, argOr(rest, 0, ""), func(rec *database.FileRecord) error {
			return enc.Encode(rec)
		})
	case "record":
		if len(rest) < 1 {
			err = errors.New("usage: indexctl record <path>")
			break
		}
		err = withTimeout(ctx, func(ctx context.Context) error {
			if err := engine.RecordPath(ctx, rest[0]); err != nil {
				return err
			}
			return printJSON(stdout, engine.GetFile(ctx, rest[0]))
		})
	case "delete":
		if len(rest) < 1 {
			err = errors.New("usage: indexctl delete <path>")
			break
		}
		err = withTimeout(ctx, func(ctx context.Context) error {
			if !engine.Delete(ctx, rest[0]) {
				return fmt.Errorf("%s is not indexed", rest[0])
			}
			fmt.Fprintf(stdout, "Deleted %s\n", rest[0])
			return nil
		})
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage(stderr)
		return 1
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return fn(ctx)
}

func argOr(args []string, i int, def string) string {
	if i < len(args) {
		return args[i]
	}
	return def
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runBuild rebuilds the index in the foreground. On a terminal the progress
// line is redrawn in place; otherwise only the summary is printed.
func runBuild(ctx context.Context, engine *indexer.Engine, out io.Writer) error {
	interactive := isTerminal(out)

	done := make(chan struct{})
	if interactive {
		go func() {
			ticker := time.NewTicker(progressInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if engine.Builder().IsBuilding() {
						fmt.Fprintf(out, "\r%s", fitWidth(progressLine(engine.Builder().Progress()), terminalWidth(out)))
					}
				}
			}
		}()
	}

	res, err := engine.Build(ctx)
	close(done)
	if interactive {
		fmt.Fprint(out, "\r\033[K")
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Indexed %d files and %d directories in %v (%d errors, %d workers, %s/%s)\n",
		res.Processed, res.Directories, res.Duration.Round(time.Millisecond), res.Errors, res.Workers, res.Mode, res.Storage)
	return nil
}

func progressLine(p indexer.BuildProgress) string {
	return fmt.Sprintf("Indexing: %d/%d files (%.1f%%), %d directories, %d errors",
		p.Processed, p.Total, p.Percent, p.Directories, p.Errors)
}

// fitWidth truncates s to width columns. A width below one leaves s as is.
func fitWidth(s string, width int) string {
	if width < 1 || len(s) < width {
		return s
	}
	return s[:width-1]
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// sanitizeCommand returns a safe representation of a command string for display.
// Any character that is not alphanumeric, a hyphen, or an underscore becomes '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "File Index command line")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: indexctl <command> [args]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  build                      - Rebuild the index from MEDIA_DIR")
	fmt.Fprintln(w, "  stats                      - Show counts and build state")
	fmt.Fprintln(w, "  search <query> [dir]       - Find entries by name")
	fmt.Fprintln(w, "  children [dir]             - List one directory level")
	fmt.Fprintln(w, "  media <type> [dir]         - List image, audio, or video files")
	fmt.Fprintln(w, "  random [dir]               - Pick a random image")
	fmt.Fprintln(w, "  export [dir]               - Print every entry under dir as NDJSON")
	fmt.Fprintln(w, "  record <path>              - Index the entry at path and its subtree")
	fmt.Fprintln(w, "  delete <path>              - Remove path and its subtree from the index")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  Same as the server: MEDIA_DIR, DATABASE_DIR, INDEX_* and INDEX_CONFIG")
}
