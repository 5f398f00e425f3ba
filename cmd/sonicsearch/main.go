package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/screenager/sonicsearch/internal/appstate"
	"github.com/screenager/sonicsearch/internal/audioembed"
	"github.com/screenager/sonicsearch/internal/bridge"
	"github.com/screenager/sonicsearch/internal/catalog"
	"github.com/screenager/sonicsearch/internal/textembed"
	"github.com/screenager/sonicsearch/internal/tui"
	"github.com/screenager/sonicsearch/internal/vindex"
	"github.com/screenager/sonicsearch/internal/watcher"
)

var (
	defaultModelDir  = "./models"
	defaultDataDir   = ".sonicsearch"
	defaultOrtLib    = "./lib/onnxruntime.so"
	defaultThreads   = 0
	defaultAudioONNX = "clap_audio.onnx"
	defaultTextONNX  = "clap_text.onnx"
	defaultTokenizer = "tokenizer.json"
)

func main() {
	root := &cobra.Command{
		Use:   "sonicsearch",
		Short: "Local semantic search over your sound library",
		Long:  "sonicsearch — offline semantic audio search powered by CLAP and an in-memory HNSW index.",
	}

	var cfg struct {
		ModelDir string `toml:"model-dir"`
		OrtLib   string `toml:"ort-lib"`
		Threads  int    `toml:"threads"`
		DataDir  string `toml:"data-dir"`
	}
	if b, err := os.ReadFile(".sonicsearch.toml"); err == nil {
		if err := toml.Unmarshal(b, &cfg); err == nil {
			if cfg.ModelDir != "" {
				defaultModelDir = cfg.ModelDir
			}
			if cfg.OrtLib != "" {
				defaultOrtLib = cfg.OrtLib
			}
			if cfg.Threads > 0 {
				defaultThreads = cfg.Threads
			}
			if cfg.DataDir != "" {
				defaultDataDir = cfg.DataDir
			}
		}
	}

	var modelDir string
	var ortLib string
	var numThreads int
	root.PersistentFlags().StringVar(&modelDir, "model-dir", defaultModelDir, "directory containing the CLAP ONNX models and tokenizer")
	root.PersistentFlags().StringVar(&ortLib, "ort-lib", defaultOrtLib, "path to onnxruntime.so (auto-detected if empty)")
	root.PersistentFlags().IntVar(&numThreads, "threads", defaultThreads, "ONNX intra-op thread count (0 = auto, capped at 4)")

	resolveOrtLib := func(flag string) string {
		if flag != "" {
			return flag
		}
		if exe, err := os.Executable(); err == nil {
			candidate := filepath.Join(filepath.Dir(exe), "lib", "onnxruntime.so")
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		if _, err := os.Stat(defaultOrtLib); err == nil {
			abs, _ := filepath.Abs(defaultOrtLib)
			return abs
		}
		return ""
	}

	indexPath := func() string { return filepath.Join(defaultDataDir, "vector.hnsw") }
	dbPath := func() string { return filepath.Join(defaultDataDir, "sonicsearch.sqlite") }

	// openState loads both CLAP towers, opens the catalog, and rehydrates the
	// in-memory vector index, printing status along the way (ONNX model
	// loading can take 1-4s on first run).
	openState := func(ctx context.Context) (*appstate.State, error) {
		if err := os.MkdirAll(defaultDataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}

		fmt.Fprint(os.Stderr, "Loading models… ")
		lib := resolveOrtLib(ortLib)

		audioEmb, err := audioembed.New(filepath.Join(modelDir, defaultAudioONNX), lib, numThreads)
		if err != nil {
			fmt.Fprintln(os.Stderr, "")
			return nil, fmt.Errorf("load audio tower: %w", err)
		}
		textEmb, err := textembed.New(filepath.Join(modelDir, defaultTextONNX), filepath.Join(modelDir, defaultTokenizer), lib, numThreads)
		if err != nil {
			fmt.Fprintln(os.Stderr, "")
			audioEmb.Close()
			return nil, fmt.Errorf("load text tower: %w", err)
		}
		fmt.Fprintln(os.Stderr, "ready.")

		store, err := catalog.Open(ctx, dbPath())
		if err != nil {
			audioEmb.Close()
			textEmb.Close()
			return nil, fmt.Errorf("open catalog: %w", err)
		}

		idx := vindex.Open(0)
		if err := idx.Load(indexPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "warning: could not load vector index, starting fresh: %v\n", err)
		}

		state := appstate.New(store, idx, audioEmb, textEmb)
		if _, err := idx.Synchronize(ctx, store); err != nil {
			state.Close()
			return nil, fmt.Errorf("synchronize vector index: %w", err)
		}
		return state, nil
	}

	closeState := func(state *appstate.State) {
		if err := state.SaveIndex(indexPath()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not save vector index: %v\n", err)
		}
		if err := state.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: close error: %v\n", err)
		}
	}

	// runWithHardExit runs fn with ctx, forcing process exit 1s after
	// cancellation if fn (a blocking CGo-backed call) hasn't returned by then.
	runWithHardExit := func(ctx context.Context, fn func() error) error {
		done := make(chan struct{})
		defer close(done)

		go func() {
			select {
			case <-done:
				return
			case <-ctx.Done():
				fmt.Fprintln(os.Stderr, "\n[sonicsearch] stopping — waiting up to 1s for current work to finish…")
				select {
				case <-done:
					return
				case <-time.After(time.Second):
					fmt.Fprintln(os.Stderr, "[sonicsearch] exiting.")
					os.Exit(130)
				}
			}
		}()

		return fn()
	}

	// ---- sonicsearch index <dir> --------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "index <dir> [dir...]",
		Short: "Index all WAV files under the given directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			state, err := openState(ctx)
			if err != nil {
				return err
			}
			defer closeState(state)

			var paths []string
			err = runWithHardExit(ctx, func() error {
				for _, dir := range args {
					fmt.Fprintf(os.Stderr, "Scanning %s…\n", dir)
				}
				p, err := bridge.New(state).AddPathsToIndex(ctx, args)
				paths = p
				return err
			})
			if err != nil {
				if isInterrupted(err) {
					fmt.Fprintln(os.Stderr, "\nInterrupted — saving partial index…")
					return nil
				}
				return err
			}
			fmt.Fprintf(os.Stderr, "Done. %d directories registered and indexed.\n", len(paths))
			return nil
		},
	})

	// ---- sonicsearch search <query> ------------------------------------
	var jsonExport bool
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Non-interactive semantic search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			ctx := context.Background()

			state, err := openState(ctx)
			if err != nil {
				return err
			}
			defer closeState(state)

			hits, err := bridge.New(state).SearchIndex(ctx, query)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				if jsonExport {
					fmt.Println("[]")
				} else {
					fmt.Println("no results")
				}
				return nil
			}
			if jsonExport {
				j, err := json.MarshalIndent(hits, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal json: %w", err)
				}
				fmt.Println(string(j))
				return nil
			}
			for i, h := range hits {
				fmt.Printf("%2d  %.3f  %s @ %.1fs\n", i+1, h.Distance, h.FilePath, h.StartingTimestamp)
			}
			return nil
		},
	}
	searchCmd.Flags().BoolVar(&jsonExport, "json", false, "output search results as JSON")
	root.AddCommand(searchCmd)

	// ---- sonicsearch watch <dir> ----------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "watch <dir> [dir...]",
		Short: "Index directories then watch them for new/changed WAV files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			state, err := openState(ctx)
			if err != nil {
				return err
			}
			defer closeState(state)

			b := bridge.New(state)
			if _, err := b.AddPathsToIndex(ctx, args); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "Done. Watching for changes… (Ctrl+C to stop)")

			w, err := watcher.New(b)
			if err != nil {
				return err
			}

			done := make(chan struct{})
			go func() {
				<-ctx.Done()
				close(done)
			}()

			for _, dir := range args {
				go func(d string) {
					if err := w.Watch(d, done); err != nil {
						fmt.Fprintf(os.Stderr, "watch error %s: %v\n", d, err)
					}
				}(dir)
			}
			<-done
			return nil
		},
	})

	// ---- sonicsearch paths add|rm|list ----------------------------------
	pathsCmd := &cobra.Command{Use: "paths", Short: "Manage registered library directories"}
	pathsCmd.AddCommand(&cobra.Command{
		Use:   "add <dir> [dir...]",
		Short: "Register and index directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			state, err := openState(ctx)
			if err != nil {
				return err
			}
			defer closeState(state)

			paths, err := bridge.New(state).AddPathsToIndex(ctx, args)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Println(p)
			}
			return nil
		},
	})
	pathsCmd.AddCommand(&cobra.Command{
		Use:   "rm <dir>",
		Short: "Unregister a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			state, err := openState(ctx)
			if err != nil {
				return err
			}
			defer closeState(state)

			paths, err := bridge.New(state).DeletePathFromIndex(ctx, args[0])
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Println(p)
			}
			return nil
		},
	})
	pathsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			state, err := openState(ctx)
			if err != nil {
				return err
			}
			defer closeState(state)

			paths, err := bridge.New(state).GetPathsFromIndex(ctx)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Println(p)
			}
			return nil
		},
	})
	root.AddCommand(pathsCmd)

	// ---- sonicsearch stats ----------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			state, err := openState(ctx)
			if err != nil {
				return err
			}
			defer closeState(state)

			paths, _ := state.Store.ListDirs(ctx)
			fmt.Printf("vectors:   %d\n", state.Index.Len())
			fmt.Printf("dirs:      %d\n", len(paths))
			return nil
		},
	})

	// ---- sonicsearch tui --------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "tui",
		Short: "Launch interactive BubbleTea search interface",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			state, err := openState(ctx)
			if err != nil {
				return err
			}
			defer closeState(state)

			m := tui.New(bridge.New(state))
			p := tea.NewProgram(m, tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// isInterrupted returns true if err indicates a context cancellation.
func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
