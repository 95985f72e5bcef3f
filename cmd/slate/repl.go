package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/slate-lang/slate/internal/history"
	"github.com/slate-lang/slate/pkg/slate"
)

func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive session against the embedded runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL()
		},
	}
}

func runREPL() error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := store.BeginSession()
	if err != nil {
		return err
	}
	logger.Debug("session started", "id", sess.ID)

	slate.Initialize()
	defer slate.Shutdown()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	preloadHistory(line, store)

	scope, err := slate.NewScope("repl")
	if err != nil {
		return err
	}

	fmt.Println(banner())
	seq := 0
	for {
		src, err := line.Prompt(">>> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		if src == "exit" || src == "quit" {
			return nil
		}
		line.AppendHistory(src)

		seq++
		result, ok := evalLine(scope, src)
		if result != "" {
			fmt.Println(result)
		}
		if err := store.Record(sess.ID, seq, src, result, ok); err != nil {
			logger.Warn("history record failed", "err", err)
		}
	}
}

// evalLine runs one REPL line under the GIL and renders the outcome.
func evalLine(scope *slate.Scope, src string) (string, bool) {
	gil := slate.NewGILState()
	defer gil.Close()

	code, err := slate.Compile(src, "<stdin>", slate.ModeSingle)
	if err != nil {
		return err.Error(), false
	}
	defer code.Close()

	res, err := slate.EvalCode(code, slate.WithScope(scope))
	if err != nil {
		return err.Error(), false
	}
	defer res.Close()
	out := res.String()
	if out == "None" {
		return "", true
	}
	return out, true
}

func banner() string {
	gil := slate.NewGILState()
	defer gil.Close()
	if b, err := slate.Eval("banner", slate.WithGlobals(hostModuleGlobals())); err == nil {
		defer b.Close()
		if s, err := b.AsString(); err == nil {
			return s
		}
	}
	return "slate"
}

// hostModuleGlobals exposes the slate.host module namespace for read-only
// lookups like the banner string.
func hostModuleGlobals() slate.Borrowed {
	return slate.HostModuleDict()
}

func preloadHistory(line *liner.State, store *history.Store) {
	sessions, err := store.Sessions(5)
	if err != nil {
		return
	}
	for i := len(sessions) - 1; i >= 0; i-- {
		entries, err := store.Entries(sessions[i].ID)
		if err != nil {
			continue
		}
		for _, e := range entries {
			line.AppendHistory(e.Source)
		}
	}
}

func openHistory() (*history.Store, error) {
	path := viper.GetString("history-db")
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	return history.Open(path)
}
