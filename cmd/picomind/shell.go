package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/sipeed/picomind/pkg/logger"
)

const shellHelp = `Commands:
  learn <topic>            search a topic and store it
  recall <query> [limit]   retrieve entries by topic or tag
  connected <id> [depth]   walk connections from an entry
  consolidate              evict stale low-value entries
  stats                    show statistics
  export [path]            write a markdown snapshot
  session [cycles] [n]     run a focused learning session
  loglevel <level>         set log level: debug, info, warn or error
  help                     show this help
  exit                     save and quit
`

func newShellCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive prompt over the knowledge base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				return runShell(cmd.Context(), a)
			})
		},
	}
}

var shellCompleter = readline.NewPrefixCompleter(
	readline.PcItem("learn"),
	readline.PcItem("recall"),
	readline.PcItem("connected"),
	readline.PcItem("consolidate"),
	readline.PcItem("stats"),
	readline.PcItem("export"),
	readline.PcItem("session"),
	readline.PcItem("loglevel",
		readline.PcItem("debug"),
		readline.PcItem("info"),
		readline.PcItem("warn"),
		readline.PcItem("error"),
	),
	readline.PcItem("help"),
	readline.PcItem("exit"),
)

func runShell(ctx context.Context, a *app) error {
	if err := os.MkdirAll(a.cfg.MemoryDir(), 0755); err != nil {
		return err
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "picomind> ",
		HistoryFile:     filepath.Join(a.cfg.MemoryDir(), ".shell_history"),
		AutoComplete:    shellCompleter,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stdout(), "picomind shell, %d entries loaded. Type help for commands.\n", a.store.Len())
	for ctx.Err() == nil {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				break
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		quit, err := dispatch(ctx, a, rl.Stdout(), line)
		if err != nil {
			fmt.Fprintf(rl.Stderr(), "error: %v\n", err)
		}
		if quit {
			break
		}
	}
	return a.save()
}

// dispatch runs one shell line. It reports true when the shell should exit.
func dispatch(ctx context.Context, a *app, w io.Writer, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "exit", "quit":
		return true, nil
	case "help", "?":
		io.WriteString(w, shellHelp)
		return false, nil
	case "learn":
		if len(args) == 0 {
			return false, errors.New("usage: learn <topic>")
		}
		return false, runLearn(ctx, a, w, []string{strings.Join(args, " ")})
	case "recall":
		if len(args) == 0 {
			return false, errors.New("usage: recall <query> [limit]")
		}
		limit := 0
		if n, ok := trailingInt(args); ok && len(args) > 1 {
			limit, args = n, args[:len(args)-1]
		}
		return false, runRecall(a, w, strings.Join(args, " "), limit)
	case "connected":
		if len(args) == 0 {
			return false, errors.New("usage: connected <id> [depth]")
		}
		depth := 2
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return false, fmt.Errorf("bad depth %q", args[1])
			}
			depth = n
		}
		return false, runConnected(a, w, args[0], depth)
	case "consolidate":
		return false, runConsolidate(a, w)
	case "stats":
		return false, runStats(a, w, false)
	case "export":
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		return false, runExport(a, w, path)
	case "session":
		var nums [2]int
		for i := 0; i < len(args) && i < len(nums); i++ {
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return false, fmt.Errorf("bad number %q", args[i])
			}
			nums[i] = n
		}
		return false, runSession(ctx, a, w, nums[0], nums[1])
	case "loglevel":
		if len(args) != 1 {
			return false, errors.New("usage: loglevel <debug|info|warn|error>")
		}
		lvl, err := logger.ParseLevel(args[0])
		if err != nil {
			return false, err
		}
		logger.SetLevel(lvl)
		fmt.Fprintf(w, "Log level set to %s\n", strings.ToLower(args[0]))
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %q, type help", cmd)
	}
}

func trailingInt(args []string) (int, bool) {
	n, err := strconv.Atoi(args[len(args)-1])
	return n, err == nil
}
