// daybreak-repl is an interactive shell over a daybreak journal file,
// grounded on calvinalkan-agent-task's cmd/sloty REPL: a peterh/liner
// prompt loop with history persisted to a dotfile, tab completion over
// the command set, and one method per command.
package main

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/kleinmatic/daybreak"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: daybreak-repl <db-file>")
		os.Exit(1)
	}

	gob.Register("")

	db, err := daybreak.Open(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "daybreak-repl: opening %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
	defer db.Close()

	r := &repl{db: db, path: os.Args[1]}
	if err := r.run(); err != nil {
		fmt.Fprintf(os.Stderr, "daybreak-repl: %v\n", err)
		os.Exit(1)
	}
}

type repl struct {
	db    *daybreak.Database
	path  string
	liner *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".daybreak_history")
}

var commands = []string{"get", "set", "del", "delete", "has", "size", "ls", "sync", "compact", "clear", "help", "exit", "quit"}

func (r *repl) completer(line string) []string {
	var matches []string
	for _, c := range commands {
		if strings.HasPrefix(c, line) {
			matches = append(matches, c)
		}
	}
	return matches
}

func (r *repl) run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("daybreak - %s\n", r.path)
	fmt.Println("Type 'help' for available commands.")

	for {
		line, err := r.liner.Prompt("daybreak> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd, args := strings.ToLower(parts[0]), parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			r.saveHistory()
			return nil
		case "help", "?":
			r.printHelp()
		case "get":
			r.cmdGet(args)
		case "set":
			r.cmdSet(args)
		case "del", "delete":
			r.cmdDelete(args)
		case "has":
			r.cmdHas(args)
		case "size", "len":
			r.cmdSize()
		case "ls", "scan":
			r.cmdList(args)
		case "sync":
			r.cmdErr(r.db.Sync())
		case "compact":
			r.cmdErr(r.db.Compact())
		case "clear":
			r.cmdErr(r.db.Clear())
		default:
			fmt.Printf("unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()
	return nil
}

func (r *repl) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *repl) printHelp() {
	fmt.Println(`Commands:
  get <key>              Look up a key
  set <key> <value>      Set a key (queued; call sync to flush)
  del <key>               Delete a key
  has <key>               Report whether a key is present
  size                    Count of live keys
  ls [limit]              List keys in iteration order
  sync                    Flush the write queue and replay new records
  compact                 Rewrite the file to drop superseded records
  clear                   Empty the database
  exit / quit / q         Exit`)
}

func (r *repl) cmdGet(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: get <key>")
		return
	}
	v, err := r.db.Get(args[0])
	if r.cmdErr(err) {
		return
	}
	fmt.Println(v)
}

func (r *repl) cmdSet(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: set <key> <value>")
		return
	}
	r.cmdErr(r.db.Set(args[0], strings.Join(args[1:], " ")))
}

func (r *repl) cmdDelete(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: del <key>")
		return
	}
	r.cmdErr(r.db.Delete(args[0]))
}

func (r *repl) cmdHas(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: has <key>")
		return
	}
	ok, err := r.db.Has(args[0])
	if r.cmdErr(err) {
		return
	}
	fmt.Println(ok)
}

func (r *repl) cmdSize() {
	n, err := r.db.Size()
	if r.cmdErr(err) {
		return
	}
	fmt.Println(n)
}

func (r *repl) cmdList(args []string) {
	limit := -1
	if len(args) == 1 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			limit = n
		}
	}
	count := 0
	err := r.db.Iterate(func(key string, value any) bool {
		fmt.Printf("%s = %v\n", key, value)
		count++
		return limit < 0 || count < limit
	})
	r.cmdErr(err)
}

func (r *repl) cmdErr(err error) bool {
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return true
	}
	return false
}
