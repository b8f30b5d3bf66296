// daybreak is a command-line front end for the embedded key-value
// store: it supports one-shot get/set/delete/compact operations
// against a journal file, reading defaults from an optional JSONC
// options file.
//
// Usage:
//
//	daybreak [flags] get <key>
//	daybreak [flags] set <key> <value>
//	daybreak [flags] delete <key>
//	daybreak [flags] compact
//	daybreak [flags] clear
//	daybreak [flags] dump
package main

import (
	"encoding/gob"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kleinmatic/daybreak"
	"github.com/kleinmatic/daybreak/internal/version"
)

func main() {
	gob.Register("")

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "daybreak: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("daybreak", flag.ExitOnError)
	dbPath := fs.StringP("db", "d", envOrDefault("DAYBREAK_DB", "daybreak.db"), "path to the journal file")
	optsPath := fs.StringP("options", "o", envOrDefault("DAYBREAK_OPTIONS", ""), "path to a JSONC options file")
	showVersion := fs.BoolP("version", "v", false, "show version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Printf("daybreak v%s (built %s)\n", version.Version, version.BuildTime)
		return nil
	}

	opts, err := loadOptions(*optsPath)
	if err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("missing command (get|set|delete|compact|clear|dump)")
	}
	cmd, cmdArgs := rest[0], rest[1:]

	// dump reads the journal directly via journalfile.Replay rather
	// than through a live Database, so it never opens one: it neither
	// wants the background writer a Database starts, nor needs the
	// in-memory index Open would build just to throw away.
	if cmd == "dump" {
		return cmdDump(*dbPath, opts, cmdArgs)
	}

	db, err := daybreak.Open(*dbPath, opts.databaseOptions()...)
	if err != nil {
		return fmt.Errorf("opening %s: %w", *dbPath, err)
	}
	defer db.Close()

	switch cmd {
	case "get":
		return cmdGet(db, cmdArgs)
	case "set":
		return cmdSet(db, cmdArgs)
	case "delete", "del":
		return cmdDelete(db, cmdArgs)
	case "compact":
		return db.Compact()
	case "clear":
		return db.Clear()
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdGet(db *daybreak.Database, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: daybreak get <key>")
	}
	v, err := db.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Println(v)
	return nil
}

func cmdSet(db *daybreak.Database, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: daybreak set <key> <value>")
	}
	return db.SetSync(args[0], args[1])
}

func cmdDelete(db *daybreak.Database, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: daybreak delete <key>")
	}
	return db.DeleteSync(args[0])
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
