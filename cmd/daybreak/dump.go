package main

import (
	"fmt"

	"github.com/kleinmatic/daybreak/internal/journalfile"
	"github.com/kleinmatic/daybreak/internal/recordcodec"
	"github.com/kleinmatic/daybreak/internal/serializer"
)

// cmdDump prints every record in path's journal, in file order, without
// building an in-memory index: it walks the raw journal through
// journalfile.Replay, the same standalone entry point any tool wanting
// read-only access to a journal file would use.
func cmdDump(path string, o fileOptions, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: daybreak dump")
	}

	codec := serializer.Gob{Compress: o.Compress}

	return journalfile.Replay(path, codec.Name(), func(rec recordcodec.Record) error {
		if rec.Tombstone {
			fmt.Printf("TOMBSTONE %s\n", rec.Key)
			return nil
		}
		var value any
		if err := codec.Decode(rec.Value, &value); err != nil {
			fmt.Printf("PUT       %s = <undecodable: %v>\n", rec.Key, err)
			return nil
		}
		fmt.Printf("PUT       %s = %v\n", rec.Key, value)
		return nil
	})
}
