package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"github.com/kleinmatic/daybreak"
	"github.com/kleinmatic/daybreak/internal/serializer"
)

// fileOptions is the JSONC-with-comments options file format, parsed
// the way calvinalkan-agent-task's config.go parses its own .tk.json:
// read raw bytes, run them through hujson.Standardize to strip
// comments/trailing commas, then unmarshal as plain JSON.
type fileOptions struct {
	Compress     bool   `json:"compress"`
	DefaultValue string `json:"default_value,omitempty"`
}

func loadOptions(path string) (fileOptions, error) {
	if path == "" {
		return fileOptions{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileOptions{}, nil
		}
		return fileOptions{}, fmt.Errorf("reading options file %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileOptions{}, fmt.Errorf("invalid JSONC in %s: %w", path, err)
	}

	var opts fileOptions
	if err := json.Unmarshal(standardized, &opts); err != nil {
		return fileOptions{}, fmt.Errorf("invalid options in %s: %w", path, err)
	}
	return opts, nil
}

func (o fileOptions) databaseOptions() []daybreak.Option {
	var opts []daybreak.Option
	if o.Compress {
		opts = append(opts, daybreak.WithSerializer(serializer.Gob{Compress: true}))
	}
	if o.DefaultValue != "" {
		opts = append(opts, daybreak.WithDefault(daybreak.ConstantDefault(o.DefaultValue)))
	}
	return opts
}
