// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/watermark-hook/pkg/types"
)

// Export formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Export writes the filtered history to w as YAML or JSON.
func (s *Store) Export(ctx context.Context, w io.Writer, format string, opts ListOptions) error {
	recs, err := s.List(ctx, opts)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}
	if recs == nil {
		recs = []types.FileRecord{}
	}

	var data []byte
	switch format {
	case FormatYAML, "":
		data, err = yaml.Marshal(recs)
	case FormatJSON:
		data, err = json.MarshalIndent(recs, "", "  ")
		data = append(data, '\n')
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", format, err)
	}
	_, err = w.Write(data)
	return err
}

// ExportFile writes the filtered history to stateDir/export.<format> and
// returns the file path.
func (s *Store) ExportFile(ctx context.Context, format string, opts ListOptions) (string, error) {
	if format == "" {
		format = FormatYAML
	}
	path := filepath.Join(s.stateDir, "export."+format)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if err := s.Export(ctx, f, format, opts); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	return path, f.Close()
}
