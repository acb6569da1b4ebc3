package render

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"text/template"

	"github.com/clusterjoin/tokenbroker-go/internal/service"
	"github.com/clusterjoin/tokenbroker-go/pkg/peerbus"
	"github.com/clusterjoin/tokenbroker-go/pkg/tokenoracle"
)

// Renderer expands configuration templates that can pull a join token
// through the oracle, writes the result atomically, and restarts the
// supervised unit when the file changed. A failed token fetch fails the
// whole render so a blank token never lands in a config file.
type Renderer struct {
	oracle tokenoracle.Oracle
	sup    service.Supervisor
}

// Entry describes one file to render.
type Entry struct {
	// TemplatePath is the source template (text/template syntax).
	TemplatePath string

	// DestPath is where the rendered file is written.
	DestPath string

	// Unit, when non-empty, is restarted after the destination changes.
	Unit string

	// Mode is the file mode for the destination; 0 means 0600.
	Mode os.FileMode
}

// New creates a Renderer backed by the given oracle and supervisor.
func New(oracle tokenoracle.Oracle, sup service.Supervisor) (*Renderer, error) {
	if oracle == nil {
		return nil, fmt.Errorf("oracle cannot be nil")
	}
	if sup == nil {
		sup = service.NoopSupervisor{}
	}
	return &Renderer{oracle: oracle, sup: sup}, nil
}

// funcMap exposes the oracle to templates:
//
//	auth_token: "{{ nodeAuthToken "role:auth-server" "grain" }}"
func (r *Renderer) funcMap(ctx context.Context) template.FuncMap {
	return template.FuncMap{
		"nodeAuthToken": func(target, matchType string) (string, error) {
			mt, err := peerbus.ParseMatchType(matchType)
			if err != nil {
				return "", err
			}
			sel := peerbus.Selector{Target: target, MatchType: mt}
			return r.oracle.NodeAuthToken(ctx, sel)
		},
	}
}

// Render expands the template at templatePath with data and returns the
// result without writing anything.
func (r *Renderer) Render(ctx context.Context, templatePath string, data interface{}) ([]byte, error) {
	tmpl, err := template.New(filepath.Base(templatePath)).
		Funcs(r.funcMap(ctx)).
		Option("missingkey=error").
		ParseFiles(templatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", templatePath, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", templatePath, err)
	}
	return buf.Bytes(), nil
}

// Apply renders one entry to its destination and restarts the entry's unit
// when the destination content changed. The destination is written via a
// temp file and rename; a failed render leaves it untouched.
func (r *Renderer) Apply(ctx context.Context, entry Entry) (changed bool, err error) {
	if entry.TemplatePath == "" || entry.DestPath == "" {
		return false, fmt.Errorf("entry needs both template and destination paths")
	}

	content, err := r.Render(ctx, entry.TemplatePath, nil)
	if err != nil {
		return false, err
	}

	if existing, readErr := os.ReadFile(entry.DestPath); readErr == nil && bytes.Equal(existing, content) {
		return false, nil
	}

	if err := writeFileAtomic(entry.DestPath, content, entry.mode()); err != nil {
		return false, err
	}
	log.Printf("render: wrote %s from %s", entry.DestPath, entry.TemplatePath)

	if entry.Unit != "" {
		if err := r.sup.Restart(ctx, entry.Unit); err != nil {
			return true, fmt.Errorf("rendered %s but failed to restart %s: %w", entry.DestPath, entry.Unit, err)
		}
	}
	return true, nil
}

func (e Entry) mode() os.FileMode {
	if e.Mode == 0 {
		return 0o600
	}
	return e.Mode
}

// writeFileAtomic writes content to a temp file in the destination
// directory and renames it into place.
func writeFileAtomic(path string, content []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to set mode on %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
