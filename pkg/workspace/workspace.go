package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Manager owns job working directories under a common root. A directory is
// created exactly once per job and never handed to another job.
type Manager struct {
	root string
}

func New(root string) (*Manager, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Manager{root: root}, nil
}

func (m *Manager) Root() string {
	return m.root
}

// Prepare creates the directory at path. It refuses to reuse an existing
// directory: workspace paths are unique per job by construction, so a
// collision means something else owns the path.
func (m *Manager) Prepare(path string) error {
	if err := m.ensureInRoot(path); err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("workspace %s already exists", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat workspace: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	return nil
}

// WriteConfiguration materializes the template source and the resolved
// variables into the workspace.
func (m *Manager) WriteConfiguration(path string, source string, variables map[string]interface{}) error {
	if err := m.ensureInRoot(path); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(path, "main.tf"), []byte(source), 0o644); err != nil {
		return fmt.Errorf("write template source: %w", err)
	}
	data, err := json.MarshalIndent(variables, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, "terraform.tfvars.json"), data, 0o644); err != nil {
		return fmt.Errorf("write variables: %w", err)
	}
	return nil
}

// Cleanup removes the workspace directory. Paths outside the configured
// root are rejected.
func (m *Manager) Cleanup(path string) error {
	if path == "" {
		return nil
	}
	if err := m.ensureInRoot(path); err != nil {
		return err
	}
	return os.RemoveAll(path)
}

func (m *Manager) ensureInRoot(path string) error {
	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == "." || rel == "" || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("refusing to touch path outside workspace root: %s", path)
	}
	return nil
}
