// Package scanner maintains the project context summary at
// .ghost/context.json: one entry per Python source file describing its
// top-level functions and classes. Prompt construction consumes the
// summary so generated tests only import symbols that actually exist.
package scanner

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ContextDir is the metadata directory Ghost keeps at the project root.
const ContextDir = ".ghost"

// contextFile is the summary consumed by prompt construction.
const contextFile = "context.json"

// Scanner walks a project and summarizes its Python sources.
type Scanner struct {
	Root        string
	IgnoreDirs  []string
	IgnoreFiles []string
}

// New creates a scanner for the given project root.
func New(root string, ignoreDirs, ignoreFiles []string) *Scanner {
	return &Scanner{Root: root, IgnoreDirs: ignoreDirs, IgnoreFiles: ignoreFiles}
}

// ContextPath returns the summary location for a project root.
func ContextPath(root string) string {
	return filepath.Join(root, ContextDir, contextFile)
}

// Scan rebuilds the whole summary and writes it to .ghost/context.json.
func (s *Scanner) Scan() (map[string]string, error) {
	ignoredDirs := make(map[string]bool, len(s.IgnoreDirs))
	for _, d := range s.IgnoreDirs {
		ignoredDirs[d] = true
	}
	ignoredFiles := make(map[string]bool, len(s.IgnoreFiles))
	for _, f := range s.IgnoreFiles {
		ignoredFiles[f] = true
	}

	result := make(map[string]string)

	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != s.Root && ignoredDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if ignoredFiles[name] || !strings.HasSuffix(name, ".py") {
			return nil
		}

		source, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		result[name] = Summarize(string(source))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", s.Root, err)
	}

	if err := s.write(result); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateFile refreshes a single file's entry after a create or modify.
func (s *Scanner) UpdateFile(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	data, err := s.load()
	if err != nil {
		return err
	}
	data[filepath.Base(path)] = Summarize(string(source))
	return s.write(data)
}

// RemoveFile drops a deleted file's entry. Removing an unknown file is not
// an error.
func (s *Scanner) RemoveFile(filename string) error {
	data, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := data[filename]; !ok {
		return nil
	}
	delete(data, filename)
	return s.write(data)
}

// Load returns the raw summary JSON for prompt construction. Missing
// summaries come back empty rather than failing generation.
func Load(root string) string {
	data, err := os.ReadFile(ContextPath(root))
	if err != nil {
		return ""
	}
	return string(data)
}

func (s *Scanner) load() (map[string]string, error) {
	data := make(map[string]string)
	raw, err := os.ReadFile(ContextPath(s.Root))
	if os.IsNotExist(err) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading context summary: %w", err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		// A corrupt summary is rebuilt from scratch rather than blocking.
		return make(map[string]string), nil
	}
	return data, nil
}

func (s *Scanner) write(data map[string]string) error {
	dir := filepath.Join(s.Root, ContextDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	raw, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return fmt.Errorf("marshaling context summary: %w", err)
	}
	if err := os.WriteFile(ContextPath(s.Root), raw, 0644); err != nil {
		return fmt.Errorf("writing context summary: %w", err)
	}
	return nil
}

var (
	defRe   = regexp.MustCompile(`^(\s*)def\s+(\w+)\s*\(([^)]*)\)`)
	classRe = regexp.MustCompile(`^class\s+(\w+)`)
)

// Summarize produces a one-line digest of a Python source file: its
// top-level function signatures and classes with their method names.
// Line-based on purpose; a full parser buys little for prompt context.
func Summarize(source string) string {
	var functions []string
	var classOrder []string
	methods := make(map[string][]string)

	currentClass := ""
	for _, line := range strings.Split(source, "\n") {
		if m := classRe.FindStringSubmatch(line); m != nil {
			currentClass = m[1]
			classOrder = append(classOrder, currentClass)
			methods[currentClass] = nil
			continue
		}

		m := defRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		indent, name, args := m[1], m[2], m[3]

		if indent == "" {
			currentClass = ""
			params := strings.TrimSpace(args)
			functions = append(functions, fmt.Sprintf("%s(%s)", name, params))
		} else if currentClass != "" {
			methods[currentClass] = append(methods[currentClass], name)
		}
	}

	funcPart := "Functions: None"
	if len(functions) > 0 {
		funcPart = "Functions: " + strings.Join(functions, ", ")
	}

	classPart := "Classes: None"
	if len(classOrder) > 0 {
		var parts []string
		for _, cls := range classOrder {
			list := "None"
			if len(methods[cls]) > 0 {
				list = strings.Join(methods[cls], ", ")
			}
			parts = append(parts, fmt.Sprintf("%s [Methods: %s]", cls, list))
		}
		classPart = "Classes: " + strings.Join(parts, "; ")
	}

	return funcPart + "; " + classPart
}
