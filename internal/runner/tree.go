package runner

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// ProjectTree renders an indented listing of the project's Python files for
// prompt construction. Directories in ignoreDirs are pruned; only .py files
// are listed to keep prompts small.
func ProjectTree(root string, ignoreDirs []string) string {
	ignored := make(map[string]bool, len(ignoreDirs))
	for _, d := range ignoreDirs {
		ignored[d] = true
	}

	var b strings.Builder
	b.WriteString("PROJECT STRUCTURE:\n")

	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator))
		indent := strings.Repeat("    ", depth)

		if d.IsDir() {
			if ignored[d.Name()] {
				return filepath.SkipDir
			}
			fmt.Fprintf(&b, "%s%s/\n", indent, d.Name())
			return nil
		}

		if strings.HasSuffix(d.Name(), ".py") {
			fmt.Fprintf(&b, "%s%s\n", indent, d.Name())
		}
		return nil
	})

	return b.String()
}
