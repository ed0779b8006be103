package repostate

import (
	"bufio"
	"os"
	"strings"
)

// ensureIgnoreLine appends line to the .gitignore file at path if it's not
// already present, creating the file if needed. Used both for
// ".lfc/.gitignore" (cache/, config.lock) and the repository's top-level
// .gitignore (tracked large-file paths).
func ensureIgnoreLine(path, line string) error {
	existing, err := readLines(path)
	if err != nil {
		return err
	}
	for _, l := range existing {
		if strings.TrimSpace(l) == line {
			return nil
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if len(existing) > 0 {
		if last := existing[len(existing)-1]; last != "" {
			if _, err := f.WriteString("\n"); err != nil {
				return err
			}
		}
	}
	_, err = f.WriteString(line + "\n")
	return err
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// IgnoreTrackedPath adds path to the repository's top-level .gitignore so
// the large file itself (not its sidecar) is never committed directly.
func (r *Repo) IgnoreTrackedPath(relPath string) error {
	return ensureIgnoreLine(r.Root+"/.gitignore", "/"+relPath)
}

// TrackedIgnores returns the tracked-file entries lfc has written to the
// repository's top-level .gitignore, with the leading "/" stripped.
func (r *Repo) TrackedIgnores() ([]string, error) {
	lines, err := readLines(r.Root + "/.gitignore")
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if !strings.HasPrefix(l, "/") || strings.ContainsAny(l, "*?[") {
			continue
		}
		paths = append(paths, strings.TrimPrefix(l, "/"))
	}
	return paths, nil
}
