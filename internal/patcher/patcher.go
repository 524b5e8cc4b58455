package patcher

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sokinpui/track.go/internal/fs"
	"github.com/sokinpui/track.go/internal/ui"
	"github.com/sokinpui/track.go/model"
)

// filePathRegex extracts the file path from a '+++ b/...' line.
var filePathRegex = regexp.MustCompile(`(?m)^\+\+\+ b/(?P<path>.*?)(\s|$)`)

// ExtractPathFromDiff finds the file path in a raw diff string.
func ExtractPathFromDiff(content string) string {
	match := filePathRegex.FindStringSubmatch(content)
	if len(match) > 1 {
		return strings.TrimSpace(match[1])
	}
	return ""
}

// GeneratePatchedContents applies diffs to the files they target and returns
// the proposed content of each. Diffs that cannot be placed are skipped.
func GeneratePatchedContents(diffs []model.DiffBlock, resolver *fs.PathResolver, extensions []string) ([]model.FileChange, error) {
	if len(diffs) == 0 {
		return nil, nil
	}
	ui.Info("\nFound %d diff block(s) to process.", len(diffs))

	var changes []model.FileChange
	for _, diff := range diffs {
		if len(extensions) > 0 && !hasExtension(diff.FilePath, extensions) {
			continue
		}

		source, err := readSource(diff.FilePath, resolver)
		if err != nil {
			ui.Error("  -> Failed to read %s: %v", diff.FilePath, err)
			continue
		}

		patched, err := Apply(source, diff.RawContent)
		if err != nil {
			ui.Warning("  -> Diff could not be applied to %s. Skipping: %v", diff.FilePath, err)
			continue
		}

		ui.Success("  -> Successfully generated patch for: %s", diff.FilePath)
		changes = append(changes, model.FileChange{
			Path:    resolver.Resolve(diff.FilePath),
			Content: patched,
			Source:  "diff",
		})
	}
	return changes, nil
}

// CorrectDiff rewrites the hunk headers of a raw diff block so they match the
// file on disk.
func CorrectDiff(diff model.DiffBlock, resolver *fs.PathResolver) (string, error) {
	source, err := readSource(diff.FilePath, resolver)
	if err != nil {
		return "", err
	}
	ui.Info("  -> Correcting diff for: %s", diff.FilePath)
	return Correct(source, diff.RawContent, diff.FilePath)
}

// readSource returns the current content of the diff's target, or "" for a
// file that does not exist yet.
func readSource(filePath string, resolver *fs.PathResolver) (string, error) {
	sourcePath := resolver.ResolveExisting(filePath)
	if sourcePath == "" {
		return "", nil
	}
	content, _, err := fs.ReadText(sourcePath)
	return content, err
}

func hasExtension(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	for _, allowed := range extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
