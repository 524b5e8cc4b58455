package parser

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sokinpui/track.go/internal/fs"
	"github.com/sokinpui/track.go/internal/patcher"
	"github.com/sokinpui/track.go/internal/ui"
	"github.com/sokinpui/track.go/model"
)

// ExecutionPlan contains all the proposed changes and the setup they need.
type ExecutionPlan struct {
	Changes      []model.FileChange
	FileActions  map[string]string // Maps absolute path to "create" or "modify"
	DirsToCreate map[string]struct{}
}

var pathInHintRegex = regexp.MustCompile("`([^`\n]+)`")

// CreatePlan parses agent output and produces the proposed content of every
// file it touches.
func CreatePlan(content string, resolver *fs.PathResolver, extensions []string) (*ExecutionPlan, error) {
	blocks, err := ExtractCodeBlocks([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markdown: %w", err)
	}

	// If '.diff' is the ONLY extension, we are in a special diff-only mode.
	isDiffOnlyMode := len(extensions) == 1 && extensions[0] == ".diff"

	var fileBlocks []model.FileChange
	if !isDiffOnlyMode {
		fileBlocks = fileChanges(blocks, resolver, extensions)
	}
	diffBlocks := diffBlocks(blocks)

	patcherExtensions := extensions
	if isDiffOnlyMode {
		patcherExtensions = nil
	}
	patchedChanges, err := patcher.GeneratePatchedContents(diffBlocks, resolver, patcherExtensions)
	if err != nil {
		return nil, fmt.Errorf("failed during patch generation: %w", err)
	}

	// File blocks overwrite diff patches for the same file.
	finalChanges := make(map[string]model.FileChange)
	for _, change := range patchedChanges {
		finalChanges[change.Path] = change
	}
	for _, block := range fileBlocks {
		finalChanges[block.Path] = block
	}

	planChanges := make([]model.FileChange, 0, len(finalChanges))
	targetPaths := make([]string, 0, len(finalChanges))
	for _, change := range finalChanges {
		planChanges = append(planChanges, change)
		targetPaths = append(targetPaths, change.Path)
	}
	sort.Slice(planChanges, func(i, j int) bool { return planChanges[i].Path < planChanges[j].Path })

	actions, dirs := fs.GetFileActionsAndDirs(targetPaths)
	return &ExecutionPlan{
		Changes:      planChanges,
		FileActions:  actions,
		DirsToCreate: dirs,
	}, nil
}

// fileChanges turns code blocks whose hint names a file into whole-file
// proposals.
func fileChanges(blocks []CodeBlock, resolver *fs.PathResolver, extensions []string) []model.FileChange {
	var changes []model.FileChange
	for _, block := range blocks {
		if block.Lang == "diff" {
			continue
		}
		filePath := extractPathFromHint(block.Hint)
		if filePath == "" || !hasAllowedExtension(filePath, extensions) {
			continue
		}
		changes = append(changes, model.FileChange{
			Path:    resolver.Resolve(filePath),
			Content: block.Content,
			Source:  "codeblock",
		})
	}
	return changes
}

// ExtractDiffBlocks finds all diff blocks in the content.
func ExtractDiffBlocks(content string) ([]model.DiffBlock, error) {
	blocks, err := ExtractCodeBlocks([]byte(content))
	if err != nil {
		return nil, err
	}
	return diffBlocks(blocks), nil
}

func diffBlocks(blocks []CodeBlock) []model.DiffBlock {
	var diffs []model.DiffBlock
	for _, block := range blocks {
		if block.Lang != "diff" {
			continue
		}
		rawContent := strings.TrimSpace(block.Content)
		filePath := patcher.ExtractPathFromDiff(rawContent)
		if filePath == "" {
			ui.Warning("Found a diff block but could not extract a file path. Skipping.")
			continue
		}
		diffs = append(diffs, model.DiffBlock{
			FilePath:   filePath,
			RawContent: rawContent,
		})
	}
	return diffs
}

func extractPathFromHint(hint string) string {
	hint = strings.TrimSpace(hint)

	// A path hint must be enclosed in backticks, e.g., `path/to/file.go`
	if match := pathInHintRegex.FindStringSubmatch(hint); len(match) > 1 {
		path := strings.TrimSpace(match[1])
		// Disallow spaces to avoid capturing commands like `go run main.go` as a path.
		if !strings.Contains(path, " ") {
			return path
		}
	}

	return ""
}

func hasAllowedExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := filepath.Ext(path)
	for _, allowedExt := range extensions {
		if ext == allowedExt {
			return true
		}
	}
	return false
}
