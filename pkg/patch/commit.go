package patch

import (
	"fmt"
	"path/filepath"
	"strings"
)

// UpdateFileWithChunks replays an update action's chunks against the
// original text and returns the new content.
func UpdateFileWithChunks(text string, action PatchAction, path string) (string, error) {
	lines := strings.Split(text, "\n")
	destLines := make([]string, 0, len(lines))
	origIndex := 0

	for _, chunk := range action.Chunks {
		if chunk.OrigIndex > len(lines) {
			return "", &DiffError{
				Kind:    ErrChunkOutOfRange,
				Message: fmt.Sprintf("%s: chunk at line %d is beyond the end of the file (%d lines)", path, chunk.OrigIndex, len(lines)),
			}
		}
		if chunk.OrigIndex < origIndex {
			return "", &DiffError{
				Kind:    ErrChunkOrderViolation,
				Message: fmt.Sprintf("%s: chunk at line %d overlaps the previous chunk", path, chunk.OrigIndex),
			}
		}
		if chunk.OrigIndex+len(chunk.DelLines) > len(lines) {
			return "", &DiffError{
				Kind:    ErrChunkOutOfRange,
				Message: fmt.Sprintf("%s: chunk at line %d deletes past the end of the file", path, chunk.OrigIndex),
			}
		}

		destLines = append(destLines, lines[origIndex:chunk.OrigIndex]...)
		destLines = append(destLines, chunk.InsLines...)
		origIndex = chunk.OrigIndex + len(chunk.DelLines)
	}

	destLines = append(destLines, lines[origIndex:]...)

	return strings.Join(destLines, "\n"), nil
}

// PatchToCommit converts a Patch into a Commit against the original file
// snapshot. Paths whose content would be unchanged are omitted.
func PatchToCommit(patch Patch, orig map[string]string) (Commit, error) {
	commit := Commit{
		Changes: make(map[string]FileChange),
	}

	for pathKey, action := range patch.Actions {
		switch action.Type {
		case ActionDelete:
			commit.Changes[pathKey] = FileChange{
				Type:       ActionDelete,
				OldContent: orig[pathKey],
			}
		case ActionAdd:
			commit.Changes[pathKey] = FileChange{
				Type:       ActionAdd,
				NewContent: action.NewFile,
			}
		case ActionUpdate:
			newContent, err := UpdateFileWithChunks(orig[pathKey], action, pathKey)
			if err != nil {
				return Commit{}, err
			}
			if newContent == orig[pathKey] && action.MovePath == "" {
				continue
			}
			commit.Changes[pathKey] = FileChange{
				Type:       ActionUpdate,
				OldContent: orig[pathKey],
				NewContent: newContent,
				MovePath:   action.MovePath,
			}
		}
	}

	return commit, nil
}

// ApplyCommit effects a commit through the injected callbacks. Absolute
// target paths are rejected before any callback runs, so a rejected
// commit leaves the filesystem untouched.
func ApplyCommit(commit Commit, write WriteFn, remove RemoveFn) error {
	for path, change := range commit.Changes {
		if filepath.IsAbs(path) {
			return &DiffError{Kind: ErrAbsolutePath, Message: "Absolute path not allowed: " + path}
		}
		if change.MovePath != "" && filepath.IsAbs(change.MovePath) {
			return &DiffError{Kind: ErrAbsolutePath, Message: "Absolute path not allowed: " + change.MovePath}
		}
	}

	for path, change := range commit.Changes {
		switch change.Type {
		case ActionDelete:
			if err := remove(path); err != nil {
				return err
			}
		case ActionAdd:
			if err := write(path, change.NewContent); err != nil {
				return err
			}
		case ActionUpdate:
			if change.MovePath != "" {
				if err := write(change.MovePath, change.NewContent); err != nil {
					return err
				}
				if err := remove(path); err != nil {
					return err
				}
			} else {
				if err := write(path, change.NewContent); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// IdentifyFilesNeeded extracts the existing files a patch will read
func IdentifyFilesNeeded(text string) []string {
	lines, _ := SanitizePatchText(text)
	result := make(map[string]bool)

	for _, line := range lines {
		if strings.HasPrefix(line, UpdateFilePrefix) {
			result[strings.TrimPrefix(line, UpdateFilePrefix)] = true
		} else if strings.HasPrefix(line, DeleteFilePrefix) {
			result[strings.TrimPrefix(line, DeleteFilePrefix)] = true
		}
	}

	paths := make([]string, 0, len(result))
	for path := range result {
		paths = append(paths, path)
	}

	return paths
}

// IdentifyFilesAdded extracts the files a patch will create
func IdentifyFilesAdded(text string) []string {
	lines, _ := SanitizePatchText(text)
	result := make(map[string]bool)

	for _, line := range lines {
		if strings.HasPrefix(line, AddFilePrefix) {
			result[strings.TrimPrefix(line, AddFilePrefix)] = true
		}
	}

	paths := make([]string, 0, len(result))
	for path := range result {
		paths = append(paths, path)
	}

	return paths
}

// LoadFiles loads the content of the given paths through the read
// callback. A failed read is reported as a FileNotFound error.
func LoadFiles(paths []string, read ReadFn) (map[string]string, error) {
	orig := make(map[string]string)

	for _, p := range paths {
		content, err := read(p)
		if err != nil {
			return nil, &DiffError{Kind: ErrFileNotFound, Message: fmt.Sprintf("File not found: %s", p)}
		}
		orig[p] = content
	}

	return orig, nil
}

// ProcessPatch is the convenience pipeline: sanitize, split into blocks,
// parse, build and apply each block's commit in sequence. Returns "Done!"
// on success.
func ProcessPatch(text string, read ReadFn, write WriteFn, remove RemoveFn) (string, error) {
	lines, _ := SanitizePatchText(text)
	lines = RepairHunkHeaders(lines)

	blocks, err := SplitBlocks(lines)
	if err != nil {
		return "", err
	}
	if len(blocks) == 0 {
		return "", &DiffError{
			Kind:    ErrInvalidPatchEnvelope,
			Message: "Invalid patch format: must begin with '*** Begin Patch' and end with '*** End Patch'",
		}
	}

	for _, block := range blocks {
		blockText := strings.Join(block, "\n")

		orig, err := LoadFiles(IdentifyFilesNeeded(blockText), read)
		if err != nil {
			return "", err
		}

		patch, _, err := TextToPatch(blockText, orig)
		if err != nil {
			return "", err
		}

		commit, err := PatchToCommit(patch, orig)
		if err != nil {
			return "", err
		}

		if err := ApplyCommit(commit, write, remove); err != nil {
			return "", err
		}
	}

	return "Done!", nil
}
