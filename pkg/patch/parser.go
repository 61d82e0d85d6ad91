package patch

import (
	"strings"
)

// Markers and directives of the patch format
const (
	PatchBeginMarker = "*** Begin Patch"
	PatchEndMarker   = "*** End Patch"
	UpdateFilePrefix = "*** Update File: "
	AddFilePrefix    = "*** Add File: "
	DeleteFilePrefix = "*** Delete File: "
	MoveToPrefix     = "*** Move to: "
	EndOfFileMarker  = "*** End of File"
)

// Parser consumes a sanitized block of patch lines into a Patch.
//
// Fuzz accumulates a penalty for every deviation the parser tolerated
// while locating context; callers can use it to audit how far the patch
// drifted from the files it was written against.
type Parser struct {
	CurrentFiles map[string]string
	Lines        []string
	Index        int
	Patch        Patch
	Fuzz         int
}

// NewParser creates a new parser instance over one block's lines
func NewParser(currentFiles map[string]string, lines []string) *Parser {
	return &Parser{
		CurrentFiles: currentFiles,
		Lines:        lines,
		Index:        0,
		Patch: Patch{
			Actions: make(map[string]PatchAction),
		},
		Fuzz: 0,
	}
}

// isDone checks if parsing is complete
func (p *Parser) isDone(prefixes []string) bool {
	if p.Index >= len(p.Lines) {
		return true
	}

	for _, prefix := range prefixes {
		if strings.HasPrefix(p.Lines[p.Index], prefix) {
			return true
		}
	}

	return false
}

// startsWith checks if the current line starts with a prefix
func (p *Parser) startsWith(prefixes []string) bool {
	if p.Index >= len(p.Lines) {
		return false
	}

	for _, prefix := range prefixes {
		if strings.HasPrefix(p.Lines[p.Index], prefix) {
			return true
		}
	}

	return false
}

// readString reads a line with the given prefix and returns the rest
func (p *Parser) readString(prefix string) string {
	if p.Index >= len(p.Lines) {
		return ""
	}

	if strings.HasPrefix(p.Lines[p.Index], prefix) {
		text := strings.TrimPrefix(p.Lines[p.Index], prefix)
		p.Index++
		return text
	}

	return ""
}

// Parse parses the block into patch actions
func (p *Parser) Parse() error {
	for !p.isDone([]string{PatchEndMarker}) {
		path := p.readString(UpdateFilePrefix)
		if path != "" {
			if _, exists := p.Patch.Actions[path]; exists {
				return &DiffError{Kind: ErrDuplicatePath, Message: "Update File Error: Duplicate Path: " + path}
			}

			moveTo := p.readString(MoveToPrefix)

			text, exists := p.CurrentFiles[path]
			if !exists {
				return &DiffError{Kind: ErrMissingFile, Message: "Update File Error: Missing File: " + path}
			}

			action, err := p.parseUpdateFile(text)
			if err != nil {
				return err
			}

			if moveTo != "" {
				action.MovePath = moveTo
			}
			action.FilePath = path

			p.Patch.Actions[path] = action
			continue
		}

		path = p.readString(DeleteFilePrefix)
		if path != "" {
			if _, exists := p.Patch.Actions[path]; exists {
				return &DiffError{Kind: ErrDuplicatePath, Message: "Delete File Error: Duplicate Path: " + path}
			}

			if _, exists := p.CurrentFiles[path]; !exists {
				return &DiffError{Kind: ErrMissingFile, Message: "Delete File Error: Missing File: " + path}
			}

			p.Patch.Actions[path] = PatchAction{
				Type:     ActionDelete,
				FilePath: path,
				Chunks:   []Chunk{},
			}
			continue
		}

		path = p.readString(AddFilePrefix)
		if path != "" {
			if _, exists := p.Patch.Actions[path]; exists {
				return &DiffError{Kind: ErrDuplicatePath, Message: "Add File Error: Duplicate Path: " + path}
			}

			if _, exists := p.CurrentFiles[path]; exists {
				return &DiffError{Kind: ErrFileAlreadyExists, Message: "Add File Error: File already exists: " + path}
			}

			action, err := p.parseAddFile()
			if err != nil {
				return err
			}
			action.FilePath = path

			p.Patch.Actions[path] = action
			continue
		}

		return &DiffError{Kind: ErrUnknownLine, Message: "Unknown Line: " + p.Lines[p.Index]}
	}

	if !p.startsWith([]string{PatchEndMarker}) {
		return &DiffError{Kind: ErrInvalidPatchEnvelope, Message: "Missing End Patch"}
	}

	p.Index++
	return nil
}

// parseUpdateFile parses an update file section against the original text
func (p *Parser) parseUpdateFile(text string) (PatchAction, error) {
	action := PatchAction{
		Type:   ActionUpdate,
		Chunks: []Chunk{},
	}

	fileLines := strings.Split(text, "\n")
	index := 0 // origin cursor into fileLines

	for !p.isDone([]string{
		PatchEndMarker,
		UpdateFilePrefix,
		DeleteFilePrefix,
		AddFilePrefix,
		EndOfFileMarker,
	}) {
		// A hunk header may carry an anchor that repositions the origin
		// cursor before the context block is matched.
		if anchor, ok := p.readHunkHeader(); ok {
			if anchor != "" {
				if next, fuzz, found := seekAnchor(fileLines, anchor, index); found {
					index = next
					p.Fuzz += fuzz
				}
				// An anchor that cannot be found is ignored; the context
				// block alone must locate the chunk.
			}
			continue
		}

		oldContext, chunks, endIndex, eof, err := peekNextSection(p.Lines, p.Index)
		if err != nil {
			return action, err
		}

		newIndex, fuzz := findContext(fileLines, oldContext, index, eof)
		if newIndex == -1 {
			if eof {
				return action, &DiffError{Kind: ErrInvalidEOFContext, Message: "Could not find end-of-file context:\n" + strings.Join(oldContext, "\n")}
			}
			return action, &DiffError{Kind: ErrInvalidContext, Message: "Could not find context in file:\n" + strings.Join(oldContext, "\n")}
		}
		p.Fuzz += fuzz

		// Rebase the chunks onto the matched origin
		for i := range chunks {
			chunks[i].OrigIndex += newIndex
		}

		action.Chunks = append(action.Chunks, chunks...)
		index = newIndex + len(oldContext)
		p.Index = endIndex
	}

	// Skip the EndOfFileMarker if present
	if p.Index < len(p.Lines) && p.Lines[p.Index] == EndOfFileMarker {
		p.Index++
	}

	return action, nil
}

// readHunkHeader consumes an "@@" line and returns its anchor text.
func (p *Parser) readHunkHeader() (string, bool) {
	if p.Index >= len(p.Lines) || !strings.HasPrefix(p.Lines[p.Index], "@@") {
		return "", false
	}
	anchor := strings.TrimSpace(strings.TrimPrefix(p.Lines[p.Index], "@@"))
	p.Index++
	return anchor, true
}

// seekAnchor looks for the anchor line in the file starting at the origin
// cursor. A strict match costs nothing; a trimmed match costs one fuzz
// point. Returns the index just past the matched line.
func seekAnchor(fileLines []string, anchor string, start int) (int, int, bool) {
	for i := start; i < len(fileLines); i++ {
		if fileLines[i] == anchor {
			return i + 1, 0, true
		}
	}
	trimmed := strings.TrimSpace(anchor)
	for i := start; i < len(fileLines); i++ {
		if strings.TrimSpace(fileLines[i]) == trimmed {
			return i + 1, 1, true
		}
	}
	return 0, 0, false
}

// parseAddFile parses an add file section
func (p *Parser) parseAddFile() (PatchAction, error) {
	var lines []string

	for !p.isDone([]string{
		PatchEndMarker,
		UpdateFilePrefix,
		DeleteFilePrefix,
		AddFilePrefix,
	}) {
		line := p.Lines[p.Index]
		if !strings.HasPrefix(line, "+") {
			return PatchAction{}, &DiffError{Kind: ErrInvalidAddFileLine, Message: "Invalid Add File Line: " + line}
		}
		p.Index++

		lines = append(lines, line[1:])
	}

	return PatchAction{
		Type:    ActionAdd,
		NewFile: strings.Join(lines, "\n"),
		Chunks:  []Chunk{},
	}, nil
}

// TextToPatch converts patch text into a Patch, returning the accumulated
// fuzz score alongside it. The text is sanitized and header-repaired
// first, so raw model output can be passed in directly.
func TextToPatch(text string, orig map[string]string) (Patch, int, error) {
	lines, _ := SanitizePatchText(text)
	lines = RepairHunkHeaders(lines)

	if len(lines) < 2 || lines[0] != PatchBeginMarker || lines[len(lines)-1] != PatchEndMarker {
		return Patch{}, 0, &DiffError{
			Kind:    ErrInvalidPatchEnvelope,
			Message: "Invalid patch format: must begin with '*** Begin Patch' and end with '*** End Patch'",
		}
	}

	parser := NewParser(orig, lines)
	parser.Index = 1 // Skip the Begin Patch line

	if err := parser.Parse(); err != nil {
		return Patch{}, 0, err
	}

	return parser.Patch, parser.Fuzz, nil
}

// peekNextSection scans forward from initialIndex collecting one context
// section: the expected slice of the original file plus the chunks edited
// inside it. It stops at the next file-scope directive or hunk header.
func peekNextSection(lines []string, initialIndex int) ([]string, []Chunk, int, bool, error) {
	index := initialIndex
	var oldContext []string
	var delLines []string
	var insLines []string
	var chunks []Chunk
	mode := "keep"

	for index < len(lines) {
		s := lines[index]

		// End of section markers
		if strings.HasPrefix(s, "@@") ||
			strings.HasPrefix(s, PatchEndMarker) ||
			strings.HasPrefix(s, UpdateFilePrefix) ||
			strings.HasPrefix(s, DeleteFilePrefix) ||
			strings.HasPrefix(s, AddFilePrefix) ||
			strings.HasPrefix(s, EndOfFileMarker) {
			break
		}

		// Skip separator markers
		if s == "***" {
			index++
			continue
		}

		// Invalid section marker
		if strings.HasPrefix(s, "***") {
			return nil, nil, 0, false, &DiffError{Kind: ErrInvalidHunkLine, Message: "Invalid Line: " + s}
		}

		index++
		lastMode := mode
		line := s

		switch {
		case strings.HasPrefix(line, "+"):
			mode = "add"
			line = line[1:]
		case strings.HasPrefix(line, "-"):
			mode = "delete"
			line = line[1:]
		case strings.HasPrefix(line, " "):
			mode = "keep"
			line = line[1:]
		default:
			// Tolerate a missing leading space on context lines
			mode = "keep"
		}

		// When the mode returns to keep, the pending adds/deletes form a
		// complete chunk.
		if mode == "keep" && lastMode != mode {
			if len(insLines) > 0 || len(delLines) > 0 {
				chunks = append(chunks, Chunk{
					OrigIndex: len(oldContext) - len(delLines),
					DelLines:  delLines,
					InsLines:  insLines,
				})

				delLines = []string{}
				insLines = []string{}
			}
		}

		if mode == "delete" {
			delLines = append(delLines, line)
			oldContext = append(oldContext, line)
		} else if mode == "add" {
			insLines = append(insLines, line)
		} else {
			oldContext = append(oldContext, line)
		}
	}

	// Finalize the last chunk if there are pending lines
	if len(insLines) > 0 || len(delLines) > 0 {
		chunks = append(chunks, Chunk{
			OrigIndex: len(oldContext) - len(delLines),
			DelLines:  delLines,
			InsLines:  insLines,
		})
	}

	// Check if we reached the end of file marker
	eof := false
	if index < len(lines) && lines[index] == EndOfFileMarker {
		index++
		eof = true
	}

	return oldContext, chunks, index, eof, nil
}
