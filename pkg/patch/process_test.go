package patch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memFS is an in-memory filesystem backing the engine callbacks in tests.
type memFS struct {
	files map[string]string
}

func newMemFS(files map[string]string) *memFS {
	copied := make(map[string]string, len(files))
	for k, v := range files {
		copied[k] = v
	}
	return &memFS{files: copied}
}

func (m *memFS) read(path string) (string, error) {
	content, ok := m.files[path]
	if !ok {
		return "", fmt.Errorf("open %s: no such file", path)
	}
	return content, nil
}

func (m *memFS) write(path, content string) error {
	m.files[path] = content
	return nil
}

func (m *memFS) remove(path string) error {
	delete(m.files, path)
	return nil
}

func TestProcessPatchSimpleUpdate(t *testing.T) {
	fs := newMemFS(map[string]string{
		"hello.py": "def f():\n    pass\n",
	})

	patchText := `*** Begin Patch
*** Update File: hello.py
@@
 def f():
-    pass
+    raise NotImplementedError()
*** End Patch`

	result, err := ProcessPatch(patchText, fs.read, fs.write, fs.remove)
	require.NoError(t, err)
	assert.Equal(t, "Done!", result)
	assert.Equal(t, "def f():\n    raise NotImplementedError()\n", fs.files["hello.py"])
}

func TestProcessPatchMissingSpacePrefix(t *testing.T) {
	fs := newMemFS(map[string]string{
		"hello.py": "def f():\n    pass\n",
	})

	// The context line lost its leading space; the result is identical.
	patchText := `*** Begin Patch
*** Update File: hello.py
@@
def f():
-    pass
+    raise NotImplementedError()
*** End Patch`

	_, err := ProcessPatch(patchText, fs.read, fs.write, fs.remove)
	require.NoError(t, err)
	assert.Equal(t, "def f():\n    raise NotImplementedError()\n", fs.files["hello.py"])
}

func TestProcessPatchUnicodeDrift(t *testing.T) {
	fs := newMemFS(map[string]string{
		"notes.md": "intro\n# co-authored\noutro\n",
	})

	// The patch context spells the hyphen as an en dash.
	patchText := "*** Begin Patch\n" +
		"*** Update File: notes.md\n" +
		" # co–authored\n" +
		"-outro\n" +
		"+OUTRO\n" +
		"*** End Patch"

	orig := map[string]string{"notes.md": fs.files["notes.md"]}
	_, fuzz, err := TextToPatch(patchText, orig)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, fuzz, 1000)

	_, err = ProcessPatch(patchText, fs.read, fs.write, fs.remove)
	require.NoError(t, err)
	assert.Equal(t, "intro\n# co-authored\nOUTRO\n", fs.files["notes.md"])
}

func TestProcessPatchShiftedContext(t *testing.T) {
	// The patch was written against a version of the file without the
	// drifted marker line; only the shift window can place it.
	fs := newMemFS(map[string]string{
		"cfg.ini": "\n\nname = demo\nport = 80\n# marker v2\nhost = local\ndebug = off\n",
	})

	patchText := `*** Begin Patch
*** Update File: cfg.ini
 name = demo
 port = 80
 # marker v1
 host = local
-debug = off
+debug = on
*** End Patch`

	orig := map[string]string{"cfg.ini": fs.files["cfg.ini"]}
	_, fuzz, err := TextToPatch(patchText, orig)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, fuzz, 50000)

	_, err = ProcessPatch(patchText, fs.read, fs.write, fs.remove)
	require.NoError(t, err)
	assert.Contains(t, fs.files["cfg.ini"], "debug = on")
	// Context lines are never rewritten, even when they drifted.
	assert.Contains(t, fs.files["cfg.ini"], "# marker v2")
}

func TestProcessPatchAmbiguousContextRejected(t *testing.T) {
	fs := newMemFS(map[string]string{
		"prog.py": "def a():\n    return 1\n\ndef b():\n    return 1\n",
	})
	before := newMemFS(fs.files).files

	patchText := `*** Begin Patch
*** Update File: prog.py
 def zz():
-    return 9
+    return 10
*** End Patch`

	_, err := ProcessPatch(patchText, fs.read, fs.write, fs.remove)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrInvalidContext))
	// Nothing may be written on a failed match.
	assert.Equal(t, before, fs.files)
}

func TestProcessPatchHeaderTypoRepair(t *testing.T) {
	fs := newMemFS(map[string]string{
		"m.txt": "one\ntwo\nthree\n",
	})

	patchText := `*** Begin Patch
*** Update File: m.txt
@@ -3 +3 @@
 two
-three
+THREE
*** End Patch`

	_, err := ProcessPatch(patchText, fs.read, fs.write, fs.remove)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nTHREE\n", fs.files["m.txt"])
}

func TestProcessPatchEOFAnchor(t *testing.T) {
	fs := newMemFS(map[string]string{
		"dup.txt": "refrain\nverse\nrefrain\nverse",
	})

	patchText := `*** Begin Patch
*** Update File: dup.txt
 refrain
-verse
+coda
*** End of File
*** End Patch`

	_, err := ProcessPatch(patchText, fs.read, fs.write, fs.remove)
	require.NoError(t, err)
	// The EOF anchor forces the tail occurrence.
	assert.Equal(t, "refrain\nverse\nrefrain\ncoda", fs.files["dup.txt"])
}

func TestProcessPatchEOFAnchorIgnoredPenalty(t *testing.T) {
	orig := map[string]string{"tail.txt": "alpha\nbeta\ngamma\ndelta"}

	// The context only exists mid-file although the patch claims EOF.
	patchText := `*** Begin Patch
*** Update File: tail.txt
 alpha
-beta
+BETA
*** End of File
*** End Patch`

	_, fuzz, err := TextToPatch(patchText, orig)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, fuzz, 10000)
}

func TestProcessPatchAddDeleteSymmetry(t *testing.T) {
	fs := newMemFS(map[string]string{})

	addText := `*** Begin Patch
*** Add File: tmp.txt
+hello
+world
*** End Patch`

	_, err := ProcessPatch(addText, fs.read, fs.write, fs.remove)
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", fs.files["tmp.txt"])

	deleteText := `*** Begin Patch
*** Delete File: tmp.txt
*** End Patch`

	_, err = ProcessPatch(deleteText, fs.read, fs.write, fs.remove)
	require.NoError(t, err)
	assert.Empty(t, fs.files)
}

func TestProcessPatchMultipleBlocksInSequence(t *testing.T) {
	fs := newMemFS(map[string]string{})

	patchText := `*** Begin Patch
*** Add File: story.txt
+once upon
*** End Patch
ignore me, I am narration between blocks
*** Begin Patch
*** Update File: story.txt
-once upon
+once upon a time
*** End Patch`

	result, err := ProcessPatch(patchText, fs.read, fs.write, fs.remove)
	require.NoError(t, err)
	assert.Equal(t, "Done!", result)
	assert.Equal(t, "once upon a time", fs.files["story.txt"])
}

func TestProcessPatchMove(t *testing.T) {
	fs := newMemFS(map[string]string{
		"src/old.go": "package old\n",
	})

	patchText := `*** Begin Patch
*** Update File: src/old.go
*** Move to: src/new.go
-package old
+package new
*** End Patch`

	_, err := ProcessPatch(patchText, fs.read, fs.write, fs.remove)
	require.NoError(t, err)
	assert.NotContains(t, fs.files, "src/old.go")
	assert.Equal(t, "package new\n", fs.files["src/new.go"])
}

func TestProcessPatchAbsolutePathRejected(t *testing.T) {
	fs := newMemFS(map[string]string{})

	patchText := `*** Begin Patch
*** Add File: /etc/evil.txt
+payload
*** End Patch`

	_, err := ProcessPatch(patchText, fs.read, fs.write, fs.remove)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrAbsolutePath))
	assert.Empty(t, fs.files)
}

func TestProcessPatchReadFailureIsFileNotFound(t *testing.T) {
	fs := newMemFS(map[string]string{})

	patchText := `*** Begin Patch
*** Update File: ghost.txt
-x
+y
*** End Patch`

	_, err := ProcessPatch(patchText, fs.read, fs.write, fs.remove)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrFileNotFound))
}

func TestProcessPatchUnterminatedBlock(t *testing.T) {
	fs := newMemFS(map[string]string{})

	_, err := ProcessPatch("*** Begin Patch\n*** Add File: a.txt\n+a", fs.read, fs.write, fs.remove)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrUnterminatedBlock))
}

func TestProcessPatchNoBlocks(t *testing.T) {
	fs := newMemFS(map[string]string{})

	_, err := ProcessPatch("just some text, no patch at all", fs.read, fs.write, fs.remove)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrInvalidPatchEnvelope))
}

func TestTextToPatchRoundTripIdentity(t *testing.T) {
	orig := map[string]string{"f.txt": "unchanged\ncontent\n"}

	patch, fuzz, err := TextToPatch("*** Begin Patch\n*** End Patch", orig)
	require.NoError(t, err)
	assert.Equal(t, 0, fuzz)

	commit, err := PatchToCommit(patch, orig)
	require.NoError(t, err)
	assert.Empty(t, commit.Changes)
}

func TestTextToPatchDeterminism(t *testing.T) {
	orig := map[string]string{"d.txt": "a\nb\nc"}
	patchText := `*** Begin Patch
*** Update File: d.txt
 a
-b
+B
 c
*** End Patch`

	first, firstFuzz, err := TextToPatch(patchText, orig)
	require.NoError(t, err)
	second, secondFuzz, err := TextToPatch(patchText, orig)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstFuzz, secondFuzz)
}

func TestFuzzMonotonicity(t *testing.T) {
	// A context line carrying trailing whitespace that the file lacks can
	// only be matched by the trimming rung; the penalty never goes down.
	lines := []string{"keep", "edit me"}
	clean := []string{"keep", "edit me"}
	drifted := []string{"keep ", "edit me"}

	_, cleanFuzz := findContext(lines, clean, 0, false)
	_, driftedFuzz := findContext(lines, drifted, 0, false)

	assert.Equal(t, 0, cleanFuzz)
	assert.GreaterOrEqual(t, driftedFuzz, cleanFuzz+1)
}
