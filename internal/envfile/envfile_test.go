package envfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"empty", "", `""`},
		{"plain", "abc123", "abc123"},
		{"url", "https://example.com/a?b=c", "https://example.com/a?b=c"},
		{"backslash only", `C:\path`, `C:\path`},
		{"space", "hello world", `"hello world"`},
		{"tab", "a\tb", "\"a\tb\""},
		{"double quote", `say "hi"`, `"say \"hi\""`},
		{"single quote", "it's", `"it's"`},
		{"hash", "abc#def", `"abc#def"`},
		{"backslash with space", `a \ b`, `"a \\ b"`},
		{"newline", "line1\nline2", `"line1\nline2"`},
		{"newline with quote and backslash", "a\"\\\nb", `"a\"\\\nb"`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Quote(tt.value))
		})
	}
}

func TestRenderBlock(t *testing.T) {
	t.Parallel()

	got := RenderBlock(map[string]string{
		"ZED":   "last",
		"ALPHA": "first value",
		"EMPTY": "",
	})

	want := "# start managed by vaultenv\n" +
		"ALPHA=\"first value\"\n" +
		"EMPTY=\"\"\n" +
		"ZED=last\n" +
		"# end managed by vaultenv"
	assert.Equal(t, want, got)
}

func TestRenderBlock_Empty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StartMarker+"\n"+EndMarker, RenderBlock(nil))
}

func TestUpsert(t *testing.T) {
	t.Parallel()

	block := RenderBlock(map[string]string{"A": "1"})

	tests := []struct {
		name     string
		existing string
		want     string
	}{
		{
			name:     "empty file",
			existing: "",
			want:     block + "\n",
		},
		{
			name:     "whitespace only",
			existing: "\n\n  \n",
			want:     block + "\n",
		},
		{
			name:     "appends after user content",
			existing: "USER=1\n",
			want:     "USER=1\n\n" + block + "\n",
		},
		{
			name:     "trims trailing blank lines",
			existing: "USER=1\n\n\n\n",
			want:     "USER=1\n\n" + block + "\n",
		},
		{
			name:     "replaces existing block",
			existing: "USER=1\n\n" + StartMarker + "\nOLD=1\n" + EndMarker + "\n",
			want:     "USER=1\n\n" + block + "\n",
		},
		{
			name:     "moves block after content that follows it",
			existing: StartMarker + "\nOLD=1\n" + EndMarker + "\n\nAFTER=2\n",
			want:     "AFTER=2\n\n" + block + "\n",
		},
		{
			name:     "keeps content around block",
			existing: "BEFORE=1\n" + StartMarker + "\nOLD=1\n" + EndMarker + "\nAFTER=2\n",
			want:     "BEFORE=1\nAFTER=2\n\n" + block + "\n",
		},
		{
			name:     "removes every block",
			existing: StartMarker + "\nA=0\n" + EndMarker + "\nMID=1\n" + StartMarker + "\nB=0\n" + EndMarker + "\n",
			want:     "MID=1\n\n" + block + "\n",
		},
		{
			name:     "block without trailing newline",
			existing: "USER=1\n" + StartMarker + "\nOLD=1\n" + EndMarker,
			want:     "USER=1\n\n" + block + "\n",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Upsert(tt.existing, block)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	t.Parallel()

	block := RenderBlock(map[string]string{"A": "1", "B": "two words"})

	first, err := Upsert("# comment\nUSER=1\n", block)
	require.NoError(t, err)

	second, err := Upsert(first, block)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestUpsert_UnterminatedBlock(t *testing.T) {
	t.Parallel()

	_, err := Upsert("USER=1\n"+StartMarker+"\nA=1\n", RenderBlock(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnterminatedBlock)
	assert.Contains(t, err.Error(), "Resolve manually")
}

func TestManaged(t *testing.T) {
	t.Parallel()

	values := map[string]string{
		"PLAIN":     "abc",
		"SPACED":    "hello world",
		"QUOTED":    `say "hi"`,
		"MULTILINE": "line1\nline2",
		"EMPTY":     "",
		"TRAILING":  `ends with "`,
		"EXPAND":    "a${HOME}b",
		"ESCAPES":   "a\"\\\nb",
	}
	contents, err := Upsert("USER=ignored\n", RenderBlock(values))
	require.NoError(t, err)

	got, err := Managed(contents)
	require.NoError(t, err)
	assert.Equal(t, values, got)

	none, err := Managed("USER=1\n")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestManaged_InvalidLine(t *testing.T) {
	t.Parallel()

	_, err := Managed(StartMarker + "\nnot an assignment\n" + EndMarker + "\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = Managed(StartMarker + "\nA=\"open\n" + EndMarker + "\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated")
}

func TestUnquote(t *testing.T) {
	t.Parallel()

	values := []string{
		"", "abc", `C:\path`, "hello world", `say "hi"`, `"`, `\`, `a \ b`,
		"line1\nline2", "a\"\\\nb", "${VAR}", "tab\there",
	}
	for _, v := range values {
		got, err := Unquote(Quote(v))
		require.NoError(t, err, "value %q", v)
		assert.Equal(t, v, got)
	}

	_, err := Unquote(`"a"b"`)
	require.Error(t, err)
	_, err = Unquote(`"a\"`)
	require.Error(t, err)
}

func TestReadMissingFile(t *testing.T) {
	t.Parallel()

	contents, err := Read(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
	assert.Empty(t, contents)
}

func TestWrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", ".env")

	require.NoError(t, Write(path, "A=1\n", 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A=1\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

func TestWrite_PreservesExistingPermissions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("OLD=1\n"), 0o640))
	require.NoError(t, os.Chmod(path, 0o640))

	require.NoError(t, Write(path, "NEW=1\n", 0o600))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "NEW=1\n", string(data))
}
