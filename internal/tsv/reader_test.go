package tsv

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brentp/xopen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "# generated\n" +
	"Hugo Symbol\tGene Type\tNote\n" +
	"KRAS\tONCOGENE\tras\n" +
	"\n" +
	"TP53\tTSG\n" +
	"BRCA1 \t TSG\tdna repair"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	w, err := xopen.Wopen(path)
	require.NoError(t, err)
	_, err = w.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return path
}

func TestReader_Rows(t *testing.T) {
	r, err := NewReader(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, []string{"Hugo Symbol", "Gene Type", "Note"}, r.Header())
	assert.True(t, r.Has("Gene Type"))
	assert.False(t, r.Has("gene type"))

	row, err := r.Next()
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, 3, row.Line)
	assert.Equal(t, "KRAS", row.Get("Hugo Symbol"))
	assert.Equal(t, "ras", row.Get("Note"))
	assert.Equal(t, "", row.Get("Missing"))

	row, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, 5, row.Line)
	assert.Equal(t, 2, row.Len())
	assert.Equal(t, "", row.Get("Note"), "short row")
	assert.Equal(t, "TSG", row.First("Missing", "Note", "Gene Type"))

	row, err = r.Next()
	require.NoError(t, err)
	require.NotNil(t, row, "last line without newline")
	assert.Equal(t, "BRCA1", row.Get("Hugo Symbol"))
	assert.Equal(t, map[string]any{"gene": "BRCA1", "Gene Type": "TSG", "Note": "dna repair"},
		row.Map(map[string]string{"Hugo Symbol": "gene"}))

	row, err = r.Next()
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestReader_Require(t *testing.T) {
	r, err := NewReader(strings.NewReader(sample))
	require.NoError(t, err)
	assert.NoError(t, r.Require("Hugo Symbol", "Gene Type"))

	err = r.Require("Hugo Symbol", "Sample")
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Line)
	assert.Contains(t, err.Error(), "'Sample'")
}

func TestReader_NoHeader(t *testing.T) {
	_, err := NewReader(strings.NewReader("# only comments\n\n"))
	var pe *ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestOpen_PlainAndGzip(t *testing.T) {
	for _, name := range []string{"genes.tsv", "genes.tsv.gz"} {
		t.Run(name, func(t *testing.T) {
			rows, err := ReadAll(writeFile(t, name, sample), nil)
			require.NoError(t, err)
			require.Len(t, rows, 3)
			assert.Equal(t, "TP53", rows[1]["Hugo Symbol"])
			assert.NotContains(t, rows[1], "Note")
		})
	}
}

func TestOpen_NotFound(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.tsv"))
	assert.Error(t, err)
}

func TestNewReader_File(t *testing.T) {
	path := writeFile(t, "in.tsv", "a\tb\n1\t2\n")
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := NewReader(f)
	require.NoError(t, err)
	row, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "2", row.Get("b"))
	assert.NoError(t, r.Close())
}
