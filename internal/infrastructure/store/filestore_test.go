package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"CommitteeHarvester/internal/config"
	"CommitteeHarvester/internal/domain"
	"CommitteeHarvester/internal/ports"
)

func TestParseIdentifier(t *testing.T) {
	t.Parallel()

	cases := []struct {
		filename string
		id       string
		ok       bool
	}{
		{"42.json", "42", true},
		{"1093582.json", "1093582", true},
		{"a-smith.json", "", false},
		{"42.json.bak", "", false},
		{"grad_committees_chunk_0.json", "", false},
		{".json", "", false},
		{"42", "", false},
		{"42x.json", "", false},
	}

	for _, tc := range cases {
		id, ok := ParseIdentifier(tc.filename)
		require.Equal(t, tc.ok, ok, tc.filename)
		require.Equal(t, tc.id, id, tc.filename)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	roles := []domain.CommitteeRole{{
		UserDiscoveryID:     "42",
		UserName:            "A. Smith",
		TeachingDiscoveryID: "901",
		Title:               "Thesis Committee (Committee Member)",
		Status:              domain.StatusMember,
	}}

	require.False(t, fs.ExistsAndValid("42"))
	require.NoError(t, fs.Write("42", roles))
	require.True(t, fs.ExistsAndValid("42"))

	got, err := fs.Read("42")
	require.NoError(t, err)
	require.Equal(t, roles, got)

	// Overwrite replaces, never appends.
	require.NoError(t, fs.Write("42", nil))
	got, err = fs.Read("42")
	require.NoError(t, err)
	require.Empty(t, got)
	require.True(t, fs.ExistsAndValid("42"))
}

func TestReadDistinguishesMissingAndCorrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	_, err = fs.Read("7")
	require.ErrorIs(t, err, ports.ErrMissingArtifact)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "7.json"), []byte("{not json"), 0o644))
	_, err = fs.Read("7")
	require.ErrorIs(t, err, ports.ErrCorruptArtifact)
	require.False(t, fs.ExistsAndValid("7"))

	// Wrong shape: an object instead of a list.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "7.json"), []byte(`{"userDiscoveryId":"7"}`), 0o644))
	_, err = fs.Read("7")
	require.ErrorIs(t, err, ports.ErrCorruptArtifact)

	// JSON null is not a list either.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "7.json"), []byte("null"), 0o644))
	_, err = fs.Read("7")
	require.ErrorIs(t, err, ports.ErrCorruptArtifact)
}

func TestScanPerEntitySkipsForeignFilenames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, fs.Write("1", []domain.CommitteeRole{{UserDiscoveryID: "1", Status: domain.StatusMember}}))
	require.NoError(t, fs.Write("2", nil))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "3.json"), []byte("not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "backup.json"), []byte("[]"), 0o644))

	entries, err := fs.Scan(config.ModePerEntity)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	byID := map[string]ports.ScanEntry{}
	for _, entry := range entries {
		byID[entry.ID] = entry
	}
	require.Len(t, byID["1"].Roles, 1)
	require.False(t, byID["1"].Corrupt)
	require.Empty(t, byID["2"].Roles)
	require.False(t, byID["2"].Corrupt)
	require.True(t, byID["3"].Corrupt)
}

func TestScanChunkedMode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	grouped := domain.MergedDataset{
		"10": {{UserDiscoveryID: "10", Status: domain.StatusMentor}},
		"11": {},
	}
	require.NoError(t, fs.WriteChunk(0, grouped))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grad_committees_chunk_1.json"), []byte("{{"), 0o644))
	// Per-entity artifacts are invisible in chunked mode.
	require.NoError(t, fs.Write("99", []domain.CommitteeRole{{UserDiscoveryID: "99"}}))

	entries, err := fs.Scan(config.ModeChunked)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	var corrupt int
	ids := map[string]int{}
	for _, entry := range entries {
		if entry.Corrupt {
			corrupt++
			continue
		}
		ids[entry.ID] = len(entry.Roles)
	}
	require.Equal(t, 1, corrupt)
	require.Equal(t, map[string]int{"10": 1, "11": 0}, ids)
}

func TestWriteIsAtomicReplacement(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, fs.Write("5", []domain.CommitteeRole{{UserDiscoveryID: "5"}}))

	// No temp files linger after a write.
	names, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, names, 1)
	require.Equal(t, "5.json", names[0].Name())

	raw, err := os.ReadFile(filepath.Join(dir, "5.json"))
	require.NoError(t, err)
	var shape []map[string]any
	require.NoError(t, json.Unmarshal(raw, &shape))
}
