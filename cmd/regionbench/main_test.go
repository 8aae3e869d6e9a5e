package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/regionmap"
	"github.com/hupe1980/regionmap/internal/mmap"
)

func granularity() string {
	return strconv.Itoa(mmap.Granularity())
}

func TestRun_Expandable(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{
		"--region-size", granularity(),
		"--cache-size", "4",
		"-n", "5000",
		"--record-size", "16",
		"--json",
	}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())

	var r Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &r))
	assert.Equal(t, regionmap.KindExpandable, r.Kind)
	assert.Equal(t, int64(4999), r.LastRecord)
	assert.Positive(t, r.SearchProbes)
	assert.Positive(t, r.Metrics.MapCount)
	assert.Equal(t, 4, r.Stats.CacheSize)
}

func TestRun_RolledWithArchive(t *testing.T) {
	dir := t.TempDir()
	g := int64(mmap.Granularity())

	var out, errOut bytes.Buffer
	code := run([]string{
		"--kind", "rolled",
		"--path", filepath.Join(dir, "data", "stream"),
		"--region-size", granularity(),
		"--file-size", strconv.FormatInt(2*g, 10),
		"--cache-size", "2",
		"--map-ahead", "0",
		"-n", strconv.FormatInt(6*g/8, 10),
		"--record-size", "8",
		"--archive", "dir:" + filepath.Join(dir, "archive"),
	}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), "archived")

	entries, err := os.ReadDir(filepath.Join(dir, "archive", "stream"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestRun_VerifyAndPruneArchive(t *testing.T) {
	dir := t.TempDir()
	g := int64(mmap.Granularity())

	var out, errOut bytes.Buffer
	code := run([]string{
		"--kind", "rolled",
		"--path", filepath.Join(dir, "data", "stream"),
		"--region-size", granularity(),
		"--file-size", strconv.FormatInt(2*g, 10),
		"--cache-size", "2",
		"--map-ahead", "0",
		"-n", strconv.FormatInt(6*g/8, 10),
		"--record-size", "8",
		"--archive", "dir:" + filepath.Join(dir, "archive"),
		"--verify-archive",
		"--prune-archive",
		"--json",
	}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())

	var r Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &r))
	assert.Equal(t, 2, r.Verified)
	assert.Equal(t, 2, r.Pruned)

	entries, err := os.ReadDir(filepath.Join(dir, "archive", "stream"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bench.jsonc")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{
		// fixed file, async mapping
		"kind": "fixed",
		"path": "`+filepath.ToSlash(filepath.Join(dir, "fixed.bin"))+`",
		"region_size": `+granularity()+`,
		"file_size": 1048576,
		"async": true,
		"max_wait": "5s",
	}`), 0o644))

	var out, errOut bytes.Buffer
	code := run([]string{"-c", cfgPath, "-n", "1000", "--json"}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())

	var r Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &r))
	assert.Equal(t, regionmap.KindFixed, r.Kind)
	assert.True(t, r.Stats.Async)
}

func TestRun_InvalidFlags(t *testing.T) {
	for _, args := range [][]string{
		{"--record-size", "4"},
		{"--records", "0"},
		{"--archive", "dir:/tmp/x"},
		{"--verify-archive"},
		{"--kind", "readonly"},
		{"--bogus"},
	} {
		var out, errOut bytes.Buffer
		assert.Equal(t, 2, run(args, &out, &errOut), "%v", args)
	}

	var out, errOut bytes.Buffer
	assert.Equal(t, 0, run([]string{"--help"}, &out, &errOut))
	assert.Contains(t, errOut.String(), "Usage: regionbench")
}
