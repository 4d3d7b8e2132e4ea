package cli

import (
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/services"
)

func TestChunkCmd_RequiresExactlyOneArg(t *testing.T) {
	setupTestServices(t)

	_, err := executeCommand(t, "chunk")

	assert.ErrorContains(t, err, "accepts 1 arg(s)")
}

func TestChunkCmd_Table(t *testing.T) {
	setupTestServices(t)
	path := writeFile(t, "scan.md", sampleOCR())

	out, err := executeCommand(t, "chunk", path)

	require.NoError(t, err)
	assert.Contains(t, out, "SECTION")
	assert.Contains(t, out, "Quarterly Report")
	assert.Contains(t, out, "(* atomic)")
}

func TestChunkCmd_JSON(t *testing.T) {
	setupTestServices(t)
	text := sampleOCR()
	path := writeFile(t, "scan.md", text)

	out, err := executeCommand(t, "chunk", path, "--json")
	require.NoError(t, err)

	var views []chunkView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.NotEmpty(t, views)
	for i, v := range views {
		assert.Equal(t, i, v.Index)
		assert.Equal(t, text[v.StartOffset:v.EndOffset], v.Text)
	}
	require.NotNil(t, views[0].PageNumber)
	assert.Equal(t, 1, *views[0].PageNumber)
}

func TestChunkCmd_OverrideProducesSmallerChunks(t *testing.T) {
	setupTestServices(t)
	path := writeFile(t, "scan.md", sampleOCR())

	out, err := executeCommand(t, "chunk", path, "--json")
	require.NoError(t, err)
	var defaults []chunkView
	require.NoError(t, json.Unmarshal([]byte(out), &defaults))

	out, err = executeCommand(t, "chunk", path, "--json", "--chunk-size", "150", "--overlap", "0")
	require.NoError(t, err)
	var small []chunkView
	require.NoError(t, json.Unmarshal([]byte(out), &small))

	assert.Greater(t, len(small), len(defaults))
	for _, v := range small {
		assert.Zero(t, v.OverlapWithPrevious)
	}
}

func TestChunkCmd_InvalidOverride(t *testing.T) {
	setupTestServices(t)
	path := writeFile(t, "scan.md", sampleOCR())

	tests := []struct {
		name string
		args []string
	}{
		{"overlap too large", []string{"--overlap", "80"}},
		{"zero chunk size", []string{"--chunk-size", "0"}},
		{"max below chunk size", []string{"--chunk-size", "500", "--max-chunk-size", "100"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(t, append([]string{"chunk", path}, tt.args...)...)

			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestChunkCmd_MissingFile(t *testing.T) {
	setupTestServices(t)

	_, err := executeCommand(t, "chunk", "/does/not/exist.md")

	assert.ErrorContains(t, err, "failed to read")
}

func TestChunkFlags_OverrideStartsFromSettings(t *testing.T) {
	env := setupTestServices(t)
	require.NoError(t, env.config.Set(services.KeyMaxChunkSize, 5000))

	var f chunkFlags
	cmd := &cobra.Command{Use: "preview"}
	f.register(cmd)
	require.NoError(t, cmd.Flags().Set("chunk-size", "1000"))

	cfg, err := f.override(cmd)

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 5000, cfg.MaxChunkSize)
	assert.Equal(t, domain.DefaultOverlapPercent, cfg.OverlapPercent)
}

func TestChunkFlags_NoFlagsMeansNoOverride(t *testing.T) {
	var f chunkFlags
	cmd := &cobra.Command{Use: "preview"}
	f.register(cmd)

	cfg, err := f.override(cmd)

	require.NoError(t, err)
	assert.Nil(t, cfg)
}
