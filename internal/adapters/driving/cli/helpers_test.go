package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ocrprov/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ocrprov/internal/core/domain"
	"github.com/custodia-labs/ocrprov/internal/core/services"
	"github.com/custodia-labs/ocrprov/internal/normalisers"
	"github.com/custodia-labs/ocrprov/internal/postprocessors"
	chunkerpkg "github.com/custodia-labs/ocrprov/internal/postprocessors/chunker"
)

// testEnv wires real services over memory stores. Search is recorded by a
// fake so tests can inspect the options the command built.
type testEnv struct {
	docs     *memory.DocumentStore
	provs    *memory.ProvenanceStore
	config   *memory.ConfigStore
	dryDocs  *memory.DocumentStore
	ingest   *services.IngestService
	prov     *services.ProvenanceService
	search   *recordingSearchService
	settings *services.SettingsService
}

func setupTestServices(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		docs:    memory.NewDocumentStore(),
		provs:   memory.NewProvenanceStore(),
		config:  memory.NewConfigStore(),
		dryDocs: memory.NewDocumentStore(),
		search:  &recordingSearchService{},
	}
	env.prov = services.NewProvenanceService(env.provs)
	env.settings = services.NewSettingsService(env.config)

	env.ingest = services.NewIngestService(env.docs, env.docs.VectorStore(), env.prov,
		normalisers.NewDefaultRegistry(), chunkerpkg.New(), fakeEmbedder{})
	env.ingest.SetChunkerFactory(postprocessors.NewDefaultRegistry())

	dryRun := services.NewIngestService(env.dryDocs, env.dryDocs.VectorStore(),
		services.NewProvenanceService(memory.NewProvenanceStore()),
		normalisers.NewDefaultRegistry(), chunkerpkg.New(), nil)

	SetServices(Services{
		Ingest:       env.ingest,
		Search:       env.search,
		Document:     services.NewDocumentService(env.docs, env.docs.VectorStore(), env.prov),
		Provenance:   env.prov,
		Settings:     env.settings,
		Chunker:      chunkerpkg.New(),
		DryRunIngest: dryRun,
	})
	t.Cleanup(func() { SetServices(Services{}) })
	return env
}

// executeCommand runs the root command and returns combined output.
// Flag values are reset afterwards because commands are package globals.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// ingestSample ingests sampleOCR and returns the document.
func (e *testEnv) ingestSample(t *testing.T) *domain.Document {
	t.Helper()
	path := writeFile(t, "q3-report.md", sampleOCR())
	_, err := executeCommand(t, "ingest", path)
	require.NoError(t, err)

	docs, err := e.docs.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	return &docs[0]
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func sampleOCR() string {
	para := func(word string) string {
		return strings.TrimSpace(strings.Repeat(word+" ", 30)) + "."
	}
	return "<!-- Page 1 -->\n# Quarterly Report\n\n" + para("alpha") + "\n\n" +
		"## Revenue\n\n" + para("bravo") + "\n\n" +
		"| Region | Total |\n|---|---|\n| North | 10 |\n\n" +
		"<!-- Page 2 -->\n## Costs\n\n" + para("charlie") + "\n\n" + para("delta") + "\n"
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return unitVector(0), nil
}

func (fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = unitVector(i % domain.EmbeddingDimension)
	}
	return out, nil
}

func (fakeEmbedder) Dimensions() int              { return domain.EmbeddingDimension }
func (fakeEmbedder) ModelName() string            { return "fake-embed" }
func (fakeEmbedder) Ping(_ context.Context) error { return nil }
func (fakeEmbedder) Close() error                 { return nil }

func unitVector(axis int) []float32 {
	v := make([]float32, domain.EmbeddingDimension)
	v[axis] = 1
	return v
}

type recordingSearchService struct {
	queries []string
	opts    []domain.VectorSearchOptions
	results []domain.VectorSearchResult
	err     error
}

func (r *recordingSearchService) Search(
	_ context.Context, _ []float32, opts domain.VectorSearchOptions,
) ([]domain.VectorSearchResult, error) {
	r.opts = append(r.opts, opts)
	return r.results, r.err
}

func (r *recordingSearchService) SearchText(
	_ context.Context, query string, opts domain.VectorSearchOptions,
) ([]domain.VectorSearchResult, error) {
	r.queries = append(r.queries, query)
	r.opts = append(r.opts, opts)
	return r.results, r.err
}
