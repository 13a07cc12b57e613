package documents_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Korbielowski/AutoApply/internal/documents"
	"github.com/Korbielowski/AutoApply/internal/domain"
	"github.com/Korbielowski/AutoApply/internal/oracle"
)

func entry() *domain.JobEntry {
	return &domain.JobEntry{
		Title:         "Go Developer",
		CompanyName:   "Acme Sp. z o.o.",
		DiscoveryDate: "2026-03-09",
		JobURL:        "https://site.example/jobs/1",
		Requirements:  "Go, PostgreSQL",
	}
}

func TestParseMode(t *testing.T) {
	m, err := documents.ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, documents.LLMSelection, m)

	m, err = documents.ParseMode("user-specified")
	require.NoError(t, err)
	assert.Equal(t, documents.UserSpecified, m)

	_, err = documents.ParseMode("pdf")
	require.ErrorIs(t, err, documents.ErrUnknownMode)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "acme-sp-z-o-o-go-developer-2026-03-09-cv.md", documents.FileName(entry(), "cv"))
}

func TestWriterModes(t *testing.T) {
	userCV := filepath.Join(t.TempDir(), "me.pdf")
	require.NoError(t, os.WriteFile(userCV, []byte("%PDF"), 0o644))

	testCases := []struct {
		name       string
		mode       documents.Mode
		answer     string
		wantLetter bool
		wantInCV   string
		wantCalls  int
	}{
		{name: "no llm", mode: documents.NoLLMGeneration, wantInCV: "Ten years of Go", wantCalls: 0},
		{name: "selection", mode: documents.LLMSelection, answer: "## Skills\n- Go", wantInCV: "- Go", wantCalls: 1},
		{
			name:       "generation",
			mode:       documents.LLMGeneration,
			answer:     "## Summary\nGopher.\n\n## Cover letter\nDear Acme,",
			wantLetter: true,
			wantInCV:   "Gopher.",
			wantCalls:  1,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			w := &documents.Writer{
				OutputDir: t.TempDir(),
				Profile:   "Ten years of Go",
				Oracle: oracle.ClientFunc(func(context.Context, oracle.Request) (string, error) {
					calls++
					return tc.answer, nil
				}),
			}
			ref, err := w.Generate(context.Background(), entry(), tc.mode)
			require.NoError(t, err)
			assert.Equal(t, tc.wantCalls, calls)

			cv, err := os.ReadFile(ref.CVPath)
			require.NoError(t, err)
			assert.Contains(t, string(cv), "# Go Developer at Acme Sp. z o.o.")
			assert.Contains(t, string(cv), tc.wantInCV)
			assert.NotContains(t, string(cv), "Dear Acme")

			if tc.wantLetter {
				letter, err := os.ReadFile(ref.CoverLetterPath)
				require.NoError(t, err)
				assert.Contains(t, string(letter), "Dear Acme,")
			} else {
				assert.Empty(t, ref.CoverLetterPath)
			}
		})
	}

	t.Run("user specified", func(t *testing.T) {
		w := &documents.Writer{UserCVPath: userCV}
		ref, err := w.Generate(context.Background(), entry(), documents.UserSpecified)
		require.NoError(t, err)
		assert.Equal(t, userCV, ref.CVPath)

		w.UserCVPath = filepath.Join(t.TempDir(), "missing.pdf")
		_, err = w.Generate(context.Background(), entry(), documents.UserSpecified)
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestReferenceApply(t *testing.T) {
	e := entry()
	documents.Reference{CVPath: "/tmp/cv.md"}.Apply(e)
	require.NotNil(t, e.CVPath)
	assert.Equal(t, "/tmp/cv.md", *e.CVPath)
	assert.Nil(t, e.CoverLetterPath)
}
