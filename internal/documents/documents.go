// Package documents produces the application documents for a qualifying
// posting. Rendering to PDF or templates is left to other tools; this
// package writes Markdown drafts and reports their paths.
package documents

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/Korbielowski/AutoApply/internal/domain"
	"github.com/Korbielowski/AutoApply/internal/logger"
	"github.com/Korbielowski/AutoApply/internal/oracle"
	"github.com/Korbielowski/AutoApply/internal/prompts"
)

type Mode string

const (
	LLMGeneration   Mode = "llm-generation"
	LLMSelection    Mode = "llm-selection"
	NoLLMGeneration Mode = "no-llm-generation"
	UserSpecified   Mode = "user-specified"
)

var ErrUnknownMode = errors.New("unknown document mode")

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.TrimSpace(s)); m {
	case LLMGeneration, LLMSelection, NoLLMGeneration, UserSpecified:
		return m, nil
	case "":
		return LLMSelection, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Reference points at generated files. CoverLetterPath is empty when the
// mode produces only a CV.
type Reference struct {
	CVPath          string
	CoverLetterPath string
}

// Apply records the paths on entry.
func (r Reference) Apply(entry *domain.JobEntry) {
	if r.CVPath != "" {
		entry.CVPath = domain.Ptr(r.CVPath)
	}
	if r.CoverLetterPath != "" {
		entry.CoverLetterPath = domain.Ptr(r.CoverLetterPath)
	}
}

type Generator interface {
	Generate(ctx context.Context, entry *domain.JobEntry, mode Mode) (Reference, error)
}

// Writer is the bundled Generator. Profile is the candidate's profile text
// (experience, projects, skills) in Markdown.
type Writer struct {
	Oracle     oracle.Client
	OutputDir  string
	Profile    string
	UserCVPath string
	Log        logger.Logger
}

var coverLetterHeading = regexp.MustCompile(`(?im)^#{0,3}\s*cover letter\s*:?\s*$`)

func (w *Writer) Generate(ctx context.Context, entry *domain.JobEntry, mode Mode) (Reference, error) {
	log := logger.OrNop(w.Log)
	switch mode {
	case UserSpecified:
		if w.UserCVPath == "" {
			return Reference{}, errors.New("user-specified mode needs documents.user_cv_path")
		}
		if _, err := os.Stat(w.UserCVPath); err != nil {
			return Reference{}, fmt.Errorf("user cv: %w", err)
		}
		return Reference{CVPath: w.UserCVPath}, nil

	case NoLLMGeneration:
		path, err := w.write(entry, "cv", w.Profile)
		return Reference{CVPath: path}, err

	case LLMSelection:
		body, err := w.ask(ctx, "documents:select", entry)
		if err != nil {
			return Reference{}, err
		}
		path, err := w.write(entry, "cv", body)
		return Reference{CVPath: path}, err

	case LLMGeneration:
		body, err := w.ask(ctx, "documents:generate", entry)
		if err != nil {
			return Reference{}, err
		}
		cv, letter := body, ""
		if loc := coverLetterHeading.FindStringIndex(body); loc != nil {
			cv, letter = body[:loc[0]], body[loc[1]:]
		}
		ref := Reference{}
		if ref.CVPath, err = w.write(entry, "cv", cv); err != nil {
			return Reference{}, err
		}
		if strings.TrimSpace(letter) != "" {
			if ref.CoverLetterPath, err = w.write(entry, "cover-letter", letter); err != nil {
				return Reference{}, err
			}
		}
		log.Debug("documents generated", logger.String("cv", ref.CVPath), logger.String("cover_letter", ref.CoverLetterPath))
		return ref, nil
	}
	return Reference{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

func (w *Writer) ask(ctx context.Context, key string, entry *domain.JobEntry) (string, error) {
	prompt, err := prompts.Render(key, map[string]any{"Entry": entry, "Profile": w.Profile})
	if err != nil {
		return "", err
	}
	out, err := w.Oracle.Complete(ctx, oracle.Request{Prompt: prompt})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%w: empty document", domain.ErrMalformed)
	}
	return out, nil
}

// FileName is the slug of company, title and discovery date.
func FileName(entry *domain.JobEntry, kind string) string {
	date := entry.DiscoveryDate
	if date == "" {
		date = time.Now().Format(domain.DateLayout)
	}
	return slug.Make(strings.Join([]string{entry.CompanyName, entry.Title, date, kind}, " ")) + ".md"
}

// write stores a Markdown document atomically and returns its path.
func (w *Writer) write(entry *domain.JobEntry, kind, body string) (string, error) {
	dir := w.OutputDir
	if dir == "" {
		dir = "documents"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("documents dir: %w", err)
	}
	path := filepath.Join(dir, FileName(entry, kind))

	var b strings.Builder
	fmt.Fprintf(&b, "# %s at %s\n\n", entry.Title, entry.CompanyName)
	fmt.Fprintf(&b, "<!-- %s -->\n\n", entry.JobURL)
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n")

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", kind, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", kind, err)
	}
	return path, nil
}
