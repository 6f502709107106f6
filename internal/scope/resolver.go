package scope

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/docuchat/docuchat/internal/llm"
)

// Mode is the resolved kind of request.
type Mode string

const (
	// ModeSingle scopes retrieval to one file.
	ModeSingle Mode = "single"
	// ModeCompare scopes retrieval to several named files.
	ModeCompare Mode = "compare"
	// ModeAll searches the whole corpus deliberately.
	ModeAll Mode = "all"
	// ModeList asks for the file inventory; no retrieval happens.
	ModeList Mode = "list"
	// ModeDelete asks to remove a file; admin-gated downstream.
	ModeDelete Mode = "delete"
	// ModeDebug asks for raw index metadata.
	ModeDebug Mode = "debug"
	// ModeUncertain means no file reference was found; retrieval runs
	// unscoped across the corpus.
	ModeUncertain Mode = "uncertain"
)

// Decision is the outcome of scope resolution for one query.
type Decision struct {
	Mode Mode
	// Files holds validated catalog filenames, in classifier order.
	Files []string
	// Pages holds explicit page references from the query text.
	Pages []int
	// DeleteTarget is the raw name to delete when Mode is ModeDelete.
	DeleteTarget string
}

// FileLister exposes the filenames the resolver validates against.
type FileLister interface {
	Filenames(ctx context.Context) ([]string, error)
}

// ActiveFiles is the per-session file continuity the resolver reads
// and updates.
type ActiveFiles interface {
	ActiveFile(sessionID string) string
	SetActiveFile(sessionID, filename string)
}

// Options tune the resolver heuristics.
type Options struct {
	// FuzzyCutoff is the minimum Levenshtein ratio for accepting a
	// classifier-proposed filename that is not an exact match.
	FuzzyCutoff float64
	// KeywordMinLen is the minimum token length for keyword rescue.
	KeywordMinLen int
	// StopWords are query tokens never treated as file references.
	StopWords []string
}

// Resolver decides which files and pages a query is about. A small
// classifier model proposes file references; everything it says is
// validated against the catalog before it can scope retrieval.
type Resolver struct {
	provider llm.Provider
	model    string
	files    FileLister
	sessions ActiveFiles

	cutoff    float64
	minLen    int
	stopWords map[string]bool
}

func NewResolver(provider llm.Provider, model string, files FileLister, sessions ActiveFiles, opts Options) *Resolver {
	if opts.FuzzyCutoff <= 0 {
		opts.FuzzyCutoff = 0.6
	}
	if opts.KeywordMinLen <= 0 {
		opts.KeywordMinLen = 4
	}
	stop := make(map[string]bool, len(opts.StopWords))
	for _, w := range opts.StopWords {
		stop[strings.ToLower(w)] = true
	}
	return &Resolver{
		provider:  provider,
		model:     model,
		files:     files,
		sessions:  sessions,
		cutoff:    opts.FuzzyCutoff,
		minLen:    opts.KeywordMinLen,
		stopWords: stop,
	}
}

const (
	tokenList     = "COMMAND_LIST"
	tokenDelete   = "COMMAND_DELETE:"
	tokenAllFiles = "ALL_FILES"
	tokenNone     = "None"
)

// Resolve classifies the query into a Decision. memoryContext is the
// rendered recent conversation, used so follow-ups like "what about
// chapter 3" resolve against the file under discussion.
func (r *Resolver) Resolve(ctx context.Context, sessionID, query, memoryContext string) (Decision, error) {
	trimmed := strings.TrimSpace(query)
	lower := strings.ToLower(trimmed)

	// Literal commands bypass the classifier entirely.
	if lower == "debug" {
		return Decision{Mode: ModeDebug}, nil
	}
	if rest, ok := strings.CutPrefix(lower, "delete "); ok {
		return Decision{Mode: ModeDelete, DeleteTarget: strings.TrimSpace(trimmed[len(trimmed)-len(rest):])}, nil
	}

	pages := extractPages(trimmed)

	filenames, err := r.files.Filenames(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("loading filenames: %w", err)
	}

	activeFile := r.sessions.ActiveFile(sessionID)

	verdict, err := r.classify(ctx, trimmed, filenames, activeFile, memoryContext)
	if err != nil {
		// Classification is an optimization; a dead classifier must not
		// take retrieval down with it.
		log.Printf("scope classifier failed, falling back to heuristics: %v", err)
		verdict = tokenNone
	}

	switch {
	case strings.EqualFold(verdict, tokenList):
		return Decision{Mode: ModeList}, nil
	case strings.HasPrefix(strings.ToUpper(verdict), tokenDelete):
		target := strings.TrimSpace(verdict[len(tokenDelete):])
		return Decision{Mode: ModeDelete, DeleteTarget: target}, nil
	case strings.EqualFold(verdict, tokenAllFiles):
		return Decision{Mode: ModeAll, Pages: pages}, nil
	}

	var proposed []string
	if !strings.EqualFold(verdict, tokenNone) {
		for _, part := range strings.Split(verdict, ",") {
			if name := strings.TrimSpace(part); name != "" {
				proposed = append(proposed, name)
			}
		}
	}

	valid := r.validate(proposed, filenames)

	if len(valid) == 0 {
		// The classifier found nothing usable; try matching strong
		// query keywords against filename tokens directly.
		rescued := keywordFileMatch(trimmed, filenames, r.minLen, r.stopWords)
		if len(rescued) == 1 {
			valid = rescued
		}
	}

	compare := hasCompareKeyword(trimmed)

	switch {
	case compare && len(pages) > 0 && len(valid) <= 1:
		// Comparing pages within one document: stay on the named file,
		// or the one already under discussion.
		file := activeFile
		if len(valid) == 1 {
			file = valid[0]
		}
		if file != "" {
			r.sessions.SetActiveFile(sessionID, file)
			return Decision{Mode: ModeSingle, Files: []string{file}, Pages: pages}, nil
		}
		return Decision{Mode: ModeAll, Pages: pages}, nil

	case len(valid) > 1:
		return Decision{Mode: ModeCompare, Files: valid, Pages: pages}, nil

	case len(valid) == 1:
		r.sessions.SetActiveFile(sessionID, valid[0])
		return Decision{Mode: ModeSingle, Files: valid, Pages: pages}, nil

	case compare:
		// "Compare the documents" with nothing named spans the corpus.
		return Decision{Mode: ModeAll, Pages: pages}, nil

	case activeFile != "":
		return Decision{Mode: ModeSingle, Files: []string{activeFile}, Pages: pages}, nil

	default:
		return Decision{Mode: ModeUncertain, Pages: pages}, nil
	}
}

// validate keeps only proposed names that resolve to a real catalog
// filename: exact, then case-insensitive, then fuzzy above the cutoff.
func (r *Resolver) validate(proposed, filenames []string) []string {
	var valid []string
	seen := make(map[string]bool)
	for _, name := range proposed {
		resolved, ok := r.resolveName(name, filenames)
		if !ok {
			log.Printf("scope: dropping unverifiable file reference %q", name)
			continue
		}
		if !seen[resolved] {
			seen[resolved] = true
			valid = append(valid, resolved)
		}
	}
	return valid
}

func (r *Resolver) resolveName(name string, filenames []string) (string, bool) {
	for _, f := range filenames {
		if f == name {
			return f, true
		}
	}
	for _, f := range filenames {
		if strings.EqualFold(f, name) {
			return f, true
		}
	}

	best, bestScore := "", 0.0
	for _, f := range filenames {
		if s := similarity(strings.ToLower(f), strings.ToLower(name)); s > bestScore {
			best, bestScore = f, s
		}
	}
	if bestScore >= r.cutoff {
		return best, true
	}
	return "", false
}

func (r *Resolver) classify(ctx context.Context, query string, filenames []string, activeFile, memoryContext string) (string, error) {
	if r.provider == nil {
		return tokenNone, nil
	}

	prompt := buildClassifierPrompt(query, filenames, activeFile, memoryContext)
	resp, err := r.provider.Chat(ctx, llm.ChatRequest{
		Model: r.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: classifierSystem},
			{Role: llm.RoleUser, Content: prompt},
		},
		Temperature: 0,
		MaxTokens:   200,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

const classifierSystem = `You classify user requests against a document library. Respond with exactly one of:
- COMMAND_LIST if the user asks what files or documents are available.
- COMMAND_DELETE: <name> if the user asks to delete or remove a document.
- ALL_FILES if the user explicitly wants information across all documents.
- A comma-separated list of exact filenames from the library that the request refers to.
- None if the request does not refer to any particular document.
Use exact filenames from the list only. Never invent filenames. No explanations.`

func buildClassifierPrompt(query string, filenames []string, activeFile, memoryContext string) string {
	var b strings.Builder
	b.WriteString("Available files:\n")
	if len(filenames) == 0 {
		b.WriteString("(none)\n")
	}
	for _, f := range filenames {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	if activeFile != "" {
		fmt.Fprintf(&b, "\nFile currently under discussion: %s\n", activeFile)
	}
	if memoryContext != "" {
		fmt.Fprintf(&b, "\nRecent conversation:\n%s\n", memoryContext)
	}
	fmt.Fprintf(&b, "\nUser request: %s", query)
	return b.String()
}
