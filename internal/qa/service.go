package qa

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/docuchat/docuchat/internal/assemble"
	"github.com/docuchat/docuchat/internal/audit"
	"github.com/docuchat/docuchat/internal/corpus"
	"github.com/docuchat/docuchat/internal/llm"
	"github.com/docuchat/docuchat/internal/orchestrator"
	"github.com/docuchat/docuchat/internal/retrieval"
	"github.com/docuchat/docuchat/internal/scope"
	"github.com/docuchat/docuchat/internal/session"
)

const noResultsAnswer = "No relevant documents found."

const deleteRefusal = "I'm sorry, but deleting documents is restricted to administrators. " +
	"Ask an administrator to remove the file, or keep querying it as usual."

// Caller identifies who is asking, for the admin gate and the audit
// trail.
type Caller struct {
	UserID string
	Admin  bool
}

// Answer is the complete response for one question.
type Answer struct {
	Markdown  string             `json:"markdown"`
	HTML      string             `json:"html"`
	Mode      scope.Mode         `json:"mode"`
	Sources   []retrieval.Source `json:"sources,omitempty"`
	UsedFiles []string           `json:"used_files,omitempty"`
}

// Resolver decides what the query is about.
type Resolver interface {
	Resolve(ctx context.Context, sessionID, query, memoryContext string) (scope.Decision, error)
}

// Engine runs scoped retrieval.
type Engine interface {
	Retrieve(ctx context.Context, query string, d scope.Decision) (*retrieval.Results, error)
}

// Augmenter attaches page renders; may be nil when visual support is
// disabled.
type Augmenter interface {
	Augment(ctx context.Context, d scope.Decision, res *retrieval.Results) []llm.ImageAttachment
}

// Answerer produces the final reply from the assembled request.
type Answerer interface {
	Answer(ctx context.Context, req orchestrator.Request) (string, error)
}

// Library is the catalog surface the service needs.
type Library interface {
	List(ctx context.Context) ([]corpus.FileInfo, error)
	Remove(ctx context.Context, fileID string) error
}

// ChunkStore is the vector index surface the service needs.
type ChunkStore interface {
	DeleteFile(ctx context.Context, fileID string) error
	Count() int
}

// Options tune service behavior.
type Options struct {
	// DeleteCutoff is the minimum similarity for matching a delete
	// target to a filename. Deliberately looser than retrieval scoping:
	// an admin typing "delete old manual" means it.
	DeleteCutoff float64
	// UploadsDir holds the retained file copies removed on delete.
	UploadsDir string
}

// Service answers document questions end to end: memory, scope,
// retrieval, visual augmentation, assembly, orchestration. Session
// memory is only written after a fully successful answer, so provider
// outages never corrupt the conversation log.
type Service struct {
	sessions  session.Store
	resolver  Resolver
	engine    Engine
	augmenter Augmenter
	assembler *assemble.Assembler
	answerer  Answerer
	library   Library
	chunks    ChunkStore
	trail     *audit.Store

	deleteCutoff float64
	uploadsDir   string
}

func NewService(
	sessions session.Store,
	resolver Resolver,
	engine Engine,
	augmenter Augmenter,
	assembler *assemble.Assembler,
	answerer Answerer,
	library Library,
	chunks ChunkStore,
	trail *audit.Store,
	opts Options,
) *Service {
	if opts.DeleteCutoff <= 0 {
		opts.DeleteCutoff = 0.4
	}
	return &Service{
		sessions:     sessions,
		resolver:     resolver,
		engine:       engine,
		augmenter:    augmenter,
		assembler:    assembler,
		answerer:     answerer,
		library:      library,
		chunks:       chunks,
		trail:        trail,
		deleteCutoff: opts.DeleteCutoff,
		uploadsDir:   opts.UploadsDir,
	}
}

// Ask answers one question within a session.
func (s *Service) Ask(ctx context.Context, sessionID string, caller Caller, query string) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("empty query")
	}

	memory, err := s.sessions.Context(ctx, sessionID)
	if err != nil {
		log.Printf("qa: loading session context: %v", err)
		memory = ""
	}

	decision, err := s.resolver.Resolve(ctx, sessionID, query, memory)
	if err != nil {
		return nil, fmt.Errorf("resolving scope: %w", err)
	}

	var answer *Answer
	switch decision.Mode {
	case scope.ModeList:
		answer, err = s.answerList(ctx)
	case scope.ModeDelete:
		answer, err = s.answerDelete(ctx, caller, decision.DeleteTarget)
	case scope.ModeDebug:
		answer, err = s.answerDebug(ctx)
	default:
		answer, err = s.answerQuery(ctx, memory, query, decision)
	}
	if err != nil {
		return nil, err
	}
	answer.Mode = decision.Mode

	if err := s.sessions.AppendTurn(ctx, sessionID, query, answer.Markdown); err != nil {
		// The answer is already produced; a memory write failure only
		// degrades future follow-ups.
		log.Printf("qa: recording turn: %v", err)
	}
	return answer, nil
}

func (s *Service) answerQuery(ctx context.Context, memory, query string, d scope.Decision) (*Answer, error) {
	res, err := s.engine.Retrieve(ctx, query, d)
	if err != nil {
		return nil, fmt.Errorf("retrieving: %w", err)
	}

	var images []llm.ImageAttachment
	if s.augmenter != nil {
		images = s.augmenter.Augment(ctx, d, res)
	}

	if res.Empty() {
		return s.finish(noResultsAnswer, res)
	}

	prompt := s.assembler.Assemble(query, res, len(images) > 0)

	reply, err := s.answerer.Answer(ctx, orchestrator.Request{
		System:        prompt.System,
		MemoryContext: memory,
		DocContext:    prompt.Context,
		Query:         query,
		Images:        images,
	})
	if err != nil {
		return nil, fmt.Errorf("answering: %w", err)
	}

	return s.finish(reply+sourcesFooter(res.Sources), res)
}

func (s *Service) finish(md string, res *retrieval.Results) (*Answer, error) {
	htmlOut, err := renderHTML(md)
	if err != nil {
		return nil, err
	}
	a := &Answer{Markdown: md, HTML: htmlOut, Sources: res.Sources}
	for _, g := range res.Groups {
		if g.Source != "" {
			a.UsedFiles = append(a.UsedFiles, g.Source)
		}
	}
	return a, nil
}

func (s *Service) answerList(ctx context.Context) (*Answer, error) {
	files, err := s.library.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}

	var b strings.Builder
	if len(files) == 0 {
		b.WriteString("The library is empty. Upload a document to get started.")
	} else {
		fmt.Fprintf(&b, "The library holds %d document(s):\n\n", len(files))
		for _, f := range files {
			fmt.Fprintf(&b, "%d. **%s** (%d pages)\n", f.Place, f.Filename, f.TotalPages)
		}
	}

	md := strings.TrimRight(b.String(), "\n")
	htmlOut, err := renderHTML(md)
	if err != nil {
		return nil, err
	}
	return &Answer{Markdown: md, HTML: htmlOut}, nil
}

func (s *Service) answerDelete(ctx context.Context, caller Caller, target string) (*Answer, error) {
	if !caller.Admin {
		if s.trail != nil {
			if err := s.trail.Record(ctx, caller.UserID, audit.ActionDeleteRefused, target); err != nil {
				log.Printf("qa: recording refusal: %v", err)
			}
		}
		htmlOut, err := renderHTML(deleteRefusal)
		if err != nil {
			return nil, err
		}
		return &Answer{Markdown: deleteRefusal, HTML: htmlOut}, nil
	}

	files, err := s.library.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}

	match, ok := matchDeleteTarget(target, files, s.deleteCutoff)
	if !ok {
		md := fmt.Sprintf("I could not find a document matching %q. Ask me to list the files to see what is available.", target)
		htmlOut, err := renderHTML(md)
		if err != nil {
			return nil, err
		}
		return &Answer{Markdown: md, HTML: htmlOut}, nil
	}

	if err := s.deleteFile(ctx, match); err != nil {
		return nil, err
	}
	if s.trail != nil {
		if err := s.trail.Record(ctx, caller.UserID, audit.ActionFileDeleted, match.Filename); err != nil {
			log.Printf("qa: recording deletion: %v", err)
		}
	}

	md := fmt.Sprintf("Deleted **%s** (%d pages) from the library.", match.Filename, match.TotalPages)
	htmlOut, err := renderHTML(md)
	if err != nil {
		return nil, err
	}
	return &Answer{Markdown: md, HTML: htmlOut, UsedFiles: []string{match.Filename}}, nil
}

// DeleteFileID removes a document by exact file id. Used by the HTTP
// delete endpoint where no fuzzy matching is wanted.
func (s *Service) DeleteFileID(ctx context.Context, caller Caller, fileID string) (corpus.FileInfo, error) {
	files, err := s.library.List(ctx)
	if err != nil {
		return corpus.FileInfo{}, err
	}
	for _, f := range files {
		if f.FileID == fileID {
			if err := s.deleteFile(ctx, f); err != nil {
				return corpus.FileInfo{}, err
			}
			if s.trail != nil {
				if err := s.trail.Record(ctx, caller.UserID, audit.ActionFileDeleted, f.Filename); err != nil {
					log.Printf("qa: recording deletion: %v", err)
				}
			}
			return f, nil
		}
	}
	return corpus.FileInfo{}, corpus.ErrNotFound
}

func (s *Service) deleteFile(ctx context.Context, f corpus.FileInfo) error {
	if err := s.chunks.DeleteFile(ctx, f.FileID); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", f.FileID, err)
	}
	if err := s.library.Remove(ctx, f.FileID); err != nil && !errors.Is(err, corpus.ErrNotFound) {
		return fmt.Errorf("deleting catalog entry of %s: %w", f.FileID, err)
	}
	if s.uploadsDir != "" {
		if err := os.Remove(filepath.Join(s.uploadsDir, f.Filename)); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("qa: removing upload copy of %s: %v", f.Filename, err)
		}
	}
	return nil
}

// matchDeleteTarget resolves a loose delete reference to a catalog
// entry: exact id or filename first, then fuzzy over both.
func matchDeleteTarget(target string, files []corpus.FileInfo, cutoff float64) (corpus.FileInfo, bool) {
	t := strings.ToLower(strings.TrimSpace(target))
	if t == "" {
		return corpus.FileInfo{}, false
	}

	for _, f := range files {
		if t == f.FileID || strings.EqualFold(t, f.Filename) {
			return f, true
		}
	}

	var best corpus.FileInfo
	bestScore := 0.0
	for _, f := range files {
		for _, candidate := range []string{strings.ToLower(f.Filename), f.FileID} {
			longest := max(len(t), len(candidate))
			if longest == 0 {
				continue
			}
			score := 1 - float64(levenshtein.ComputeDistance(t, candidate))/float64(longest)
			if strings.Contains(candidate, t) && score < 0.8 {
				score = 0.8
			}
			if score > bestScore {
				best, bestScore = f, score
			}
		}
	}
	if bestScore < cutoff {
		return corpus.FileInfo{}, false
	}
	return best, true
}

func (s *Service) answerDebug(ctx context.Context) (*Answer, error) {
	files, err := s.library.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Index debug**\n\n")
	fmt.Fprintf(&b, "- Indexed chunks: %d\n", s.chunks.Count())
	fmt.Fprintf(&b, "- Documents: %d\n", len(files))
	for _, f := range files {
		fmt.Fprintf(&b, "  - `%s` -> %s, %d pages, place %d, embedded with %s\n",
			f.FileID, f.Filename, f.TotalPages, f.Place, f.EmbeddingModel)
	}

	md := strings.TrimRight(b.String(), "\n")
	htmlOut, err := renderHTML(md)
	if err != nil {
		return nil, err
	}
	return &Answer{Markdown: md, HTML: htmlOut}, nil
}
