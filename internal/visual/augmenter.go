package visual

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/docuchat/docuchat/internal/corpus"
	"github.com/docuchat/docuchat/internal/llm"
	"github.com/docuchat/docuchat/internal/retrieval"
	"github.com/docuchat/docuchat/internal/scope"
	"github.com/docuchat/docuchat/internal/vectordb"
)

// placeholderText stands in for pages that carry no extractable text,
// so the model knows the substance is in the attached images.
const placeholderText = "no text found, analyze attached image"

// Options configure the augmenter.
type Options struct {
	// Candidates is how many top-ranked chunks compete for rendering
	// when the query does not name pages.
	Candidates int
	// KeywordBonus is added to a candidate's rank score when its text
	// mentions visual material.
	KeywordBonus int
	// Keywords mark a chunk as referring to visual material.
	Keywords []string
}

// Augmenter attaches rendered page images to retrieval results. Page
// rendering failures degrade to text-only answers; they never fail
// the request.
type Augmenter struct {
	renderer   Renderer
	catalog    retrieval.FileCatalog
	uploadsDir string
	candidates int
	bonus      int
	keywords   []string
}

func NewAugmenter(renderer Renderer, catalog retrieval.FileCatalog, uploadsDir string, opts Options) *Augmenter {
	if opts.Candidates <= 0 {
		opts.Candidates = 5
	}
	if opts.KeywordBonus <= 0 {
		opts.KeywordBonus = 10
	}
	return &Augmenter{
		renderer:   renderer,
		catalog:    catalog,
		uploadsDir: uploadsDir,
		candidates: opts.Candidates,
		bonus:      opts.KeywordBonus,
		keywords:   opts.Keywords,
	}
}

// Augment picks pages worth showing to the model and renders them.
// Explicitly requested pages are rendered as-is; otherwise the top
// retrieved chunks are re-ranked toward ones that mention figures or
// diagrams, and the winner's page is rendered. The results may gain
// placeholder chunks for requested pages that had no indexed text.
func (a *Augmenter) Augment(ctx context.Context, d scope.Decision, res *retrieval.Results) []llm.ImageAttachment {
	if a.renderer == nil {
		return nil
	}
	if len(d.Pages) > 0 {
		return a.renderRequestedPages(ctx, d, res)
	}
	return a.renderBestCandidate(res)
}

func (a *Augmenter) renderRequestedPages(ctx context.Context, d scope.Decision, res *retrieval.Results) []llm.ImageAttachment {
	targets := d.Files
	if len(targets) == 0 {
		for _, g := range res.Groups {
			if g.Source != "" {
				targets = append(targets, g.Source)
			}
		}
	}

	var attachments []llm.ImageAttachment
	for _, filename := range targets {
		total := a.totalPages(ctx, filename, res)
		for _, page := range d.Pages {
			if total > 0 && page > total {
				log.Printf("visual: page %d of %s out of range (%d pages)", page, filename, total)
				continue
			}
			a.ensureChunk(res, filename, page, total)
			attachments = append(attachments, a.render(filename, page)...)
		}
	}
	return attachments
}

func (a *Augmenter) renderBestCandidate(res *retrieval.Results) []llm.ImageAttachment {
	n := len(res.Ranked)
	if n == 0 {
		return nil
	}
	if n > a.candidates {
		n = a.candidates
	}

	best, bestScore := -1, 0
	for i := 0; i < n; i++ {
		score := n - i
		if a.mentionsVisual(res.Ranked[i].Chunk.Text) {
			score += a.bonus
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return nil
	}

	meta := res.Ranked[best].Chunk.Meta
	if meta.Source == "" || meta.Page == 0 {
		return nil
	}
	return a.render(meta.Source, meta.Page)
}

func (a *Augmenter) mentionsVisual(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range a.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (a *Augmenter) render(filename string, page int) []llm.ImageAttachment {
	path := filepath.Join(a.uploadsDir, filename)
	images, err := a.renderer.RenderPage(path, page)
	if err != nil {
		log.Printf("visual: rendering page %d of %s: %v", page, filename, err)
		return nil
	}

	attachments := make([]llm.ImageAttachment, 0, len(images))
	for _, img := range images {
		attachments = append(attachments, llm.ImageAttachment{
			MIMEType:   "image/png",
			Data:       img.PNG,
			Caption:    caption(img.Label, filename, page),
			HighDetail: img.Label != "overview",
		})
	}
	return attachments
}

func caption(label, filename string, page int) string {
	if label == "overview" {
		return fmt.Sprintf("Full view of page %d of %s. Use it for layout and overall structure.", page, filename)
	}
	return fmt.Sprintf("High-zoom %s slice of page %d of %s. Read fine print, part numbers and schematic connections here; lines entering a slice continue in the neighboring one.", label, page, filename)
}

// ensureChunk guarantees a requested page is represented in the
// results. Pages that never had extractable text get a placeholder so
// context assembly still produces a page entry next to the images.
func (a *Augmenter) ensureChunk(res *retrieval.Results, filename string, page, total int) {
	fileID := corpus.FileID(filename)

	for i := range res.Groups {
		g := &res.Groups[i]
		if g.FileID != fileID && g.Source != filename {
			continue
		}
		for _, c := range g.Chunks {
			if c.Meta.Page == page {
				return
			}
		}
		g.Chunks = append(g.Chunks, placeholderChunk(fileID, filename, page, total, g.Place))
		return
	}

	res.Groups = append(res.Groups, retrieval.Group{
		FileID:     fileID,
		Source:     filename,
		TotalPages: total,
		Chunks:     []vectordb.Chunk{placeholderChunk(fileID, filename, page, total, 0)},
	})
}

func placeholderChunk(fileID, filename string, page, total, place int) vectordb.Chunk {
	return vectordb.Chunk{
		ID:   fmt.Sprintf("%s-placeholder-page-%d", fileID, page),
		Text: placeholderText,
		Meta: vectordb.ChunkMeta{
			FileID:     fileID,
			Source:     filename,
			Page:       page,
			TotalPages: total,
			Place:      place,
			ChunkIndex: page,
		},
	}
}

func (a *Augmenter) totalPages(ctx context.Context, filename string, res *retrieval.Results) int {
	fileID := corpus.FileID(filename)
	for _, g := range res.Groups {
		if (g.FileID == fileID || g.Source == filename) && g.TotalPages > 0 {
			return g.TotalPages
		}
	}
	if a.catalog != nil {
		if info, err := a.catalog.Get(ctx, fileID); err == nil {
			return info.TotalPages
		}
	}
	return 0
}
