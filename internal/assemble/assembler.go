package assemble

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/docuchat/docuchat/internal/retrieval"
)

// Prompt is the assembled model input for the answering round.
type Prompt struct {
	System  string
	Context string
	// Truncated is set when the broad-query guard replaced the chunk
	// bodies with a summary of what matched.
	Truncated bool
}

// broadQuery matches inventory-style questions where dumping every
// matching chunk would blow the prompt without helping the answer.
var broadQuery = regexp.MustCompile(`(?i)\b(list|show|enumerate|how many|all of)\b`)

// Assembler renders retrieval results into the document context block
// and the matching system instruction.
type Assembler struct {
	charLimit int
}

// NewAssembler creates an assembler; charLimit bounds the rendered
// context for broad queries.
func NewAssembler(charLimit int) *Assembler {
	if charLimit <= 0 {
		charLimit = 10000
	}
	return &Assembler{charLimit: charLimit}
}

// Assemble renders the grouped chunks. hasImages switches the system
// instruction to explain the attached page renders.
func (a *Assembler) Assemble(query string, res *retrieval.Results, hasImages bool) Prompt {
	context := renderGroups(res, true)

	if len(context) > a.charLimit && broadQuery.MatchString(query) {
		return Prompt{
			System:    inventorySystem,
			Context:   overLimitNotice + renderGroups(res, false),
			Truncated: true,
		}
	}

	system := answerSystem
	if hasImages {
		system += "\n\n" + imageGuidance
	}
	return Prompt{System: system, Context: context}
}

// renderGroups writes one block per file: a header describing the
// file, then each chunk under its own position marker. withBodies
// false emits headers only.
func renderGroups(res *retrieval.Results, withBodies bool) string {
	blocks := make([]string, 0, len(res.Groups))
	for _, g := range res.Groups {
		var b strings.Builder
		fmt.Fprintf(&b, "=== %s ===\n", g.FileID)
		fmt.Fprintf(&b, "Filename: %s\n", g.Source)
		fmt.Fprintf(&b, "File ID: %s\n", g.FileID)
		fmt.Fprintf(&b, "Place: %d\n", g.Place)
		fmt.Fprintf(&b, "Total Pages: %d\n", g.TotalPages)

		if withBodies {
			for _, c := range g.Chunks {
				fmt.Fprintf(&b, "\n--- FILE: %s | PAGE: %d of %d | PLACE: %d ---\n%s\n",
					g.Source, c.Meta.Page, g.TotalPages, g.Place, c.Text)
			}
		} else {
			pages := make([]string, 0, len(g.Chunks))
			for _, c := range g.Chunks {
				pages = append(pages, fmt.Sprintf("%d", c.Meta.Page))
			}
			fmt.Fprintf(&b, "Matched pages: %s\n", strings.Join(pages, ", "))
		}

		blocks = append(blocks, strings.TrimRight(b.String(), "\n"))
	}
	return strings.Join(blocks, "\n\n\n")
}

const answerSystem = `You answer questions about the user's document library using only the provided document context.
Rules:
- Ground every claim in the context. If the context does not contain the answer, say so plainly.
- Cite the filename and page for information you use, like (Pump Manual.pdf, p. 12).
- When several files are present, keep their contents clearly attributed; never blend them silently.
- Answer in the language of the question. Use Markdown.`

const inventorySystem = `You answer questions about the user's document library.
The request is about the library inventory, so the context lists file metadata rather than full text.
Summarize what is available from that metadata. Do not invent file contents.`

const imageGuidance = `Rendered page images are attached.
- The full view shows layout; the high-zoom slices make fine print and labels readable. The slices overlap: content cut off at a slice edge continues in the neighboring slice.
- On schematics and drawings, trace lines across slices to describe connections accurately.
- Prefer what you can verify in the images over guesses; if a detail is illegible, say so.`

const overLimitNotice = "NOTE: the matched content is too large to include in full. File metadata follows.\n\n"
