// Package report derives human-readable output from a finalized
// session record: a plain-text findings transcript, a self-contained
// HTML document, and an optional generated summary.
package report

import "strings"

// The generated summary arrives as lightweight markup. The grammar is
// fixed: "## " and "### " headings, "- " or "* " bullets, everything
// else a paragraph; inline **bold** spans. Parsing produces a block
// tree so renderers never run order-dependent find-replace passes.

// BlockKind identifies a markup block.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockBullets
)

// Span is a run of text, optionally bold.
type Span struct {
	Text string
	Bold bool
}

// Block is one parsed markup block. Level is 2 or 3 for headings.
// Items holds per-bullet spans for bullet blocks; Spans covers the
// other kinds.
type Block struct {
	Kind  BlockKind
	Level int
	Spans []Span
	Items [][]Span
}

// ParseMarkup parses text into blocks. Blank lines separate blocks;
// consecutive bullet lines merge into one bullet block.
func ParseMarkup(text string) []Block {
	var blocks []Block
	var para []string

	flushPara := func() {
		if len(para) == 0 {
			return
		}
		blocks = append(blocks, Block{
			Kind:  BlockParagraph,
			Spans: parseSpans(strings.Join(para, " ")),
		})
		para = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flushPara()
		case strings.HasPrefix(line, "### "):
			flushPara()
			blocks = append(blocks, Block{
				Kind:  BlockHeading,
				Level: 3,
				Spans: parseSpans(strings.TrimPrefix(line, "### ")),
			})
		case strings.HasPrefix(line, "## "):
			flushPara()
			blocks = append(blocks, Block{
				Kind:  BlockHeading,
				Level: 2,
				Spans: parseSpans(strings.TrimPrefix(line, "## ")),
			})
		case strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* "):
			flushPara()
			item := parseSpans(line[2:])
			if n := len(blocks); n > 0 && blocks[n-1].Kind == BlockBullets {
				blocks[n-1].Items = append(blocks[n-1].Items, item)
			} else {
				blocks = append(blocks, Block{Kind: BlockBullets, Items: [][]Span{item}})
			}
		default:
			para = append(para, line)
		}
	}
	flushPara()
	return blocks
}

// parseSpans splits a line on ** markers, alternating plain and bold.
// An unclosed marker renders its tail as plain text.
func parseSpans(line string) []Span {
	var spans []Span
	bold := false
	for {
		idx := strings.Index(line, "**")
		if idx < 0 {
			break
		}
		if idx > 0 {
			spans = append(spans, Span{Text: line[:idx], Bold: bold})
		}
		line = line[idx+2:]
		bold = !bold
	}
	if line != "" {
		if bold {
			// Unclosed marker: keep the tail plain.
			spans = append(spans, Span{Text: line})
		} else {
			spans = append(spans, Span{Text: line, Bold: bold})
		}
	}
	return spans
}

// PlainText flattens blocks back to unstyled text, one block per line,
// bullets prefixed with "- ".
func PlainText(blocks []Block) string {
	var b strings.Builder
	for i, blk := range blocks {
		if i > 0 {
			b.WriteString("\n")
		}
		switch blk.Kind {
		case BlockBullets:
			for j, item := range blk.Items {
				if j > 0 {
					b.WriteString("\n")
				}
				b.WriteString("- ")
				writeSpansPlain(&b, item)
			}
		default:
			writeSpansPlain(&b, blk.Spans)
		}
	}
	return b.String()
}

func writeSpansPlain(b *strings.Builder, spans []Span) {
	for _, s := range spans {
		b.WriteString(s.Text)
	}
}
