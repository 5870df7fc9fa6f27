package valueobjects

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxTitleLength   = 200
	MaxContentLength = 50000
)

// BlockType is the set of typed structural units a node's body can be
// decomposed into.
type BlockType string

const (
	BlockHeading   BlockType = "heading"
	BlockParagraph BlockType = "paragraph"
	BlockList      BlockType = "list"
	BlockListItem  BlockType = "list-item"
	BlockCode      BlockType = "code"
	BlockQuote     BlockType = "quote"
	BlockDivider   BlockType = "divider"
)

// Block is one typed, independently addressable unit of a node's content.
// Blocks nest (list -> list-item, and so on) and carry their own identity
// and timestamps so a single block can be edited without rewriting the
// whole ordered sequence.
type Block struct {
	ID         string
	Type       BlockType
	Text       string
	Level      *int // heading level (1-6); nil for non-heading blocks
	CreatedAt  time.Time
	ModifiedAt time.Time
	Children   []Block
}

// NewBlock constructs a leaf block.
func NewBlock(id string, blockType BlockType, text string, now time.Time) (Block, error) {
	if id == "" {
		return Block{}, errors.New("block id cannot be empty")
	}
	if !isValidBlockType(blockType) {
		return Block{}, errors.New("invalid block type")
	}
	return Block{
		ID:         id,
		Type:       blockType,
		Text:       text,
		CreatedAt:  now,
		ModifiedAt: now,
	}, nil
}

// WithLevel returns a copy of b with Level set, for heading blocks.
func (b Block) WithLevel(level int) Block {
	b.Level = &level
	return b
}

// WithChildren returns a copy of b with its nested blocks replaced.
func (b Block) WithChildren(children []Block) Block {
	b.Children = children
	return b
}

// Touch returns a copy of b with ModifiedAt bumped to now.
func (b Block) Touch(now time.Time) Block {
	b.ModifiedAt = now
	return b
}

func isValidBlockType(t BlockType) bool {
	switch t {
	case BlockHeading, BlockParagraph, BlockList, BlockListItem, BlockCode, BlockQuote, BlockDivider:
		return true
	default:
		return false
	}
}

// ContentFormat represents the format of the content.
type ContentFormat string

const (
	FormatPlainText ContentFormat = "text"
	FormatMarkdown  ContentFormat = "markdown"
	FormatHTML      ContentFormat = "html"
	FormatJSON      ContentFormat = "json"
)

// NodeContent is a value object for node content: a title, an optional
// stored summary, a body, and an optional ordered sequence of typed
// blocks decomposed from that body.
type NodeContent struct {
	title   string
	summary string
	body    string
	format  ContentFormat
	blocks  []Block
}

// NewNodeContent creates content with validation.
func NewNodeContent(title, body string, format ContentFormat) (NodeContent, error) {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)

	if title == "" {
		return NodeContent{}, errors.New("title cannot be empty")
	}

	if utf8.RuneCountInString(title) > MaxTitleLength {
		return NodeContent{}, errors.New("title exceeds maximum length")
	}

	if utf8.RuneCountInString(body) > MaxContentLength {
		return NodeContent{}, errors.New("content body exceeds maximum length")
	}

	if !isValidFormat(format) {
		return NodeContent{}, errors.New("invalid content format")
	}

	return NodeContent{
		title:  title,
		body:   body,
		format: format,
	}, nil
}

// WithSummary returns a copy of c carrying an explicit summary, overriding
// the truncation-derived one returned by Summary when maxLength is unset
// by the caller.
func (c NodeContent) WithSummary(summary string) NodeContent {
	c.summary = strings.TrimSpace(summary)
	return c
}

// WithBlocks returns a copy of c with its block sequence replaced.
func (c NodeContent) WithBlocks(blocks []Block) NodeContent {
	c.blocks = blocks
	return c
}

// Title returns the content title.
func (c NodeContent) Title() string {
	return c.title
}

// Body returns the content body.
func (c NodeContent) Body() string {
	return c.body
}

// Format returns the content format.
func (c NodeContent) Format() ContentFormat {
	return c.format
}

// Blocks returns the ordered block sequence, empty if the content has
// not been decomposed into blocks.
func (c NodeContent) Blocks() []Block {
	return c.blocks
}

// HasBlocks reports whether the content carries a block decomposition.
func (c NodeContent) HasBlocks() bool {
	return len(c.blocks) > 0
}

// IsEmpty checks if content is empty.
func (c NodeContent) IsEmpty() bool {
	return c.title == "" && c.body == ""
}

// Equals checks if two contents are equal.
func (c NodeContent) Equals(other NodeContent) bool {
	return c.title == other.title &&
		c.body == other.body &&
		c.format == other.format
}

// WordCount returns the approximate word count.
func (c NodeContent) WordCount() int {
	combined := c.title + " " + c.body
	return len(strings.Fields(combined))
}

// Summary returns the explicitly stored summary if one was set via
// WithSummary, otherwise a truncated summary of title+body.
func (c NodeContent) Summary(maxLength int) string {
	if c.summary != "" {
		return c.summary
	}
	if maxLength <= 0 {
		return ""
	}

	combined := c.title
	if c.body != "" {
		combined += ": " + c.body
	}

	if utf8.RuneCountInString(combined) <= maxLength {
		return combined
	}

	runes := []rune(combined)
	return string(runes[:maxLength-3]) + "..."
}

func isValidFormat(format ContentFormat) bool {
	switch format {
	case FormatPlainText, FormatMarkdown, FormatHTML, FormatJSON:
		return true
	default:
		return false
	}
}
