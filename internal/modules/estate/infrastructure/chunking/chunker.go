package chunking

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
)

// Piece 一个分块及其在原文中的位置（按 rune 计）
type Piece struct {
	Index int
	Text  string
	Start int
}

// Chunker 把文本切成有序分块
type Chunker interface {
	Split(ctx context.Context, text string) ([]Piece, error)
}

// WindowChunker 固定窗口 + 重叠；步长 = size - overlap
type WindowChunker struct {
	Size    int
	Overlap int
}

// NewWindowChunker 非法参数会被修正：size<=0 取 400，overlap 不能 >= size
func NewWindowChunker(size, overlap int) *WindowChunker {
	if size <= 0 {
		size = 400
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	return &WindowChunker{Size: size, Overlap: overlap}
}

// Split 基于 rune 切分，多字节字符不会被截断
func (c *WindowChunker) Split(ctx context.Context, text string) ([]Piece, error) {
	if strings.TrimSpace(text) == "" {
		return []Piece{}, nil
	}
	runes := []rune(text)
	total := len(runes)
	if total <= c.Size {
		return []Piece{{Index: 0, Text: text, Start: 0}}, nil
	}
	step := c.Size - c.Overlap
	if step <= 0 {
		step = 1
	}
	pieces := make([]Piece, 0, total/step+1)
	for start := 0; start < total; start += step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+c.Size, total)
		pieces = append(pieces, Piece{Index: len(pieces), Text: string(runes[start:end]), Start: start})
		if end == total {
			break
		}
	}
	return pieces, nil
}

// RecursiveChunker 按段落/句子边界递归切分（eino recursive splitter）
type RecursiveChunker struct {
	Size    int
	Overlap int

	initOnce sync.Once
	initErr  error
	impl     document.Transformer
}

func NewRecursiveChunker(size, overlap int) *RecursiveChunker {
	w := NewWindowChunker(size, overlap)
	return &RecursiveChunker{Size: w.Size, Overlap: w.Overlap}
}

func (c *RecursiveChunker) Split(ctx context.Context, text string) ([]Piece, error) {
	if strings.TrimSpace(text) == "" {
		return []Piece{}, nil
	}
	c.initOnce.Do(func() {
		c.impl, c.initErr = recursive.NewSplitter(ctx, &recursive.Config{
			ChunkSize:   c.Size,
			OverlapSize: c.Overlap,
			Separators:  []string{"\n\n", "\n", ". ", "? ", "! ", "; ", ", ", " "},
			LenFunc: func(s string) int {
				return len([]rune(s))
			},
			KeepType: recursive.KeepTypeEnd,
		})
	})
	if c.initErr != nil {
		return nil, c.initErr
	}
	if c.impl == nil {
		return nil, fmt.Errorf("recursive splitter not initialized")
	}
	frags, err := c.impl.Transform(ctx, []*schema.Document{{Content: text}})
	if err != nil {
		return nil, err
	}
	pieces := make([]Piece, 0, len(frags))
	cursor := 0
	for _, f := range frags {
		if f == nil || strings.TrimSpace(f.Content) == "" {
			continue
		}
		start := -1
		if i := strings.Index(text[cursor:], f.Content); i >= 0 {
			start = len([]rune(text[:cursor+i]))
			cursor += i
		}
		pieces = append(pieces, Piece{Index: len(pieces), Text: f.Content, Start: start})
	}
	return pieces, nil
}

// New 按名字选择实现：window（默认）/ recursive
func New(kind string, size, overlap int) Chunker {
	if strings.EqualFold(strings.TrimSpace(kind), "recursive") {
		return NewRecursiveChunker(size, overlap)
	}
	return NewWindowChunker(size, overlap)
}
