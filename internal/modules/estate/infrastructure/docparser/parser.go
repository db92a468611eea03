package docparser

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"EstateGuru/pkg/xerr"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
)

const pdfMagic = "%PDF-"

// 能转成文本的扩展名
var supported = map[string]bool{".pdf": true, ".txt": true, ".md": true, ".text": true}

// Parser 按扩展名把上传文件转成纯文本：.pdf 走 eino-ext pdf 解析器，其余按原文
type Parser struct {
	ext *parser.ExtParser
}

func New(ctx context.Context) (*Parser, error) {
	pp, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	if err != nil {
		return nil, fmt.Errorf("init pdf parser: %w", err)
	}
	ext, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		Parsers:        map[string]parser.Parser{".pdf": pp},
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, err
	}
	return &Parser{ext: ext}, nil
}

func (p *Parser) Supports(filename string) bool {
	return supported[strings.ToLower(filepath.Ext(filename))]
}

// NeedsParsing 纯文本原样入库，只有 PDF 需要解析
func (p *Parser) NeedsParsing(filename string, raw []byte) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf") || bytes.HasPrefix(raw, []byte(pdfMagic))
}

// Extract 返回文档全文，页与页之间以空行分隔
func (p *Parser) Extract(ctx context.Context, filename string, raw []byte) (string, error) {
	uri := strings.ToLower(filepath.Base(filename))
	// 没有扩展名但内容是 PDF 时按 PDF 解析
	if bytes.HasPrefix(raw, []byte(pdfMagic)) && filepath.Ext(uri) != ".pdf" {
		uri += ".pdf"
	}
	docs, err := p.parse(ctx, raw, uri)
	if err != nil {
		return "", xerr.Wrap(xerr.KindInput, fmt.Sprintf("cannot parse %s", filepath.Base(filename)), err)
	}
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		if s := strings.TrimSpace(d.Content); s != "" {
			parts = append(parts, s)
		}
	}
	text := strings.Join(parts, "\n\n")
	if text == "" {
		return "", xerr.Input(fmt.Sprintf("no text could be extracted from %s", filepath.Base(filename)))
	}
	return text, nil
}

// parse 损坏的 PDF 可能让底层解析器 panic，这里转成错误
func (p *Parser) parse(ctx context.Context, raw []byte, uri string) (docs []*schema.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("parser panic: %v", r)
		}
	}()
	return p.ext.Parse(ctx, bytes.NewReader(raw), parser.WithURI(uri))
}
