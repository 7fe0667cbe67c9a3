package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgallion1/quizgest/internal/layout"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Each paragraph becomes one line, bold when
// any of its text runs is bold.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*layout.Document, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "quizgest-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	page := layout.Page{Number: 1}
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		if line, ok := docxParagraphLine(para); ok {
			page.Lines = append(page.Lines, line)
		}
	}

	return &layout.Document{
		Title: strings.TrimSuffix(filename, ".docx"),
		Pages: appendPage(nil, page),
	}, nil
}

func docxParagraphLine(para *docx.Paragraph) (layout.Line, bool) {
	var buf strings.Builder
	bold := false
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		var runText strings.Builder
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				runText.WriteString(t.Text)
			}
		}
		if strings.TrimSpace(runText.String()) != "" && docxRunBold(run) {
			bold = true
		}
		buf.WriteString(runText.String())
	}
	text := strings.TrimSpace(buf.String())
	return layout.Line{Text: text, Bold: bold}, text != ""
}

func docxRunBold(run *docx.Run) bool {
	return run.RunProperties != nil && run.RunProperties.Bold != nil
}
