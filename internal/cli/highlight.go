package cli

import (
	"bytes"
	"fmt"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/muesli/termenv"
)

const highlightStyle = "monokai"

// scriptHighlighter colors rule scripts for terminal output. "cl" and
// "system" lines read well as shell.
type scriptHighlighter struct {
	lexer     chroma.Lexer
	formatter chroma.Formatter
	style     *chroma.Style
}

func newScriptHighlighter(profile termenv.Profile) *scriptHighlighter {
	formatterName := "noop"
	switch profile {
	case termenv.TrueColor:
		formatterName = "terminal16m"

	case termenv.ANSI256:
		formatterName = "terminal256"

	case termenv.ANSI:
		formatterName = "terminal8"
	}

	return &scriptHighlighter{
		lexer:     chroma.Coalesce(lexers.Get("bash")),
		formatter: formatters.Get(formatterName),
		style:     styles.Get(highlightStyle),
	}
}

func (h *scriptHighlighter) Highlight(src string) (string, error) {
	iterator, err := h.lexer.Tokenise(nil, src)
	if err != nil {
		return "", fmt.Errorf("lexer tokenize: %w", err)
	}

	buf := &bytes.Buffer{}

	err = h.formatter.Format(buf, h.style, iterator)
	if err != nil {
		return "", fmt.Errorf("format: %w", err)
	}

	return buf.String(), nil
}
