package rule

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// Info file block keys. The spellings match files written by earlier
// releases and must not change.
const (
	keyName        = "Name"
	keyVersion     = "version"
	keyAuthor      = "Auther"
	keyDescription = "information"
	keyRandomKey   = "random_key"
)

// Defaults for blocks missing from an info file.
const (
	unknownValue       = "Unknown"
	defaultDescription = "none"
)

// ErrParse is wrapped by every [ParseError].
var ErrParse = errors.New("parse info file")

// ParseError describes malformed block structure in an info file.
type ParseError struct {
	Msg  string
	Line int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Unwrap returns [ErrParse].
func (e *ParseError) Unwrap() error {
	return ErrParse
}

// Info is the content of an info file:
//
//	Key
//	{
//	    value
//	}
type Info struct {
	Name        string
	Version     string
	Author      string
	Description string
	// RandomKey is a decorative value written for encrypted rules. Only its
	// presence is meaningful.
	RandomKey string
}

// MarshalText encodes the info file. Empty blocks are written with an empty
// value line, and RandomKey is only written when set.
func (i *Info) MarshalText() ([]byte, error) {
	b := &bytes.Buffer{}

	writeBlock(b, keyName, i.Name)
	writeBlock(b, keyVersion, i.Version)
	writeBlock(b, keyAuthor, i.Author)
	writeBlock(b, keyDescription, i.Description)

	if i.RandomKey != "" {
		writeBlock(b, keyRandomKey, i.RandomKey)
	}

	return b.Bytes(), nil
}

func writeBlock(b *bytes.Buffer, key, value string) {
	b.WriteString(key)
	b.WriteString("\n{\n")

	for line := range strings.SplitSeq(value, "\n") {
		b.WriteString("    ")
		b.WriteString(strings.TrimSpace(line))
		b.WriteString("\n")
	}

	b.WriteString("}\n")
}

// ParseInfo decodes an info file. Missing blocks take their defaults and
// unknown keys are ignored.
func ParseInfo(data []byte) (*Info, error) {
	blocks, err := parseBlocks(data)
	if err != nil {
		return nil, err
	}

	info := &Info{
		Name:        unknownValue,
		Version:     DefaultVersion,
		Author:      unknownValue,
		Description: defaultDescription,
	}

	for key, value := range blocks {
		switch key {
		case keyName:
			info.Name = value
		case keyVersion:
			info.Version = value
		case keyAuthor:
			info.Author = value
		case keyDescription:
			info.Description = value
		case keyRandomKey:
			info.RandomKey = value
		}
	}

	return info, nil
}

// parseBlocks splits data into key/value blocks. Value lines are trimmed and
// joined with newlines. A repeated key keeps its last value.
func parseBlocks(data []byte) (map[string]string, error) {
	var (
		blocks  = map[string]string{}
		key     string
		value   []string
		inBlock bool
		lineNo  int
	)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))

		switch {
		case line == "{":
			if inBlock {
				return nil, &ParseError{Line: lineNo, Msg: "nested block"}
			}
			if key == "" {
				return nil, &ParseError{Line: lineNo, Msg: "block has no key"}
			}

			inBlock = true
			value = value[:0]

		case line == "}":
			if !inBlock {
				return nil, &ParseError{Line: lineNo, Msg: "unexpected closing brace"}
			}

			blocks[key] = strings.TrimSpace(strings.Join(value, "\n"))
			key = ""
			inBlock = false

		case inBlock:
			if line != "" {
				value = append(value, line)
			}

		case line == "":
			// Blank lines between blocks.

		default:
			if key != "" {
				return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("key %q has no block", key)}
			}

			key = line
		}
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if inBlock {
		return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("block %q is not closed", key)}
	}
	if key != "" {
		return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("key %q has no block", key)}
	}

	return blocks, nil
}
