package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Style selects the whitespace layout of emitted records.
type Style int

const (
	// StylePython separates members with ", " and keys with ": ".
	StylePython Style = iota
	// StyleCompact emits no insignificant whitespace at all.
	StyleCompact
)

// ParseStyle maps a configuration name onto a Style.
func ParseStyle(name string) (Style, error) {
	switch name {
	case "python", "":
		return StylePython, nil
	case "compact":
		return StyleCompact, nil
	default:
		return 0, fmt.Errorf("unknown record style %q", name)
	}
}

// Parser pulls the elements of a single top-level JSON array out of a stream
// one at a time and re-encodes each of them as one line of JSON text.
//
// Only the element currently being encoded is held in memory. Object member
// order is kept exactly as read. The sequence cannot be restarted.
type Parser struct {
	dec   *json.Decoder
	style Style
	buf   bytes.Buffer

	started bool
	done    bool
	index   int
}

// New builds a Parser reading from r.
func New(r io.Reader, style Style) *Parser {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &Parser{dec: dec, style: style}
}

// Next returns the next array element encoded as a single line, without the
// trailing newline. The returned slice is only valid until the following call.
// io.EOF is returned once the closing bracket has been read and nothing but
// whitespace follows it.
func (p *Parser) Next() ([]byte, error) {
	if p.done {
		return nil, io.EOF
	}

	if !p.started {
		tok, err := p.dec.Token()
		if err != nil {
			if err == io.EOF {
				return nil, p.fail(&SyntaxError{Index: -1, Reason: "empty document"})
			}
			return nil, p.fail(p.wrap(err))
		}
		if d, ok := tok.(json.Delim); !ok || d != '[' {
			return nil, p.fail(&SyntaxError{Index: -1, Reason: fmt.Sprintf("document is not a JSON array (starts with %v)", tok)})
		}
		p.started = true
	}

	if !p.dec.More() {
		if _, err := p.dec.Token(); err != nil {
			return nil, p.fail(p.wrap(err))
		}
		if _, err := p.dec.Token(); err != io.EOF {
			if err != nil {
				return nil, p.fail(p.wrap(err))
			}
			return nil, p.fail(&SyntaxError{Index: p.index, Reason: "unexpected data after closing bracket"})
		}
		p.done = true
		return nil, io.EOF
	}

	tok, err := p.dec.Token()
	if err != nil {
		return nil, p.fail(p.wrap(err))
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, p.fail(&SyntaxError{Index: p.index, Reason: fmt.Sprintf("element is not a JSON object (got %v)", tok)})
	}

	p.buf.Reset()
	if err := p.writeObject(); err != nil {
		return nil, p.fail(err)
	}
	p.index++
	return p.buf.Bytes(), nil
}

// Count is the number of elements returned so far.
func (p *Parser) Count() int { return p.index }

func (p *Parser) fail(err error) error {
	p.done = true
	return err
}

// wrap classifies decoder errors: malformed input becomes a *SyntaxError,
// anything else (transport, timeout) is passed through with context.
func (p *Parser) wrap(err error) error {
	var se *json.SyntaxError
	if errors.As(err, &se) || errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
		return &SyntaxError{Index: p.index, Offset: p.dec.InputOffset(), Reason: "malformed JSON", Err: err}
	}
	return fmt.Errorf("read element %d: %w", p.index, err)
}

// writeObject encodes the members of an object whose opening brace has
// already been consumed, including the closing brace.
func (p *Parser) writeObject() error {
	p.buf.WriteByte('{')
	for first := true; p.dec.More(); first = false {
		tok, err := p.dec.Token()
		if err != nil {
			return p.wrap(err)
		}
		key, ok := tok.(string)
		if !ok {
			return &SyntaxError{Index: p.index, Offset: p.dec.InputOffset(), Reason: fmt.Sprintf("object key is not a string (got %v)", tok)}
		}
		if !first {
			p.writeComma()
		}
		writeString(&p.buf, key)
		if p.style == StyleCompact {
			p.buf.WriteByte(':')
		} else {
			p.buf.WriteString(": ")
		}
		if err := p.writeNext(); err != nil {
			return err
		}
	}
	return p.closeWith('}')
}

func (p *Parser) writeArray() error {
	p.buf.WriteByte('[')
	for first := true; p.dec.More(); first = false {
		if !first {
			p.writeComma()
		}
		if err := p.writeNext(); err != nil {
			return err
		}
	}
	return p.closeWith(']')
}

func (p *Parser) writeComma() {
	if p.style == StyleCompact {
		p.buf.WriteByte(',')
	} else {
		p.buf.WriteString(", ")
	}
}

func (p *Parser) closeWith(want json.Delim) error {
	tok, err := p.dec.Token()
	if err != nil {
		return p.wrap(err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return &SyntaxError{Index: p.index, Offset: p.dec.InputOffset(), Reason: fmt.Sprintf("expected %v, got %v", want, tok)}
	}
	p.buf.WriteByte(byte(want))
	return nil
}

// writeNext reads one complete value from the decoder and encodes it.
func (p *Parser) writeNext() error {
	tok, err := p.dec.Token()
	if err != nil {
		return p.wrap(err)
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return p.writeObject()
		case '[':
			return p.writeArray()
		default:
			return &SyntaxError{Index: p.index, Offset: p.dec.InputOffset(), Reason: fmt.Sprintf("unexpected %v", v)}
		}
	case string:
		writeString(&p.buf, v)
	case json.Number:
		s, err := formatNumber(v)
		if err != nil {
			return &SerializationError{Index: p.index, Value: string(v), Err: err}
		}
		p.buf.WriteString(s)
	case bool:
		if v {
			p.buf.WriteString("true")
		} else {
			p.buf.WriteString("false")
		}
	case nil:
		p.buf.WriteString("null")
	default:
		return &SerializationError{Index: p.index, Value: fmt.Sprint(v), Err: fmt.Errorf("unsupported token type %T", v)}
	}
	return nil
}
