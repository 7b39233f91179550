package config

import (
	"fmt"
	"strconv"
	"strings"
)

// parser walks the token stream produced by lexer, one stanza at a time.
// Every method returns an error directly rather than panicking on a
// grammar violation, matching this repository's error-return convention
// throughout.
type parser struct {
	toks []token
	pos  int
}

// Parse parses a full configuration file's text.
func Parse(text string) (*Config, error) {
	toks, err := newLexer(text).tokens()
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks}
	cfg := &Config{}

	for p.cur().kind != tokEOF {
		word, err := p.word()
		if err != nil {
			return nil, err
		}

		switch word {
		case "username":
			name, err := p.word()
			if err != nil {
				return nil, err
			}
			cfg.Username = name
			if err := p.semicolon(); err != nil {
				return nil, err
			}
		case "listener":
			lc, err := p.parseListener()
			if err != nil {
				return nil, err
			}
			cfg.Listeners = append(cfg.Listeners, lc)
		case "table":
			tc, err := p.parseTable()
			if err != nil {
				return nil, err
			}
			cfg.Tables = append(cfg.Tables, tc)
		default:
			return nil, fmt.Errorf("config: unexpected top-level stanza %q at line %d", word, p.toks[p.pos-1].line)
		}
	}

	return cfg, nil
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) advance() {
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
}

func (p *parser) word() (string, error) {
	t := p.cur()
	if t.kind != tokWord {
		return "", fmt.Errorf("config: expected a word at line %d", t.line)
	}
	p.advance()
	return t.text, nil
}

func (p *parser) semicolon() error {
	t := p.cur()
	if t.kind != tokSemicolon {
		return fmt.Errorf("config: expected ';' at line %d", t.line)
	}
	p.advance()
	return nil
}

func (p *parser) lbrace() error {
	t := p.cur()
	if t.kind != tokLBrace {
		return fmt.Errorf("config: expected '{' at line %d", t.line)
	}
	p.advance()
	return nil
}

func (p *parser) tryRBrace() bool {
	if p.cur().kind == tokRBrace {
		p.advance()
		return true
	}
	return false
}

// wordRun collects a run of consecutive word tokens, stopping at the
// first '{', ';', or EOF -- used both for the listener stanza's leading
// arguments (<addr> [<port>]) and for a table entry's fields.
func (p *parser) wordRun() []string {
	var words []string
	for p.cur().kind == tokWord {
		t := p.cur()
		p.advance()
		words = append(words, t.text)
	}
	return words
}

func (p *parser) parseListener() (ListenerConfig, error) {
	lc := ListenerConfig{Protocol: ProtocolTLS}

	args := p.wordRun()
	switch len(args) {
	case 1:
		lc.Address = args[0]
	case 2:
		lc.Address = args[0]
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return lc, fmt.Errorf("config: invalid listener port %q", args[1])
		}
		lc.Port = port
	default:
		return lc, fmt.Errorf("config: listener expects <addr> [<port>], got %v", args)
	}

	if err := p.lbrace(); err != nil {
		return lc, err
	}
	for !p.tryRBrace() {
		key, err := p.word()
		if err != nil {
			return lc, err
		}
		switch key {
		case "protocol":
			val, err := p.word()
			if err != nil {
				return lc, err
			}
			if strings.EqualFold(val, "http") {
				lc.Protocol = ProtocolHTTP
			} else {
				lc.Protocol = ProtocolTLS
			}
		case "table":
			val, err := p.word()
			if err != nil {
				return lc, err
			}
			lc.Table = val
		case "fallback":
			addr, err := p.word()
			if err != nil {
				return lc, err
			}
			lc.FallbackAddress = addr
			if p.cur().kind == tokWord {
				portWord, err := p.word()
				if err != nil {
					return lc, err
				}
				port, err := strconv.Atoi(portWord)
				if err != nil {
					return lc, fmt.Errorf("config: invalid fallback port %q", portWord)
				}
				lc.FallbackPort = port
			}
		default:
			return lc, fmt.Errorf("config: unknown listener directive %q at line %d", key, p.toks[p.pos-1].line)
		}
		if err := p.semicolon(); err != nil {
			return lc, err
		}
	}
	return lc, nil
}

func (p *parser) parseTable() (TableConfig, error) {
	var tc TableConfig

	// An optional name precedes the opening brace.
	if p.cur().kind == tokWord {
		name, err := p.word()
		if err != nil {
			return tc, err
		}
		tc.Name = name
	}

	if err := p.lbrace(); err != nil {
		return tc, err
	}
	for !p.tryRBrace() {
		args := p.wordRun() // reused: collects words up to ';'
		if err := p.semicolon(); err != nil {
			return tc, err
		}

		bc := BackendConfig{}
		switch len(args) {
		case 2:
			bc.Hostname, bc.Address = args[0], args[1]
		case 3:
			bc.Hostname, bc.Address = args[0], args[1]
			port, err := strconv.Atoi(args[2])
			if err != nil {
				return tc, fmt.Errorf("config: invalid backend port %q", args[2])
			}
			bc.Port = port
		default:
			return tc, fmt.Errorf("config: table entry expects <hostname> <address> [<port>], got %v", args)
		}
		tc.Backends = append(tc.Backends, bc)
	}
	return tc, nil
}
