package adapter

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// ErrNoHostTriple is returned when `rustc -vV` prints no host line.
var ErrNoHostTriple = errors.New("rustc reported no host triple")

// Platform is a compilation target and the cfg values rustc sets for it.
type Platform struct {
	Triple string
	cfgs   map[string]struct{}
}

// NewPlatform builds a Platform from cfg lines as printed by `rustc --print cfg`,
// such as `unix` or `target_os="linux"`.
func NewPlatform(triple string, cfgs []string) Platform {
	set := make(map[string]struct{}, len(cfgs))
	for _, c := range cfgs {
		set[normalizeCfg(c)] = struct{}{}
	}

	return Platform{Triple: triple, cfgs: set}
}

// Matches reports whether a dependency target, either a bare triple or a
// `cfg(...)` expression, applies to the platform. An empty target always applies.
func (p Platform) Matches(target string) (bool, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return true, nil
	}

	inner, ok := strings.CutPrefix(target, "cfg(")
	if !ok {
		return target == p.Triple, nil
	}

	inner, ok = strings.CutSuffix(inner, ")")
	if !ok {
		return false, fmt.Errorf("unterminated cfg expression %q", target)
	}

	parser := &cfgParser{src: inner, cfgs: p.cfgs}

	matched, err := parser.expr()
	if err != nil {
		return false, fmt.Errorf("parse %q: %w", target, err)
	}

	parser.skipSpace()

	if parser.pos != len(parser.src) {
		return false, fmt.Errorf("parse %q: trailing input at offset %d", target, parser.pos)
	}

	return matched, nil
}

func normalizeCfg(c string) string {
	key, value, found := strings.Cut(strings.TrimSpace(c), "=")
	if !found {
		return key
	}

	return strings.TrimSpace(key) + "=" + strings.TrimSpace(value)
}

// cfgParser evaluates the cfg predicate grammar: `name`, `key = "value"`,
// `all(...)`, `any(...)` and `not(...)`.
type cfgParser struct {
	src  string
	pos  int
	cfgs map[string]struct{}
}

func (p *cfgParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *cfgParser) peek() byte {
	p.skipSpace()

	if p.pos >= len(p.src) {
		return 0
	}

	return p.src[p.pos]
}

func (p *cfgParser) ident() string {
	p.skipSpace()

	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c != '_' && (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			break
		}
		p.pos++
	}

	return p.src[start:p.pos]
}

func (p *cfgParser) str() (string, error) {
	if p.peek() != '"' {
		return "", fmt.Errorf("expected string at offset %d", p.pos)
	}

	end := strings.IndexByte(p.src[p.pos+1:], '"')
	if end < 0 {
		return "", fmt.Errorf("unterminated string at offset %d", p.pos)
	}

	value := p.src[p.pos+1 : p.pos+1+end]
	p.pos += end + 2

	return value, nil
}

func (p *cfgParser) expr() (bool, error) {
	name := p.ident()
	if name == "" {
		return false, fmt.Errorf("expected identifier at offset %d", p.pos)
	}

	switch p.peek() {
	case '(':
		p.pos++
		return p.predicate(name)
	case '=':
		p.pos++

		value, err := p.str()
		if err != nil {
			return false, err
		}

		_, ok := p.cfgs[name+"=\""+value+"\""]

		return ok, nil
	default:
		_, ok := p.cfgs[name]
		return ok, nil
	}
}

func (p *cfgParser) predicate(name string) (bool, error) {
	var values []bool

	for p.peek() != ')' {
		v, err := p.expr()
		if err != nil {
			return false, err
		}

		values = append(values, v)

		switch p.peek() {
		case ',':
			p.pos++
		case ')':
		default:
			return false, fmt.Errorf("expected ',' or ')' at offset %d", p.pos)
		}
	}

	p.pos++

	switch name {
	case "all":
		for _, v := range values {
			if !v {
				return false, nil
			}
		}

		return true, nil
	case "any":
		for _, v := range values {
			if v {
				return true, nil
			}
		}

		return false, nil
	case "not":
		if len(values) != 1 {
			return false, fmt.Errorf("not() takes one predicate, got %d", len(values))
		}

		return !values[0], nil
	default:
		return false, fmt.Errorf("unknown cfg predicate %q", name)
	}
}

// ParseHostTriple reads the `host:` line of `rustc -vV` output.
func ParseHostTriple(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if host, ok := strings.CutPrefix(scanner.Text(), "host:"); ok {
			return strings.TrimSpace(host), nil
		}
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read rustc version: %w", err)
	}

	return "", ErrNoHostTriple
}

// ParseCfgs reads `rustc --print cfg` output, one cfg per line.
func ParseCfgs(r io.Reader) ([]string, error) {
	var cfgs []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			cfgs = append(cfgs, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read rustc cfg: %w", err)
	}

	return cfgs, nil
}

// hostTriple asks rustc for the triple it compiles for by default.
func (a *LocalMetadataAdapter) hostTriple(ctx context.Context) (string, error) {
	out, err := a.rustcOutput(ctx, "-vV")
	if err != nil {
		return "", err
	}

	return ParseHostTriple(bytes.NewReader(out))
}

// platform resolves the cfg set of triple, or of the host when triple is empty.
func (a *LocalMetadataAdapter) platform(ctx context.Context, triple string) (Platform, error) {
	if triple == "" {
		host, err := a.hostTriple(ctx)
		if err != nil {
			return Platform{}, err
		}

		triple = host
	}

	out, err := a.rustcOutput(ctx, "--print", "cfg", "--target", triple)
	if err != nil {
		return Platform{}, err
	}

	cfgs, err := ParseCfgs(bytes.NewReader(out))
	if err != nil {
		return Platform{}, err
	}

	return NewPlatform(triple, cfgs), nil
}

func (a *LocalMetadataAdapter) rustcOutput(ctx context.Context, args ...string) ([]byte, error) {
	// #nosec G204 - the binary comes from RUSTC or PATH
	out, err := exec.CommandContext(ctx, a.rustc, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("rustc %s: %w", strings.Join(args, " "), err)
	}

	return out, nil
}
