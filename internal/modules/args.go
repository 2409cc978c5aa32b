package modules

import (
	"strconv"
	"strings"

	cerr "github.com/cockroachdb/errors"
)

// rawParams are the options modules with a free-form command accept. Any
// other key=value token is part of the command.
var rawParams = map[string]bool{
	"chdir":             true,
	"creates":           true,
	"removes":           true,
	"executable":        true,
	"stdin":             true,
	"stdin_add_newline": true,
	"strip_empty_ends":  true,
}

// Args are parsed module arguments.
type Args struct {
	// Free is the free-form part, with "\=" unescaped.
	Free string
	KV   map[string]string
}

// ParseArgs splits a module argument string into key=value options and
// free-form text. Tokens are separated by unquoted whitespace; a token is
// an option when it has an unescaped "=" after a plain identifier. With raw
// set, only the options of free-form command modules are recognized.
func ParseArgs(s string, raw bool) (*Args, error) {
	tokens, err := tokenize(s)
	if err != nil {
		return nil, err
	}

	args := &Args{KV: map[string]string{}}
	var free []string
	for _, tok := range tokens {
		key, value, ok := splitOption(tok)
		if ok && (!raw || rawParams[key]) {
			args.KV[key] = unquote(value)
			continue
		}
		free = append(free, tok)
	}
	args.Free = strings.ReplaceAll(strings.Join(free, " "), `\=`, "=")
	return args, nil
}

func tokenize(s string) ([]string, error) {
	var (
		tokens []string
		cur    strings.Builder
		quote  rune
		escape bool
		inTok  bool
	)
	for _, r := range s {
		switch {
		case escape:
			cur.WriteRune(r)
			escape = false
		case r == '\\':
			cur.WriteRune(r)
			escape = true
			inTok = true
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			cur.WriteRune(r)
			quote = r
			inTok = true
		case r == ' ' || r == '\t' || r == '\n':
			if inTok {
				tokens = append(tokens, cur.String())
				cur.Reset()
				inTok = false
			}
		default:
			cur.WriteRune(r)
			inTok = true
		}
	}
	if quote != 0 {
		return nil, cerr.Newf("unbalanced %c quote in %q", quote, s)
	}
	if inTok {
		tokens = append(tokens, cur.String())
	}
	return tokens, nil
}

func splitOption(tok string) (key, value string, ok bool) {
	i := strings.IndexByte(tok, '=')
	if i <= 0 || tok[i-1] == '\\' {
		return "", "", false
	}
	key = tok[:i]
	for j, r := range key {
		letter := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !letter && (j == 0 || r < '0' || r > '9') {
			return "", "", false
		}
	}
	return key, tok[i+1:], true
}

func unquote(v string) string {
	if len(v) < 2 {
		return v
	}
	q := v[0]
	if (q != '"' && q != '\'') || v[len(v)-1] != q {
		return v
	}
	inner := v[1 : len(v)-1]
	if q == '"' {
		inner = strings.ReplaceAll(inner, `\"`, `"`)
	}
	return inner
}

// Has reports whether key was given.
func (a *Args) Has(key string) bool {
	_, ok := a.KV[key]
	return ok
}

// String returns the value of key or def.
func (a *Args) String(key, def string) string {
	if v, ok := a.KV[key]; ok {
		return v
	}
	return def
}

// Bool returns key as a boolean, accepting the spellings modules accept.
func (a *Args) Bool(key string) (bool, error) {
	v, ok := a.KV[key]
	if !ok {
		return false, nil
	}
	switch strings.ToLower(v) {
	case "yes", "true", "on", "1", "y":
		return true, nil
	case "no", "false", "off", "0", "n", "":
		return false, nil
	}
	return false, cerr.Newf("%s: %q is not a boolean", key, v)
}

// Mode returns key as an octal file mode string, or "" when unset.
func (a *Args) Mode(key string) (string, error) {
	v, ok := a.KV[key]
	if !ok || v == "" {
		return "", nil
	}
	if _, err := strconv.ParseUint(v, 8, 32); err != nil {
		return "", cerr.Newf("%s: %q is not an octal mode", key, v)
	}
	return v, nil
}
