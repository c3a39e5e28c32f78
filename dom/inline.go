package dom

import (
	"bytes"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// parseInlineStyle parses a style attribute into a declaration map. Custom
// properties keep their case; everything else lower-cases. A trailing
// !important is stripped from values, attribute styles outrank the sheets
// here either way.
func parseInlineStyle(style string) map[string]string {
	if strings.TrimSpace(style) == "" {
		return nil
	}

	decls := map[string]string{}
	input := parse.NewInput(bytes.NewReader([]byte(style)))
	parser := css.NewParser(input, true)

	for {
		gt, _, data := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			if len(decls) == 0 {
				return nil
			}
			return decls

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			name := string(data)
			if !strings.HasPrefix(name, "--") {
				name = strings.ToLower(name)
			}
			values, _ := splitImportant(parser.Values())
			decls[name] = tokensText(values)
		}
	}
}

// tokensText reassembles value tokens, collapsing whitespace runs to single
// spaces.
func tokensText(tokens []css.Token) string {
	var parts []string
	for _, t := range tokens {
		if t.TokenType != css.WhitespaceToken {
			parts = append(parts, string(t.Data))
		} else if len(parts) > 0 {
			parts = append(parts, " ")
		}
	}
	return strings.TrimSpace(strings.Join(parts, ""))
}

// splitImportant removes a trailing !important from a token run, reporting
// whether it was present.
func splitImportant(tokens []css.Token) ([]css.Token, bool) {
	i := len(tokens)
	for i > 0 && tokens[i-1].TokenType == css.WhitespaceToken {
		i--
	}
	if i == 0 || tokens[i-1].TokenType != css.IdentToken ||
		!strings.EqualFold(string(tokens[i-1].Data), "important") {
		return tokens, false
	}
	j := i - 1
	for j > 0 && tokens[j-1].TokenType == css.WhitespaceToken {
		j--
	}
	if j == 0 || tokens[j-1].TokenType != css.DelimToken || string(tokens[j-1].Data) != "!" {
		return tokens, false
	}
	return tokens[:j-1], true
}
