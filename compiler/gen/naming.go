package gen

import (
	"go/token"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	rules    = ruleset()
	acronyms = make(map[string]struct{})
	// validName matches names that are usable as SQL identifiers and Go
	// identifier stems without quoting.
	validName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

func ruleset() *inflect.Ruleset {
	rules := inflect.NewDefaultRuleset()
	// Common initialisms from golint and more.
	for _, w := range []string{
		"ACL", "API", "ASCII", "AWS", "CPU", "CSS", "DNS", "EOF", "GB", "GUID",
		"HCL", "HTML", "HTTP", "HTTPS", "ID", "IP", "JSON", "KB", "LHS", "MAC",
		"MB", "QPS", "RAM", "RHS", "RPC", "SLA", "SMTP", "SQL", "SSH", "SSO",
		"TCP", "TLS", "TTL", "UDP", "UI", "UID", "URI", "URL", "UTF8", "UUID",
		"VM", "XML", "XMPP", "XSRF", "XSS",
	} {
		acronyms[w] = struct{}{}
		rules.AddAcronym(w)
	}
	return rules
}

// AddAcronym registers a word that is rendered fully upper-cased in
// generated identifiers.
func AddAcronym(word string) {
	word = strings.ToUpper(word)
	acronyms[word] = struct{}{}
	rules.AddAcronym(word)
}

// isSeparator reports whether r separates words in a name.
func isSeparator(r rune) bool {
	return r == '_' || r == '-' || unicode.IsSpace(r)
}

// snake converts the given name to snake case.
//
//	Username => username
//	FullName => full_name
//	HTTPCode => http_code
//	authorId => author_id
func snake(s string) string {
	var (
		j int
		b strings.Builder
	)
	for i := 0; i < len(s); i++ {
		r := rune(s[i])
		if isSeparator(r) {
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
			j = i
			continue
		}
		// Put '_' if it is not a start or end of a word, current letter is
		// uppercase, and previous is lowercase (cases like: "UserInfo"), or
		// next letter is also a lowercase and previous letter is not "_".
		if i > 0 && i < len(s)-1 && unicode.IsUpper(r) {
			if unicode.IsLower(rune(s[i-1])) ||
				j != i-1 && unicode.IsLower(rune(s[i+1])) && unicode.IsLetter(rune(s[i-1])) {
				j = i
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// words splits the name into its lower-cased words.
func words(s string) []string {
	return strings.FieldsFunc(snake(s), isSeparator)
}

func pascalWords(ws []string) string {
	var b strings.Builder
	for _, w := range ws {
		upper := strings.ToUpper(w)
		if _, ok := acronyms[upper]; ok {
			b.WriteString(upper)
		} else {
			b.WriteString(cases.Title(language.Und, cases.NoLower).String(w))
		}
	}
	return b.String()
}

// pascal converts the given name to pascal case.
//
//	user_info => UserInfo
//	full_name => FullName
//	user_id   => UserID
//	authorId  => AuthorID
func pascal(s string) string {
	return pascalWords(words(s))
}

// camel converts the given name to camel case.
//
//	user_info => userInfo
//	user_id   => userID
//	http_code => httpCode
func camel(s string) string {
	ws := words(s)
	if len(ws) == 0 {
		return ""
	}
	return ws[0] + pascalWords(ws[1:])
}

// receiver returns the receiver name of the given type.
//
//	[]T       => t
//	[1]T      => t
//	User      => u
//	UserQuery => uq
func receiver(s string) string {
	s = strings.TrimLeft(s, "[]*&0123456789")
	var b strings.Builder
	for _, w := range words(s) {
		b.WriteByte(w[0])
	}
	name := b.String()
	if name == "" {
		name = "x"
	}
	if token.Lookup(name).IsKeyword() {
		name = "_" + name
	}
	return name
}

// plural returns the plural form of the given name. Names without a
// distinct plural form get a "Slice" suffix.
func plural(name string) string {
	p := rules.Pluralize(name)
	if p == name {
		p += "Slice"
	}
	return p
}

// singular returns the singular form of the given name.
func singular(name string) string {
	return rules.Singularize(name)
}

// tableName returns the default table name of an entity.
func tableName(entity string) string {
	return snake(rules.Pluralize(entity))
}

// refStem derives a relation name from a foreign-key field name by dropping
// its key suffix, e.g. "authorId" and "author_id" both give "author".
func refStem(field string) string {
	ws := words(field)
	if n := len(ws); n > 1 && (ws[n-1] == "id" || ws[n-1] == "key") {
		ws = ws[:n-1]
	}
	return camel(strings.Join(ws, "_"))
}

// goIdent reports whether s can be used as a Go identifier.
func goIdent(s string) bool {
	return token.IsIdentifier(s) && !token.IsKeyword(s)
}
