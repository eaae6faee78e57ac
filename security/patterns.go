package security

import (
	"regexp"
	"strings"
)

// PatternGroup identifies a family of injection signatures. Groups are
// evaluated in a fixed order with early exit on first match, and the
// matching group is reported in violation details so operators can see
// which family fired.
type PatternGroup string

const (
	// PatternGroupXSS covers markup/script injection: script tags, inline
	// event-handler attributes, and the javascript: scheme
	PatternGroupXSS PatternGroup = "xss"

	// PatternGroupSQLInjection covers tautologies, UNION SELECT, comment
	// terminators, and stacked statements
	PatternGroupSQLInjection PatternGroup = "sql_injection"

	// PatternGroupCommandInjection covers shell metacharacters adjacent to
	// known command tokens and command substitution
	PatternGroupCommandInjection PatternGroup = "command_injection"

	// PatternGroupPathTraversal covers ../ and ..\ sequences, including
	// their percent-encoded forms
	PatternGroupPathTraversal PatternGroup = "path_traversal"
)

// PatternGroupDef is the source form of a pattern group: a tag plus the
// signature expressions belonging to it. Keeping the table data-driven
// means new signatures are added here, not in control flow.
type PatternGroupDef struct {
	Group      PatternGroup
	Signatures []string
}

// defaultPatternDefs are the built-in signature tables. All expressions
// are case-insensitive. These are best-effort heuristics for
// defense-in-depth, not a parser; parameterized persistence and output
// encoding downstream remain required.
var defaultPatternDefs = []PatternGroupDef{
	{
		Group: PatternGroupXSS,
		Signatures: []string{
			`<\s*script\b`,
			`<\s*/\s*script`,
			`<\s*(?:iframe|object|embed|svg|applet)\b`,
			`\bon(?:error|load|click|focus|blur|mouseover|mouseout|submit|input|change)\s*=`,
			`javascript\s*:`,
			`vbscript\s*:`,
			`<\s*img\b[^>]*\bsrc\s*=`,
			`expression\s*\(`,
		},
	},
	{
		Group: PatternGroupSQLInjection,
		Signatures: []string{
			`\bunion\b.{0,40}\bselect\b`,
			`\b(?:or|and)\b\s+(?:'[^']*'|\d+)\s*=\s*(?:'[^']*'|\d+)`,
			`'\s*(?:or|and)\b`,
			`;\s*(?:drop|delete|insert|update|truncate|alter|exec|create)\b`,
			`(?:--|/\*|\*/|@@)`,
			`\b(?:sleep|benchmark|waitfor)\s*\(`,
			`\bselect\b.{0,40}\bfrom\b.{0,40}\b(?:information_schema|sysobjects|pg_catalog)\b`,
		},
	},
	{
		Group: PatternGroupCommandInjection,
		Signatures: []string{
			"[;&|`$]\\s*(?:cat|ls|rm|mv|cp|wget|curl|bash|sh|zsh|nc|netcat|ping|whoami|id|uname|chmod|chown|kill|touch|python|perl)\\b",
			`\$\([^)]*\)`,
			"`[^`]+`",
			`\|\s*(?:sh|bash|zsh)\b`,
			`\bnc\s+-[el]\b`,
		},
	},
	{
		Group: PatternGroupPathTraversal,
		Signatures: []string{
			`\.\./`,
			`\.\.\\`,
			`%2e%2e(?:%2f|%5c|/|\\)`,
			`\.\.%(?:2f|5c)`,
			`(?:^|[\\/])etc[\\/]passwd`,
			`(?:^|[\\/])windows[\\/]system32\b`,
		},
	},
}

// defaultUserAgentSignatures flag automation and tooling clients.
// Matched case-insensitively as substrings of the User-Agent header.
// A match is a suspicion signal, never an immediate block; scripted
// clients are common and only repeated anomalies escalate.
var defaultUserAgentSignatures = []string{
	"curl",
	"wget",
	"python-requests",
	"python-urllib",
	"go-http-client",
	"libwww",
	"java/",
	"httpclient",
	"okhttp",
	"scrapy",
	"bot",
	"crawler",
	"spider",
	"postman",
	"insomnia",
	"httpie",
	"nikto",
	"sqlmap",
	"nmap",
	"masscan",
	"zgrab",
}

// compiledGroup is a pattern group with its signatures compiled.
type compiledGroup struct {
	group    PatternGroup
	matchers []*regexp.Regexp
}

// PatternSet holds the compiled injection signature tables and the
// user-agent signature list. A single PatternSet is shared by the payload
// validator (applied to form data) and the reputation engine (applied to
// the request URL and User-Agent). Immutable after construction, so it is
// safe for concurrent use.
type PatternSet struct {
	groups    []compiledGroup
	agentSigs []string
}

// DefaultPatternSet compiles the built-in signature tables.
func DefaultPatternSet() *PatternSet {
	ps, err := NewPatternSet(defaultPatternDefs, defaultUserAgentSignatures)
	if err != nil {
		// The built-in tables are compiled at startup and covered by
		// tests; a failure here is a programming error.
		panic("security: invalid built-in pattern table: " + err.Error())
	}
	return ps
}

// NewPatternSet compiles a custom signature table. Expressions are
// wrapped with (?i) so all matching is case-insensitive.
func NewPatternSet(defs []PatternGroupDef, agentSigs []string) (*PatternSet, error) {
	groups := make([]compiledGroup, 0, len(defs))
	for _, def := range defs {
		cg := compiledGroup{group: def.Group, matchers: make([]*regexp.Regexp, 0, len(def.Signatures))}
		for _, sig := range def.Signatures {
			re, err := regexp.Compile(`(?i)` + sig)
			if err != nil {
				return nil, err
			}
			cg.matchers = append(cg.matchers, re)
		}
		groups = append(groups, cg)
	}

	lowered := make([]string, 0, len(agentSigs))
	for _, sig := range agentSigs {
		lowered = append(lowered, strings.ToLower(sig))
	}

	return &PatternSet{groups: groups, agentSigs: lowered}, nil
}

// Scan tests s against every pattern group in fixed order and returns the
// first matching group. The second return is false when s is clean.
func (ps *PatternSet) Scan(s string) (PatternGroup, bool) {
	for _, cg := range ps.groups {
		for _, re := range cg.matchers {
			if re.MatchString(s) {
				return cg.group, true
			}
		}
	}
	return "", false
}

// MatchesUserAgent reports whether the User-Agent value matches a known
// automation/tooling signature.
func (ps *PatternSet) MatchesUserAgent(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	ua := strings.ToLower(userAgent)
	for _, sig := range ps.agentSigs {
		if strings.Contains(ua, sig) {
			return true
		}
	}
	return false
}
