package roster

import (
	"sort"
	"strings"

	"github.com/JonMunkholm/swimresults/internal/normalize"
)

// ClubMatch is the outcome of a club lookup. StateCode comes from the club
// record, or from the raw text when the record has none.
type ClubMatch struct {
	Club      *Club
	StateCode string
	Via       string // "code", "exact", "suffix" or "contains"
	Cleaned   string
}

// Found reports whether a club was resolved.
func (m ClubMatch) Found() bool { return m.Club != nil }

type stateTerm struct {
	words []string
	code  string
}

type clubKey struct {
	key  string
	club *Club
}

// ClubIndex resolves free-text club names, which often carry a trailing
// state abbreviation or full state name.
type ClubIndex struct {
	rules    Rules
	clubs    []Club
	states   []stateTerm
	suffixes map[string]struct{}
	byCode   map[string][]*Club
	byKey    map[string][]*Club
	byBare   map[string][]*Club
	keys     []clubKey
}

// NewClubIndex builds an index over a copy of clubs.
func NewClubIndex(clubs []Club, rules Rules) *ClubIndex {
	ix := &ClubIndex{
		rules:    rules,
		clubs:    make([]Club, len(clubs)),
		suffixes: make(map[string]struct{}, len(rules.ClubSuffixes)),
		byCode:   make(map[string][]*Club),
		byKey:    make(map[string][]*Club),
		byBare:   make(map[string][]*Club),
	}
	copy(ix.clubs, clubs)

	for _, s := range rules.ClubSuffixes {
		ix.suffixes[normalize.MatchKey(s)] = struct{}{}
	}
	ix.states = buildStateTerms(rules)

	for i := range ix.clubs {
		c := &ix.clubs[i]
		if code := normalize.MatchKey(c.Code); code != "" {
			ix.byCode[code] = append(ix.byCode[code], c)
		}
		key, _ := ix.StripState(c.Name)
		if key == "" {
			continue
		}
		ix.byKey[key] = append(ix.byKey[key], c)
		if bare := ix.stripSuffixes(key); bare != "" {
			ix.byBare[bare] = append(ix.byBare[bare], c)
		}
		ix.keys = append(ix.keys, clubKey{key: key, club: c})
	}
	sort.SliceStable(ix.keys, func(i, j int) bool { return ix.keys[i].key < ix.keys[j].key })
	return ix
}

func buildStateTerms(rules Rules) []stateTerm {
	var terms []stateTerm
	add := func(phrase, code string) {
		words := strings.Fields(normalize.MatchKey(phrase))
		code = strings.ToUpper(strings.TrimSpace(code))
		if len(words) == 0 || code == "" {
			return
		}
		terms = append(terms, stateTerm{words: words, code: code})
	}
	for abbr, code := range rules.StateCodes {
		add(abbr, code)
	}
	for name, code := range rules.StateNames {
		add(name, code)
	}
	// Longest match first; ties broken alphabetically for stable output.
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i].words) != len(terms[j].words) {
			return len(terms[i].words) > len(terms[j].words)
		}
		a, b := strings.Join(terms[i].words, " "), strings.Join(terms[j].words, " ")
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})
	return terms
}

// StripState removes one trailing state token from raw and returns the
// cleaned match key with the state code it stood for. A state is never
// stripped when nothing would remain.
func (ix *ClubIndex) StripState(raw string) (cleaned, state string) {
	words := strings.Fields(normalize.MatchKey(raw))
	for _, t := range ix.states {
		n := len(t.words)
		if len(words) <= n || !hasWordSuffix(words, t.words) {
			continue
		}
		return strings.Join(words[:len(words)-n], " "), t.code
	}
	return strings.Join(words, " "), ""
}

func hasWordSuffix(words, suffix []string) bool {
	off := len(words) - len(suffix)
	for i, w := range suffix {
		if words[off+i] != w {
			return false
		}
	}
	return true
}

// stripSuffixes drops organisational words ("CLUB", "SWIMMING", ...) from a
// cleaned key. It returns "" when only such words remain.
func (ix *ClubIndex) stripSuffixes(key string) string {
	words := strings.Fields(key)
	kept := words[:0:0]
	for _, w := range words {
		if _, drop := ix.suffixes[w]; !drop {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// ResolveCode looks a club up by its short code.
func (ix *ClubIndex) ResolveCode(code string) ClubMatch {
	key := normalize.MatchKey(code)
	if key == "" {
		return ClubMatch{}
	}
	if c, ok := ix.pick(ix.byCode[key], ""); ok {
		return ClubMatch{Club: c, StateCode: c.StateCode, Via: "code", Cleaned: key}
	}
	return ClubMatch{Cleaned: key}
}

// Resolve finds the club named by raw. Lookups run in order: exact key,
// club code, key without organisational suffixes, then substring
// containment in either direction (longest unique match, with a minimum
// length guard). Ambiguous candidates are narrowed by the stripped state.
func (ix *ClubIndex) Resolve(raw string) ClubMatch {
	cleaned, state := ix.StripState(raw)
	miss := ClubMatch{StateCode: state, Cleaned: cleaned}
	if cleaned == "" {
		return miss
	}

	found := func(c *Club, via string) ClubMatch {
		m := ClubMatch{Club: c, StateCode: c.StateCode, Via: via, Cleaned: cleaned}
		if m.StateCode == "" {
			m.StateCode = state
		}
		return m
	}

	if c, ok := ix.pick(ix.byKey[cleaned], state); ok {
		return found(c, "exact")
	}
	if c, ok := ix.pick(ix.byCode[cleaned], state); ok {
		return found(c, "code")
	}
	if bare := ix.stripSuffixes(cleaned); bare != "" {
		if c, ok := ix.pick(ix.byBare[bare], state); ok {
			return found(c, "suffix")
		}
	}
	if c, ok := ix.containment(cleaned, state); ok {
		return found(c, "contains")
	}
	return miss
}

func (ix *ClubIndex) containment(q, state string) (*Club, bool) {
	bestLen := 0
	var best []*Club
	for _, ck := range ix.keys {
		shorter := len(ck.key)
		if len(q) < shorter {
			shorter = len(q)
		}
		if shorter < ix.rules.ClubContainMinLen {
			continue
		}
		if !strings.Contains(ck.key, q) && !strings.Contains(q, ck.key) {
			continue
		}
		switch {
		case shorter > bestLen:
			bestLen = shorter
			best = []*Club{ck.club}
		case shorter == bestLen:
			best = append(best, ck.club)
		}
	}
	return ix.pick(best, state)
}

// pick returns the single distinct club in list, using state to break ties.
// A lone candidate whose own state contradicts the stripped state is
// rejected: state names are often the only word telling clubs apart.
func (ix *ClubIndex) pick(list []*Club, state string) (*Club, bool) {
	distinct := dedupeClubs(list)
	if len(distinct) == 1 {
		c := distinct[0]
		if state != "" && c.StateCode != "" && !strings.EqualFold(c.StateCode, state) {
			return nil, false
		}
		return c, true
	}
	if len(distinct) == 0 || state == "" {
		return nil, false
	}
	var inState []*Club
	for _, c := range distinct {
		if strings.EqualFold(c.StateCode, state) {
			inState = append(inState, c)
		}
	}
	if len(inState) == 1 {
		return inState[0], true
	}
	return nil, false
}

func dedupeClubs(list []*Club) []*Club {
	if len(list) <= 1 {
		return list
	}
	seen := make(map[*Club]struct{}, len(list))
	out := make([]*Club, 0, len(list))
	for _, c := range list {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Len returns the number of indexed clubs.
func (ix *ClubIndex) Len() int { return len(ix.clubs) }
