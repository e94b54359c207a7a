package roster

import (
	"sort"
	"strings"

	"github.com/JonMunkholm/swimresults/internal/normalize"
)

// MatchPath records how an athlete was found.
type MatchPath string

const (
	MatchNone  MatchPath = ""
	MatchExact MatchPath = "exact"
	MatchAlias MatchPath = "alias"
	MatchFuzzy MatchPath = "fuzzy"
)

// DateRelation classifies an incoming birthdate against the one on file.
type DateRelation int

const (
	DateSame DateRelation = iota
	DateSwapped
	DateDayDiffers
	DateMonthDiffers
	DateMissingOnFile
	DateMissingIncoming
	DateDifferent
)

func (d DateRelation) String() string {
	switch d {
	case DateSame:
		return "same"
	case DateSwapped:
		return "day/month swapped"
	case DateDayDiffers:
		return "day differs"
	case DateMonthDiffers:
		return "month differs"
	case DateMissingOnFile:
		return "missing on file"
	case DateMissingIncoming:
		return "missing on row"
	default:
		return "different"
	}
}

// CompareBirthdates classifies two canonical "YYYY-MM-DD" dates.
func CompareBirthdates(onFile, incoming string) DateRelation {
	if incoming == "" {
		return DateMissingIncoming
	}
	if onFile == "" {
		return DateMissingOnFile
	}
	if onFile == incoming {
		return DateSame
	}
	y1, m1, d1, ok1 := normalize.SplitDate(onFile)
	y2, m2, d2, ok2 := normalize.SplitDate(incoming)
	if !ok1 || !ok2 || y1 != y2 {
		return DateDifferent
	}
	switch {
	case m1 == d2 && d1 == m2:
		return DateSwapped
	case m1 == m2:
		return DateDayDiffers
	case d1 == d2:
		return DateMonthDiffers
	default:
		return DateDifferent
	}
}

// AthleteQuery is the identity information taken from one result row.
type AthleteQuery struct {
	Name      string
	Birthdate string // canonical or ""
	Gender    normalize.Gender
	Nation    string
}

// AthleteMatch is the outcome of resolving an AthleteQuery. Athlete is nil
// when nothing was accepted; the conflict slices then explain why.
type AthleteMatch struct {
	Athlete     *Athlete
	Path        MatchPath
	Relation    DateRelation
	Corrections []Correction

	NameFormatMismatch bool
	NationMismatch     bool

	GenderConflicts []*Athlete
	DateConflicts   []*Athlete
	Ambiguous       []*Athlete
}

// Found reports whether an athlete was accepted.
func (m AthleteMatch) Found() bool { return m.Athlete != nil }

type nameHit struct {
	idx   int
	alias bool
}

type wordRef struct {
	athlete int
	variant int
}

// AthleteIndex resolves names to canonical athletes using exact, alias and
// word-overlap lookups guarded by birthdate and gender.
type AthleteIndex struct {
	rules    Rules
	athletes []Athlete
	byKey    map[string][]nameHit
	byWord   map[string][]wordRef
}

// NewAthleteIndex builds an index over a copy of athletes.
func NewAthleteIndex(athletes []Athlete, rules Rules) *AthleteIndex {
	ix := &AthleteIndex{
		rules:    rules,
		athletes: make([]Athlete, len(athletes)),
		byKey:    make(map[string][]nameHit, len(athletes)),
		byWord:   make(map[string][]wordRef),
	}
	copy(ix.athletes, athletes)

	for i := range ix.athletes {
		a := &ix.athletes[i]
		a.Birthdate = normalize.Birthdate(a.Birthdate)

		names := append([]string{a.Name}, a.Aliases...)
		seen := make(map[string]struct{}, len(names))
		for v, n := range names {
			key := normalize.MatchKey(n)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				ix.byKey[key] = append(ix.byKey[key], nameHit{idx: i, alias: v > 0})
			}
			for _, w := range normalize.Words(n) {
				ix.byWord[w] = append(ix.byWord[w], wordRef{athlete: i, variant: v})
			}
		}
	}
	return ix
}

// Len returns the number of indexed athletes.
func (ix *AthleteIndex) Len() int { return len(ix.athletes) }

// Resolve finds the canonical athlete for q. Exact and alias hits are tried
// first; the word-overlap fallback runs only when no name key matched.
func (ix *AthleteIndex) Resolve(q AthleteQuery) AthleteMatch {
	key := normalize.MatchKey(q.Name)
	if key == "" {
		return AthleteMatch{}
	}
	q.Nation = strings.ToUpper(strings.TrimSpace(q.Nation))

	if hits := ix.byKey[key]; len(hits) > 0 {
		return ix.resolveExact(q, hits)
	}
	return ix.resolveFuzzy(q)
}

type candidate struct {
	idx   int
	alias bool
	rel   DateRelation
	tier  int
}

const (
	tierSame = iota
	tierSwapped
	tierSingleField
	tierFill
)

func (ix *AthleteIndex) exactTier(rel DateRelation) (int, bool) {
	switch rel {
	case DateSame:
		return tierSame, true
	case DateSwapped:
		return tierSwapped, ix.rules.AllowDayMonthSwap
	case DateDayDiffers, DateMonthDiffers:
		return tierSingleField, ix.rules.AllowSingleFieldDiff
	case DateMissingOnFile:
		return tierFill, ix.rules.FillMissingBirthdate
	default:
		return 0, false
	}
}

func (ix *AthleteIndex) resolveExact(q AthleteQuery, hits []nameHit) AthleteMatch {
	var m AthleteMatch
	var cands []candidate
	for _, h := range hits {
		a := &ix.athletes[h.idx]
		rel := CompareBirthdates(a.Birthdate, q.Birthdate)
		tier, ok := ix.exactTier(rel)
		if !ok {
			m.DateConflicts = append(m.DateConflicts, a)
			continue
		}
		if genderConflict(a.Gender, q.Gender) {
			m.GenderConflicts = append(m.GenderConflicts, a)
			continue
		}
		cands = append(cands, candidate{idx: h.idx, alias: h.alias, rel: rel, tier: tier})
	}

	top, ok := pickBest(cands)
	if !ok {
		m.Ambiguous = ix.candidateAthletes(cands)
		return m
	}
	// Tolerances beyond a swap are only trusted when the name is unique.
	if top.tier >= tierSingleField && len(cands) > 1 {
		m.Ambiguous = ix.candidateAthletes(cands)
		return m
	}

	a := &ix.athletes[top.idx]
	m.Athlete = a
	m.Relation = top.rel
	m.Path = MatchExact
	if top.alias {
		m.Path = MatchAlias
	}

	if !top.alias {
		if in := normalize.Name(q.Name); in != a.Name {
			m.NameFormatMismatch = true
			m.Corrections = append(m.Corrections, Correction{
				Kind: CorrectName, AthleteID: a.ID, AthleteName: a.Name, Old: a.Name, New: in,
			})
		}
	}
	if top.rel != DateSame {
		m.Corrections = append(m.Corrections, Correction{
			Kind: CorrectBirthdate, AthleteID: a.ID, AthleteName: a.Name, Old: a.Birthdate, New: q.Birthdate,
		})
	}
	ix.checkNation(&m, q)
	return m
}

func (ix *AthleteIndex) resolveFuzzy(q AthleteQuery) AthleteMatch {
	var m AthleteMatch
	words := normalize.Words(q.Name)
	if len(words) < ix.rules.FuzzyMinWords {
		return m
	}

	counts := make(map[wordRef]int)
	for _, w := range words {
		for _, ref := range ix.byWord[w] {
			counts[ref]++
		}
	}
	best := make(map[int]int)
	for ref, n := range counts {
		if n > best[ref.athlete] {
			best[ref.athlete] = n
		}
	}
	idxs := make([]int, 0, len(best))
	for idx, n := range best {
		if ix.fuzzyPasses(len(words), n) {
			idxs = append(idxs, idx)
		}
	}
	sort.Ints(idxs)

	var cands []candidate
	for _, idx := range idxs {
		a := &ix.athletes[idx]
		rel := CompareBirthdates(a.Birthdate, q.Birthdate)
		var tier int
		switch {
		case rel == DateSame:
			tier = tierSame
		case rel == DateSwapped && ix.rules.AllowDayMonthSwap:
			tier = tierSwapped
		default:
			continue
		}
		if genderConflict(a.Gender, q.Gender) {
			m.GenderConflicts = append(m.GenderConflicts, a)
			continue
		}
		cands = append(cands, candidate{idx: idx, rel: rel, tier: tier})
	}

	top, ok := pickBest(cands)
	if !ok {
		m.Ambiguous = ix.candidateAthletes(cands)
		return m
	}
	m.Athlete = &ix.athletes[top.idx]
	m.Path = MatchFuzzy
	m.Relation = top.rel
	ix.checkNation(&m, q)
	return m
}

func (ix *AthleteIndex) fuzzyPasses(inputWords, overlap int) bool {
	if overlap >= ix.rules.FuzzyMinOverlap {
		return true
	}
	return inputWords <= ix.rules.FuzzyAllWordsMax && overlap == inputWords
}

func (ix *AthleteIndex) checkNation(m *AthleteMatch, q AthleteQuery) {
	a := m.Athlete
	if q.Nation == "" || strings.EqualFold(q.Nation, a.Nation) || ix.rules.IsPlaceholderNation(q.Nation) {
		return
	}
	if ix.rules.IsPlaceholderNation(a.Nation) {
		m.Corrections = append(m.Corrections, Correction{
			Kind: CorrectNation, AthleteID: a.ID, AthleteName: a.Name, Old: a.Nation, New: q.Nation,
		})
		return
	}
	m.NationMismatch = true
}

func (ix *AthleteIndex) candidateAthletes(cands []candidate) []*Athlete {
	out := make([]*Athlete, 0, len(cands))
	for _, c := range cands {
		out = append(out, &ix.athletes[c.idx])
	}
	return out
}

// pickBest returns the single candidate in the lowest tier. It fails when
// there are no candidates or the lowest tier holds more than one athlete.
func pickBest(cands []candidate) (candidate, bool) {
	if len(cands) == 0 {
		return candidate{}, false
	}
	bestTier := cands[0].tier
	for _, c := range cands[1:] {
		if c.tier < bestTier {
			bestTier = c.tier
		}
	}
	var top []candidate
	for _, c := range cands {
		if c.tier == bestTier {
			top = append(top, c)
		}
	}
	if len(top) != 1 {
		return candidate{}, false
	}
	return top[0], true
}

func genderConflict(onFile, incoming normalize.Gender) bool {
	return onFile != "" && incoming != "" && onFile != incoming
}
