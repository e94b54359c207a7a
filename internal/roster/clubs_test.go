package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/swimresults/internal/normalize"
)

func seedClubs() []Club {
	return []Club{
		{ID: 1, Name: "Kuala Lumpur Swimming Club", Code: "KLSC"},
		{ID: 2, Name: "Penang Swimming Club", Code: "PSC", StateCode: "PNG"},
		{ID: 3, Name: "Selangor Aquatics Academy", Code: "SAA", StateCode: "SGR"},
		{ID: 4, Name: "Dolphin Swim Team", Code: "DST", StateCode: "JHR"},
		{ID: 5, Name: "Dolphin Swim Team", Code: "DSTK", StateCode: "KDH"},
	}
}

func TestClubIndex_StripState(t *testing.T) {
	ix := NewClubIndex(seedClubs(), DefaultRules())

	tests := []struct {
		raw         string
		wantCleaned string
		wantState   string
	}{
		{"Kuala Lumpur Swimming Club KL", "KUALA LUMPUR SWIMMING CLUB", "KL"},
		{"Penang Swimming Club Pulau Pinang", "PENANG SWIMMING CLUB", "PNG"},
		{"Team Negeri Sembilan", "TEAM", "NSN"},
		{"ABC Aquatic (SGR)", "ABC AQUATIC", "SGR"},
		{"Selangor", "SELANGOR", ""},
		{"Penang Swimming Club", "PENANG SWIMMING CLUB", ""},
	}
	for _, tt := range tests {
		cleaned, state := ix.StripState(tt.raw)
		assert.Equal(t, tt.wantCleaned, cleaned, "cleaned for %q", tt.raw)
		assert.Equal(t, tt.wantState, state, "state for %q", tt.raw)
	}
}

func TestClubIndex_ResolveWithTrailingState(t *testing.T) {
	ix := NewClubIndex(seedClubs(), DefaultRules())

	m := ix.Resolve("Kuala Lumpur Swimming Club KL")

	require.True(t, m.Found())
	assert.Equal(t, int64(1), m.Club.ID)
	assert.Equal(t, "KL", m.StateCode)
	assert.Equal(t, "exact", m.Via)
}

func TestClubIndex_ResolvePaths(t *testing.T) {
	ix := NewClubIndex(seedClubs(), DefaultRules())

	tests := []struct {
		raw       string
		wantID    int64
		wantVia   string
		wantState string
	}{
		{"penang swimming club", 2, "exact", "PNG"},
		{"KLSC", 1, "code", ""},
		{"Penang Swimming", 2, "suffix", "PNG"},
		{"Selangor Aquatics Acad", 3, "contains", "SGR"},
		{"Dolphin Swim Team JHR", 4, "exact", "JHR"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			m := ix.Resolve(tt.raw)
			require.True(t, m.Found())
			assert.Equal(t, tt.wantID, m.Club.ID)
			assert.Equal(t, tt.wantVia, m.Via)
			assert.Equal(t, tt.wantState, m.StateCode)
		})
	}
}

func TestClubIndex_Misses(t *testing.T) {
	ix := NewClubIndex(seedClubs(), DefaultRules())

	for _, raw := range []string{"Dolphin Swim Team", "Penan", "Unknown Aquatic Club", ""} {
		assert.False(t, ix.Resolve(raw).Found(), "expected miss for %q", raw)
	}
}

func TestClubIndex_ContradictingStateIsMiss(t *testing.T) {
	ix := NewClubIndex([]Club{
		{ID: 7, Name: "Persatuan Renang Amatur Selangor", StateCode: "SGR"},
	}, DefaultRules())

	m := ix.Resolve("Persatuan Renang Amatur Johor")
	assert.False(t, m.Found())
	assert.Equal(t, "JHR", m.StateCode)

	m = ix.Resolve("Persatuan Renang Amatur Selangor")
	require.True(t, m.Found())
	assert.Equal(t, int64(7), m.Club.ID)

	m = ix.Resolve("Persatuan Renang Amatur")
	require.True(t, m.Found())
	assert.Equal(t, "SGR", m.StateCode)
}

func TestClubIndex_ResolveCode(t *testing.T) {
	ix := NewClubIndex(seedClubs(), DefaultRules())

	m := ix.ResolveCode("dstk")
	require.True(t, m.Found())
	assert.Equal(t, int64(5), m.Club.ID)

	assert.False(t, ix.ResolveCode("NOPE").Found())
}

func TestEventIndex_Lookup(t *testing.T) {
	ix := NewEventIndex([]Event{
		{ID: 10, Course: normalize.CourseLCM, Distance: 100, Stroke: normalize.StrokeFree, Gender: normalize.GenderFemale},
		{ID: 11, Course: normalize.CourseSCM, Distance: 100, Stroke: normalize.StrokeIM, Gender: normalize.GenderFemale},
	})

	e, ok := ix.Lookup(normalize.CourseLCM, 100, normalize.StrokeFree, normalize.GenderFemale)
	require.True(t, ok)
	assert.Equal(t, int64(10), e.ID)

	_, ok = ix.Lookup(normalize.CourseLCM, 100, normalize.StrokeFree, normalize.GenderMale)
	assert.False(t, ok)
}

func TestCourseRestrictions(t *testing.T) {
	cr := NewCourseRestrictions(DefaultRules())

	assert.False(t, cr.Allowed(normalize.CourseLCM, 100, normalize.StrokeIM))
	assert.True(t, cr.Allowed(normalize.CourseSCM, 100, normalize.StrokeIM))
	assert.True(t, cr.Allowed(normalize.CourseLCM, 200, normalize.StrokeIM))
}

func TestRules_Validate(t *testing.T) {
	require.NoError(t, DefaultRules().Validate())

	bad := DefaultRules()
	bad.FuzzyMinOverlap = 0
	bad.ShortCourseOnly = []string{"IM"}
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fuzzy_min_overlap")
	assert.Contains(t, err.Error(), "short_course_only")
}

func TestRules_IsPlaceholderNation(t *testing.T) {
	r := DefaultRules()
	assert.True(t, r.IsPlaceholderNation(""))
	assert.True(t, r.IsPlaceholderNation("unk"))
	assert.False(t, r.IsPlaceholderNation("MAS"))
}
