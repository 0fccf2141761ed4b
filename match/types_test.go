package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBirthDateAge(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 30, BirthDate{Day: 15, Month: 6, Year: 1994}.Age(now))
	assert.Equal(t, 29, BirthDate{Day: 16, Month: 6, Year: 1994}.Age(now))
	assert.Equal(t, 29, BirthDate{Day: 1, Month: 12, Year: 1994}.Age(now))
	assert.Equal(t, -1, BirthDate{}.Age(now))
	assert.Equal(t, -1, BirthDate{Day: 1, Year: 1990}.Age(now))
}

func TestAcceptedGenders(t *testing.T) {
	tests := []struct {
		name string
		p    Profile
		want []Gender
	}{
		{"explicit", Profile{Gender: GenderMale, Preference: Preference{Genders: []Gender{GenderOther, GenderFemale}}}, []Gender{GenderFemale, GenderOther}},
		{"male fallback", Profile{Gender: GenderMale}, []Gender{GenderFemale}},
		{"female fallback", Profile{Gender: GenderFemale}, []Gender{GenderMale}},
		{"other fallback", Profile{Gender: GenderOther}, AllGenders},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.AcceptedGenders())
		})
	}
}

func TestAcceptedGendersDoesNotAlias(t *testing.T) {
	p := Profile{Gender: GenderOther}
	got := p.AcceptedGenders()
	got[0] = "x"
	assert.Equal(t, GenderFemale, AllGenders[0])
}

func TestParse(t *testing.T) {
	k, err := ParseKind(" like ")
	require.NoError(t, err)
	assert.Equal(t, KindLike, k)

	k, err = ParseKind("PASS")
	require.NoError(t, err)
	assert.Equal(t, KindPass, k)

	_, err = ParseKind("superlike")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	g, err := ParseGender("Female")
	require.NoError(t, err)
	assert.Equal(t, GenderFemale, g)

	_, err = ParseGender("robot")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMatchHelpers(t *testing.T) {
	lo, hi := OrderedPair("b", "a")
	assert.Equal(t, "a", lo)
	assert.Equal(t, "b", hi)
	assert.Equal(t, PairKey("a", "b"), PairKey("b", "a"))

	m := &Match{UserAID: "a", UserBID: "b"}
	assert.Equal(t, "b", m.Peer("a"))
	assert.Equal(t, "a", m.Peer("b"))
	assert.True(t, m.Involves("a"))
	assert.False(t, m.Involves("c"))
}
