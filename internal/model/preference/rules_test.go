package preference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoScreensClearsGenre(t *testing.T) {
	p, err := Parse([]byte(`{"watch": ["No Screens"], "genre": ["Horror", "Comedy"]}`))
	require.NoError(t, err)

	out := Normalize(p)
	assert.Empty(t, out.Selected(CategoryGenre))
	assert.Equal(t, []string{"Horror", "Comedy"}, p.Selected(CategoryGenre), "input must stay untouched")
}

func TestScreensKeepGenre(t *testing.T) {
	p, err := Parse([]byte(`{"watch": ["Movie Night"], "genre": ["Horror"]}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"Horror"}, Normalize(p).Selected(CategoryGenre))
}

func TestHomeDiningForcesHome(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		category string
	}{
		{"cook together", `{"eat": ["Cook Together"], "location": ["Dancing"]}`, CategoryLocation},
		{"take out", `{"eat": ["Take Out"]}`, CategoryLocation},
		{"original form", `{"eat": ["Take Out"], "go": ["Strolling", "Culture-ing"]}`, CategoryGo},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Parse([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, []string{LabelHome}, Normalize(p).Selected(tc.category))
		})
	}
}

func TestEatOutKeepsLocation(t *testing.T) {
	p, err := Parse([]byte(`{"eat": ["Eat Out"], "location": ["Dancing"]}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"Dancing"}, Normalize(p).Selected(CategoryLocation))
}

func TestRefusesIntimacy(t *testing.T) {
	cases := map[string]bool{
		`{"physical_connection_intimacy": ["No Thanks"]}`: true,
		`{"physical_connection_intimacy": [" pass "]}`:    true,
		`{"connect": ["Hold Hands", "Pass"]}`:             true,
		`{"physical_connection_intimacy": ["Snuggle"]}`:   false,
		`{"connect": ["Make Out"], "more": "no thanks"}`:  false,
		`{"eat": ["No Thanks"]}`:                          false,
	}

	for body, want := range cases {
		p, err := Parse([]byte(body))
		require.NoError(t, err)
		assert.Equalf(t, want, p.RefusesIntimacy(), "body %s", body)
	}
}

func TestRefusesIntimacyStringForm(t *testing.T) {
	p, err := Parse([]byte(`{"physical_connection_intimacy": "No Thanks"}`))
	require.NoError(t, err)
	assert.True(t, p.RefusesIntimacy())

	p, err = Parse([]byte(`{"connect": " pass "}`))
	require.NoError(t, err)
	assert.True(t, p.RefusesIntimacy())

	p, err = Parse([]byte(`{"connect": "Snuggle"}`))
	require.NoError(t, err)
	assert.False(t, p.RefusesIntimacy())
}
