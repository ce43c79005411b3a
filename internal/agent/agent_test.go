package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bonds = []string{"Sex", "Inj"}

func newPair(t *testing.T) (*Agent, *Agent) {
	t.Helper()
	a, b := New(1, bonds), New(2, bonds)
	a.Race, b.Race = "White", "Black"
	return a, b
}

func TestRelationshipBondsBothEnds(t *testing.T) {
	a, b := newPair(t)
	r, err := NewRelationship(1, a, b, "Sex", 3)
	require.NoError(t, err)

	assert.True(t, a.Partners("Sex").Contains(b))
	assert.True(t, b.Partners("Sex").Contains(a))
	assert.False(t, a.Partners("Inj").Contains(b))
	assert.Equal(t, []*Relationship{r}, a.Relationships())
	assert.Equal(t, []*Relationship{r}, b.Relationships())
	assert.Same(t, b, r.Partner(a))
	assert.Same(t, a, r.Partner(b))
	assert.Equal(t, 1, a.NumPartners())
	assert.Equal(t, 1, a.NumPartners("Sex"))
	assert.Zero(t, a.NumPartners("Inj"))
}

func TestRelationshipInvariants(t *testing.T) {
	a, b := newPair(t)

	_, err := NewRelationship(1, a, a, "Sex", 1)
	require.ErrorIs(t, err, ErrSelfRelationship)
	assert.False(t, a.HasPartners())

	_, err = NewRelationship(2, a, b, "Sex", 1)
	require.NoError(t, err)
	_, err = NewRelationship(3, b, a, "Sex", 1)
	require.ErrorIs(t, err, ErrDuplicatePartner)

	// A different bond type between the same agents is allowed.
	_, err = NewRelationship(4, a, b, "Inj", 1)
	require.NoError(t, err)
	assert.Len(t, a.AllPartners(), 1)
	assert.Equal(t, 2, a.NumPartners())
}

func TestRelationshipProgress(t *testing.T) {
	a, b := newPair(t)
	r, err := NewRelationship(1, a, b, "Sex", 2)
	require.NoError(t, err)

	assert.False(t, r.Progress(false))
	assert.Equal(t, 1, r.Duration)
	assert.False(t, r.Progress(false))
	assert.Equal(t, 0, r.Duration)
	assert.True(t, r.Progress(false))
	assert.False(t, a.Partners("Sex").Contains(b))
	assert.False(t, b.HasPartners())

	r2, err := NewRelationship(2, a, b, "Sex", 10)
	require.NoError(t, err)
	assert.True(t, r2.Progress(true))
	assert.False(t, a.HasPartners())
}

func TestPartnerable(t *testing.T) {
	a, b := newPair(t)
	a.TargetPartners["Sex"] = 1

	assert.True(t, a.Partnerable("Sex", 1))
	assert.True(t, a.NeedsPartners("Sex"))

	_, err := NewRelationship(1, a, b, "Sex", 1)
	require.NoError(t, err)
	assert.True(t, a.Partnerable("Sex", 1), "at target is still partnerable")
	assert.False(t, a.NeedsPartners("Sex"))

	c := New(3, bonds)
	_, err = NewRelationship(2, a, c, "Sex", 1)
	require.NoError(t, err)
	assert.False(t, a.Partnerable("Sex", 1))
	assert.True(t, a.Partnerable("Sex", 2))
}

func TestAttr(t *testing.T) {
	a := New(7, bonds)
	a.Race = "Black"
	a.SexType = "MSM"
	a.Age = 30
	a.HIV.Active = true
	a.HIV.Dx = true
	a.PrEP.Type = "Inj"

	tests := []struct {
		path string
		want string
	}{
		{"race", "Black"},
		{"sex_type", "MSM"},
		{"age", "30"},
		{"hiv", "true"},
		{"hiv.active", "true"},
		{"hiv.dx", "true"},
		{"hiv.aids", "false"},
		{"prep.type", "Inj"},
		{"vaccine.active", "false"},
		{"location", ""},
		{"nope", ""},
		{"hiv.nope", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, a.StrAttr(tt.path))
		})
	}

	assert.True(t, ValidAttr("high_risk.active"))
	assert.True(t, ValidAttr("location.category"))
	assert.False(t, ValidAttr("race.name"))
	assert.False(t, ValidAttr("shoe_size"))
}

func TestSetHierarchy(t *testing.T) {
	root := NewSet("all", nil, nil)
	white := NewSet("White", root, root)
	msm := NewSet("MSM", white, white)

	a, b := newPair(t)
	msm.Add(a)
	root.Add(b)

	assert.True(t, root.Contains(a))
	assert.True(t, white.Contains(a))
	assert.Equal(t, 2, root.Len())
	assert.Equal(t, 1, white.Len())

	root.Remove(a)
	assert.False(t, msm.Contains(a))
	assert.False(t, white.Contains(a))
	assert.Equal(t, []*Agent{b}, root.Members())

	var ids []string
	root.Walk(func(s *Set) { ids = append(ids, s.ID) })
	assert.Equal(t, []string{"all", "White", "MSM"}, ids)
	assert.Same(t, white, root.Subset("White"))
	assert.Len(t, root.Subsets(), 1)
}
