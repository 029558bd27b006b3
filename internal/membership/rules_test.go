package membership

import (
	"testing"

	"bookclub/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAnswer(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"Paul Atreides", "paul atreides"},
		{"  paul   ATREIDES \n", "paul atreides"},
		{"\tPaul Atreides", "paul atreides"},
		{"", ""},
		{"   ", ""},
		{"ÉMILE", "émile"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeAnswer(tt.in), tt.in)
	}
}

func TestAnswerMatches_IgnoresCaseAndWhitespace(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		expected string
		given    string
		want     bool
	}{
		{"exact", "the spice must flow", "the spice must flow", true},
		{"case", "The Spice Must Flow", "the SPICE must flow", true},
		{"outer whitespace", "the spice must flow", "  the spice must flow\n", true},
		{"inner whitespace", "the spice must flow", "the  spice\tmust   flow", true},
		{"different words", "the spice must flow", "the spice must stop", false},
		{"missing space", "the spice must flow", "thespicemustflow", false},
		{"empty expected", "", "", false},
		{"blank expected", "   ", "   ", false},
		{"empty given", "answer", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AnswerMatches(tt.expected, tt.given))
		})
	}
}

func TestMembershipChecks(t *testing.T) {
	t.Parallel()
	g := &models.Group{ID: 1, OwnerID: 10, ModeratorIDs: []uint{10, 11}, MemberIDs: []uint{10, 11, 12}}

	assert.True(t, IsMember(g.MemberIDs, 12))
	assert.False(t, IsMember(g.MemberIDs, 13))
	assert.False(t, IsMember(g.MemberIDs, 0))

	assert.True(t, CanModerate(g, 10))
	assert.True(t, CanModerate(g, 11))
	assert.False(t, CanModerate(g, 12))
	assert.False(t, CanModerate(nil, 10))

	assert.True(t, IsOwner(g, 10))
	assert.False(t, IsOwner(g, 11))

	assert.True(t, CanRead(g, 12))
	assert.False(t, CanRead(g, 99))
}

func TestVisibleThreads_OnlyForMembers(t *testing.T) {
	t.Parallel()
	g := &models.Group{ID: 1, OwnerID: 10, MemberIDs: []uint{10, 12}}
	threads := []models.Thread{{ID: 1, GroupID: 1}, {ID: 2, GroupID: 1}, {ID: 3, GroupID: 2}}

	assert.Len(t, VisibleThreads(g, 12, threads), 2)
	assert.Empty(t, VisibleThreads(g, 13, threads))
	assert.NotNil(t, VisibleThreads(g, 13, threads))
}
