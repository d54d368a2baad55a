package proxydice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/prep-area/internal/storage/models"
)

func testIndex() *Index {
	cards := []models.CardRecord{
		{CardPK: 1, CharacterName: "Hulk", SetGroup: "avx"},
		{CardPK: 2, CharacterName: "Hulk", SetGroup: "avx"},
		{CardPK: 3, CharacterName: "Beholder", SetGroup: "bff"},
		{CardPK: 4, CharacterName: "Batman", SetLabel: "WOL OP"},
		{CardPK: 5, CharacterName: "Thor", SetGroup: "avx"},
		{CardPK: 6, CharacterName: "Joker", SetGroup: "wol"},
	}
	texts := map[int]models.CardText{
		1: {DiceFaces: "021-022-133"},
		2: {DiceFaces: "021022133"},
		3: {DiceFaces: "021 022 133"},
		4: {DiceFaces: "111222"},
		5: {DiceFaces: "  "},
	}
	return Build(cards, texts)
}

func TestFormatDice(t *testing.T) {
	tests := []struct {
		raw, key, display string
	}{
		{"021-022-133", "021022133", "021 022 133"},
		{"12345", "12345", "123 45"},
		{"abc", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			key, display := FormatDice(tt.raw)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.display, display)
		})
	}
}

func TestBuild(t *testing.T) {
	idx := testIndex()

	// Hulk's second print has the same faces in the same set.
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, "Batman", idx.entries[0].Character)
	assert.Equal(t, "WOL OP", idx.entries[0].SetCode)
	assert.Equal(t, "BFF", idx.entries[1].SetCode)
}

func TestSearch_ByDice(t *testing.T) {
	groups := testIndex().Search(" 021 022 133 ")
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, "021 022 133", g.DiceDisplay)
	assert.Equal(t, "Beholder", g.Primary.Character)
	require.Len(t, g.Proxies, 1)
	assert.Equal(t, "Hulk", g.Proxies[0].Character)

	assert.Empty(t, testIndex().Search("999"))
}

func TestSearch_ByText(t *testing.T) {
	idx := testIndex()

	groups := idx.Search("hulk")
	require.Len(t, groups, 1)
	assert.Equal(t, "Hulk", groups[0].Primary.Character)
	assert.Equal(t, "Beholder", groups[0].Proxies[0].Character)

	groups = idx.Search("op")
	require.Len(t, groups, 1)
	assert.Equal(t, 4, groups[0].Primary.CardPK)
	assert.Empty(t, groups[0].Proxies)

	assert.Empty(t, idx.Search("   "))
	assert.Empty(t, idx.Search("joker"))
}
