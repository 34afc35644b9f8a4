package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelForXP(t *testing.T) {
	assert.Equal(t, 1, LevelForXP(0))
	assert.Equal(t, 1, LevelForXP(999))
	assert.Equal(t, 2, LevelForXP(1000))
	assert.Equal(t, 5, LevelForXP(4500))
	assert.Equal(t, 21, LevelForXP(20000))
}

func TestRankTitleForLevel(t *testing.T) {
	assert.Equal(t, RankTitleJunior, RankTitleForLevel(1))
	assert.Equal(t, RankTitleJunior, RankTitleForLevel(4))
	assert.Equal(t, RankTitleDBA, RankTitleForLevel(5))
	assert.Equal(t, RankTitleSenior, RankTitleForLevel(10))
	assert.Equal(t, RankTitlePrincipal, RankTitleForLevel(15))
	assert.Equal(t, RankTitleArchitect, RankTitleForLevel(20))
	assert.Equal(t, RankTitleArchitect, RankTitleForLevel(99))
}
