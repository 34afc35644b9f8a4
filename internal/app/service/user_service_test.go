package service

import (
	"context"
	"testing"

	"sqlquest/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddXPLevelsUp(t *testing.T) {
	repo := newFakeUserRepo()
	repo.users["u-1"] = &model.User{ID: "u-1", XPPoints: 950, Level: 1, RankTitle: model.RankTitleJunior}
	svc := NewUserService(repo)

	user, err := svc.AddXP(context.Background(), "u-1", 100)
	require.NoError(t, err)
	assert.Equal(t, 1050, user.XPPoints)
	assert.Equal(t, 2, user.Level)
	assert.Equal(t, model.RankTitleJunior, user.RankTitle)
}

func TestAddXPCrossesRankThreshold(t *testing.T) {
	repo := newFakeUserRepo()
	repo.users["u-1"] = &model.User{ID: "u-1", XPPoints: 3900, Level: 4, RankTitle: model.RankTitleJunior}
	svc := NewUserService(repo)

	user, err := svc.AddXP(context.Background(), "u-1", 200)
	require.NoError(t, err)
	assert.Equal(t, 5, user.Level)
	assert.Equal(t, model.RankTitleDBA, user.RankTitle)

	stored, err := repo.FindByID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, 4100, stored.XPPoints)
	assert.Equal(t, model.RankTitleDBA, stored.RankTitle)
}

func TestGetByIDStripsPasswordHash(t *testing.T) {
	repo := newFakeUserRepo()
	repo.users["u-1"] = &model.User{ID: "u-1", HashedPassword: "bcrypt-blob"}
	svc := NewUserService(repo)

	user, err := svc.GetByID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Empty(t, user.HashedPassword)
}
