package service

import (
	"context"
	"log"

	"sqlquest/internal/common"
	"sqlquest/internal/domain/model"
	"sqlquest/internal/domain/repository"
)

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// AddXP credits earned XP to a user and recomputes level and rank title.
func (s *UserService) AddXP(ctx context.Context, userID string, xpGained int) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, common.Errorf("failed to load user for XP update: %w", err)
	}

	user.XPPoints += xpGained
	newLevel := model.LevelForXP(user.XPPoints)
	if newLevel > user.Level {
		log.Printf("INFO: User %s leveled up: %d -> %d", user.ID, user.Level, newLevel)
		user.Level = newLevel
		user.RankTitle = model.RankTitleForLevel(newLevel)
	}

	if err := s.userRepo.UpdateXP(ctx, user); err != nil {
		return nil, common.Errorf("failed to persist XP update: %w", err)
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.HashedPassword = ""
	return user, nil
}
