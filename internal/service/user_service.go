package service

import (
	"context"

	"officequeue/internal/domain"
	"officequeue/internal/models"

	"github.com/rs/zerolog"
)

type UserService struct {
	directory  domain.IdentityDirectory
	operatorID int64
	logger     *zerolog.Logger
}

var _ domain.UserService = (*UserService)(nil)

func NewUserService(directory domain.IdentityDirectory, operatorID int64, logger *zerolog.Logger) *UserService {
	return &UserService{
		directory:  directory,
		operatorID: operatorID,
		logger:     logger,
	}
}

// IsOperator сравнивает пользователя с единственным оператором из конфига
func (s *UserService) IsOperator(userID int64) bool {
	return s.operatorID != 0 && userID == s.operatorID
}

func (s *UserService) OperatorID() int64 {
	return s.operatorID
}

// Touch refreshes the directory record on every contact.
func (s *UserService) Touch(ctx context.Context, profile models.Profile) (string, error) {
	name, err := s.directory.UpsertUser(ctx, profile)
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", profile.UserID).Msg("failed to refresh user")
		return "", err
	}
	return name, nil
}

func (s *UserService) GetAllUserIDs(ctx context.Context) ([]int64, error) {
	return s.directory.GetAllUserIDs(ctx)
}
