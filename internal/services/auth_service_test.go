package services_test

import (
	"context"
	"testing"
	"time"

	"cardapio/internal/models"
	"cardapio/internal/repositories"
	"cardapio/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test_jwt_secret"

func TestAuthService_RegisterUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)
	ctx := context.Background()

	user := &models.User{
		Username: "owner",
		Email:    "owner@example.com",
		Password: "password123",
	}

	mockRepo.On("GetByUsername", "owner").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("GetByEmail", "owner@example.com").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.User")).Return(nil).Once()

	err := authService.RegisterUser(ctx, user)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("password123")))
	mockRepo.AssertExpectations(t)

	// Username already taken
	mockRepo.On("GetByUsername", "owner").Return(&models.User{ID: "1"}, nil).Once()
	err = authService.RegisterUser(ctx, &models.User{Username: "owner", Email: "x@example.com", Password: "password123"})
	assert.ErrorIs(t, err, services.ErrUserExists)
	assert.Contains(t, err.Error(), "username 'owner' already taken")

	// Email already registered
	mockRepo.On("GetByUsername", "other").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("GetByEmail", "owner@example.com").Return(&models.User{ID: "1"}, nil).Once()
	err = authService.RegisterUser(ctx, &models.User{Username: "other", Email: "owner@example.com", Password: "password123"})
	assert.ErrorIs(t, err, services.ErrUserExists)
	assert.Contains(t, err.Error(), "email 'owner@example.com' already registered")
	mockRepo.AssertExpectations(t)
}

func TestAuthService_RegisterFirstUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)
	ctx := context.Background()

	mockRepo.On("Count").Return(int64(0), nil).Once()
	mockRepo.On("GetByUsername", "owner").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("GetByEmail", "owner@example.com").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.User")).Return(nil).Once()

	err := authService.RegisterFirstUser(ctx, &models.User{Username: "owner", Email: "owner@example.com", Password: "password123"})
	require.NoError(t, err)

	// Once an admin exists nobody else can sign up anonymously
	mockRepo.On("Count").Return(int64(1), nil).Once()
	err = authService.RegisterFirstUser(ctx, &models.User{Username: "intruder", Email: "intruder@example.com", Password: "password123"})
	assert.ErrorIs(t, err, services.ErrRegistrationClosed)
	mockRepo.AssertNumberOfCalls(t, "Create", 1)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_HasUsers(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)

	mockRepo.On("Count").Return(int64(0), assert.AnError).Once()
	_, err := authService.HasUsers(context.Background())
	assert.ErrorIs(t, err, assert.AnError)

	mockRepo.On("Count").Return(int64(2), nil).Once()
	exists, err := authService.HasUsers(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAuthService_LoginUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)
	ctx := context.Background()

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	user := &models.User{
		ID:       "user-123",
		Username: "owner",
		Email:    "owner@example.com",
		Password: string(hashedPassword),
	}

	mockRepo.On("GetByUsername", "owner").Return(user, nil).Once()
	token, err := authService.LoginUser(ctx, "owner", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := authService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims["user_id"])
	assert.Equal(t, "owner", claims["username"])

	// Wrong password
	mockRepo.On("GetByUsername", "owner").Return(user, nil).Once()
	_, err = authService.LoginUser(ctx, "owner", "wrong")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	// Unknown user
	mockRepo.On("GetByUsername", "ghost").Return(nil, repositories.ErrNotFound).Once()
	_, err = authService.LoginUser(ctx, "ghost", "password123")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_ValidateToken(t *testing.T) {
	authService := services.NewAuthService(new(MockUserRepository), testJWTSecret, time.Hour)

	_, err := authService.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	// Signed with another secret
	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "x", "exp": time.Now().Add(time.Hour).Unix()})
	signed, err := foreign.SignedString([]byte("another_secret"))
	require.NoError(t, err)
	_, err = authService.ValidateToken(signed)
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	// Expired
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "x", "exp": time.Now().Add(-time.Minute).Unix()})
	signed, err = expired.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	_, err = authService.ValidateToken(signed)
	assert.ErrorIs(t, err, services.ErrInvalidToken)
}
