package models

import (
	"context"
	"errors"
	"html"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stageworks/roster_backend/config"
	"github.com/stageworks/roster_backend/utils"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrDuplicateUser      = errors.New("duplicate username or email")
	ErrUserDisabled       = errors.New("user is disabled")
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;uniqueIndex" json:"username"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     *string   `gorm:"size:255;uniqueIndex" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"password,omitempty"`
	Role      UserRole  `gorm:"size:20;not null;default:viewer" json:"role"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username string   `json:"username" validate:"required,max=100"`
	Name     string   `json:"name" validate:"required,max=100"`
	Email    string   `json:"email" validate:"omitempty,email"`
	Password string   `json:"password" validate:"required,min=8"`
	Role     UserRole `json:"role" validate:"required"`
	IsActive *bool    `json:"is_active"`
}

type LoginInfo struct {
	Token string   `json:"token"`
	Name  string   `json:"name"`
	Role  UserRole `json:"role"`
}

/*
caches:
	User:$username
	Token:$token -> username
	Tokens:$username (set)
*/

func (user *User) PrepareGive() {
	user.Password = ""
}

func (user User) RemoveInstanceRedis() error {
	return config.RemoveRedisKey("User:" + user.Username)
}

func tokenLifespan() (time.Duration, error) {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil {
		return 0, errors.New("TOKEN_HOUR_LIFESPAN is not configured")
	}
	return time.Duration(hours) * time.Hour, nil
}

// GetUserByUsername reads through the User:$username cache.
func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return nil, err
	}
	if exists {
		return &user, nil
	}
	if err := config.GetDB().WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		return nil, notFoundOr(err)
	}
	if err := config.SetRedisObject("User:"+username, &user, utils.GetCacheLifespan()); err != nil {
		return nil, err
	}
	return &user, nil
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	user, err := GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.IsActive != nil && !*user.IsActive {
		return nil, ErrUserDisabled
	}

	lifespan, err := tokenLifespan()
	if err != nil {
		return nil, err
	}
	token := uuid.New().String()
	if err := config.AddRedisSet("Tokens:"+user.Username, token); err != nil {
		return nil, err
	}
	if err := config.SetRedisValue("Token:"+token, user.Username, lifespan); err != nil {
		return nil, err
	}

	return &LoginInfo{
		Token: token,
		Name:  user.Name,
		Role:  user.Role,
	}, nil
}

// destroy current session
func Logout(ctx context.Context) error {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return errors.New("token is required")
	}
	if err := config.RemoveRedisKey("Token:" + token); err != nil {
		return err
	}
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return errors.New("user not found")
	}
	return config.RemoveRedisSetMember("Tokens:"+username, token)
}

func (user *User) DestroyAllSessions() error {
	allTokens, err := config.GetRedisSetMembers("Tokens:" + user.Username)
	if err != nil {
		return err
	}
	for _, token := range allTokens {
		if err := config.RemoveRedisKey("Token:" + token); err != nil {
			return err
		}
	}
	return config.RemoveRedisKey("Tokens:" + user.Username)
}

func GetAllUsers(ctx context.Context) ([]*User, error) {
	var results []*User
	if err := config.GetDB().WithContext(ctx).Order("username").Find(&results).Error; err != nil {
		return nil, err
	}
	for _, u := range results {
		u.PrepareGive()
	}
	return results, nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = utils.NormalizeEmail(input.Email)
	if err := utils.GetValidator().Struct(input); err != nil {
		return nil, err
	}
	if !input.Role.IsValid() {
		return nil, ErrInvalidUserRole
	}

	db := config.GetDB()
	var count int64
	q := db.WithContext(ctx).Model(&User{}).Where("username = ?", input.Username)
	if input.Email != "" {
		q = q.Or("email = ?", input.Email)
	}
	if err := q.Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDuplicateUser
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}
	user := User{
		Username: html.EscapeString(input.Username),
		Name:     input.Name,
		Email:    utils.NilIfEmpty(input.Email),
		Password: string(hashedPassword),
		Role:     input.Role,
		IsActive: isActive,
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}
	user.PrepareGive()
	return &user, nil
}

// UpdateUserRole changes a role and drops the user's sessions so the new role applies on next login.
func UpdateUserRole(ctx context.Context, id int, role UserRole) (*User, error) {
	if !role.IsValid() {
		return nil, ErrInvalidUserRole
	}
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	if err := db.WithContext(ctx).Model(&user).Update("role", role).Error; err != nil {
		return nil, err
	}
	user.Role = role
	if err := user.RemoveInstanceRedis(); err != nil {
		return nil, err
	}
	if err := user.DestroyAllSessions(); err != nil {
		return nil, err
	}
	user.PrepareGive()
	return &user, nil
}

// UpsertAdmin creates the admin user or resets its password and role.
func UpsertAdmin(ctx context.Context, db *gorm.DB, username string, name string, password string) (*User, bool, error) {
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, false, err
	}
	var user User
	err = db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	created := errors.Is(err, gorm.ErrRecordNotFound)
	if created {
		user = User{Username: username, Name: name}
	}
	user.Password = string(hashed)
	user.Role = UserRoleAdmin
	user.IsActive = utils.NewTrue()
	if name != "" {
		user.Name = name
	}
	if err := db.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, false, err
	}
	_ = user.RemoveInstanceRedis()
	return &user, created, nil
}
