// Package orm maps the domain onto SQLite tables through GORM.
package orm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"airhome/internal/store"
)

type homeModel struct {
	ID          uint    `gorm:"primaryKey"`
	HouseName   string  `gorm:"not null"`
	Price       float64 `gorm:"not null"`
	Location    string  `gorm:"not null"`
	Rating      float64 `gorm:"not null"`
	Photo       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (homeModel) TableName() string { return "homes" }

type favouriteModel struct {
	ID        uint   `gorm:"primaryKey"`
	Owner     string `gorm:"not null;uniqueIndex:idx_favourites_owner_home"`
	HomeID    uint   `gorm:"not null;index;uniqueIndex:idx_favourites_owner_home"`
	CreatedAt time.Time
}

func (favouriteModel) TableName() string { return "favourites" }

type userModel struct {
	ID           uint   `gorm:"primaryKey"`
	FirstName    string `gorm:"not null"`
	LastName     string
	Email        string `gorm:"not null;uniqueIndex"`
	PasswordHash string `gorm:"not null"`
	UserType     string `gorm:"not null"`
	CreatedAt    time.Time
}

func (userModel) TableName() string { return "users" }

// Store is a GORM-backed Backend.
type Store struct {
	db *gorm.DB
}

var _ store.Backend = (*Store)(nil)

// Open connects to the SQLite file at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// single writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(&homeModel{}, &favouriteModel{}, &userModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateHome inserts a home.
func (s *Store) CreateHome(ctx context.Context, home store.Home) (store.Home, error) {
	if err := store.Checkpoint(ctx, "create home"); err != nil {
		return store.Home{}, err
	}
	home, err := store.PrepareHome(home)
	if err != nil {
		return store.Home{}, err
	}

	m := toHomeModel(home)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return store.Home{}, store.Wrap("create home", err)
	}
	return fromHomeModel(m), nil
}

// UpdateHome overwrites every mutable column, including empty ones.
func (s *Store) UpdateHome(ctx context.Context, id string, home store.Home) (store.Home, error) {
	if err := store.Checkpoint(ctx, "update home"); err != nil {
		return store.Home{}, err
	}
	home, err := store.PrepareHome(home)
	if err != nil {
		return store.Home{}, err
	}
	homeID, ok := parseID(id)
	if !ok {
		return store.Home{}, store.ErrHomeNotFound
	}

	res := s.db.WithContext(ctx).Model(&homeModel{}).Where("id = ?", homeID).Updates(map[string]any{
		"house_name":  home.HouseName,
		"price":       home.Price,
		"location":    home.Location,
		"rating":      home.Rating,
		"photo":       home.Photo,
		"description": home.Description,
	})
	if res.Error != nil {
		return store.Home{}, store.Wrap("update home", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.Home{}, store.ErrHomeNotFound
	}

	home.ID = formatID(homeID)
	return home, nil
}

// HomeByID loads one home.
func (s *Store) HomeByID(ctx context.Context, id string) (store.Home, error) {
	if err := store.Checkpoint(ctx, "get home"); err != nil {
		return store.Home{}, err
	}
	homeID, ok := parseID(id)
	if !ok {
		return store.Home{}, store.ErrHomeNotFound
	}

	var m homeModel
	err := s.db.WithContext(ctx).First(&m, homeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.Home{}, store.ErrHomeNotFound
	}
	if err != nil {
		return store.Home{}, store.Wrap("get home", err)
	}
	return fromHomeModel(m), nil
}

// ListHomes returns every home by ascending id.
func (s *Store) ListHomes(ctx context.Context) ([]store.Home, error) {
	if err := store.Checkpoint(ctx, "list homes"); err != nil {
		return nil, err
	}

	var models []homeModel
	if err := s.db.WithContext(ctx).Order("id asc").Find(&models).Error; err != nil {
		return nil, store.Wrap("list homes", err)
	}
	homes := make([]store.Home, 0, len(models))
	for _, m := range models {
		homes = append(homes, fromHomeModel(m))
	}
	return homes, nil
}

// DeleteHome removes the home's favourites and the home in one transaction.
func (s *Store) DeleteHome(ctx context.Context, id string) error {
	if err := store.Checkpoint(ctx, "delete home"); err != nil {
		return err
	}
	homeID, ok := parseID(id)
	if !ok {
		return store.ErrHomeNotFound
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("home_id = ?", homeID).Delete(&favouriteModel{}).Error; err != nil {
			return fmt.Errorf("delete favourites: %w", err)
		}
		res := tx.Delete(&homeModel{}, homeID)
		if res.Error != nil {
			return fmt.Errorf("delete home: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return store.ErrHomeNotFound
		}
		return nil
	})
	return store.Wrap("delete home", err)
}

// AddFavourite inserts the pair if the home exists, reporting a duplicate as
// ErrFavouriteExists.
func (s *Store) AddFavourite(ctx context.Context, owner, homeID string) error {
	if err := store.Checkpoint(ctx, "add favourite"); err != nil {
		return err
	}
	id, ok := parseID(homeID)
	if !ok {
		return store.ErrHomeNotFound
	}

	var added bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&homeModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return store.ErrHomeNotFound
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&favouriteModel{Owner: owner, HomeID: id})
		if res.Error != nil {
			return res.Error
		}
		added = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return store.Wrap("add favourite", err)
	}
	if !added {
		return store.ErrFavouriteExists
	}
	return nil
}

// RemoveFavourite deletes the pair.
func (s *Store) RemoveFavourite(ctx context.Context, owner, homeID string) error {
	if err := store.Checkpoint(ctx, "remove favourite"); err != nil {
		return err
	}
	id, ok := parseID(homeID)
	if !ok {
		return store.ErrFavouriteNotFound
	}

	res := s.db.WithContext(ctx).Where("owner = ? AND home_id = ?", owner, id).Delete(&favouriteModel{})
	if res.Error != nil {
		return store.Wrap("remove favourite", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrFavouriteNotFound
	}
	return nil
}

// FavouriteHomeIDs lists the owner's favourites in insertion order.
func (s *Store) FavouriteHomeIDs(ctx context.Context, owner string) ([]string, error) {
	if err := store.Checkpoint(ctx, "list favourites"); err != nil {
		return nil, err
	}

	var raw []uint
	err := s.db.WithContext(ctx).
		Model(&favouriteModel{}).
		Where("owner = ?", owner).
		Order("id asc").
		Pluck("home_id", &raw).Error
	if err != nil {
		return nil, store.Wrap("list favourites", err)
	}
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, formatID(id))
	}
	return ids, nil
}

// CreateUser inserts an account with a unique email.
func (s *Store) CreateUser(ctx context.Context, user store.User) (store.User, error) {
	if err := store.Checkpoint(ctx, "create user"); err != nil {
		return store.User{}, err
	}
	user, err := store.PrepareUser(user)
	if err != nil {
		return store.User{}, err
	}

	m := userModel{
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		UserType:     user.UserType,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&userModel{}).Where("email = ?", m.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return store.ErrUserExists
		}
		return tx.Create(&m).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return store.User{}, store.ErrUserExists
	}
	if err != nil {
		return store.User{}, store.Wrap("create user", err)
	}
	return fromUserModel(m), nil
}

// UserByEmail loads an account by normalized email.
func (s *Store) UserByEmail(ctx context.Context, email string) (store.User, error) {
	if err := store.Checkpoint(ctx, "get user"); err != nil {
		return store.User{}, err
	}
	return s.findUser(s.db.WithContext(ctx).Where("email = ?", store.NormalizeEmail(email)))
}

// UserByID loads an account by id.
func (s *Store) UserByID(ctx context.Context, id string) (store.User, error) {
	if err := store.Checkpoint(ctx, "get user"); err != nil {
		return store.User{}, err
	}
	userID, ok := parseID(id)
	if !ok {
		return store.User{}, store.ErrUserNotFound
	}
	return s.findUser(s.db.WithContext(ctx).Where("id = ?", userID))
}

func (s *Store) findUser(q *gorm.DB) (store.User, error) {
	var m userModel
	err := q.First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.User{}, store.ErrUserNotFound
	}
	if err != nil {
		return store.User{}, store.Wrap("get user", err)
	}
	return fromUserModel(m), nil
}

func toHomeModel(h store.Home) homeModel {
	return homeModel{
		HouseName:   h.HouseName,
		Price:       h.Price,
		Location:    h.Location,
		Rating:      h.Rating,
		Photo:       h.Photo,
		Description: h.Description,
	}
}

func fromHomeModel(m homeModel) store.Home {
	return store.Home{
		ID:          formatID(m.ID),
		HouseName:   m.HouseName,
		Price:       m.Price,
		Location:    m.Location,
		Rating:      m.Rating,
		Photo:       m.Photo,
		Description: m.Description,
	}
}

func fromUserModel(m userModel) store.User {
	return store.User{
		ID:           formatID(m.ID),
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		UserType:     m.UserType,
	}
}

func parseID(id string) (uint, bool) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
