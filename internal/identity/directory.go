package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/docket/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Remember upserts the actor into the users table so that references to the
// actor resolve to a display name.
func Remember(ctx context.Context, db *gorm.DB, a *Actor) error {
	if a == nil {
		return nil
	}
	u := models.User{ID: a.ID, DisplayName: a.DisplayName, Email: a.Email, Role: a.Role}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "email", "role", "updated_at"}),
	}).Create(&u).Error
	if err != nil {
		return fmt.Errorf("identity: remember user %d: %w", a.ID, err)
	}
	return nil
}

// Lookup returns the actor for a known user ID.
func Lookup(ctx context.Context, db *gorm.DB, id uint) (*Actor, error) {
	var u models.User
	if err := db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("identity: user not found: %d", id)
		}
		return nil, fmt.Errorf("identity: lookup user %d: %w", id, err)
	}
	return &Actor{ID: u.ID, Role: u.Role, DisplayName: u.DisplayName, Email: u.Email}, nil
}

// DisplayNames maps each known user ID in ids to its display name. Unknown
// IDs are absent from the result.
func DisplayNames(ctx context.Context, db *gorm.DB, ids []uint) (map[uint]string, error) {
	names := make(map[uint]string)
	if len(ids) == 0 {
		return names, nil
	}
	var users []models.User
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("identity: display names: %w", err)
	}
	for _, u := range users {
		names[u.ID] = u.DisplayName
	}
	return names, nil
}

// Users returns the users with the given IDs ordered by ID.
func Users(ctx context.Context, db *gorm.DB, ids []uint) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	if err := db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("identity: users: %w", err)
	}
	return users, nil
}

// Admins returns the IDs of every admin user.
func Admins(ctx context.Context, db *gorm.DB) ([]uint, error) {
	var ids []uint
	if err := db.WithContext(ctx).Model(&models.User{}).Where("role = ?", RoleAdmin).
		Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("identity: admins: %w", err)
	}
	return ids, nil
}
