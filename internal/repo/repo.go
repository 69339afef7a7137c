package repo

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = gorm.ErrRecordNotFound
	ErrConflict = errors.New("already exists")
)

type GormRepo struct {
	DB *gorm.DB
}
