package components

import (
	"github.com/hearthgate/hearthgate/internal/storage"
)

// UnitStorage is the persistent state store.
const UnitStorage = "Storage"

// StorageService wraps the store as a managed component.
type StorageService struct {
	store *storage.Store
}

func NewStorageService(store *storage.Store) *StorageService {
	return &StorageService{store: store}
}

func (s *StorageService) Name() string {
	return UnitStorage
}

func (s *StorageService) Start() error {
	return s.store.Open()
}

func (s *StorageService) Stop() error {
	return s.store.Close()
}
