package vehicles

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ObjectStore persists image binaries outside the database.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Service implements catalog business rules.
type Service struct {
	repo   Repository
	store  ObjectStore
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, store ObjectStore, logger *slog.Logger) *Service {
	return &Service{repo: repo, store: store, logger: logger}
}

// List returns a catalog page.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Vehicle, int, error) {
	return s.repo.List(ctx, filters)
}

// Get returns one vehicle with its additional images.
func (s *Service) Get(ctx context.Context, id int64) (Vehicle, []Image, error) {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return Vehicle{}, nil, err
	}
	images, err := s.repo.ListImages(ctx, id)
	if err != nil {
		return Vehicle{}, nil, err
	}
	return v, images, nil
}

// Create adds a listing.
func (s *Service) Create(ctx context.Context, v Vehicle) (Vehicle, error) {
	return s.repo.Create(ctx, v)
}

// Update replaces a listing's attributes.
func (s *Service) Update(ctx context.Context, id int64, v Vehicle) error {
	return s.repo.Update(ctx, id, v)
}

// SetSold toggles the sold flag.
func (s *Service) SetSold(ctx context.Context, id int64, sold bool) error {
	return s.repo.SetSold(ctx, id, sold)
}

// Delete removes a listing and its stored images. Object deletions are
// best effort; orphaned objects are preferable to a failed delete.
func (s *Service) Delete(ctx context.Context, id int64) error {
	images, err := s.repo.ListImages(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	for _, img := range images {
		if img.ObjectKey == "" {
			continue
		}
		if err := s.store.Delete(ctx, img.ObjectKey); err != nil {
			s.logger.Warn("delete image object", slog.String("key", img.ObjectKey), slog.Any("error", err))
		}
	}
	return nil
}

// UploadImage stores the binary and records the image row.
func (s *Service) UploadImage(ctx context.Context, vehicleID int64, filename, contentType string, body io.Reader) (Image, error) {
	if _, err := s.repo.Get(ctx, vehicleID); err != nil {
		return Image{}, err
	}

	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		return Image{}, fmt.Errorf("%w: %q", ErrUnsupportedImage, ext)
	}

	key := fmt.Sprintf("vehicles/%d/%s%s", vehicleID, uuid.NewString(), ext)
	url, err := s.store.Put(ctx, key, body, contentType)
	if err != nil {
		return Image{}, fmt.Errorf("vehicles: store image: %w", err)
	}

	img, err := s.repo.AddImage(ctx, Image{VehicleID: vehicleID, ImageURL: url, ObjectKey: key})
	if err != nil {
		// The row is the source of truth; drop the orphaned object.
		if derr := s.store.Delete(ctx, key); derr != nil {
			s.logger.Warn("cleanup image object", slog.String("key", key), slog.Any("error", derr))
		}
		return Image{}, err
	}
	return img, nil
}

// DeleteImage removes the row and the stored object.
func (s *Service) DeleteImage(ctx context.Context, id int64) error {
	img, err := s.repo.GetImage(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteImage(ctx, id); err != nil {
		return err
	}
	if img.ObjectKey != "" {
		if err := s.store.Delete(ctx, img.ObjectKey); err != nil {
			s.logger.Warn("delete image object", slog.String("key", img.ObjectKey), slog.Any("error", err))
		}
	}
	return nil
}
