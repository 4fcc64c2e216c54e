package vehicles_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/garagehq/garagehq/internal/vehicles"
	_ "github.com/garagehq/garagehq/testing"
)

type fakeRepo struct {
	vehicles map[int64]vehicles.Vehicle
	images   map[int64]vehicles.Image
	nextID   int64
	imageID  int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{vehicles: make(map[int64]vehicles.Vehicle), images: make(map[int64]vehicles.Image)}
}

func (f *fakeRepo) List(ctx context.Context, filters vehicles.ListFilters) ([]vehicles.Vehicle, int, error) {
	var out []vehicles.Vehicle
	for _, v := range f.vehicles {
		if !filters.IncludeSold && v.IsSold {
			continue
		}
		if filters.Category != "" && v.Category != filters.Category {
			continue
		}
		out = append(out, v)
	}
	return out, len(out), nil
}

func (f *fakeRepo) Get(ctx context.Context, id int64) (vehicles.Vehicle, error) {
	v, ok := f.vehicles[id]
	if !ok {
		return vehicles.Vehicle{}, vehicles.ErrVehicleNotFound
	}
	return v, nil
}

func (f *fakeRepo) Create(ctx context.Context, v vehicles.Vehicle) (vehicles.Vehicle, error) {
	f.nextID++
	v.ID = f.nextID
	f.vehicles[v.ID] = v
	return v, nil
}

func (f *fakeRepo) Update(ctx context.Context, id int64, v vehicles.Vehicle) error {
	if _, ok := f.vehicles[id]; !ok {
		return vehicles.ErrVehicleNotFound
	}
	v.ID = id
	f.vehicles[id] = v
	return nil
}

func (f *fakeRepo) SetSold(ctx context.Context, id int64, sold bool) error {
	v, ok := f.vehicles[id]
	if !ok {
		return vehicles.ErrVehicleNotFound
	}
	v.IsSold = sold
	f.vehicles[id] = v
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.vehicles[id]; !ok {
		return vehicles.ErrVehicleNotFound
	}
	delete(f.vehicles, id)
	return nil
}

func (f *fakeRepo) AddImage(ctx context.Context, img vehicles.Image) (vehicles.Image, error) {
	f.imageID++
	img.ID = f.imageID
	f.images[img.ID] = img
	return img, nil
}

func (f *fakeRepo) ListImages(ctx context.Context, vehicleID int64) ([]vehicles.Image, error) {
	var out []vehicles.Image
	for _, img := range f.images {
		if img.VehicleID == vehicleID {
			out = append(out, img)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetImage(ctx context.Context, id int64) (vehicles.Image, error) {
	img, ok := f.images[id]
	if !ok {
		return vehicles.Image{}, vehicles.ErrImageNotFound
	}
	return img, nil
}

func (f *fakeRepo) DeleteImage(ctx context.Context, id int64) error {
	if _, ok := f.images[id]; !ok {
		return vehicles.ErrImageNotFound
	}
	delete(f.images, id)
	return nil
}

type fakeStore struct {
	objects map[string][]byte
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.objects[key] = data
	return "https://cdn.garage.test/" + key, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func newService(t *testing.T) (*vehicles.Service, *fakeRepo, *fakeStore) {
	t.Helper()
	repo := newFakeRepo()
	store := newFakeStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return vehicles.NewService(repo, store, logger), repo, store
}

func TestUploadImageStoresObjectAndRow(t *testing.T) {
	service, repo, store := newService(t)
	v, err := service.Create(context.Background(), vehicles.Vehicle{Brand: "Peugeot", Model: "208"})
	require.NoError(t, err)

	img, err := service.UploadImage(context.Background(), v.ID, "front.jpg", "image/jpeg", bytes.NewReader([]byte("jpegdata")))
	require.NoError(t, err)
	require.Equal(t, v.ID, img.VehicleID)
	require.True(t, strings.HasPrefix(img.ImageURL, "https://cdn.garage.test/vehicles/"))

	require.Len(t, store.objects, 1)
	require.Len(t, repo.images, 1)
}

func TestUploadImageRejectsUnknownVehicle(t *testing.T) {
	service, _, store := newService(t)
	_, err := service.UploadImage(context.Background(), 42, "front.jpg", "image/jpeg", bytes.NewReader(nil))
	require.ErrorIs(t, err, vehicles.ErrVehicleNotFound)
	require.Empty(t, store.objects)
}

func TestUploadImageRejectsUnsupportedFormat(t *testing.T) {
	service, _, _ := newService(t)
	v, err := service.Create(context.Background(), vehicles.Vehicle{Brand: "Audi", Model: "A3"})
	require.NoError(t, err)

	_, err = service.UploadImage(context.Background(), v.ID, "virus.exe", "application/octet-stream", bytes.NewReader(nil))
	require.ErrorIs(t, err, vehicles.ErrUnsupportedImage)
}

func TestUploadImageStoreFailureLeavesNoRow(t *testing.T) {
	service, repo, store := newService(t)
	store.putErr = errors.New("bucket unavailable")
	v, err := service.Create(context.Background(), vehicles.Vehicle{Brand: "BMW", Model: "320d"})
	require.NoError(t, err)

	_, err = service.UploadImage(context.Background(), v.ID, "front.png", "image/png", bytes.NewReader([]byte("png")))
	require.Error(t, err)
	require.Empty(t, repo.images)
}

func TestDeleteVehicleRemovesStoredImages(t *testing.T) {
	service, repo, store := newService(t)
	v, err := service.Create(context.Background(), vehicles.Vehicle{Brand: "Renault", Model: "Clio"})
	require.NoError(t, err)
	_, err = service.UploadImage(context.Background(), v.ID, "a.jpg", "image/jpeg", bytes.NewReader([]byte("a")))
	require.NoError(t, err)

	require.NoError(t, service.Delete(context.Background(), v.ID))
	require.Empty(t, repo.vehicles)
	require.Empty(t, store.objects)
}

func TestDeleteImageRemovesObject(t *testing.T) {
	service, _, store := newService(t)
	v, err := service.Create(context.Background(), vehicles.Vehicle{Brand: "Renault", Model: "Clio"})
	require.NoError(t, err)
	img, err := service.UploadImage(context.Background(), v.ID, "a.webp", "image/webp", bytes.NewReader([]byte("a")))
	require.NoError(t, err)

	require.NoError(t, service.DeleteImage(context.Background(), img.ID))
	require.Empty(t, store.objects)
}
