package media

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/facette/natsort"
	"gocv.io/x/gocv"
)

// ErrMissingGallery means there is nothing to match against: the directory did
// not exist or holds no supported images.
var ErrMissingGallery = errors.New("missing gallery")

// GalleryEntry is one reference image. The identity is the file name without
// its extension.
type GalleryEntry struct {
	Identity string `json:"identity"`
	Path     string `json:"path"`
}

// ListGallery returns the reference images in dir in natural order. A missing
// directory is created so the operator knows where to put photos, and reported
// as ErrMissingGallery like an empty one.
func ListGallery(dir string) ([]GalleryEntry, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return nil, fmt.Errorf("failed to create gallery directory %s: %w", dir, mkErr)
		}
		log.Printf("gallery: created %s", dir)
		return nil, fmt.Errorf("%w: created empty directory %s, add one photo per person named <person>.jpg", ErrMissingGallery, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read gallery directory %s: %w", dir, err)
	}

	var gallery []GalleryEntry
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !IsRasterImage(e.Name()) {
			continue
		}
		name := e.Name()
		gallery = append(gallery, GalleryEntry{
			Identity: strings.TrimSuffix(name, filepath.Ext(name)),
			Path:     filepath.Join(dir, name),
		})
	}
	if len(gallery) == 0 {
		return nil, fmt.Errorf("%w: no images in %s, add one photo per person named <person>.jpg", ErrMissingGallery, dir)
	}

	sort.SliceStable(gallery, func(i, j int) bool {
		return natsort.Compare(gallery[i].Identity, gallery[j].Identity)
	})
	return gallery, nil
}

// LoadGalleryImage reads a reference image with its EXIF orientation applied,
// bounded to maxSide pixels on its longer side.
func LoadGalleryImage(path string, maxSide int) (gocv.Mat, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to open %s: %w", path, err)
	}
	b := img.Bounds()
	if maxSide > 0 && (b.Dx() > maxSide || b.Dy() > maxSide) {
		img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to convert %s: %w", path, err)
	}
	return mat, nil
}
