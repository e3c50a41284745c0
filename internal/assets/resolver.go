package assets

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/book-expert/logger"

	"github.com/MatheusMDi/ia-video-generate/internal/core"
)

const assetKindImage = "image"

// ErrNoImages indicates that no images were available after resolution,
// including any auto-generation attempt.
var ErrNoImages = errors.New("no images available")

// ResolverConfig controls auto-generation when the local assets directory is
// empty.
type ResolverConfig struct {
	AutoGenerate bool
	Theme        string
	PerPage      int
}

// Resolver implements core.AssetResolver over the local asset library, with
// optional Pexels auto-generation.
type Resolver struct {
	manager *Manager
	pexels  *PexelsClient
	cfg     ResolverConfig
	log     *logger.Logger
}

// NewResolver creates an asset resolver. The pexels client may be nil when
// auto-generation is disabled.
func NewResolver(manager *Manager, pexels *PexelsClient, cfg ResolverConfig, log *logger.Logger) *Resolver {
	return &Resolver{
		manager: manager,
		pexels:  pexels,
		cfg:     cfg,
		log:     log,
	}
}

// Resolve returns one ordered asset per script section, cycling through the
// available images. When the assets directory is empty and auto-generation is
// configured, photos matching the theme are fetched first.
func (r *Resolver) Resolve(ctx context.Context, sections []core.Section) ([]core.AssetItem, error) {
	images, err := r.availableImages(ctx)
	if err != nil {
		return nil, err
	}

	if len(images) == 0 {
		return nil, core.NewStageError(core.KindAssetNotFound, ErrNoImages)
	}

	return alignToSections(images, sections), nil
}

func (r *Resolver) availableImages(ctx context.Context) ([]string, error) {
	images, err := r.manager.ListImages()
	if err != nil {
		return nil, core.NewStageError(
			core.KindAssetFetchFailed,
			fmt.Errorf("failed to list images: %w", err),
		)
	}

	if len(images) > 0 || !r.cfg.AutoGenerate || r.pexels == nil || r.cfg.Theme == "" {
		return images, nil
	}

	fetchErr := r.fetchFromPexels(ctx)
	if fetchErr != nil {
		return nil, fetchErr
	}

	images, err = r.manager.ListImages()
	if err != nil {
		return nil, core.NewStageError(
			core.KindAssetFetchFailed,
			fmt.Errorf("failed to list images after fetch: %w", err),
		)
	}

	return images, nil
}

func (r *Resolver) fetchFromPexels(ctx context.Context) error {
	r.log.Info("Assets directory empty, fetching %d photos for theme %q", r.cfg.PerPage, r.cfg.Theme)

	photoURLs, err := r.pexels.SearchPhotos(ctx, r.cfg.Theme, r.cfg.PerPage)
	if err != nil {
		return core.NewStageError(
			core.KindAssetFetchFailed,
			fmt.Errorf("pexels search for theme %q failed: %w", r.cfg.Theme, err),
		)
	}

	downloaded := 0

	for index, photoURL := range photoURLs {
		destination := filepath.Join(
			r.manager.AssetsDir(),
			fmt.Sprintf("pexels_%02d.jpg", index+1),
		)

		downloadErr := r.pexels.DownloadPhoto(ctx, photoURL, destination)
		if downloadErr != nil {
			r.log.Warn("Failed to download photo %d: %v", index+1, downloadErr)

			continue
		}

		downloaded++
	}

	r.log.Info("Downloaded %d of %d photos", downloaded, len(photoURLs))

	return nil
}

// alignToSections assigns one image per section in order, wrapping around
// when sections outnumber images. Without sections every image becomes one
// item.
func alignToSections(images []string, sections []core.Section) []core.AssetItem {
	if len(sections) == 0 {
		items := make([]core.AssetItem, 0, len(images))

		for index, image := range images {
			items = append(items, core.AssetItem{
				Ref:     image,
				Kind:    assetKindImage,
				Section: index,
			})
		}

		return items
	}

	items := make([]core.AssetItem, 0, len(sections))

	for position, section := range sections {
		items = append(items, core.AssetItem{
			Ref:     images[position%len(images)],
			Kind:    assetKindImage,
			Section: section.Index,
		})
	}

	return items
}
