package imagehandler

import (
	"context"
	"mime/multipart"

	"github.com/rs/zerolog"

	"houzel-server/internal/infrastructure/imagestore"
	"houzel-server/internal/infrastructure/logger"
	"houzel-server/internal/utils/platformerrors"
)

// ImageHandler stores uploaded chat images and hands back their public URL.
type ImageHandler struct {
	store imagestore.Store
	log   zerolog.Logger
}

func NewImageHandler(store imagestore.Store) *ImageHandler {
	return &ImageHandler{
		store: store,
		log:   logger.Component("image_handler"),
	}
}

// Upload saves the multipart file and returns the URL to reference it from
// chat messages.
func (h *ImageHandler) Upload(ctx context.Context, fileHeader *multipart.FileHeader) (string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerHandler,
			platformerrors.ErrorTypeValidation, "failed to open uploaded file", err)
	}
	defer file.Close()

	url, err := h.store.Save(ctx, fileHeader.Filename, file)
	if err != nil {
		return "", err
	}

	h.log.Info().Str("filename", fileHeader.Filename).Str("url", url).Msg("stored chat image")
	return url, nil
}
