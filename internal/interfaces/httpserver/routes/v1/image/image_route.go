package image

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"houzel-server/internal/interfaces/httpserver/handlers/imagehandler"
	"houzel-server/internal/interfaces/httpserver/responses"
	imageresponses "houzel-server/internal/interfaces/httpserver/responses/image"
	"houzel-server/internal/utils/platformerrors"
)

type ImageRoute struct {
	handler *imagehandler.ImageHandler
}

func NewImageRoute(handler *imagehandler.ImageHandler) *ImageRoute {
	return &ImageRoute{handler: handler}
}

func (route *ImageRoute) RegisterRouter(router gin.IRouter) {
	router.POST("/images", route.uploadImage)
}

func (route *ImageRoute) uploadImage(reqCtx *gin.Context) {
	fileHeader, err := reqCtx.FormFile("image")
	if err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "image file is required")
		return
	}

	url, err := route.handler.Upload(reqCtx.Request.Context(), fileHeader)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to store image")
		return
	}

	reqCtx.JSON(http.StatusOK, imageresponses.UploadImageResponse{
		Success: true,
		URL:     url,
	})
}
