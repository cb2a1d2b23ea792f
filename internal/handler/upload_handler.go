package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"todocal/internal/errors"
	"todocal/internal/service"
)

// UploadHandler issues image upload targets.
type UploadHandler struct {
	attachments service.AttachmentService
	maxBytes    int64
}

// NewUploadHandler creates a new upload handler. maxBytes bounds direct uploads.
func NewUploadHandler(attachments service.AttachmentService, maxBytes int64) *UploadHandler {
	return &UploadHandler{attachments: attachments, maxBytes: maxBytes}
}

// ImageURLResponse carries the public address of an uploaded image.
type ImageURLResponse struct {
	ImageURL string `json:"imageUrl"`
}

// UploadURL godoc
// @Summary Issue a presigned upload URL
// @Description The client PUTs the file to uploadUrl with the same Content-Type, then stores imageUrl on a todo.
// @Tags uploads
// @Produce json
// @Param filename query string true "Original file name"
// @Param contentType query string true "MIME type"
// @Success 200 {object} service.UploadURL
// @Failure 400 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /upload-url [get]
func (h *UploadHandler) UploadURL(c echo.Context) error {
	out, err := h.attachments.IssueUploadURL(c.Request().Context(), c.QueryParam("filename"), c.QueryParam("contentType"))
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, out)
}

// UploadDirect godoc
// @Summary Upload an image through the server
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Image"
// @Success 200 {object} ImageURLResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 413 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /upload-direct [post]
func (h *UploadHandler) UploadDirect(c echo.Context) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return badRequest("no file uploaded")
	}
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		return fail(errors.ErrTooLarge)
	}

	f, err := fh.Open()
	if err != nil {
		return badRequest("unreadable file")
	}
	defer f.Close()

	limit := h.maxBytes
	if limit <= 0 {
		limit = fh.Size
	}
	body, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return badRequest("unreadable file")
	}

	url, err := h.attachments.UploadDirect(c.Request().Context(), fh.Filename, fh.Header.Get(echo.HeaderContentType), body)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, ImageURLResponse{ImageURL: url})
}
