package apperr

import "github.com/barguni/barguni-api/pkg/zerror"

const (
	ValidationErrorCode = "VALIDATION_FAILED"

	ProductCodeNotFoundCode = "PRODUCT_CODE_NOT_FOUND"
	ImageNotFoundCode       = "PRODUCT_IMAGE_NOT_FOUND"
	ImageFetchFailedCode    = "IMAGE_FETCH_FAILED"
	CorruptImageCode        = "IMAGE_CORRUPT"
	ResolveTimeoutCode      = "RESOLVE_TIMEOUT"

	ProductNotFoundCode = "PRODUCT_NOT_FOUND"
	PictureNotFoundCode = "PICTURE_NOT_FOUND"
)

var (
	ValidationErr = zerror.NewValidationFailed(ValidationErrorCode, "validation error")

	ProductCodeNotFoundErr = zerror.NewNotFound(ProductCodeNotFoundCode, "no lookup provider knows this barcode")
	ImageNotFoundErr       = zerror.NewUnprocessableEntity(ImageNotFoundCode, "no image found for product")
	ImageFetchFailedErr    = zerror.NewBadGateway(ImageFetchFailedCode, "failed to fetch product image")
	CorruptImageErr        = zerror.NewUnprocessableEntity(CorruptImageCode, "product image could not be decoded")
	ResolveTimeoutErr      = zerror.NewTimeout(ResolveTimeoutCode, "product resolution timed out")

	ProductNotFoundErr = zerror.NewNotFound(ProductNotFoundCode, "product not found")
	PictureNotFoundErr = zerror.NewNotFound(PictureNotFoundCode, "picture not found")
)
