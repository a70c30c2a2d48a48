package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// DataResponse writes data inside an Envelope with the given status.
func DataResponse(c echo.Context, status int, data any) error {
	return c.JSON(status, Envelope{
		Status:    status,
		Message:   http.StatusText(status),
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
		Data:      data,
	})
}

func SuccessResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusOK, data)
}

func CreatedResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusCreated, data)
}

// ListResponse writes rows as a Page.
func ListResponse(c echo.Context, rows any, total int64) error {
	return SuccessResponse(c, Page{Rows: rows, Total: total})
}

// BadRequestResponse writes validation details with status 400.
func BadRequestResponse(c echo.Context, details any) error {
	return DataResponse(c, http.StatusBadRequest, details)
}

// AppErrorResponse writes err using its AppError status. Any other error
// becomes a 500 without leaking its text.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = InternalError("something went wrong")
	}
	return DataResponse(c, appErr.Status, []*AppError{appErr})
}
