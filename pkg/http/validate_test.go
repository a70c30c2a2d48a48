package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleReq struct {
	Symbol string `json:"symbol" validate:"required"`
	Source string `json:"source" default:"sample" validate:"oneof=sample inline"`
	Limit  int    `json:"limit" default:"90" validate:"gte=50"`
}

func newCtx(body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestReadAndValidateRequest_Defaults(t *testing.T) {
	c, _ := newCtx(`{"symbol":"AAPL"}`)
	var req sampleReq
	require.Nil(t, ReadAndValidateRequest(c, &req))
	assert.Equal(t, "sample", req.Source)
	assert.Equal(t, 90, req.Limit)
}

func TestReadAndValidateRequest_Errors(t *testing.T) {
	c, _ := newCtx(`{"source":"ftp","limit":3}`)
	var req sampleReq
	errs, ok := ReadAndValidateRequest(c, &req).([]ValidationError)
	require.True(t, ok)
	codes := map[string]string{}
	for _, e := range errs {
		codes[e.Field] = e.Code
	}
	assert.Equal(t, "ERR_REQUIRED", codes["symbol"])
	assert.Equal(t, "ERR_ONEOF", codes["source"])
	assert.Equal(t, "ERR_GTE", codes["limit"])
	for _, e := range errs {
		if e.Field == "source" {
			assert.Equal(t, "source must be one of: sample, inline", e.Message)
			assert.Equal(t, []string{"sample", "inline"}, e.Params["options"])
		}
	}

	c, _ = newCtx(`{`)
	errs, ok = ReadAndValidateRequest(c, &req).([]ValidationError)
	require.True(t, ok)
	assert.Equal(t, "ERR_UNKNOWN", errs[0].Code)
}

func TestAppErrorResponse(t *testing.T) {
	c, rec := newCtx("")
	require.NoError(t, AppErrorResponse(c, TooManyRequestsError("slow down")))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_RATE_LIMITED")

	c, rec = newCtx("")
	require.NoError(t, AppErrorResponse(c, errors.New("hidden")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hidden")

	c, rec = newCtx("")
	require.NoError(t, AppErrorResponse(c, GatewayTimeoutError("slow").Wrap(errors.New("deadline"))))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeTimeout)
	assert.NotContains(t, rec.Body.String(), "deadline")
}

func TestDataResponse_RequestID(t *testing.T) {
	c, rec := newCtx("")
	c.Response().Header().Set(echo.HeaderXRequestID, "req-1")
	require.NoError(t, ListResponse(c, []int{1, 2}, 2))
	assert.JSONEq(t, `{"status":200,"message":"OK","requestId":"req-1","data":{"rows":[1,2],"total":2}}`, rec.Body.String())
}
