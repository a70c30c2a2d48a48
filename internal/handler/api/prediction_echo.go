package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"StockPredictor/internal/domain/models"
	"StockPredictor/internal/repository"
	"StockPredictor/internal/service/metrics"
	"StockPredictor/internal/service/ratelimit"
	"StockPredictor/internal/services/dataload"
	"StockPredictor/internal/services/predictor"
	"StockPredictor/internal/usecase"
	xhttp "StockPredictor/pkg/http"
	xlogger "StockPredictor/pkg/logger"
	xutil "StockPredictor/pkg/util"
)

// DefaultMaxUpload caps multipart dataset uploads.
const DefaultMaxUpload = 5 << 20

// PredictionEchoHandler serves the prediction and job endpoints.
type PredictionEchoHandler struct {
	logger    *xlogger.Logger
	uc        *usecase.PredictionUseCase
	jobs      *usecase.JobManager
	rl         *ratelimit.Limiter
	maxUpload  int64
	streamPoll time.Duration
}

func NewPredictionEchoHandler(logger *xlogger.Logger, uc *usecase.PredictionUseCase, jobs *usecase.JobManager, rl *ratelimit.Limiter) *PredictionEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &PredictionEchoHandler{
		logger:     logger,
		uc:         uc,
		jobs:       jobs,
		rl:         rl,
		maxUpload:  DefaultMaxUpload,
		streamPoll: DefaultStreamPoll,
	}
}

// WithStreamPoll sets how often job streams re-read the store; d <= 0 is ignored.
func (h *PredictionEchoHandler) WithStreamPoll(d time.Duration) *PredictionEchoHandler {
	if d > 0 {
		h.streamPoll = d
	}
	return h
}

func (h *PredictionEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/predict", h.Predict, h.limit("predict"))
	g.POST("/predict/upload", h.Upload, h.limit("upload"))
	g.GET("/samples", h.Samples)
	g.POST("/jobs", h.SubmitJob, h.limit("jobs"))
	g.GET("/jobs/:id", h.GetJob)
	g.GET("/jobs/:id/stream", h.StreamJob)
}

// limit rejects requests over the per-client budget with 429.
func (h *PredictionEchoHandler) limit(endpoint string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if h.rl != nil && !h.rl.Allow(c.RealIP()+":"+endpoint) {
				metrics.RateLimited.WithLabelValues(endpoint).Inc()
				h.logger.Warn("rate limited",
					xlogger.String("endpoint", endpoint),
					xlogger.String("remote", c.RealIP()))
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many requests"))
			}
			return next(c)
		}
	}
}

func (h *PredictionEchoHandler) Predict(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues("predict").Observe(time.Since(start).Seconds()) }()

	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.uc.Predict(c.Request().Context(), paramsOf(req))
	if err != nil {
		return h.fail(c, "predict", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionEchoHandler) Upload(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues("upload").Observe(time.Since(start).Seconds()) }()

	fh, err := c.FormFile("file")
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("file is required"))
	}
	if fh.Size > h.maxUpload {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("file exceeds %d bytes", h.maxUpload))
	}
	format, err := dataload.FormatOf(fh.Filename)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	f, err := fh.Open()
	if err != nil {
		return h.fail(c, "upload", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload))
	if err != nil {
		return h.fail(c, "upload", err)
	}

	res, err := h.uc.Predict(c.Request().Context(), usecase.PredictParams{
		Symbol: c.FormValue("symbol"),
		Source: models.SourceFile,
		File:   data,
		Format: format,
	})
	if err != nil {
		return h.fail(c, "upload", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionEchoHandler) Samples(c echo.Context) error {
	pts := h.uc.Samples()
	if n := xutil.ParseIntDefault(c.QueryParam("limit"), 0); n > 0 && n < len(pts) {
		pts = pts[len(pts)-n:]
	}
	return xhttp.ListResponse(c, pts, int64(len(pts)))
}

func (h *PredictionEchoHandler) SubmitJob(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	job, err := h.jobs.Submit(c.Request().Context(), paramsOf(req))
	if err != nil {
		return h.fail(c, "jobs", err)
	}
	return xhttp.CreatedResponse(c, job)
}

func (h *PredictionEchoHandler) GetJob(c echo.Context) error {
	job, err := h.jobs.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "job", err)
	}
	return xhttp.SuccessResponse(c, job)
}

func paramsOf(req *models.PredictRequest) usecase.PredictParams {
	return usecase.PredictParams{
		Symbol: req.Symbol,
		Source: req.Source,
		Limit:  req.Limit,
		Points: req.Points,
	}
}

// fail maps use case errors onto the response envelope.
func (h *PredictionEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	metrics.APIErrors.WithLabelValues(endpoint, http.StatusText(appErr.Status)).Inc()
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(endpoint+" failed", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, usecase.ErrSymbolRequired),
		errors.Is(err, usecase.ErrNoData),
		errors.Is(err, dataload.ErrTooFewPoints),
		errors.Is(err, dataload.ErrParse),
		errors.Is(err, dataload.ErrUnknownSource),
		errors.Is(err, dataload.ErrNotConfigured):
		return xhttp.BadRequestError(strings.TrimSpace(err.Error())).Wrap(err)
	case errors.Is(err, repository.ErrJobNotFound):
		return xhttp.NotFoundError("job not found").Wrap(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.GatewayTimeoutError("prediction timed out").Wrap(err)
	case errors.Is(err, predictor.ErrPredictionFailed):
		return xhttp.InternalError("prediction failed").Wrap(err)
	default:
		return xhttp.InternalError("something went wrong").Wrap(err)
	}
}
