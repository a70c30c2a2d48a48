package http

import "github.com/labstack/echo/v4"

// Handler mounts its routes on e.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// Handlers mounts several handlers in order. Nil entries are skipped.
type Handlers []Handler

func (hs Handlers) RegisterRoutes(e *echo.Echo) {
	for _, h := range hs {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
}
