package router

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"todocal/internal/auth"
	"todocal/internal/config"
	"todocal/internal/errors"
	"todocal/internal/handler"
	"todocal/internal/logging"
)

// multipartOverhead is headroom on top of the upload limit for multipart framing.
const multipartOverhead = 1 << 20

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	logger logging.Logger,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	authHandler *handler.AuthHandler,
	todoHandler *handler.TodoHandler,
	uploadHandler *handler.UploadHandler,
) {
	e.HTTPErrorHandler = ErrorHandler(logger)
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(middleware.RequestID())
	e.Use(RequestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dK", (cfg.UploadMaxBytes+multipartOverhead)/1024)))

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.GET("/health", handler.Health)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/upload-url", uploadHandler.UploadURL)
	api.POST("/upload-direct", uploadHandler.UploadDirect)

	// Secured routes (require a session token)
	secured := api.Group("", JWTMiddleware(jwtService, tokenStore))

	secured.GET("/auth/me", authHandler.Me)
	secured.POST("/auth/logout", authHandler.Logout)

	secured.GET("/todos", todoHandler.List)
	secured.GET("/todos/calendar", todoHandler.Calendar)
	secured.POST("/todos", todoHandler.Create)
	secured.PATCH("/todos/:id", todoHandler.Update)
	secured.DELETE("/todos/:id", todoHandler.Delete)
}

// JWTMiddleware verifies bearer tokens and stores *auth.Claims in the context.
// A missing or malformed header is 401; a token that fails verification or was revoked is 403.
func JWTMiddleware(jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  handler.ClaimsContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				return nil, err
			}
			revoked, err := tokenStore.IsRevoked(c.Request().Context(), claims.ID)
			if err != nil {
				return nil, err
			}
			if revoked {
				return nil, errors.ErrTokenRevoked
			}
			return claims, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !hasBearerToken(header) {
				return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
					Error: "authentication required",
					Code:  "UNAUTHENTICATED",
				}).SetInternal(err)
			}
			return echo.NewHTTPError(http.StatusForbidden, errors.ErrorResponse{
				Error: "invalid or expired token",
				Code:  "FORBIDDEN",
			}).SetInternal(err)
		},
	})
}

func hasBearerToken(header string) bool {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return false
	}
	return strings.TrimSpace(header[len(prefix):]) != ""
}

// RequestLogger logs one line per request through logger.
func RequestLogger(logger logging.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			}
			ctx := c.Request().Context()
			if v.Status >= http.StatusInternalServerError {
				logger.Error(ctx, "request failed", args...)
			} else {
				logger.Info(ctx, "request", args...)
			}
			return nil
		},
	})
}

// ErrorHandler renders every error as errors.ErrorResponse and logs server-side failures.
func ErrorHandler(logger logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if !stderrors.As(err, &he) {
			mapped := errors.MapErrorToHTTP(err)
			he = echo.NewHTTPError(mapped.StatusCode, mapped.ToErrorResponse()).SetInternal(err)
		}

		body, ok := he.Message.(errors.ErrorResponse)
		switch {
		case ok:
		case he.Code >= http.StatusInternalServerError:
			body = errors.ErrorResponse{Error: "internal server error", Code: "INTERNAL_ERROR"}
		default:
			body = errors.ErrorResponse{
				Error: strings.ToLower(fmt.Sprint(he.Message)),
				Code:  codeForStatus(he.Code),
			}
		}

		if he.Code >= http.StatusInternalServerError {
			cause := err
			if he.Internal != nil {
				cause = he.Internal
			}
			logger.Error(c.Request().Context(), "request error",
				"method", c.Request().Method,
				"path", c.Path(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
				"error", cause)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(he.Code)
			return
		}
		_ = c.JSON(he.Code, body)
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		if status >= http.StatusInternalServerError {
			return "INTERNAL_ERROR"
		}
		return http.StatusText(status)
	}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
