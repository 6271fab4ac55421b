package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
	"github.com/trezcool/darasa/core/coin"
	"github.com/trezcool/darasa/core/comment"
	"github.com/trezcool/darasa/core/shop"
	"github.com/trezcool/darasa/core/task"
	"github.com/trezcool/darasa/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// sentinelStatus maps domain sentinel errors to HTTP statuses so handlers can
// return service errors as-is.
var sentinelStatus = []struct {
	err    error
	status int
}{
	{user.ErrNotFound, http.StatusNotFound},
	{task.ErrNotFound, http.StatusNotFound},
	{task.ErrAssignmentNotFound, http.StatusNotFound},
	{comment.ErrNotFound, http.StatusNotFound},
	{attachment.ErrNotFound, http.StatusNotFound},
	{shop.ErrItemNotFound, http.StatusNotFound},
	{shop.ErrInventoryNotFound, http.StatusNotFound},
	{coin.ErrNotFound, http.StatusNotFound},
	{coin.ErrDuplicateOp, http.StatusConflict},
}

func sentinelFor(err error) (int, bool) {
	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			return s.status, true
		}
	}
	return 0, false
}

// kindStatus maps error kinds to HTTP statuses.
var kindStatus = map[core.Kind]int{
	core.KindValidation:   http.StatusBadRequest,
	core.KindUnauthorized: http.StatusUnauthorized,
	core.KindForbidden:    http.StatusForbidden,
	core.KindNotFound:     http.StatusNotFound,
	core.KindConflict:     http.StatusConflict,
	core.KindInternal:     http.StatusInternalServerError,
}

func kindForStatus(code int) core.Kind {
	switch code {
	case http.StatusBadRequest:
		return core.KindValidation
	case http.StatusUnauthorized:
		return core.KindUnauthorized
	case http.StatusForbidden:
		return core.KindForbidden
	case http.StatusNotFound:
		return core.KindNotFound
	case http.StatusConflict:
		return core.KindConflict
	}
	return core.KindInternal
}

// errorBody is the uniform error payload: a message plus a machine-readable
// kind; field errors carry a fields map.
type errorBody struct {
	Error  string            `json:"error"`
	Kind   core.Kind         `json:"kind"`
	Fields map[string]string `json:"fields,omitempty"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var body errorBody

		// type-switch before the sentinel walk; some causes are not comparable
		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				body = errorBody{Error: "missing or malformed jwt", Kind: core.KindUnauthorized}
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			msg, _ := origErr.Message.(string)
			body = errorBody{Error: msg, Kind: kindForStatus(code)}
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			body = errorBody{Error: "invalid input", Kind: core.KindValidation, Fields: fldErrs}
		case *core.ValidationError:
			code = http.StatusBadRequest
			body = errorBody{Error: origErr.Error(), Kind: core.KindValidation}
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				if body.Error == "" {
					body.Error = "invalid input"
				}
				body.Fields = fldErrs
			}
		case *core.AppError:
			code = kindStatus[origErr.Kind]
			body = errorBody{Error: origErr.Message, Kind: origErr.Kind}
		default:
			if status, ok := sentinelFor(cause); ok {
				code = status
				body = errorBody{Error: cause.Error(), Kind: kindForStatus(status)}
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			body = errorBody{Error: http.StatusText(code), Kind: core.KindInternal}

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Username = claims.Username
				usr.Email = claims.Email
			}
			logger.Error(body.Error, errors.Wrap(err, body.Error), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && body.Kind == core.KindInternal {
			body.Error = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, body)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
