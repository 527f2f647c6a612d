package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var errInternal = http.StatusText(http.StatusInternalServerError)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, m *metrics, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		resp := echo.Map{"success": false}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				resp["message"] = msg
			} else {
				resp["message"] = http.StatusText(code)
			}
		case *core.AuthError:
			m.authFailures.WithLabelValues(origErr.Message).Inc()
			code = http.StatusUnauthorized
			resp["message"] = origErr.Message
		case *core.ForbiddenError:
			m.denials.Inc()
			code = http.StatusForbidden
			resp["message"] = origErr.Error()
		case *core.NotFoundError:
			code = http.StatusNotFound
			resp["message"] = origErr.Error()
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			resp["message"] = "invalid input"
			resp["fields"] = core.TranslateErrors(origErr, translator)
		case *core.ValidationError:
			code = http.StatusBadRequest
			resp["message"] = origErr.Error()
			if len(origErr.Fields) > 0 {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				resp["message"] = "invalid input"
				resp["fields"] = fldErrs
			}
		default: // any other error is a server error, details stay in the logs
			code = http.StatusInternalServerError
			resp["message"] = errInternal

			args := []interface{}{errors.Wrap(err, errInternal)}
			if id, ok := contextIdentity(ctx); ok {
				args = append(args, id)
			}
			logger.Error(errInternal, args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// store failures never leave the server, even in debug mode
		if _, isStore := errors.Cause(err).(*core.StoreError); ctx.Echo().Debug && code == http.StatusInternalServerError && !isStore {
			resp["debug"] = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// ok writes the success envelope: {"success": true, key: value}.
func ok(ctx echo.Context, code int, key string, value interface{}) error {
	return ctx.JSON(code, echo.Map{"success": true, key: value})
}

// done writes the success envelope with a message only.
func done(ctx echo.Context, msg string) error {
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "message": msg})
}
