package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/metinatakli/cinema-booking-core/api"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
	appvalidator "github.com/metinatakli/cinema-booking-core/internal/validator"
)

const (
	ErrInternalServer   = "The server encountered a problem and could not process your request"
	ErrNotFound         = "The requested resource not found"
	ErrUnauthorized     = "You must be authenticated to access this resource"
	ErrForbidden        = "You do not have permission to access this resource"
	ErrValidationFailed = "The request contains invalid data"

	retryAfterSeconds = "1"
)

func (app *Application) logError(r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.contextGetLogger(r).Error(err.Error(), "method", method, "uri", uri)
}

// The errorResponse() method is a generic helper for sending JSON-formatted error
// messages to the client with a given status code.
func (app *Application) errorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	resp := api.ErrorResponse{
		Message:   message,
		RequestId: middleware.GetReqID(r.Context()),
		Timestamp: time.Now(),
	}

	app.writeErrorJSON(w, r, status, resp, nil)
}

func (app *Application) writeErrorJSON(w http.ResponseWriter, r *http.Request, status int, resp any, headers http.Header) {
	err := app.writeJSON(w, status, resp, headers)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (app *Application) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)
	app.errorResponse(w, r, http.StatusInternalServerError, ErrInternalServer)
}

func (app *Application) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusNotFound, ErrNotFound)
}

func (app *Application) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusMethodNotAllowed, "The method is not supported for this resource")
}

func (app *Application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func (app *Application) unauthorizedAccessResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusUnauthorized, ErrUnauthorized)
}

func (app *Application) forbiddenResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusForbidden, ErrForbidden)
}

// failedValidationResponse reports struct validation failures field by field.
func (app *Application) failedValidationResponse(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		app.badRequestResponse(w, r, err)
		return
	}

	issues := make([]api.ValidationError, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		issues = append(issues, api.ValidationError{
			Field: fieldErr.Field(),
			Issue: appvalidator.ValidationMessage(fieldErr),
		})
	}

	app.validationResponse(w, r, ErrValidationFailed, issues)
}

func (app *Application) validationResponse(
	w http.ResponseWriter,
	r *http.Request,
	message string,
	issues []api.ValidationError) {

	resp := api.ValidationErrorResponse{
		Message:          message,
		RequestId:        middleware.GetReqID(r.Context()),
		Timestamp:        time.Now(),
		ValidationErrors: issues,
	}

	app.writeErrorJSON(w, r, http.StatusUnprocessableEntity, resp, nil)
}

func (app *Application) conflictResponse(w http.ResponseWriter, r *http.Request, e *domain.Error) {
	var headers http.Header
	if e.Retryable {
		headers = http.Header{"Retry-After": []string{retryAfterSeconds}}
	}

	seats := e.Seats
	if seats == nil {
		seats = []string{}
	}

	resp := api.ConflictErrorResponse{
		Message:   e.Message,
		RequestId: middleware.GetReqID(r.Context()),
		Timestamp: time.Now(),
		Seats:     seats,
		Retryable: e.Retryable,
	}

	app.writeErrorJSON(w, r, http.StatusConflict, resp, headers)
}

// domainErrorResponse maps an error returned by the booking core to its HTTP status.
// Internal detail is only logged.
func (app *Application) domainErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var e *domain.Error
	if !errors.As(err, &e) {
		app.serverErrorResponse(w, r, err)
		return
	}

	switch e.Kind {
	case domain.KindValidation, domain.KindInactive:
		app.validationResponse(w, r, e.Message, []api.ValidationError{{Issue: e.Message}})
	case domain.KindConflict:
		app.conflictResponse(w, r, e)
	case domain.KindNotFound:
		app.errorResponse(w, r, http.StatusNotFound, e.Message)
	case domain.KindAuthorization:
		app.errorResponse(w, r, http.StatusForbidden, e.Message)
	case domain.KindInconsistency:
		app.contextGetLogger(r).Error("manual reconciliation required", "error", err)
		app.errorResponse(w, r, http.StatusInternalServerError, ErrInternalServer)
	default:
		app.serverErrorResponse(w, r, err)
	}
}
