package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/custody"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/exchange"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/payment"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/repository"
	"go.uber.org/zap"
)

var (
	ErrMissingCaller = errors.New("missing " + CallerHeader + " header")
	ErrBadRequest    = errors.New("malformed request")
	ErrInvalidAmount = errors.New("amount must be a base 10 integer")
	ErrInvalidToken  = errors.New("invalid token id")

	ErrSearchUnavailable = errors.New("action search is unavailable")
)

type apiError struct {
	status   int
	category exchange.ErrorCategory
}

// Failures of the sandbox collaborators and the search index reach the API
// unwrapped.
var collaboratorErrors = map[error]apiError{
	custody.ErrTokenNotFound:       {http.StatusNotFound, exchange.StateError},
	custody.ErrTokenExists:         {http.StatusConflict, exchange.StateError},
	custody.ErrNotHolder:           {http.StatusForbidden, exchange.AuthorizationError},
	custody.ErrTransferNotApproved: {http.StatusForbidden, exchange.AuthorizationError},
	custody.ErrZeroAddress:         {http.StatusBadRequest, exchange.ValidationError},
	payment.ErrInvalidAmount:       {http.StatusBadRequest, exchange.ValidationError},
	payment.ErrInsufficientFunds:   {http.StatusConflict, exchange.StateError},
	payment.ErrCannotReceive:       {http.StatusConflict, exchange.StateError},

	repository.ErrActionNotFound: {http.StatusNotFound, exchange.StateError},
	ErrSearchUnavailable:         {http.StatusBadGateway, exchange.CollaboratorError},
}

func classify(err error) apiError {
	switch exchange.Category(err) {
	case exchange.ValidationError:
		return apiError{http.StatusBadRequest, exchange.ValidationError}
	case exchange.AuthorizationError:
		return apiError{http.StatusForbidden, exchange.AuthorizationError}
	case exchange.StateError:
		if errors.Is(err, exchange.ErrNoSuchListing) {
			return apiError{http.StatusNotFound, exchange.StateError}
		}
		return apiError{http.StatusConflict, exchange.StateError}
	case exchange.CollaboratorError:
		return apiError{http.StatusBadGateway, exchange.CollaboratorError}
	}

	switch {
	case errors.Is(err, ErrMissingCaller), errors.Is(err, ErrBadRequest), errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidToken):
		return apiError{http.StatusBadRequest, exchange.ValidationError}
	}

	for sentinel, e := range collaboratorErrors {
		if errors.Is(err, sentinel) {
			return e
		}
	}

	return apiError{http.StatusInternalServerError, exchange.InternalError}
}

func writeError(w http.ResponseWriter, err error) {
	e := classify(err)
	if e.status == http.StatusInternalServerError {
		zap.L().With(zap.Error(err)).Error("API: Request failed")
	}

	writeJson(w, e.status, ErrorResponse{Error: err.Error(), Category: string(e.category)})
}

func writeJson(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().With(zap.Error(err)).Warn("API: Failed to write response")
	}
}
