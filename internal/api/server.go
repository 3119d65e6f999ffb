package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/event"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/exchange"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/repository"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CallerHeader carries the principal a request acts for.
const CallerHeader = "X-Principal"

const (
	defaultHistorySize = 20
	maxHistorySize     = 500
)

type Server struct {
	engine  *exchange.Engine
	history *event.History
	sandbox *Sandbox
	actions repository.ActionRepository
}

// NewServer serves the marketplace. The sandbox routes are only mounted when
// sandbox is not nil.
func NewServer(engine *exchange.Engine, history *event.History, sandbox *Sandbox) Server {
	return Server{engine: engine, history: history, sandbox: sandbox}
}

// WithActions mounts the per token history backed by the search index.
func (s Server) WithActions(actions repository.ActionRepository) Server {
	s.actions = actions
	return s
}

func (s Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	r.HandleFunc("/listings", s.handleGetListings).Methods("GET")
	r.HandleFunc("/listings", s.handleCreateListing).Methods("POST")
	r.HandleFunc("/listings/{contract}/{tokenId}", s.handleGetListing).Methods("GET")
	r.HandleFunc("/listings/{contract}/{tokenId}/exists", s.handleListingExists).Methods("GET")
	r.HandleFunc("/listings/{contract}/{tokenId}/buy", s.handleBuy).Methods("POST")
	r.HandleFunc("/listings/{contract}/{tokenId}", s.handleDelist).Methods("DELETE")

	r.HandleFunc("/fee", s.handleGetFee).Methods("GET")
	r.HandleFunc("/fee/{price}", s.handleFeePreview).Methods("GET")
	r.HandleFunc("/fee", s.handleSetSaleFee).Methods("PUT")
	r.HandleFunc("/fee/owner", s.handleTransferFeeOwnership).Methods("PUT")

	r.HandleFunc("/events", s.handleGetEvents).Methods("GET")

	if s.actions != nil {
		r.HandleFunc("/listings/{contract}/{tokenId}/history", s.handleGetTokenHistory).Methods("GET")
		r.HandleFunc("/listings/{contract}/{tokenId}/last-sale", s.handleGetLastSale).Methods("GET")
	}

	if s.sandbox != nil {
		s.sandbox.routes(r.PathPrefix("/sandbox").Subrouter())
	}

	r.NotFoundHandler = notFoundHandler()

	return r
}

func (s Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

func (s Server) handleGetListings(w http.ResponseWriter, r *http.Request) {
	listings, err := s.engine.Listings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]ListingResponse, 0, len(listings))
	for _, l := range listings {
		resp = append(resp, newListingResponse(l))
	}

	writeJson(w, http.StatusOK, resp)
}

func (s Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	caller, err := getCaller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req CreateListingRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	price, ok := parseAmount(req.Price)
	if !ok {
		writeError(w, ErrInvalidAmount)
		return
	}

	listing, err := s.engine.List(r.Context(), caller, req.Contract, req.TokenId, price)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJson(w, http.StatusCreated, newListingResponse(listing))
}

func (s Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	contract, tokenId, err := getToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	listing, err := s.engine.GetListing(r.Context(), contract, tokenId)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJson(w, http.StatusOK, newListingResponse(listing))
}

func (s Server) handleListingExists(w http.ResponseWriter, r *http.Request) {
	contract, tokenId, err := getToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	exists, err := s.engine.ListingExists(r.Context(), contract, tokenId)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJson(w, http.StatusOK, ExistsResponse{exists})
}

func (s Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	caller, err := getCaller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	contract, tokenId, err := getToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req BuyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	payment, ok := parseAmount(req.Payment)
	if !ok {
		writeError(w, ErrInvalidAmount)
		return
	}

	settlement, err := s.engine.Buy(r.Context(), caller, contract, tokenId, payment)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJson(w, http.StatusOK, newSettlementResponse(settlement))
}

func (s Server) handleDelist(w http.ResponseWriter, r *http.Request) {
	caller, err := getCaller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	contract, tokenId, err := getToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	listing, err := s.engine.Delist(r.Context(), caller, contract, tokenId)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJson(w, http.StatusOK, newListingResponse(listing))
}

func (s Server) handleGetFee(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, FeeResponse{
		Owner:       s.engine.Fees().Owner().String(),
		SaleFee:     s.engine.Fees().Fraction(),
		Denominator: entity.FeeDenominator,
		MaxSaleFee:  entity.MaxSaleFee,
	})
}

func (s Server) handleFeePreview(w http.ResponseWriter, r *http.Request) {
	price, ok := parseAmount(mux.Vars(r)["price"])
	if !ok {
		writeError(w, ErrInvalidAmount)
		return
	}

	writeJson(w, http.StatusOK, FeePreviewResponse{Price: price.String(), Fee: s.engine.CalculateFee(price).String()})
}

func (s Server) handleSetSaleFee(w http.ResponseWriter, r *http.Request) {
	caller, err := getCaller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req SetSaleFeeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := s.engine.SetSaleFee(r.Context(), caller, req.Fraction); err != nil {
		writeError(w, err)
		return
	}

	s.handleGetFee(w, r)
}

func (s Server) handleTransferFeeOwnership(w http.ResponseWriter, r *http.Request) {
	caller, err := getCaller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req FeeOwnerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := s.engine.TransferFeeOwnership(r.Context(), caller, entity.NewPrincipal(req.Owner)); err != nil {
		writeError(w, err)
		return
	}

	s.handleGetFee(w, r)
}

func (s Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 0 {
			writeError(w, ErrBadRequest)
			return
		}
		limit = l
	}

	writeJson(w, http.StatusOK, s.history.Recent(limit))
}

func (s Server) handleGetTokenHistory(w http.ResponseWriter, r *http.Request) {
	contract, tokenId, err := getToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	size := defaultHistorySize
	if v := r.URL.Query().Get("size"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l <= 0 || l > maxHistorySize {
			writeError(w, ErrBadRequest)
			return
		}
		size = l
	}

	actions, err := s.actions.GetActionsForToken(r.Context(), contract, tokenId, size)
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("contract", contract), zap.Uint64("tokenId", tokenId)).Error("API: Failed to get token history")
		writeError(w, ErrSearchUnavailable)
		return
	}

	writeJson(w, http.StatusOK, actions)
}

func (s Server) handleGetLastSale(w http.ResponseWriter, r *http.Request) {
	contract, tokenId, err := getToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	sale, err := s.actions.GetLastSale(r.Context(), contract, tokenId)
	if errors.Is(err, repository.ErrActionNotFound) {
		writeError(w, err)
		return
	}
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("contract", contract), zap.Uint64("tokenId", tokenId)).Error("API: Failed to get last sale")
		writeError(w, ErrSearchUnavailable)
		return
	}

	writeJson(w, http.StatusOK, sale)
}

func getCaller(r *http.Request) (entity.Principal, error) {
	caller := entity.NewPrincipal(r.Header.Get(CallerHeader))
	if caller.IsZero() {
		return "", ErrMissingCaller
	}

	return caller, nil
}

func getToken(r *http.Request) (string, uint64, error) {
	tokenId, err := strconv.ParseUint(mux.Vars(r)["tokenId"], 10, 64)
	if err != nil {
		return "", 0, ErrInvalidToken
	}

	return mux.Vars(r)["contract"], tokenId, nil
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		zap.L().With(zap.Error(err), zap.String("path", r.URL.Path)).Debug("API: Malformed request body")
		return ErrBadRequest
	}

	return nil
}

func notFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJson(w, http.StatusNotFound, ErrorResponse{Error: "page not found", Category: string(exchange.StateError)})
	})
}
