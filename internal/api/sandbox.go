package api

import (
	"context"
	"net/http"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/custody"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/entity"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/exchange"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/payment"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Sandbox exposes the in-process token registry and ledger so the
// marketplace can be driven end to end without a chain. Mutations run inside
// the engine so they are ordered against settlement.
type Sandbox struct {
	engine *exchange.Engine
	tokens *custody.Store
	ledger *payment.Ledger
}

func NewSandbox(engine *exchange.Engine, tokens *custody.Store, ledger *payment.Ledger) *Sandbox {
	return &Sandbox{engine, tokens, ledger}
}

func (s *Sandbox) routes(r *mux.Router) {
	r.HandleFunc("/tokens", s.handleMint).Methods("POST")
	r.HandleFunc("/tokens/{contract}/{tokenId}", s.handleGetToken).Methods("GET")
	r.HandleFunc("/approvals", s.handleApprove).Methods("POST")
	r.HandleFunc("/operators", s.handleSetOperator).Methods("POST")
	r.HandleFunc("/balances", s.handleFund).Methods("POST")
	r.HandleFunc("/balances/{principal}", s.handleGetBalance).Methods("GET")
	r.HandleFunc("/rejecting", s.handleSetRejecting).Methods("PUT")
}

func (s *Sandbox) handleMint(w http.ResponseWriter, r *http.Request) {
	var req MintRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	contract, owner := entity.NormalizeAddress(req.Contract), entity.NewPrincipal(req.Owner)
	err := s.engine.Atomically(r.Context(), func(ctx context.Context) error {
		return s.tokens.Mint(ctx, contract, req.TokenId, owner)
	})
	if err != nil {
		writeError(w, err)
		return
	}

	zap.L().With(zap.String("contract", contract), zap.Uint64("tokenId", req.TokenId), zap.String("owner", owner.String())).Info("Sandbox: Minted token")

	writeJson(w, http.StatusCreated, TokenResponse{contract, req.TokenId, owner.String()})
}

func (s *Sandbox) handleGetToken(w http.ResponseWriter, r *http.Request) {
	contract, tokenId, err := getToken(r)
	if err != nil {
		writeError(w, err)
		return
	}
	contract = entity.NormalizeAddress(contract)

	var owner entity.Principal
	err = s.engine.Atomically(r.Context(), func(ctx context.Context) error {
		owner, err = s.tokens.OwnerOf(ctx, contract, tokenId)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJson(w, http.StatusOK, TokenResponse{contract, tokenId, owner.String()})
}

func (s *Sandbox) handleApprove(w http.ResponseWriter, r *http.Request) {
	caller, err := getCaller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req ApprovalRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	contract := entity.NormalizeAddress(req.Contract)
	err = s.engine.Atomically(r.Context(), func(ctx context.Context) error {
		return s.tokens.Approve(ctx, caller, contract, req.TokenId, entity.NewPrincipal(req.Operator))
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Sandbox) handleSetOperator(w http.ResponseWriter, r *http.Request) {
	caller, err := getCaller(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req OperatorRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	contract := entity.NormalizeAddress(req.Contract)
	err = s.engine.Atomically(r.Context(), func(ctx context.Context) error {
		return s.tokens.SetApprovalForAll(ctx, caller, contract, entity.NewPrincipal(req.Operator), req.Approved)
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Sandbox) handleFund(w http.ResponseWriter, r *http.Request) {
	var req FundRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, ErrInvalidAmount)
		return
	}

	p := entity.NewPrincipal(req.Principal)
	if p.IsZero() {
		writeError(w, ErrBadRequest)
		return
	}

	var balance string
	err := s.engine.Atomically(r.Context(), func(ctx context.Context) error {
		if err := s.ledger.Fund(ctx, p, amount); err != nil {
			return err
		}

		b, err := s.ledger.BalanceOf(ctx, p)
		if err != nil {
			return err
		}
		balance = b.String()

		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJson(w, http.StatusOK, BalanceResponse{p.String(), balance})
}

func (s *Sandbox) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	p := entity.NewPrincipal(mux.Vars(r)["principal"])

	var balance string
	err := s.engine.Atomically(r.Context(), func(ctx context.Context) error {
		b, err := s.ledger.BalanceOf(ctx, p)
		if err != nil {
			return err
		}
		balance = b.String()

		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJson(w, http.StatusOK, BalanceResponse{p.String(), balance})
}

func (s *Sandbox) handleSetRejecting(w http.ResponseWriter, r *http.Request) {
	var req RejectingRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p := entity.NewPrincipal(req.Principal)
	if p.IsZero() {
		writeError(w, ErrBadRequest)
		return
	}

	err := s.engine.Atomically(r.Context(), func(ctx context.Context) error {
		return s.ledger.SetRejecting(ctx, p, req.Rejecting)
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
