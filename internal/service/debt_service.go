package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/debtbook/internal/middleware"
	"github.com/mmynk/debtbook/internal/mode"
	"github.com/mmynk/debtbook/internal/models"
)

// DebtServiceName is the fully-qualified name of the debt service.
const DebtServiceName = "debtbook.v1.DebtService"

// Procedure paths of DebtService.
const (
	StartGuestProcedure         = "/" + DebtServiceName + "/StartGuest"
	EndGuestProcedure           = "/" + DebtServiceName + "/EndGuest"
	GuestStatusProcedure        = "/" + DebtServiceName + "/GuestStatus"
	ListDebtsProcedure          = "/" + DebtServiceName + "/ListDebts"
	GetDebtProcedure            = "/" + DebtServiceName + "/GetDebt"
	CreateDebtProcedure         = "/" + DebtServiceName + "/CreateDebt"
	UpdateDebtProcedure         = "/" + DebtServiceName + "/UpdateDebt"
	DeleteDebtProcedure         = "/" + DebtServiceName + "/DeleteDebt"
	ListIncomeSourcesProcedure  = "/" + DebtServiceName + "/ListIncomeSources"
	CreateIncomeSourceProcedure = "/" + DebtServiceName + "/CreateIncomeSource"
	UpdateIncomeSourceProcedure = "/" + DebtServiceName + "/UpdateIncomeSource"
	DeleteIncomeSourceProcedure = "/" + DebtServiceName + "/DeleteIncomeSource"
	ListTransactionsProcedure   = "/" + DebtServiceName + "/ListTransactions"
	AddTransactionProcedure     = "/" + DebtServiceName + "/AddTransaction"
	DeleteTransactionProcedure  = "/" + DebtServiceName + "/DeleteTransaction"
	RecalculateBalanceProcedure = "/" + DebtServiceName + "/RecalculateBalance"
)

var errAlreadySignedIn = errors.New("guest mode is not available while signed in")

// ModeController is what DebtService needs from mode.Controller.
type ModeController interface {
	Resolve(ctx context.Context, userID string) (mode.Mode, error)
	StartGuest(ctx context.Context) (*models.Session, error)
	EndGuest(ctx context.Context) error
	GuestStatus(ctx context.Context) (mode.GuestStatus, error)
}

// DebtService implements the Connect DebtService. Every call resolves the
// caller's mode first: the bearer token, if any, makes it authenticated,
// otherwise the guest session decides.
type DebtService struct {
	modes  ModeController
	ledger *Ledger
}

// NewDebtService creates a new DebtService.
func NewDebtService(modes ModeController, ledger *Ledger) *DebtService {
	return &DebtService{modes: modes, ledger: ledger}
}

type unaryFunc func(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error)

// Handler returns the path prefix and HTTP handler serving every procedure.
func (s *DebtService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	routes := map[string]unaryFunc{
		StartGuestProcedure:         s.StartGuest,
		EndGuestProcedure:           s.EndGuest,
		GuestStatusProcedure:        s.GuestStatus,
		ListDebtsProcedure:          s.ListDebts,
		GetDebtProcedure:            s.GetDebt,
		CreateDebtProcedure:         s.CreateDebt,
		UpdateDebtProcedure:         s.UpdateDebt,
		DeleteDebtProcedure:         s.DeleteDebt,
		ListIncomeSourcesProcedure:  s.ListIncomeSources,
		CreateIncomeSourceProcedure: s.CreateIncomeSource,
		UpdateIncomeSourceProcedure: s.UpdateIncomeSource,
		DeleteIncomeSourceProcedure: s.DeleteIncomeSource,
		ListTransactionsProcedure:   s.ListTransactions,
		AddTransactionProcedure:     s.AddTransaction,
		DeleteTransactionProcedure:  s.DeleteTransaction,
		RecalculateBalanceProcedure: s.RecalculateBalance,
	}
	return "/" + DebtServiceName + "/", newServiceMux(routes, opts...)
}

func newServiceMux(routes map[string]unaryFunc, opts ...connect.HandlerOption) *http.ServeMux {
	mux := http.NewServeMux()
	for procedure, fn := range routes {
		mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, opts...))
	}
	return mux
}

func (s *DebtService) resolve(ctx context.Context) (mode.Mode, error) {
	m, err := s.modes.Resolve(ctx, middleware.GetUserID(ctx))
	if err != nil {
		return mode.Mode{}, toConnectError(err)
	}
	return m, nil
}

type idRequest struct {
	ID string `json:"id"`
}

type debtIDRequest struct {
	DebtID string `json:"debtId"`
}

type debtResponse struct {
	Debt *models.Debt `json:"debt"`
}

type incomeSourceResponse struct {
	IncomeSource *models.IncomeSource `json:"incomeSource"`
}

// StartGuest enters guest mode.
func (s *DebtService) StartGuest(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	slog.Info("StartGuest request received")

	if userID := middleware.GetUserID(ctx); userID != "" {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errAlreadySignedIn)
	}
	session, err := s.modes.StartGuest(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(struct {
		Session *models.Session `json:"session"`
	}{session})
}

// EndGuest leaves guest mode and deletes all guest data.
func (s *DebtService) EndGuest(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	slog.Info("EndGuest request received")

	if err := s.modes.EndGuest(ctx); err != nil {
		return nil, toConnectError(err)
	}
	return respond(empty{})
}

// GuestStatus reports the caller's mode and the guest session.
func (s *DebtService) GuestStatus(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	m, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	status, err := s.modes.GuestStatus(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(struct {
		Mode string `json:"mode"`
		mode.GuestStatus
	}{m.String(), status})
}

// ListDebts returns the caller's debts.
func (s *DebtService) ListDebts(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	m, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListDebts request received", "mode", m)

	debts, err := s.ledger.ListDebts(ctx, m)
	if err != nil {
		return nil, toConnectError(err)
	}
	if debts == nil {
		debts = []models.Debt{}
	}
	return respond(struct {
		Debts []models.Debt `json:"debts"`
	}{debts})
}

// GetDebt returns one debt.
func (s *DebtService) GetDebt(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in idRequest
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	m, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetDebt request received", "debt_id", in.ID, "mode", m)

	debt, err := s.ledger.GetDebt(ctx, m, in.ID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(debtResponse{debt})
}

// CreateDebt creates a debt and its initial transaction.
func (s *DebtService) CreateDebt(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in struct {
		Debt models.Debt `json:"debt"`
	}
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	m, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateDebt request received", "name", in.Debt.Name, "mode", m)

	initial, err := s.ledger.CreateDebt(ctx, m, &in.Debt)
	if err != nil {
		slog.Error("CreateDebt failed", "error", err)
		return nil, toConnectError(err)
	}
	return respond(struct {
		Debt               *models.Debt        `json:"debt"`
		InitialTransaction *models.Transaction `json:"initialTransaction"`
	}{&in.Debt, initial})
}

// UpdateDebt patches a debt's descriptive fields.
func (s *DebtService) UpdateDebt(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in struct {
		ID    string           `json:"id"`
		Patch models.DebtPatch `json:"patch"`
	}
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	m, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("UpdateDebt request received", "debt_id", in.ID, "mode", m)

	debt, err := s.ledger.UpdateDebt(ctx, m, in.ID, in.Patch)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(debtResponse{debt})
}

// DeleteDebt deletes a debt and its ledger.
func (s *DebtService) DeleteDebt(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in idRequest
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	m, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("DeleteDebt request received", "debt_id", in.ID, "mode", m)

	if err := s.ledger.DeleteDebt(ctx, m, in.ID); err != nil {
		return nil, toConnectError(err)
	}
	return respond(empty{})
}

// ListIncomeSources returns the caller's income sources.
func (s *DebtService) ListIncomeSources(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	m, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListIncomeSources request received", "mode", m)

	sources, err := s.ledger.ListIncomeSources(ctx, m)
	if err != nil {
		return nil, toConnectError(err)
	}
	if sources == nil {
		sources = []models.IncomeSource{}
	}
	return respond(struct {
		IncomeSources []models.IncomeSource `json:"incomeSources"`
	}{sources})
}

// CreateIncomeSource creates an income source.
func (s *DebtService) CreateIncomeSource(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in struct {
		IncomeSource models.IncomeSource `json:"incomeSource"`
	}
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	m, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateIncomeSource request received", "source_name", in.IncomeSource.SourceName, "mode", m)

	if err := s.ledger.CreateIncomeSource(ctx, m, &in.IncomeSource); err != nil {
		return nil, toConnectError(err)
	}
	return respond(incomeSourceResponse{&in.IncomeSource})
}

// UpdateIncomeSource patches an income source.
func (s *DebtService) UpdateIncomeSource(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in struct {
		ID    string                   `json:"id"`
		Patch models.IncomeSourcePatch `json:"patch"`
	}
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	m, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("UpdateIncomeSource request received", "income_source_id", in.ID, "mode", m)

	source, err := s.ledger.UpdateIncomeSource(ctx, m, in.ID, in.Patch)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(incomeSourceResponse{source})
}

// DeleteIncomeSource deletes an income source.
func (s *DebtService) DeleteIncomeSource(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in idRequest
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	m, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("DeleteIncomeSource request received", "income_source_id", in.ID, "mode", m)

	if err := s.ledger.DeleteIncomeSource(ctx, m, in.ID); err != nil {
		return nil, toConnectError(err)
	}
	return respond(empty{})
}

// ListTransactions returns a debt's ledger.
func (s *DebtService) ListTransactions(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in debtIDRequest
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	m, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListTransactions request received", "debt_id", in.DebtID, "mode", m)

	txns, err := s.ledger.ListTransactions(ctx, m, in.DebtID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if txns == nil {
		txns = []models.Transaction{}
	}
	return respond(struct {
		Transactions []models.Transaction `json:"transactions"`
	}{txns})
}

// AddTransaction records a borrow or payment.
func (s *DebtService) AddTransaction(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in struct {
		DebtID         string                 `json:"debtId"`
		Type           models.TransactionType `json:"type"`
		Amount         decimal.Decimal        `json:"amount"`
		InterestAmount *decimal.Decimal       `json:"interestAmount"`
		Notes          string                 `json:"notes"`
	}
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	m, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("AddTransaction request received",
		"debt_id", in.DebtID,
		"type", in.Type,
		"amount", in.Amount,
		"mode", m,
	)

	txn, debt, err := s.ledger.AddTransaction(ctx, m, in.DebtID, TransactionInput{
		Type:           in.Type,
		Amount:         in.Amount,
		InterestAmount: in.InterestAmount,
		Notes:          in.Notes,
	})
	if err != nil {
		slog.Error("AddTransaction failed", "debt_id", in.DebtID, "error", err)
		return nil, toConnectError(err)
	}
	return respond(struct {
		Transaction *models.Transaction `json:"transaction"`
		Debt        *models.Debt        `json:"debt"`
	}{txn, debt})
}

// DeleteTransaction removes a transaction and reverses it.
func (s *DebtService) DeleteTransaction(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in idRequest
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	m, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("DeleteTransaction request received", "transaction_id", in.ID, "mode", m)

	debt, err := s.ledger.DeleteTransaction(ctx, m, in.ID)
	if err != nil {
		slog.Error("DeleteTransaction failed", "transaction_id", in.ID, "error", err)
		return nil, toConnectError(err)
	}
	return respond(debtResponse{debt})
}

// RecalculateBalance re-derives a debt's balance from its ledger.
func (s *DebtService) RecalculateBalance(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in debtIDRequest
	if err := decode(req.Msg, &in); err != nil {
		return nil, err
	}
	m, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("RecalculateBalance request received", "debt_id", in.DebtID, "mode", m)

	debt, err := s.ledger.RecalculateBalance(ctx, m, in.DebtID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(debtResponse{debt})
}
