/**
 * @description
 * This file sets up the HTTP router for the Perch backend. It defines the API
 * endpoints, associates them with their handlers, and applies middleware for
 * logging, panic recovery, timeouts, and bearer-token authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes creates and returns the router for the Perch backend API.
func Routes(h *Handlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		// Accounts and ledger
		r.Post("/accounts", h.CreateAccountHandler)
		r.Get("/accounts", h.ListAccountsHandler)
		r.Post("/accounts/transfer", h.TransferHandler)
		r.Get("/accounts/{accountID}", h.GetAccountHandler)
		r.Post("/accounts/{accountID}/deposit", h.DepositHandler)
		r.Get("/accounts/{accountID}/transactions", h.ListTransactionsHandler)

		// ExtraCash advances
		r.Get("/advances/eligibility", h.EligibilityHandler)
		r.Post("/advances", h.RequestAdvanceHandler)
		r.Get("/advances", h.ListAdvancesHandler)
		r.Get("/advances/{advanceID}", h.GetAdvanceHandler)
		r.Post("/advances/{advanceID}/repay", h.RepayAdvanceHandler)

		// Savings goals
		r.Post("/goals", h.CreateGoalHandler)
		r.Get("/goals", h.ListGoalsHandler)
		r.Get("/goals/{goalID}", h.GetGoalHandler)
		r.Post("/goals/{goalID}/fund", h.FundGoalHandler)

		// Bill pay
		r.Post("/bills", h.CreateBillHandler)
		r.Get("/bills", h.ListBillsHandler)
		r.Post("/bills/{billID}/pay", h.PayBillHandler)

		// Purchase simulation
		r.Post("/transactions/simulate", h.SimulatePurchaseHandler)

		// Linked external bank accounts
		r.Post("/linked-accounts", h.LinkAccountHandler)
		r.Get("/linked-accounts", h.ListLinkedAccountsHandler)
		r.Post("/linked-accounts/{linkedAccountID}/verify", h.VerifyLinkedAccountHandler)
		r.Put("/linked-accounts/{linkedAccountID}/primary", h.SetPrimaryLinkedAccountHandler)

		// Transaction PIN security
		r.Post("/security/pin", h.SetPINHandler)
		r.Post("/security/pin/verify", h.VerifyPINHandler)
	})

	return r
}
