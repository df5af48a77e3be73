/**
 * @description
 * This file defines the main router for the validation service's API.
 * It uses the chi router to set up middleware and mount the endpoint
 * handlers. Every route except the health check sits behind the JWT
 * authentication middleware.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: The core routing library.
 * - github.com/go-chi/chi/v5/middleware: For common middleware like logging and recovery.
 * - github.com/go-chi/cors: For Cross-Origin Resource Sharing configuration.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates and configures a new chi router with all application routes.
func NewRouter(handlers *ValidationHandlers, jwtSecret string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Route("/validation", func(r chi.Router) {
			r.Route("/beneficiaries", func(r chi.Router) {
				r.Post("/{code}/submit", handlers.SubmitBeneficiaryHandler)
				r.Post("/{code}/approve", handlers.ApproveBeneficiaryHandler)
				r.Post("/{code}/reject", handlers.RejectBeneficiaryHandler)
				r.Post("/submit", handlers.SubmitBeneficiaryBatchHandler)
				r.Post("/approve", handlers.ApproveBeneficiaryBatchHandler)
				r.Post("/reject", handlers.RejectBeneficiaryBatchHandler)
			})
			r.Route("/domiciliations", func(r chi.Router) {
				r.Post("/{code}/submit", handlers.SubmitDomiciliationHandler)
				r.Post("/{code}/approve", handlers.ApproveDomiciliationHandler)
				r.Post("/{code}/reject", handlers.RejectDomiciliationHandler)
				r.Post("/submit", handlers.SubmitDomiciliationBatchHandler)
				r.Post("/approve", handlers.ApproveDomiciliationBatchHandler)
				r.Post("/reject", handlers.RejectDomiciliationBatchHandler)
			})
			r.Route("/payments", func(r chi.Router) {
				r.Post("/{code}/submit", handlers.SubmitPaymentHandler)
				r.Post("/{code}/approve", handlers.ApprovePaymentHandler)
				r.Post("/{code}/reject", handlers.RejectPaymentHandler)
				r.Post("/submit", handlers.SubmitPaymentBatchHandler)
				r.Post("/approve", handlers.ApprovePaymentBatchHandler)
				r.Post("/reject", handlers.RejectPaymentBatchHandler)
			})
		})

		r.Post("/beneficiaries/{code}/combined-submit", handlers.CombinedSubmitHandler)

		r.Route("/payments", func(r chi.Router) {
			r.Get("/{code}", handlers.GetPaymentHandler)
			r.Post("/{code}/details", handlers.AddPaymentDetailHandler)
			r.Post("/{code}/transfer", handlers.RecordTransferHandler)
		})

		r.Route("/codes", func(r chi.Router) {
			r.Get("/beneficiary", handlers.NextBeneficiaryCodeHandler)
			r.Get("/domiciliation", handlers.NextDomiciliationCodeHandler)
		})

		r.Get("/worklists/pending", handlers.WorklistHandler)
	})

	return r
}
