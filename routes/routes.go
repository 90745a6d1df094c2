package routes

import (
	"github.com/gofiber/fiber/v2"

	"praxis-billing/controllers"
	"praxis-billing/middlewares"
)

// Register wires all HTTP routes.
func Register(app *fiber.App) {
	api := app.Group("/api")

	// Public auth endpoints
	api.Post("/registration", controllers.Register)
	api.Post("/login", controllers.Login)
	api.Post("/logout", controllers.Logout)

	// Stateless calculators
	api.Get("/reference/:identifier", controllers.GetReference)
	api.Post("/reference/validate", controllers.ValidateReference)
	api.Post("/billing/total", controllers.ComputeTotal)
	api.Post("/billing/installments", controllers.AllocateInstallments)

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(middlewares.IsAuthenticatedHeader())

	// Idempotency guard FIRST (not tied to request TX)
	protected.Use(middlewares.Idempotency())

	// Then per-request tenant transaction (pins search_path and commits/rolls back)
	protected.Use(middlewares.TenantTx())

	// Patients
	protected.Post("/patient", controllers.CreatePatient)
	protected.Get("/patients", controllers.GetPatients)
	protected.Get("/patient/:id", controllers.GetPatient)
	protected.Put("/patient/:id", controllers.UpdatePatient)

	// Insurers
	protected.Post("/insurer", controllers.CreateInsurer)
	protected.Get("/insurers", controllers.GetInsurers)
	protected.Put("/insurer/:id", controllers.UpdateInsurer)

	// Tariff catalog
	protected.Post("/tariff", controllers.CreateTariffs) // batch create
	protected.Get("/tariffs", controllers.GetTariffs)
	protected.Put("/tariffs/:id", controllers.UpdateTariff)
	protected.Get("/tariffs/lookup/:code", controllers.LookupTariff)

	// Invoices (versioned, with installments and payments)
	protected.Post("/invoice", controllers.CreateInvoice)
	protected.Get("/invoices", controllers.GetInvoices)
	protected.Get("/invoices/export", controllers.ExportInvoices)
	protected.Get("/invoices/reference/:reference", controllers.GetInvoiceByReference)
	protected.Get("/invoice/:id", controllers.GetInvoice)
	protected.Put("/invoices/:id", controllers.UpdateInvoice)
	protected.Put("/invoices/:id/publish", controllers.PublishInvoice)
	protected.Post("/invoices/:id/send", controllers.SendInvoice)
	protected.Get("/invoices/:id/versions", controllers.GetInvoiceVersions)
	protected.Get("/invoices/:id/installments", controllers.GetInstallments)
	protected.Get("/invoices/:id/pdf", controllers.DownloadInvoicePDF)
	protected.Post("/invoices/:id/payments", controllers.CreatePayment)
	protected.Get("/invoices/:id/payments", controllers.ListPayments)
}
