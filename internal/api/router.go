package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		r.Post("/visitors", apiHandler.CreateVisitorHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/products", apiHandler.ListProductsHandler)
			r.Get("/products/{productID}", apiHandler.GetProductHandler)
			r.Get("/stock", apiHandler.ListStockHandler)
			r.Get("/categories", apiHandler.ListCategoriesHandler)
		})
		r.Get("/pages/resolve", apiHandler.ResolvePageHandler)

		// Visitor-scoped routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Get("/cart", apiHandler.GetCartHandler)
			r.Post("/cart/items", apiHandler.AddCartItemHandler)
			r.Delete("/cart/items/{productID}", apiHandler.RemoveCartItemHandler)
			r.Post("/cart/checkout", apiHandler.CheckoutHandler)

			r.Post("/contact", apiHandler.ContactHandler)
			r.Post("/stock/{stockID}/inquiry", apiHandler.StockInquiryHandler)
			r.Post("/stock/custom-order", apiHandler.CustomOrderHandler)
			r.Post("/stock/new-arrivals", apiHandler.NewArrivalsHandler)

			r.Post("/chat/sessions", apiHandler.CreateChatSessionHandler)
			r.Get("/chat/sessions/{sessionID}", apiHandler.GetChatSessionHandler)
			r.Post("/chat/sessions/{sessionID}/messages", apiHandler.PostChatMessageHandler)
		})
	})

	return r
}
