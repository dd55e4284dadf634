package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"abzellie.com/storefront/internal/auth"
	"abzellie.com/storefront/internal/cart"
	"abzellie.com/storefront/internal/catalog"
	"abzellie.com/storefront/internal/contact"
	"abzellie.com/storefront/internal/core"
	"abzellie.com/storefront/internal/nav"
	"abzellie.com/storefront/internal/store"
)

type APIHandler struct {
	catalog     *catalog.Catalog
	store       store.Store
	signer      *auth.Signer
	chatService *core.ChatService
	logger      *slog.Logger
}

// NewAPIHandler wires the handlers. kv is the shared store that every
// visitor gets a namespace of.
func NewAPIHandler(c *catalog.Catalog, kv store.Store, signer *auth.Signer, cs *core.ChatService, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{
		catalog:     c,
		store:       kv,
		signer:      signer,
		chatService: cs,
		logger:      logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

type CreateVisitorResponse struct {
	VisitorID string `json:"visitor_id"`
	Token     string `json:"token"`
}

func (h *APIHandler) CreateVisitorHandler(w http.ResponseWriter, r *http.Request) {
	visitorID, token, err := h.signer.NewVisitor()
	if err != nil {
		h.logger.Error("failed to issue visitor token", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	writeJSON(w, http.StatusCreated, CreateVisitorResponse{VisitorID: visitorID, Token: token})
}

// Catalog

func (h *APIHandler) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query, err := catalog.ParseQuery(q.Get("category"), q.Get("search"), q.Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.catalog.Browse(query))
}

func (h *APIHandler) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := h.catalog.Lookup(chi.URLParam(r, "productID"))
	if !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *APIHandler) ListStockHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Stock())
}

func (h *APIHandler) ListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalog.Categories())
}

type ResolvePageResponse struct {
	Path string     `json:"path"`
	Page nav.PageID `json:"page"`
}

func (h *APIHandler) ResolvePageHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = nav.RootPath
	}
	writeJSON(w, http.StatusOK, ResolvePageResponse{Path: path, Page: nav.Resolve(path)})
}

// Cart

type CartResponse struct {
	Lines          []cart.Line `json:"lines"`
	ItemCount      int         `json:"item_count"`
	Total          int64       `json:"total"`
	TotalFormatted string      `json:"total_formatted"`
	Currency       string      `json:"currency"`
	OpenCart       bool        `json:"open_cart,omitempty"`
}

func newCartResponse(c *cart.Cart) CartResponse {
	return CartResponse{
		Lines:          c.Lines(),
		ItemCount:      c.ItemCount(),
		Total:          c.Total(),
		TotalFormatted: catalog.FormatPrice(c.Total()),
		Currency:       catalog.Currency.String(),
	}
}

func (h *APIHandler) visitorCart(r *http.Request) (*cart.Cart, error) {
	return cart.New(r.Context(), store.Scoped(h.store, VisitorID(r.Context())), cart.WithLogger(h.logger))
}

func (h *APIHandler) GetCartHandler(w http.ResponseWriter, r *http.Request) {
	c, err := h.visitorCart(r)
	if err != nil {
		h.logger.Error("failed to load cart", "visitor_id", VisitorID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load cart")
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(c))
}

type AddCartItemRequest struct {
	ProductID string `json:"product_id"`
}

func (h *APIHandler) AddCartItemHandler(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	product, ok := h.catalog.Lookup(req.ProductID)
	if !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	c, err := h.visitorCart(r)
	if err != nil {
		h.logger.Error("failed to load cart", "visitor_id", VisitorID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load cart")
		return
	}

	opened := false
	unsubscribe := c.OnOpen(func(cart.Event) { opened = true })
	defer unsubscribe()

	if err := c.AddItem(r.Context(), product); err != nil {
		h.logger.Error("failed to add cart item", "visitor_id", VisitorID(r.Context()), "product_id", product.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update cart")
		return
	}

	resp := newCartResponse(c)
	resp.OpenCart = opened
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) RemoveCartItemHandler(w http.ResponseWriter, r *http.Request) {
	c, err := h.visitorCart(r)
	if err != nil {
		h.logger.Error("failed to load cart", "visitor_id", VisitorID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load cart")
		return
	}
	if err := c.RemoveItem(r.Context(), chi.URLParam(r, "productID")); err != nil {
		h.logger.Error("failed to remove cart item", "visitor_id", VisitorID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update cart")
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(c))
}

type HandoffResponse struct {
	URL string `json:"url"`
}

func (h *APIHandler) handoff(w http.ResponseWriter, text string) {
	h.handoffTo(w, h.catalog.Company().PrimaryPhone(), text)
}

func (h *APIHandler) handoffTo(w http.ResponseWriter, phone, text string) {
	u, err := contact.WhatsAppURL(phone, text)
	if err != nil {
		h.logger.Error("failed to build WhatsApp link", "error", err)
		writeError(w, http.StatusInternalServerError, "Store contact number is not configured")
		return
	}
	writeJSON(w, http.StatusOK, HandoffResponse{URL: u})
}

func (h *APIHandler) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	c, err := h.visitorCart(r)
	if err != nil {
		h.logger.Error("failed to load cart", "visitor_id", VisitorID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load cart")
		return
	}

	text, err := contact.CartMessage(c.Lines(), c.Total())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := contact.WhatsAppURL(h.catalog.Company().PrimaryPhone(), text)
	if err != nil {
		h.logger.Error("failed to build WhatsApp link", "error", err)
		writeError(w, http.StatusInternalServerError, "Store contact number is not configured")
		return
	}
	if err := c.Clear(r.Context()); err != nil {
		h.logger.Error("failed to clear cart after checkout", "visitor_id", VisitorID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update cart")
		return
	}
	writeJSON(w, http.StatusOK, HandoffResponse{URL: u})
}

func (h *APIHandler) ContactHandler(w http.ResponseWriter, r *http.Request) {
	var form contact.Form
	if err := decodeBody(r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	text, err := contact.ContactMessage(form)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.handoff(w, text)
}

func (h *APIHandler) StockInquiryHandler(w http.ResponseWriter, r *http.Request) {
	item, ok := h.catalog.LookupStock(chi.URLParam(r, "stockID"))
	if !ok {
		writeError(w, http.StatusNotFound, "Stock item not found")
		return
	}
	h.handoff(w, contact.StockInquiryMessage(item))
}

func (h *APIHandler) CustomOrderHandler(w http.ResponseWriter, r *http.Request) {
	h.handoff(w, contact.CustomOrderMsg)
}

func (h *APIHandler) NewArrivalsHandler(w http.ResponseWriter, r *http.Request) {
	h.handoffTo(w, h.catalog.Company().SecondaryPhone(), contact.NewArrivalsMsg)
}

// Chat

type ChatSessionResponse struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	Status    core.Status        `json:"status"`
	Messages  []core.ChatMessage `json:"messages"`
}

func newChatSessionResponse(s *core.Session) ChatSessionResponse {
	return ChatSessionResponse{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Status:    s.Chat.Status(),
		Messages:  s.Chat.Messages(),
	}
}

func (h *APIHandler) CreateChatSessionHandler(w http.ResponseWriter, r *http.Request) {
	visitorID := VisitorID(r.Context())
	sess, err := h.chatService.CreateSession(r.Context(), visitorID)
	if err != nil {
		h.logger.Error("failed to create chat session", "visitor_id", visitorID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create chat session")
		return
	}
	writeJSON(w, http.StatusCreated, newChatSessionResponse(sess))
}

func (h *APIHandler) GetChatSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := h.chatService.GetSession(chi.URLParam(r, "sessionID"), VisitorID(r.Context()))
	if errors.Is(err, core.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "Chat session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get chat session")
		return
	}
	writeJSON(w, http.StatusOK, newChatSessionResponse(sess))
}

type PostChatMessageRequest struct {
	Text string `json:"text"`
}

type PostChatMessageResponse struct {
	Outcome  core.SendOutcome   `json:"outcome"`
	Messages []core.ChatMessage `json:"messages"`
}

func (h *APIHandler) PostChatMessageHandler(w http.ResponseWriter, r *http.Request) {
	visitorID := VisitorID(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	var req PostChatMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	outcome, messages, err := h.chatService.PostMessage(r.Context(), sessionID, visitorID, req.Text)
	if errors.Is(err, core.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "Chat session not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to post chat message", "visitor_id", visitorID, "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to post message")
		return
	}
	writeJSON(w, http.StatusOK, PostChatMessageResponse{Outcome: outcome, Messages: messages})
}
