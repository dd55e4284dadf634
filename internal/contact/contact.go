// Package contact builds the WhatsApp handoff links the storefront uses in
// place of a checkout or mail backend.
package contact

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"abzellie.com/storefront/internal/cart"
	"abzellie.com/storefront/internal/catalog"
)

const (
	whatsAppBase   = "https://wa.me/"
	countryCode    = "234"
	storeGreeting  = "Hello ABZ&ELLIE'S Place!"
	CustomOrderMsg = "Hi! I'd like to inquire about custom orders or specific items not shown in your current stock."
	NewArrivalsMsg = "Hi! I'd like to be notified about new arrivals and stock updates."
)

var (
	ErrMissingField = errors.New("required field is empty")
	ErrEmptyCart    = errors.New("cart is empty")
	ErrInvalidPhone = errors.New("phone number must start with 0")
)

// WhatsAppURL opens a chat with a local (0-prefixed) Nigerian number with
// text prefilled.
func WhatsAppURL(phone, text string) (string, error) {
	phone = strings.TrimSpace(phone)
	if len(phone) < 2 || phone[0] != '0' {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
	}
	return whatsAppBase + countryCode + phone[1:] + "?text=" + encode(text), nil
}

// encode percent-escapes text for the query string with spaces as %20.
// It escapes more than encodeURIComponent (also !'()*), which WhatsApp
// decodes the same way.
func encode(text string) string {
	return strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

type Form struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Validate reports every required field that is blank. Phone is optional.
func (f Form) Validate() error {
	var errs []error
	for _, field := range []struct {
		name  string
		value string
	}{
		{"name", f.Name},
		{"email", f.Email},
		{"subject", f.Subject},
		{"message", f.Message},
	} {
		if strings.TrimSpace(field.value) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingField, field.name))
		}
	}
	return errors.Join(errs...)
}

func ContactMessage(f Form) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n\nName: %s\nEmail: %s\nPhone: %s\nSubject: %s\n\nMessage: %s",
		storeGreeting, f.Name, f.Email, f.Phone, f.Subject, f.Message), nil
}

func StockInquiryMessage(item catalog.StockItem) string {
	return fmt.Sprintf("Hi! I'm interested in the %s from your current stock.\n\nCategory: %s\nPrice Range: %s\n\n"+
		"Could you please provide more details and availability?", item.Name, item.Category, item.PriceRange)
}

// CartMessage lists the order for the store to confirm over WhatsApp.
func CartMessage(lines []cart.Line, total int64) (string, error) {
	if len(lines) == 0 {
		return "", ErrEmptyCart
	}

	var b strings.Builder
	b.WriteString(storeGreeting)
	b.WriteString("\n\nI'd like to order:\n")
	for _, l := range lines {
		fmt.Fprintf(&b, "- %s × %d — %s\n", l.Name, l.Quantity, catalog.FormatPrice(l.Subtotal()))
	}
	fmt.Fprintf(&b, "\nTotal: %s", catalog.FormatPrice(total))
	return b.String(), nil
}
