package core

import (
	"fmt"
	"strings"

	"abzellie.com/storefront/internal/catalog"
)

// SystemInstruction builds the assistant persona and puts the whole product
// list in front of the model.
func SystemInstruction(c *catalog.Catalog) string {
	company := c.Company()

	var products strings.Builder
	for _, p := range c.Products() {
		fmt.Fprintf(&products, "- %s (%s): %s - %s\n", p.Name, p.Category, p.Description, catalog.FormatPrice(p.Price))
	}

	return fmt.Sprintf(`You are Ellie, the AI fashion and fragrance consultant for %s.
Company Tagline: %s
Company Mission: %s
Contact Info: %s

Available Products:
%s
Guidelines:
1. Be elegant, helpful, and friendly.
2. Suggest specific products from the list above when relevant.
3. Help with gifting advice for couples, scent profiles, and jewelry care.
4. If the user asks for something we don't have, politely explain we specialize in jewelry, perfumes, couple items, and lipglosses.
5. Keep responses concise but classy.`,
		company.Name,
		company.Tagline,
		company.Description,
		strings.Join(company.Phones, ", "),
		products.String(),
	)
}
