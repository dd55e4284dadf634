package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"abzellie.com/storefront/internal/cart"
	"abzellie.com/storefront/internal/catalog"
	"abzellie.com/storefront/internal/contact"
	"abzellie.com/storefront/internal/core"
	"abzellie.com/storefront/internal/nav"
)

const helpText = `Commands:
  go <path>             navigate (/, /shop, /current-stock, /about, /contact)
  back | forward        move through history
  shop [category] [sort] [search...]
  stock                 list current stock
  inquire <stock id>    WhatsApp link for a stock item
  add <product id>      add one unit to the cart
  rm <product id>       remove a product from the cart
  cart                  show the cart
  checkout              WhatsApp link for the cart, then empty it
  custom-order          WhatsApp link to ask about custom orders
  new-arrivals          WhatsApp link to hear about new stock
  ask <question>        chat with Ellie
  help | quit`

// shell is a line-oriented storefront front end. The chat session is nil
// when no model is configured.
type shell struct {
	out     io.Writer
	catalog *catalog.Catalog
	cart    *cart.Cart
	history *nav.MemoryHistory
	router  *nav.Router
	chat    *core.ChatSession
}

func newShell(out io.Writer, c *catalog.Catalog, crt *cart.Cart, chat *core.ChatSession) *shell {
	history := nav.NewMemoryHistory(nav.RootPath)
	sh := &shell{
		out:     out,
		catalog: c,
		cart:    crt,
		history: history,
		router:  nav.NewRouter(history),
		chat:    chat,
	}
	sh.router.Subscribe(sh.renderPage)
	crt.OnOpen(func(ev cart.Event) {
		fmt.Fprintf(sh.out, "Added %s. ", ev.Product.Name)
		sh.printCart()
	})
	return sh
}

func (sh *shell) Close() {
	sh.router.Close()
}

// Run reads commands from in until EOF or quit.
func (sh *shell) Run(ctx context.Context, in io.Reader) error {
	sh.renderPage(sh.router.CurrentPath())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(sh.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(sh.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		if cmd == "quit" || cmd == "exit" {
			return nil
		}
		if err := sh.exec(ctx, cmd, arg); err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
}

func (sh *shell) exec(ctx context.Context, cmd, arg string) error {
	switch cmd {
	case "help":
		fmt.Fprintln(sh.out, helpText)
	case "go":
		if arg == "" {
			arg = nav.RootPath
		}
		sh.router.Navigate(arg)
	case "back":
		return sh.history.Back()
	case "forward":
		return sh.history.Forward()
	case "shop":
		return sh.shop(arg)
	case "stock":
		for _, s := range sh.catalog.Stock() {
			fmt.Fprintf(sh.out, "  [%s] %s (%s) %s - %s\n", s.ID, s.Name, s.Category, s.PriceRange, s.Availability)
		}
	case "inquire":
		item, ok := sh.catalog.LookupStock(arg)
		if !ok {
			return fmt.Errorf("no stock item %q", arg)
		}
		return sh.printHandoff(contact.StockInquiryMessage(item))
	case "add":
		p, ok := sh.catalog.Lookup(arg)
		if !ok {
			return fmt.Errorf("no product %q", arg)
		}
		return sh.cart.AddItem(ctx, p)
	case "rm":
		if err := sh.cart.RemoveItem(ctx, arg); err != nil {
			return err
		}
		sh.printCart()
	case "cart":
		sh.printCart()
	case "checkout":
		text, err := contact.CartMessage(sh.cart.Lines(), sh.cart.Total())
		if err != nil {
			return err
		}
		if err := sh.printHandoff(text); err != nil {
			return err
		}
		return sh.cart.Clear(ctx)
	case "custom-order":
		return sh.printHandoff(contact.CustomOrderMsg)
	case "new-arrivals":
		return sh.printHandoffTo(sh.catalog.Company().SecondaryPhone(), contact.NewArrivalsMsg)
	case "ask":
		return sh.ask(ctx, arg)
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

// shop takes an optional category and sort order; the remaining words
// are the search term. Multi-word categories are written with dashes.
func (sh *shell) shop(arg string) error {
	var category, sortOrder string
	words := strings.Fields(arg)
	if len(words) > 0 {
		category = strings.ReplaceAll(words[0], "-", " ")
		words = words[1:]
	}
	if len(words) > 0 {
		sortOrder = words[0]
		words = words[1:]
	}

	q, err := catalog.ParseQuery(category, strings.Join(words, " "), sortOrder)
	if err != nil {
		return err
	}
	for _, p := range sh.catalog.Browse(q) {
		fmt.Fprintf(sh.out, "  [%s] %s (%s) %s\n", p.ID, p.Name, p.Category, catalog.FormatPrice(p.Price))
	}
	return nil
}

func (sh *shell) ask(ctx context.Context, text string) error {
	if sh.chat == nil {
		return fmt.Errorf("chat is disabled: set GEMINI_API_KEY")
	}

	before := len(sh.chat.Messages())
	outcome, err := sh.chat.Send(ctx, text)
	if outcome == core.OutcomeIgnored {
		return nil
	}
	msgs := sh.chat.Messages()
	for _, m := range msgs[before:] {
		if m.Role == core.RoleAssistant {
			fmt.Fprintf(sh.out, "Ellie: %s\n", m.Text)
		}
	}
	return err
}

func (sh *shell) renderPage(path string) {
	page := nav.Resolve(path)
	fmt.Fprintf(sh.out, "== %s (%s) ==\n", page, path)

	company := sh.catalog.Company()
	switch page {
	case nav.PageHome:
		fmt.Fprintf(sh.out, "%s - %s\n", company.Name, company.Tagline)
	case nav.PageShop:
		_ = sh.shop("")
	case nav.PageStock:
		_ = sh.exec(context.Background(), "stock", "")
	case nav.PageAbout:
		fmt.Fprintln(sh.out, company.Description)
	case nav.PageContact:
		fmt.Fprintf(sh.out, "Call or WhatsApp: %s\n", strings.Join(company.Phones, ", "))
	case nav.PageNotFound:
		fmt.Fprintln(sh.out, "Page not found. Try: go /")
	}
}

func (sh *shell) printCart() {
	lines := sh.cart.Lines()
	if len(lines) == 0 {
		fmt.Fprintln(sh.out, "Your cart is empty.")
		return
	}
	fmt.Fprintf(sh.out, "Cart (%d items):\n", sh.cart.ItemCount())
	for _, l := range lines {
		fmt.Fprintf(sh.out, "  %s × %d  %s\n", l.Name, l.Quantity, catalog.FormatPrice(l.Subtotal()))
	}
	fmt.Fprintf(sh.out, "Total: %s\n", catalog.FormatPrice(sh.cart.Total()))
}

func (sh *shell) printHandoff(text string) error {
	return sh.printHandoffTo(sh.catalog.Company().PrimaryPhone(), text)
}

func (sh *shell) printHandoffTo(phone, text string) error {
	u, err := contact.WhatsAppURL(phone, text)
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Open in WhatsApp: %s\n", u)
	return nil
}
