package printing

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"pos-core/internal/config"
	"pos-core/internal/domain"
)

const receiptWidth = 42

var (
	escInit = []byte{0x1b, 0x40}
	escCut  = []byte{0x1d, 0x56, 0x41, 0x03}
)

// FormatReceipt renders a finalized sale as plain text.
func FormatReceipt(sale *domain.Sale, profile config.Profile) string {
	var b strings.Builder

	center(&b, profile.Store)
	if profile.Register != "" {
		center(&b, profile.Register)
	}
	b.WriteString(strings.Repeat("=", receiptWidth) + "\n")

	when := sale.CreatedAt
	if sale.CompletedAt != nil {
		when = *sale.CompletedAt
	}
	fmt.Fprintf(&b, "Date: %s\n", when.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Sale: %s\n", sale.ID.String()[:8])
	b.WriteString(strings.Repeat("-", receiptWidth) + "\n")

	for _, l := range sale.Lines {
		name := truncate(l.ProductName, 20)
		fmt.Fprintf(&b, "%4s x %-20s %12s\n", l.Qty.String(), name, money(l.LineTotal))
		if l.Discount.IsPositive() {
			fmt.Fprintf(&b, "       discount %25s\n", "-"+money(l.Discount))
		}
	}

	b.WriteString(strings.Repeat("-", receiptWidth) + "\n")
	total(&b, "Subtotal", sale.Subtotal)
	if sale.DiscountTotal.IsPositive() {
		total(&b, "Discount", sale.DiscountTotal.Neg())
	}
	total(&b, "Tax", sale.TaxTotal)
	total(&b, "Total", sale.GrandTotal)

	if len(sale.Payments) > 0 {
		b.WriteString(strings.Repeat("-", receiptWidth) + "\n")
		for _, p := range sale.Payments {
			total(&b, strings.ToUpper(string(p.Method)), p.Amount)
		}
	}
	b.WriteString(strings.Repeat("=", receiptWidth) + "\n")

	return b.String()
}

// TestPage is the text printed by the printer self-test.
func TestPage(profile config.Profile) string {
	return fmt.Sprintf("%s %s\nPOS Test Page\n\n*** Printer OK ***\n", profile.Store, profile.Register)
}

// EncodeEscPos wraps text in an ESC/POS job: initialise, text, feed and cut.
func EncodeEscPos(text string) []byte {
	job := make([]byte, 0, len(text)+16)
	job = append(job, escInit...)
	job = append(job, text...)
	if !strings.HasSuffix(text, "\n") {
		job = append(job, '\n')
	}
	job = append(job, escCut...)
	return job
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func total(b *strings.Builder, label string, amount decimal.Decimal) {
	fmt.Fprintf(b, "%-10s %*s\n", label+":", receiptWidth-11, money(amount))
}

func center(b *strings.Builder, s string) {
	n := utf8.RuneCountInString(s)
	if n >= receiptWidth {
		b.WriteString(s + "\n")
		return
	}
	pad := (receiptWidth - n) / 2
	b.WriteString(strings.Repeat(" ", pad) + s + "\n")
}

// truncate keeps at most n characters of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
