package receipt

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/shopspring/decimal"
)

// DefaultItemsPerPage fits an 80mm roll without the total block spilling.
const DefaultItemsPerPage = 8

// Header is the shop block repeated on every page.
type Header struct {
	ShopName string
	Title    string
	Phone    string
	Footer   string
}

type Page struct {
	Number int
	Offset int // index of the first line on this page
	Lines  []Line
	Last   bool
}

// Document is a rendered receipt ready for a print window.
type Document struct {
	Header Header
	Bill   Bill
	Pages  []Page
}

// Render splits the bill into pages of perPage lines. perPage <= 0 keeps
// every line on one page. A bill without lines still gets one page.
func Render(b Bill, h Header, perPage int) Document {
	doc := Document{Header: h, Bill: b}
	if perPage <= 0 || len(b.Lines) <= perPage {
		doc.Pages = []Page{{Number: 1, Lines: b.Lines, Last: true}}
		return doc
	}
	for start := 0; start < len(b.Lines); start += perPage {
		end := start + perPage
		if end > len(b.Lines) {
			end = len(b.Lines)
		}
		doc.Pages = append(doc.Pages, Page{
			Number: len(doc.Pages) + 1,
			Offset: start,
			Lines:  b.Lines[start:end],
			Last:   end == len(b.Lines),
		})
	}
	return doc
}

//go:embed templates/receipt.html
var templateFS embed.FS

var receiptTemplate = template.Must(
	template.New("receipt.html").
		Funcs(template.FuncMap{
			"money": money,
			"add":   func(a, b int) int { return a + b },
		}).
		ParseFS(templateFS, "templates/receipt.html"),
)

func money(d decimal.Decimal) string {
	return "₹" + d.StringFixed(2)
}

// WriteHTML writes the document as a single self-contained HTML page.
func (d Document) WriteHTML(w io.Writer) error {
	if err := receiptTemplate.Execute(w, d); err != nil {
		return fmt.Errorf("render receipt %s: %w", d.Bill.Number, err)
	}
	return nil
}

// HTML renders the document into memory.
func (d Document) HTML() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.WriteHTML(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
