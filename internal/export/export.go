package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jung-kurt/gofpdf"

	"github.com/fabworks/printquote/internal/catalog"
	"github.com/fabworks/printquote/internal/pricing"
	"github.com/fabworks/printquote/internal/quote"
)

// Document is the downloadable quote artifact. Its field names and nesting
// are a contract: previously exported files must stay readable, so renames
// here are breaking changes.
type Document struct {
	Configuration quote.Configuration `json:"configuration"`
	Material      catalog.Material    `json:"material"`
	Calculation   pricing.Calculation `json:"calculation"`
	GeneratedAt   time.Time           `json:"generatedAt"`
}

// Build assembles the export document for a quote. Currency values are
// rounded here, at the presentation boundary.
func Build(q quote.Quote, material catalog.Material, generatedAt time.Time) Document {
	return Document{
		Configuration: q.Configuration,
		Material:      material,
		Calculation:   q.Calculation.Rounded(),
		GeneratedAt:   generatedAt.UTC(),
	}
}

// JSON renders the document as indented JSON.
func (d Document) JSON() ([]byte, error) {
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode quote document: %w", err)
	}
	return raw, nil
}

// Text renders a plain-text summary suitable for pasting into a message.
func (d Document) Text() string {
	var b strings.Builder
	calc := d.Calculation

	fmt.Fprintf(&b, "Quote - %s\n", d.Material.Name)
	fmt.Fprintf(&b, "Generated: %s\n\n", d.GeneratedAt.Format("2006-01-02 15:04 MST"))

	fmt.Fprintf(&b, "Order:\n")
	fmt.Fprintf(&b, "  Quantity: %d\n", d.Configuration.Quantity)
	fmt.Fprintf(&b, "  Urgency: %s\n", d.Configuration.Urgency)
	if d.Configuration.SelectedColor != "" {
		fmt.Fprintf(&b, "  Color: %s\n", d.Configuration.SelectedColor)
	}
	fmt.Fprintf(&b, "  Layer height: %.2fmm, infill %d%%\n\n",
		d.Configuration.PrintOptions.LayerHeightMM, d.Configuration.PrintOptions.InfillPercentage)

	fmt.Fprintf(&b, "Breakdown:\n")
	for _, line := range calc.Breakdown {
		fmt.Fprintf(&b, "  %-16s %-38s %3dx %10.2f %12.2f\n",
			line.Category, line.Description, line.Quantity, line.UnitPrice, line.Total)
	}
	fmt.Fprintf(&b, "\nSubtotal: %.2f %s\n", calc.Subtotal, calc.Currency)
	fmt.Fprintf(&b, "Taxes: %.2f %s\n", calc.Taxes, calc.Currency)
	fmt.Fprintf(&b, "Total: %.2f %s\n", calc.Total, calc.Currency)
	fmt.Fprintf(&b, "Estimated delivery: %s\n", calc.EstimatedDelivery.Format("2006-01-02"))

	return b.String()
}

// PDF renders the document as a one-page PDF.
func (d Document) PDF(w io.Writer) error {
	calc := d.Calculation

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Print Quote")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Material: %s", d.Material.Name))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Quantity: %d    Urgency: %s", d.Configuration.Quantity, d.Configuration.Urgency))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", d.GeneratedAt.Format("2006-01-02 15:04 MST")))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(35, 7, "Category", "1", 0, "", false, 0, "")
	pdf.CellFormat(85, 7, "Description", "1", 0, "", false, 0, "")
	pdf.CellFormat(15, 7, "Qty", "1", 0, "R", false, 0, "")
	pdf.CellFormat(25, 7, "Unit", "1", 0, "R", false, 0, "")
	pdf.CellFormat(25, 7, "Total", "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range calc.Breakdown {
		pdf.CellFormat(35, 7, line.Category, "1", 0, "", false, 0, "")
		pdf.CellFormat(85, 7, line.Description, "1", 0, "", false, 0, "")
		pdf.CellFormat(15, 7, fmt.Sprintf("%d", line.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%.2f", line.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%.2f", line.Total), "1", 1, "R", false, 0, "")
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Subtotal: %.2f %s", calc.Subtotal, calc.Currency))
	pdf.Ln(7)
	pdf.Cell(0, 7, fmt.Sprintf("Taxes: %.2f %s", calc.Taxes, calc.Currency))
	pdf.Ln(7)
	pdf.Cell(0, 7, fmt.Sprintf("Total: %.2f %s", calc.Total, calc.Currency))
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 7, fmt.Sprintf("Estimated delivery: %s", calc.EstimatedDelivery.Format("2006-01-02")))

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render quote pdf: %w", err)
	}
	return nil
}
