package parser

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"SalesReportAnalyzer/internal/domain"
	"SalesReportAnalyzer/internal/ports"
)

const (
	rootTag      = "sales_data"
	dateAttr     = "date"
	dateLayout   = "2006-01-02"
	productsPath = "./products/product"
)

// SalesReportParser decodes sales_data XML documents.
//
// The envelope is strict: unparseable markup, a root element other than
// sales_data, or a missing/malformed date attribute fail the whole report.
// Individual product entries are lenient: an entry missing a field or
// failing numeric conversion is skipped so one bad row does not void the
// rest of the day's report.
type SalesReportParser struct {
	logger *slog.Logger
}

var _ ports.ReportParser = (*SalesReportParser)(nil)

// NewSalesReportParser wires the component logger.
func NewSalesReportParser(logger *slog.Logger) *SalesReportParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &SalesReportParser{logger: logger}
}

// Parse validates the report envelope and extracts the line items that
// survive field validation. A report with zero valid products is a valid
// outcome: the date is returned with an empty item list.
func (p *SalesReportParser) Parse(report string) (domain.ParsedReport, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(report); err != nil {
		p.logger.Error("error parsing report markup", "error", err)
		return domain.ParsedReport{}, fmt.Errorf("parse markup: %w", err)
	}

	// etree tolerates stray character data around the root element; a
	// well-formed document has none.
	for _, token := range doc.Child {
		if cd, ok := token.(*etree.CharData); ok && strings.TrimSpace(cd.Data) != "" {
			p.logger.Error("error parsing report markup", "error", "character data outside root element")
			return domain.ParsedReport{}, fmt.Errorf("parse markup: character data outside root element")
		}
	}

	root := doc.Root()
	if root == nil || root.Tag != rootTag {
		p.logger.Error("invalid root element", "expected", rootTag)
		return domain.ParsedReport{}, fmt.Errorf("invalid root element: expected %q", rootTag)
	}

	reportDate, err := time.Parse(dateLayout, root.SelectAttrValue(dateAttr, ""))
	if err != nil {
		p.logger.Error("invalid or missing report date", "error", err)
		return domain.ParsedReport{}, fmt.Errorf("parse report date: %w", err)
	}

	var items []domain.LineItem
	for _, elem := range root.FindElements(productsPath) {
		item, err := parseProduct(elem)
		if err != nil {
			p.logger.Error("error parsing product, skipping", "error", err)
			continue
		}
		items = append(items, item)
	}

	p.logger.Info("parsed report", "date", reportDate.Format(dateLayout), "products", len(items))
	return domain.ParsedReport{Date: reportDate, Items: items}, nil
}

func parseProduct(elem *etree.Element) (domain.LineItem, error) {
	name, err := childText(elem, "name")
	if err != nil {
		return domain.LineItem{}, err
	}

	quantityText, err := childText(elem, "quantity")
	if err != nil {
		return domain.LineItem{}, err
	}
	quantity, err := strconv.Atoi(strings.TrimSpace(quantityText))
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("quantity: %w", err)
	}

	priceText, err := childText(elem, "price")
	if err != nil {
		return domain.LineItem{}, err
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(priceText), 64)
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("price: %w", err)
	}

	category, err := childText(elem, "category")
	if err != nil {
		return domain.LineItem{}, err
	}

	return domain.LineItem{
		Name:     name,
		Quantity: quantity,
		Price:    price,
		Category: category,
	}, nil
}

func childText(elem *etree.Element, tag string) (string, error) {
	child := elem.SelectElement(tag)
	if child == nil {
		return "", fmt.Errorf("missing element %q", tag)
	}
	if strings.TrimSpace(child.Text()) == "" {
		return "", fmt.Errorf("empty element %q", tag)
	}
	return child.Text(), nil
}
