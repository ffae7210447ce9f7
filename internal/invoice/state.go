package invoice

import "slices"

// State is the serialisable form of a session, used to park a form between
// events.
type State struct {
	InvoiceID string     `json:"invoice_id,omitempty"`
	Header    Header     `json:"header"`
	Lines     []LineItem `json:"lines"`
	Discount  Input      `json:"discount"`
	Totals    Totals     `json:"totals"`
	Closed    bool       `json:"closed"`
}

func (f *Form) State() State {
	return State{
		InvoiceID: f.invoiceID,
		Header:    f.header,
		Lines:     slices.Clone(f.lines),
		Discount:  f.discount,
		Totals:    f.totals,
		Closed:    f.closed,
	}
}

// Restore rebuilds a form from a parked state. Derived totals are recomputed
// rather than trusted.
func Restore(catalog Catalog, state State) *Form {
	if catalog == nil {
		catalog = Snapshot(nil)
	}
	f := &Form{
		catalog:   catalog,
		invoiceID: state.InvoiceID,
		header:    normalizeHeader(state.Header),
		lines:     slices.Clone(state.Lines),
		discount:  state.Discount,
		closed:    state.Closed,
	}
	f.recompute()
	return f
}
