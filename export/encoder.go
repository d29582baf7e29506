package export

import (
	"fmt"
	"strconv"
	"strings"

	"pyralink/logging"
	"pyralink/weektag"
)

// Encoder turns an order snapshot into a partner record. Encoding is
// deterministic and performs no I/O and no clock reads: the same snapshot
// always yields byte-identical text, which is what makes content-based
// change detection sound.
type Encoder struct {
	policy Policy
	log    logging.Logger
}

// NewEncoder creates an encoder for the given policy.
func NewEncoder(policy Policy, log logging.Logger) *Encoder {
	return &Encoder{policy: policy, log: log}
}

// Policy returns the encoder's rule set.
func (e *Encoder) Policy() Policy { return e.policy }

// Encode serializes the snapshot into the tagged flat-text protocol: one
// "01" header block, then one "11" block per line item in snapshot order.
// Data problems (missing dates) encode as empty fields and are logged,
// never raised.
func (e *Encoder) Encode(s Snapshot) Record {
	lines := make([]string, 0, 4+len(s.Lines)*8)

	lines = append(lines, recordTypeHeader)
	lines = append(lines, field(tagPartnerID, s.Supplier))
	lines = append(lines, field(tagOrderID, s.OrderNo))
	lines = append(lines, field(tagOrderStatus, strings.ToUpper(s.Status)))
	if e.policy.EmitCurrency {
		lines = append(lines, field(tagCurrency, s.Currency))
	}

	for _, it := range s.Lines {
		lines = append(lines, recordTypeItem)
		lines = append(lines, field(tagArticleNumber, it.ArticleNumber))
		lines = append(lines, field(tagLineNumber, strconv.Itoa(it.Line)))
		lines = append(lines, field(tagArticleName, it.ArticleName))
		lines = append(lines, field(tagUnitPrice, formatQty(it.UnitPrice)))
		lines = append(lines, field(tagQtyDiff, formatQty(e.qtyDiff(it))))
		if e.policy.EmitQCStatus {
			lines = append(lines, field(tagQCStatus, qcCode(it.QCStatus)))
		}

		shipWeek := weektag.WeekDay(weektag.OffsetDays(it.ConfirmedShipDate, e.policy.ShipDateOffsetDays))
		if shipWeek == "" {
			e.log.Warnf("order %s line %d: no usable confirmed ship date, encoding empty ship week", s.OrderNo, it.Line)
		}
		// The ship-week line carries a trailing space. Wire-format quirk the
		// partner parser depends on; do not strip.
		lines = append(lines, fmt.Sprintf("#%d;%s ", tagShipWeek, shipWeek))

		if e.policy.EmitShippedDetails && it.Status == StatusShipped {
			lines = append(lines, field(tagShippedFlag, "SHIPPED"))
			lines = append(lines, field(tagContainerRef, it.ContainerRef))
		}
	}

	return Record{OrderNo: s.OrderNo, Text: strings.Join(lines, "\n")}
}

func (e *Encoder) qtyDiff(it Line) float64 {
	switch e.policy.QtyDiff {
	case QtyDiffConfirmedMinusRequested:
		return it.ConfirmedQty - it.RequestedQty
	default:
		if it.Status == StatusShipped {
			return 0
		}
		return it.ConfirmedQty - it.DeliveredQty
	}
}

func qcCode(status string) string {
	if status == QCPass {
		return qcCodeApprove
	}
	return qcCodeRequest
}

func field(tag int, value string) string {
	return fmt.Sprintf("#%d;%s", tag, value)
}

// formatQty renders quantities and prices with the shortest exact decimal
// form ("12.5", "0", "140"), keeping output stable across encodes.
func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
