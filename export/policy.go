package export

import "fmt"

// Field tags of the Pyramid flat-text protocol. The vocabulary is frozen by
// the partner; never renumber.
const (
	tagPartnerID     = 12205
	tagOrderID       = 12203
	tagOrderStatus   = 18780
	tagCurrency      = 12210
	tagArticleNumber = 12401
	tagLineNumber    = 12414
	tagArticleName   = 12421
	tagUnitPrice     = 12451
	tagQtyDiff       = 12441
	tagQCStatus      = 12461
	tagShipWeek      = 5513
	tagShippedFlag   = 5651
	tagContainerRef  = 5652
)

// Record type markers, one per block.
const (
	recordTypeHeader = "01"
	recordTypeItem   = "11"
)

// QtyDiffMode selects how the quantity-difference field is derived.
type QtyDiffMode int

const (
	// QtyDiffRemaining emits confirmed minus delivered quantity, forced to
	// zero for shipped lines.
	QtyDiffRemaining QtyDiffMode = iota
	// QtyDiffConfirmedMinusRequested is the historical rule kept for
	// re-encoding old traffic.
	QtyDiffConfirmedMinusRequested
)

// Policy captures the rule differences between export format versions as
// data, so the encoder stays a single implementation.
type Policy struct {
	Version            int
	ShipDateOffsetDays int
	QtyDiff            QtyDiffMode
	EmitCurrency       bool
	EmitQCStatus       bool
	EmitShippedDetails bool
}

// PolicyV1 is the original export rule set: raw confirmed-minus-requested
// difference, no date offset, header and base item fields only.
func PolicyV1() Policy {
	return Policy{
		Version: 1,
		QtyDiff: QtyDiffConfirmedMinusRequested,
	}
}

// PolicyV2 is the current partner agreement: remaining quantity zeroed on
// shipped lines, 60-day ship-date offset, currency, QC status and shipped
// detail fields.
func PolicyV2() Policy {
	return Policy{
		Version:            2,
		ShipDateOffsetDays: 60,
		QtyDiff:            QtyDiffRemaining,
		EmitCurrency:       true,
		EmitQCStatus:       true,
		EmitShippedDetails: true,
	}
}

// PolicyForVersion resolves a configured policy version. The day offset is
// configuration on top of the versioned rule set, so callers may override
// the returned ShipDateOffsetDays.
func PolicyForVersion(v int) (Policy, error) {
	switch v {
	case 1:
		return PolicyV1(), nil
	case 2:
		return PolicyV2(), nil
	default:
		return Policy{}, fmt.Errorf("unknown export policy version %d", v)
	}
}
