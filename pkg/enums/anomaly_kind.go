package enums

// AnomalyKind classifies a non-fatal data quality issue found while deriving inventory.
type AnomalyKind string

const (
	AnomalyUnresolvedTicketType       AnomalyKind = "unresolved_ticket_type"
	AnomalyUnresolvedPackageReference AnomalyKind = "unresolved_package_reference"
	AnomalyUnknownPackage             AnomalyKind = "unknown_package"
	AnomalyUnknownPackageConstituent  AnomalyKind = "unknown_package_constituent"
	AnomalyUnknownTicketType          AnomalyKind = "unknown_ticket_type"
	AnomalyInvalidQuantity            AnomalyKind = "invalid_quantity"
	AnomalyInvalidIncludedQuantity    AnomalyKind = "invalid_included_quantity"
	AnomalyUnparseablePrice           AnomalyKind = "unparseable_price"
	AnomalyZeroPrice                  AnomalyKind = "zero_price"
	AnomalyPriceMismatch              AnomalyKind = "price_mismatch"
)

// IsResolutionFailure reports whether the anomaly caused an item, or part of
// a package expansion, to be dropped.
func (a AnomalyKind) IsResolutionFailure() bool {
	switch a {
	case AnomalyUnresolvedTicketType,
		AnomalyUnresolvedPackageReference,
		AnomalyUnknownPackage,
		AnomalyUnknownPackageConstituent:
		return true
	default:
		return false
	}
}

// IsPackageProblem reports whether the anomaly concerns package expansion.
func (a AnomalyKind) IsPackageProblem() bool {
	switch a {
	case AnomalyUnresolvedPackageReference,
		AnomalyUnknownPackage,
		AnomalyUnknownPackageConstituent,
		AnomalyInvalidIncludedQuantity:
		return true
	default:
		return false
	}
}
