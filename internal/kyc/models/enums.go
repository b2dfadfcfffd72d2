package models

import (
	"strings"

	dErrors "kyccase/pkg/domain-errors"
)

// Enumerations below are part of the external contract: stored rows, API
// payloads, and alert messages carry these exact strings.

type Variant string

const (
	VariantIndividual Variant = "INDIVIDUAL"
	VariantBusiness   Variant = "BUSINESS"
)

// ReportPrefix is the report number prefix for the variant.
func (v Variant) ReportPrefix() string {
	if v == VariantBusiness {
		return "BUS"
	}
	return "IND"
}

type DocumentKind string

const (
	DocPassport             DocumentKind = "passport"
	DocNationalID           DocumentKind = "national_id"
	DocDriverLicense        DocumentKind = "driver_license"
	DocResidencePermit      DocumentKind = "residence_permit"
	DocUtilityBill          DocumentKind = "utility_bill"
	DocBankStatement        DocumentKind = "bank_statement"
	DocBusinessRegistration DocumentKind = "business_registration"
	DocTaxCertificate       DocumentKind = "tax_certificate"
)

var documentKinds = map[DocumentKind]struct{}{
	DocPassport: {}, DocNationalID: {}, DocDriverLicense: {}, DocResidencePermit: {},
	DocUtilityBill: {}, DocBankStatement: {}, DocBusinessRegistration: {}, DocTaxCertificate: {},
}

// ParseDocumentKind validates a document kind string.
func ParseDocumentKind(s string) (DocumentKind, error) {
	k := DocumentKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := documentKinds[k]; !ok {
		return "", dErrors.New(dErrors.CodeValidation, "unsupported document kind: "+s)
	}
	return k, nil
}

// IsIdentity reports whether the kind proves identity.
func (k DocumentKind) IsIdentity() bool {
	switch k {
	case DocPassport, DocNationalID, DocDriverLicense, DocResidencePermit:
		return true
	}
	return false
}

// IsProofOfAddress reports whether the kind proves residence.
func (k DocumentKind) IsProofOfAddress() bool {
	return k == DocUtilityBill || k == DocBankStatement
}

type DocumentStatus string

const (
	DocumentPending  DocumentStatus = "PENDING"
	DocumentVerified DocumentStatus = "VERIFIED"
	DocumentRejected DocumentStatus = "REJECTED"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// AtLeast reports whether l is as severe as other.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return l.rank() >= other.rank()
}

func (l RiskLevel) rank() int {
	switch l {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	}
	return 0
}

type KYCStatus string

const (
	KYCVerified KYCStatus = "VERIFIED"
	KYCPending  KYCStatus = "PENDING"
	KYCRejected KYCStatus = "REJECTED"
)

type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// SourceType is a vendor watchlist family used by includes filters.
type SourceType string

const (
	SourceAll      SourceType = "ALL"
	SourceSanction SourceType = "SANCTION"
	SourcePEP      SourceType = "PEP"
	SourceCriminal SourceType = "CRIMINAL"
)

// ParseSourceType validates an includes token.
func ParseSourceType(s string) (SourceType, error) {
	switch st := SourceType(strings.ToUpper(strings.TrimSpace(s))); st {
	case SourceAll, SourceSanction, SourcePEP, SourceCriminal:
		return st, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unsupported source type: "+s)
}

type PEPCategory string

const (
	PEPNone        PEPCategory = ""
	PEPPrimary     PEPCategory = "primary"
	PEPFamily      PEPCategory = "family"
	PEPAssociate   PEPCategory = "associate"
	PEPUnspecified PEPCategory = "unspecified"
)

type Severity string

const (
	SeverityNone        Severity = ""
	SeverityLow         Severity = "low"
	SeverityMedium      Severity = "medium"
	SeverityHigh        Severity = "high"
	SeverityUnspecified Severity = "unspecified"
)

type DocumentQuality string

const (
	QualityUnspecified DocumentQuality = ""
	QualityHigh        DocumentQuality = "high"
	QualityMedium      DocumentQuality = "medium"
	QualityLow         DocumentQuality = "low"
)

// Factor names a risk-scoring dimension.
type Factor string

const (
	FactorPEPStatus            Factor = "pep_status"
	FactorSanctions            Factor = "sanctions"
	FactorCountryRisk          Factor = "country_risk"
	FactorAdverseMedia         Factor = "adverse_media"
	FactorTransactionVolume    Factor = "transaction_volume"
	FactorDocumentQuality      Factor = "document_quality"
	FactorRelationshipDuration Factor = "relationship_duration"
)

// Factors lists every factor in a stable order.
var Factors = []Factor{
	FactorPEPStatus,
	FactorSanctions,
	FactorCountryRisk,
	FactorAdverseMedia,
	FactorTransactionVolume,
	FactorDocumentQuality,
	FactorRelationshipDuration,
}
