package classify

// DocumentType is the closed set of administrative document kinds the intake
// pipeline recognizes. Anything unrecognized classifies as TypeOther.
type DocumentType string

const (
	TypeDevicePrescription    DocumentType = "device_prescription"
	TypeBatteryPrescription   DocumentType = "battery_prescription"
	TypeAudiogram             DocumentType = "audiogram"
	TypeComplianceCertificate DocumentType = "compliance_certificate"
	TypeAdministrativeReport  DocumentType = "administrative_report"
	TypeOther                 DocumentType = "other"
)

// Bundle names a set of document types that together satisfy one SGK
// administrative requirement.
type Bundle string

const (
	BundleHearingDevice Bundle = "hearing_device"
	BundleBattery       Bundle = "battery"
)

// Label returns the Turkish display label for the document type.
func (t DocumentType) Label() string {
	switch t {
	case TypeDevicePrescription:
		return "Cihaz Reçetesi"
	case TypeBatteryPrescription:
		return "Pil Reçetesi"
	case TypeAudiogram:
		return "Odyogram"
	case TypeComplianceCertificate:
		return "Uygunluk Belgesi"
	case TypeAdministrativeReport:
		return "Sağlık Kurulu Raporu"
	default:
		return "Diğer"
	}
}

// Valid reports whether t is a member of the closed enum.
func (t DocumentType) Valid() bool {
	switch t {
	case TypeDevicePrescription, TypeBatteryPrescription, TypeAudiogram,
		TypeComplianceCertificate, TypeAdministrativeReport, TypeOther:
		return true
	}
	return false
}

// Bundles returns the bundles this document type is required for. TypeOther
// and TypeAdministrativeReport belong to no bundle.
func (t DocumentType) Bundles() []Bundle {
	switch t {
	case TypeDevicePrescription, TypeAudiogram, TypeComplianceCertificate:
		return []Bundle{BundleHearingDevice}
	case TypeBatteryPrescription:
		return []Bundle{BundleBattery}
	default:
		return nil
	}
}

// RequiredTypes returns the document types a bundle needs to be complete.
func (b Bundle) RequiredTypes() []DocumentType {
	switch b {
	case BundleHearingDevice:
		return []DocumentType{TypeDevicePrescription, TypeAudiogram, TypeComplianceCertificate}
	case BundleBattery:
		return []DocumentType{TypeBatteryPrescription}
	default:
		return nil
	}
}

// AllBundles lists every known bundle.
func AllBundles() []Bundle {
	return []Bundle{BundleHearingDevice, BundleBattery}
}
