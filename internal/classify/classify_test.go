package classify

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected DocumentType
	}{
		{
			"device prescription",
			"T.C. Sağlık Bakanlığı İşitme Cihazı Reçetesi Sağ / Sol kulak",
			TypeDevicePrescription,
		},
		{
			"battery prescription",
			"Pil Reçetesi - işitme cihazı pili 6 adet",
			TypeBatteryPrescription,
		},
		{
			"audiogram",
			"ODYOGRAM saf ses ortalaması 45 dB işitme eşiği",
			TypeAudiogram,
		},
		{
			"compliance certificate",
			"Cihaz Uygunluk Belgesi seri no 12345 garanti süresi 2 yıl",
			TypeComplianceCertificate,
		},
		{
			"administrative report",
			"Sağlık Kurulu Raporu heyet kararı",
			TypeAdministrativeReport,
		},
		{
			"unknown",
			"tamamen alakasız bir metin",
			TypeOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docType, confidence := Classify(tt.text)
			if docType != tt.expected {
				t.Errorf("Classify(%q) = %s, expected %s", tt.text, docType, tt.expected)
			}
			if confidence < 0 || confidence > 1 {
				t.Errorf("confidence %f out of [0,1]", confidence)
			}
			if tt.expected != TypeOther && confidence == 0 {
				t.Error("expected positive confidence for recognized type")
			}
		})
	}
}

func TestClassifyTotal(t *testing.T) {
	docType, confidence := Classify("")
	if docType != TypeOther || confidence != 0 {
		t.Errorf("Classify(empty) = (%s, %f), expected (other, 0)", docType, confidence)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	text := "İşitme Cihazı Reçetesi sağ kulak"
	t1, c1 := Classify(text)
	t2, c2 := Classify(text)
	if t1 != t2 || c1 != c2 {
		t.Errorf("Classify not deterministic: (%s, %f) vs (%s, %f)", t1, c1, t2, c2)
	}
}

func TestBundleMembership(t *testing.T) {
	required := BundleHearingDevice.RequiredTypes()
	if len(required) != 3 {
		t.Fatalf("expected 3 required types for hearing_device, got %d", len(required))
	}
	for _, docType := range required {
		found := false
		for _, b := range docType.Bundles() {
			if b == BundleHearingDevice {
				found = true
			}
		}
		if !found {
			t.Errorf("%s should declare hearing_device bundle membership", docType)
		}
	}

	if got := TypeBatteryPrescription.Bundles(); len(got) != 1 || got[0] != BundleBattery {
		t.Errorf("battery_prescription bundles = %v, expected [battery]", got)
	}
	if got := TypeOther.Bundles(); got != nil {
		t.Errorf("other should belong to no bundle, got %v", got)
	}
}

func TestDocumentTypeLabels(t *testing.T) {
	for _, docType := range []DocumentType{
		TypeDevicePrescription, TypeBatteryPrescription, TypeAudiogram,
		TypeComplianceCertificate, TypeAdministrativeReport, TypeOther,
	} {
		if docType.Label() == "" {
			t.Errorf("%s has empty label", docType)
		}
		if !docType.Valid() {
			t.Errorf("%s should be valid", docType)
		}
	}
	if DocumentType("bogus").Valid() {
		t.Error("bogus type should not be valid")
	}
}
