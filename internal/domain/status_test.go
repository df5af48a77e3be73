package domain

import "testing"

func TestEntityStatusCanSubmit(t *testing.T) {
	cases := []struct {
		status EntityStatus
		want   bool
	}{
		{StatusDraft, true},
		{StatusSubmitted, false},
		{StatusApproved, false},
		{StatusRejected, true},
	}
	for _, c := range cases {
		if got := c.status.CanSubmit(); got != c.want {
			t.Errorf("CanSubmit(%s) = %v, want %v", c.status, got, c.want)
		}
	}
}

func TestEntityStatusCanApprove(t *testing.T) {
	cases := []struct {
		status EntityStatus
		want   bool
	}{
		{StatusDraft, true},
		{StatusSubmitted, true},
		{StatusApproved, false},
		{StatusRejected, true},
	}
	for _, c := range cases {
		if got := c.status.CanApprove(); got != c.want {
			t.Errorf("CanApprove(%s) = %v, want %v", c.status, got, c.want)
		}
	}
}

func TestPaymentStatusCanRecordTransfer(t *testing.T) {
	cases := []struct {
		status PaymentStatus
		want   bool
	}{
		{PaymentDraft, false},
		{PaymentValidated, true},
		{PaymentApproved, true},
		{PaymentRejected, false},
	}
	for _, c := range cases {
		if got := c.status.CanRecordTransfer(); got != c.want {
			t.Errorf("CanRecordTransfer(%s) = %v, want %v", c.status, got, c.want)
		}
	}
}

func TestMovementTypeKindAndWire(t *testing.T) {
	cases := []struct {
		movementType MovementType
		kind         SubjectKind
		wire         string
	}{
		{MovementBeneficiarySubmission, KindBeneficiary, "1"},
		{MovementBeneficiaryApproval, KindBeneficiary, "1"},
		{MovementBeneficiaryRejection, KindBeneficiary, "1"},
		{MovementDomiciliationSubmission, KindDomiciliation, "3"},
		{MovementDomiciliationApproval, KindDomiciliation, "3"},
		{MovementDomiciliationRejection, KindDomiciliation, "3"},
		{MovementPaymentSubmission, KindPayment, "2"},
		{MovementPaymentApproval, KindPayment, "2"},
		{MovementPaymentRejection, KindPayment, "2"},
	}
	for _, c := range cases {
		if got := c.movementType.Kind(); got != c.kind {
			t.Errorf("Kind(%s) = %s, want %s", c.movementType, got, c.kind)
		}
		if got := c.movementType.Wire(); got != c.wire {
			t.Errorf("Wire(%s) = %s, want %s", c.movementType, got, c.wire)
		}
		if !c.movementType.Valid() {
			t.Errorf("Valid(%s) = false, want true", c.movementType)
		}
	}
	if MovementType("made_up").Valid() {
		t.Error("expected unknown movement type to be invalid")
	}
}

func TestCodeFormats(t *testing.T) {
	if got := MovementCode("202601", "RG1", 7); got != "202601RG100007" {
		t.Errorf("MovementCode = %q", got)
	}
	if got := BeneficiaryCode(2026, "KIN", 42); got != "2026KIN00042" {
		t.Errorf("BeneficiaryCode = %q", got)
	}
	if got := DomiciliationCode(2026, 3); got != "20260003" {
		t.Errorf("DomiciliationCode = %q", got)
	}
	if got := PaymentDetailCode("202601", 123); got != "202601000123" {
		t.Errorf("PaymentDetailCode = %q", got)
	}
}

func TestNetAmount(t *testing.T) {
	details := []PaymentDetail{
		{Direction: DirectionCredit, Amount: 100_000},
		{Direction: DirectionCredit, Amount: 25_000},
		{Direction: DirectionDebit, Amount: 10_000},
	}
	if got := NetAmount(details); got != 115_000 {
		t.Fatalf("NetAmount = %d, want 115000", got)
	}
	if got := NetAmount(nil); got != 0 {
		t.Fatalf("NetAmount(nil) = %d, want 0", got)
	}
}

func TestHistoryFromMovementCopiesEverything(t *testing.T) {
	code := "BEN1"
	m := Movement{
		Code:            "202601RG100001",
		BeneficiaryCode: &code,
		Name:            "MUKENDI Jean",
		Time:            "14:03:22",
		Level:           2,
		UserID:          "u-17",
		Type:            MovementBeneficiaryApproval,
	}
	h := HistoryFromMovement(m)
	if h.Code != m.Code || h.Type != m.Type || h.Level != m.Level || h.UserID != m.UserID {
		t.Fatalf("history fields diverge from movement: %+v vs %+v", h, m)
	}
	if h.BeneficiaryCode == nil || *h.BeneficiaryCode != code {
		t.Fatal("expected beneficiary reference to be carried over")
	}
	if h.Time != "14:03:22" {
		t.Fatalf("expected time snapshot carried over, got %q", h.Time)
	}
}
