package validate

import "testing"

func TestPhoneNumber(t *testing.T) {
	valid := []string{"9812345678", "6000000000", "7999999999"}
	for _, phone := range valid {
		if err := PhoneNumber(phone); err != nil {
			t.Errorf("PhoneNumber(%q) = %v, want nil", phone, err)
		}
	}

	invalid := []string{"", "12345", "5812345678", "98123456789", "98123 45a78", "+919812345678"}
	for _, phone := range invalid {
		if err := PhoneNumber(phone); err == nil {
			t.Errorf("PhoneNumber(%q) = nil, want error", phone)
		}
	}
}

func TestOTP(t *testing.T) {
	if err := OTP("123456"); err != nil {
		t.Errorf("OTP(123456) = %v, want nil", err)
	}
	for _, code := range []string{"", "12345", "1234567", "12345a"} {
		if err := OTP(code); err == nil {
			t.Errorf("OTP(%q) = nil, want error", code)
		}
	}
}

func TestEmail(t *testing.T) {
	if err := Email("a@x.com"); err != nil {
		t.Errorf("Email(a@x.com) = %v, want nil", err)
	}
	for _, email := range []string{"", "a@", "a x@b.com", "nope"} {
		if err := Email(email); err == nil {
			t.Errorf("Email(%q) = nil, want error", email)
		}
	}
}

func TestFormatPhone(t *testing.T) {
	cases := map[string]string{
		"919812345678":    "9812345678",
		"+91 98123 45678": "9812345678",
		"9812345678":      "9812345678",
		"98-1234-5678":    "9812345678",
	}
	for in, want := range cases {
		if got := FormatPhone(in); got != want {
			t.Errorf("FormatPhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	if got := NormalizePhone("9812345678"); got != "919812345678" {
		t.Errorf("NormalizePhone(9812345678) = %q, want 919812345678", got)
	}
	if got := NormalizePhone("919812345678"); got != "919812345678" {
		t.Errorf("NormalizePhone(919812345678) = %q, want unchanged", got)
	}
}
