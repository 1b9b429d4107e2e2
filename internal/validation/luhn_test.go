package validation

import "testing"

func TestIsValidCardNumber(t *testing.T) {
	tests := []struct {
		name   string
		number string
		valid  bool
	}{
		{
			name:   "valid 16 digits",
			number: "4539578763621486",
			valid:  true,
		},
		{
			name:   "valid 13 digits",
			number: "4222222222222",
			valid:  true,
		},
		{
			name:   "invalid checksum",
			number: "4539578763621487",
			valid:  false,
		},
		{
			name:   "valid checksum but too short",
			number: "79927398713",
			valid:  false,
		},
		{
			name:   "too long",
			number: "45395787636214864539",
			valid:  false,
		},
		{
			name:   "contains letters",
			number: "4539a78763621486",
			valid:  false,
		},
		{
			name:   "empty string",
			number: "",
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidCardNumber(tt.number)
			if got != tt.valid {
				t.Fatalf("IsValidCardNumber(%q) = %v, want %v", tt.number, got, tt.valid)
			}
		})
	}
}
