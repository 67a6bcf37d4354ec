package domain

import "testing"

func TestCents(t *testing.T) {
	tests := []struct {
		dollars float64
		want    int64
	}{
		{0, 0},
		{1, 100},
		{4.47, 447},
		{0.1, 10},
		{0.29, 29}, // binary float noise must not drop a cent
		{1234.56, 123456},
	}

	for _, tt := range tests {
		if got := Cents(tt.dollars); got != tt.want {
			t.Errorf("Cents(%v) = %d, want %d", tt.dollars, got, tt.want)
		}
	}
}

func TestDollars(t *testing.T) {
	if got := Dollars(447); got != 4.47 {
		t.Errorf("Dollars(447) = %v, want 4.47", got)
	}
	if got := Dollars(0); got != 0 {
		t.Errorf("Dollars(0) = %v, want 0", got)
	}
}

func TestPercentFee(t *testing.T) {
	tests := []struct {
		amount  int64
		percent float64
		want    int64
	}{
		{20000, 5, 1000},  // $200 at 5% is $10
		{10000, 5, 500},   // $100 at 5% is $5
		{2500, 5, 125},    // $25 at 5% is $1.25
		{3333, 5, 167},    // rounds half up
		{20000, 0, 0},
	}

	for _, tt := range tests {
		if got := PercentFee(tt.amount, tt.percent); got != tt.want {
			t.Errorf("PercentFee(%d, %v) = %d, want %d", tt.amount, tt.percent, got, tt.want)
		}
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		current int64
		target  int64
		want    float64
	}{
		{0, 50000, 0},
		{20000, 50000, 40.0},
		{50000, 50000, 100.0},
		{50500, 50000, 101.0}, // overshoot is reported, not clamped
		{1, 3, 33.3},          // one decimal place
		{10000, 0, 0},         // zero target guards division
	}

	for _, tt := range tests {
		if got := Progress(tt.current, tt.target); got != tt.want {
			t.Errorf("Progress(%d, %d) = %v, want %v", tt.current, tt.target, got, tt.want)
		}
	}
}

func TestRoundUpAmount(t *testing.T) {
	tests := []struct {
		amount int64
		want   int64
	}{
		{447, 53},
		{500, 0}, // whole dollars skim nothing
		{1, 99},
		{99, 1},
		{1201, 99},
	}

	for _, tt := range tests {
		if got := RoundUpAmount(tt.amount); got != tt.want {
			t.Errorf("RoundUpAmount(%d) = %d, want %d", tt.amount, got, tt.want)
		}
	}
}
