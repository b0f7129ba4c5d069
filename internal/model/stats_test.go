package model

import "testing"

func TestBandForMTOW_Boundaries(t *testing.T) {
	cases := []struct {
		mtow float64
		want FeeBand
	}{
		{500, Band0_749},
		{749, Band0_749},
		{750, Band750_1199},
		{1100, Band750_1199},
		{1199, Band750_1199},
		{1200, Band1200_1999},
		{1999, Band1200_1999},
		{2000, Band2000_3499},
		{3499, Band2000_3499},
		{3500, Band3500_5699},
		{5699, Band3500_5699},
		{5700, Band5700Plus},
		{20000, Band5700Plus},
	}

	for _, tc := range cases {
		if got := BandForMTOW(tc.mtow); got != tc.want {
			t.Errorf("BandForMTOW(%v) = %s, want %s", tc.mtow, got, tc.want)
		}
	}
}

func TestMTOWForType_C172(t *testing.T) {
	mtow, ok := MTOWForType("C172")
	if !ok {
		t.Fatal("Expected C172 to be a known type")
	}
	if BandForMTOW(mtow) != Band750_1199 {
		t.Errorf("Expected C172 (MTOW %v) in %s, got %s", mtow, Band750_1199, BandForMTOW(mtow))
	}
}

func TestMTOWForType_Unknown(t *testing.T) {
	if _, ok := MTOWForType("ZZZZ"); ok {
		t.Error("Expected unknown type to have no MTOW")
	}
}
