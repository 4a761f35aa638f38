package devices

import "testing"

func TestLookup(t *testing.T) {
	d, ok := Lookup(0x054c, 0x0081)
	if !ok {
		t.Fatalf("MDS-JE780 not found")
	}
	if d.Vendor != Sony || !d.OnTheFly {
		t.Errorf("got %+v", d)
	}
	if got, want := d.String(), "Sony MDS-JE780/JB980 (054c:0081)"; got != want {
		t.Errorf("String() = %q, wanted %q", got, want)
	}

	if d, ok := Lookup(0x04dd, 0x9013); !ok || d.Vendor != Sharp {
		t.Errorf("Sharp IM-DR400 not found")
	}
	if _, ok := Lookup(0x04dd, 0x0081); ok {
		t.Errorf("PID matched under wrong vendor")
	}
	if _, ok := Lookup(0x05ac, 0x1234); ok {
		t.Errorf("unknown device found")
	}
}

func TestDescriptionsUnique(t *testing.T) {
	seen := make(map[[2]uint16]string)
	for _, d := range Descriptions {
		key := [2]uint16{uint16(d.VID()), uint16(d.PID)}
		if other, ok := seen[key]; ok {
			t.Errorf("%s and %s share USB IDs", other, d.Model)
		}
		seen[key] = d.Model
	}
}
