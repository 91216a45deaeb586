package aprs

import (
	"math"
	"testing"
	"time"
)

func closeEnough(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestParsePosition1(t *testing.T) {
	pos, ok := Parse(`FLRDD9612>APRS,qAS,VillaBlau:/141956h4911.18N/00815.93E'126/059/A=003716 !W75! id06DD9612 -355fpm -1.2rot 3.0dB 2e -1.3kHz gps3x3`)
	if !ok {
		t.Fatal("expected line to parse")
	}
	if pos.ID != "FLRDD9612" {
		t.Fatalf("unexpected id: %q", pos.ID)
	}
	if pos.Time.Hour() != 14 || pos.Time.Minute() != 19 || pos.Time.Second() != 56 {
		t.Fatalf("unexpected time: %v", pos.Time)
	}
	if !closeEnough(pos.Latitude, 49+11.187/60, 1e-6) {
		t.Fatalf("unexpected latitude: %v", pos.Latitude)
	}
	if !closeEnough(pos.Longitude, 8+15.935/60, 1e-6) {
		t.Fatalf("unexpected longitude: %v", pos.Longitude)
	}
	if !closeEnough(pos.AltitudeM, 1132.6368, 1e-3) {
		t.Fatalf("unexpected altitude: %v", pos.AltitudeM)
	}
	if pos.Course != 126 {
		t.Fatalf("unexpected course: %v", pos.Course)
	}
}

func TestParsePosition2WestSouthHemisphere(t *testing.T) {
	pos, ok := Parse(`ICA4060D7>APRS,qAS,UKDUN2:/141953h5147.03N\00109.00W^210/143/A=003405 !W50! id214060D7 +079fpm +0.0rot 8.0dB 0e -11.9kHz gps3x4`)
	if !ok {
		t.Fatal("expected line to parse")
	}
	if pos.ID != "ICA4060D7" {
		t.Fatalf("unexpected id: %q", pos.ID)
	}
	if !closeEnough(pos.Latitude, 51+47.035/60, 1e-6) {
		t.Fatalf("unexpected latitude: %v", pos.Latitude)
	}
	if !closeEnough(pos.Longitude, -(1 + 9.000/60), 1e-6) {
		t.Fatalf("unexpected longitude: %v", pos.Longitude)
	}
	if !closeEnough(pos.AltitudeM, 1037.844, 1e-3) {
		t.Fatalf("unexpected altitude: %v", pos.AltitudeM)
	}
}

func TestParsePositionWithoutPPE(t *testing.T) {
	pos, ok := Parse(`FLRDD87AC>APRS,qAS,LFQB:/141950h4818.33N/00401.87E'014/034/A=005199 id06DD87AC +218fpm +2.5rot 17.8dB 0e -2.4kHz gps3x4 -1.0dBm`)
	if !ok {
		t.Fatal("expected line to parse")
	}
	if !closeEnough(pos.Latitude, 48+18.33/60, 1e-6) {
		t.Fatalf("unexpected latitude: %v", pos.Latitude)
	}
	if !closeEnough(pos.Longitude, 4+1.87/60, 1e-6) {
		t.Fatalf("unexpected longitude: %v", pos.Longitude)
	}
	if pos.Course != 14 {
		t.Fatalf("unexpected course: %v", pos.Course)
	}
}

func TestParseMalformedLineIsRejected(t *testing.T) {
	if _, ok := Parse(`# aprsc 2.1.4-g408ed49`); ok {
		t.Fatal("expected comment line to be rejected")
	}
	if _, ok := Parse(``); ok {
		t.Fatal("expected empty line to be rejected")
	}
}

func mustTimeOfDay(t *testing.T, hhmmss string) time.Time {
	t.Helper()
	parsed, err := time.Parse("15:04:05", hhmmss)
	if err != nil {
		t.Fatalf("parsing time of day: %v", err)
	}
	return parsed
}

func TestTimeToDateTimeRealistic(t *testing.T) {
	now := time.Date(2018, 7, 10, 18, 15, 23, 0, time.UTC)

	got := TimeToDateTime(now, mustTimeOfDay(t, "15:06:12"))
	want := time.Date(2018, 7, 10, 15, 6, 12, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTimeToDateTimeAlmostMidnight(t *testing.T) {
	now := time.Date(2018, 7, 10, 23, 30, 0, 0, time.UTC)

	cases := []struct {
		timeOfDay string
		wantDay   int
	}{
		{"22:30:00", 10},
		{"23:30:00", 10},
		{"00:30:00", 11},
		{"11:29:00", 11},
		{"11:30:00", 11},
		{"11:31:00", 10},
	}
	for _, c := range cases {
		got := TimeToDateTime(now, mustTimeOfDay(t, c.timeOfDay))
		if got.Day() != c.wantDay {
			t.Errorf("time %s: got day %d, want %d (%v)", c.timeOfDay, got.Day(), c.wantDay, got)
		}
	}
}

func TestTimeToDateTimeAfterMidnight(t *testing.T) {
	now := time.Date(2018, 7, 11, 0, 30, 0, 0, time.UTC)

	cases := []struct {
		timeOfDay string
		wantDay   int
	}{
		{"22:30:00", 10},
		{"23:30:00", 10},
		{"00:30:00", 11},
		{"12:29:00", 11},
		{"12:30:00", 10},
		{"12:31:00", 10},
	}
	for _, c := range cases {
		got := TimeToDateTime(now, mustTimeOfDay(t, c.timeOfDay))
		if got.Day() != c.wantDay {
			t.Errorf("time %s: got day %d, want %d (%v)", c.timeOfDay, got.Day(), c.wantDay, got)
		}
	}
}
