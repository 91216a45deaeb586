package aprs

import "testing"

func TestTryParseBoundingBoxValid(t *testing.T) {
	bbox, ok := TryParseBoundingBox("-5.123|42.987|7.|50.3456789")
	if !ok {
		t.Fatal("expected valid bbox to parse")
	}
	if !closeEnough(bbox.Left, -5.123, 1e-9) || !closeEnough(bbox.Bottom, 42.987, 1e-9) {
		t.Fatalf("unexpected bbox: %+v", bbox)
	}
	if !closeEnough(bbox.Right, 7, 1e-9) || !closeEnough(bbox.Top, 50.3456789, 1e-7) {
		t.Fatalf("unexpected bbox: %+v", bbox)
	}
}

func TestTryParseBoundingBoxValidIntegers(t *testing.T) {
	bbox, ok := TryParseBoundingBox("5|-2|14|12")
	if !ok {
		t.Fatal("expected valid bbox to parse")
	}
	if bbox.Left != 5 || bbox.Bottom != -2 || bbox.Right != 14 || bbox.Top != 12 {
		t.Fatalf("unexpected bbox: %+v", bbox)
	}
}

func TestTryParseBoundingBoxInvalid(t *testing.T) {
	invalid := []string{
		"-195.123|42.987|7.|50.3456789",
		"-5.123|92.987|7.|50.3456789",
		"-5.123|42.987|197.|50.3456789",
		"-5.123|42.987|7.|90.3456789",
		"-5.123|42.987|7.|40.3456789",
		".123|42.987|7.|50.3456789",
		"-5.123|242.a987|7.|50.3456789",
		"-5.123|0x42.987|7.|50.3456789",
	}
	for _, text := range invalid {
		if _, ok := TryParseBoundingBox(text); ok {
			t.Errorf("expected %q to be rejected", text)
		}
	}
}

func TestBoundingBoxContainsBasic(t *testing.T) {
	bbox, ok := TryParseBoundingBox("5|-2|14|12")
	if !ok {
		t.Fatal("expected bbox to parse")
	}
	if !bbox.Contains(7, 10) || !bbox.Contains(5, -2) || !bbox.Contains(14, 12) {
		t.Fatal("expected points inside bbox to be contained")
	}
	if bbox.Contains(3, 10) || bbox.Contains(15, 10) || bbox.Contains(7, -3) || bbox.Contains(7, 13) {
		t.Fatal("expected points outside bbox to be rejected")
	}
}

func TestBoundingBoxContainsAntimeridianWrap(t *testing.T) {
	bbox, ok := TryParseBoundingBox("175|10|-160|12")
	if !ok {
		t.Fatal("expected bbox to parse")
	}
	if bbox.Contains(174, 11) {
		t.Fatal("expected 174,11 to be outside the wrapped bbox")
	}
	if !bbox.Contains(175, 11) || !bbox.Contains(-179, 11) || !bbox.Contains(-160, 11) {
		t.Fatal("expected points inside the wrapped bbox to be contained")
	}
	if bbox.Contains(-159, 11) {
		t.Fatal("expected -159,11 to be outside the wrapped bbox")
	}
}
