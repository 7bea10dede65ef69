package monitor

import "testing"

func TestDecideNotifications_FiresOncePerID(t *testing.T) {
	notified := make(map[string]struct{})

	fire := decideNotifications([]string{"a", "b"}, notified, true)
	if len(fire) != 2 {
		t.Fatalf("First evaluation: got %d ids, want 2", len(fire))
	}

	// Same candidates again: already notified, nothing fires
	fire = decideNotifications([]string{"a", "b"}, notified, true)
	if len(fire) != 0 {
		t.Errorf("Second evaluation: got %v, want empty", fire)
	}
}

func TestDecideNotifications_LeaveAndReenter(t *testing.T) {
	notified := make(map[string]struct{})

	decideNotifications([]string{"a"}, notified, true)

	// "a" left the radius and re-entered within the same session:
	// it reappears as a candidate but must not re-fire.
	fire := decideNotifications([]string{"a"}, notified, true)
	if len(fire) != 0 {
		t.Errorf("Re-entry fired again: got %v, want empty", fire)
	}
}

func TestDecideNotifications_DisabledDoesNotMutate(t *testing.T) {
	notified := make(map[string]struct{})

	fire := decideNotifications([]string{"a"}, notified, false)
	if fire != nil {
		t.Errorf("Disabled evaluation: got %v, want nil", fire)
	}
	if len(notified) != 0 {
		t.Error("Disabled evaluation mutated the notified set")
	}

	// Enabling later lets the same id fire: nothing was consumed
	fire = decideNotifications([]string{"a"}, notified, true)
	if len(fire) != 1 {
		t.Errorf("Evaluation after enable: got %v, want [a]", fire)
	}
}

func TestDecideNotifications_MixedCandidates(t *testing.T) {
	notified := map[string]struct{}{"a": {}}

	fire := decideNotifications([]string{"a", "b"}, notified, true)
	if len(fire) != 1 || fire[0] != "b" {
		t.Errorf("Mixed candidates: got %v, want [b]", fire)
	}
}
