package notify

import "testing"

func TestForMapsConductorLabelsToGroupConductorAndClearsTrack(t *testing.T) {
	ev, ok := For("tempo", 3)
	if !ok {
		t.Fatalf("expected tempo to map to a known event")
	}
	if ev.Group != GroupConductor || ev.Subgroup != SubTempo || ev.Track != -1 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestForMapsTrackLabelsToGroupTrackAndKeepsTrackIndex(t *testing.T) {
	ev, ok := For("volume", 2)
	if !ok {
		t.Fatalf("expected volume to map to a known event")
	}
	if ev.Group != GroupTrack || ev.Subgroup != SubVolume || ev.Track != 2 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestForMapsTransportLabelsToGroupTransportAndClearsTrack(t *testing.T) {
	cases := map[string]Subgroup{"beat": SubBeat, "measure": SubMeasure, "endofsong": SubEndOfSong}
	for label, want := range cases {
		ev, ok := For(label, 3)
		if !ok {
			t.Fatalf("expected %q to map to a known event", label)
		}
		if ev.Group != GroupTransport || ev.Subgroup != want || ev.Track != -1 {
			t.Fatalf("unexpected event for %q: %+v", label, ev)
		}
	}
}

func TestForMapsAllToGroupAll(t *testing.T) {
	ev, ok := For("all", 2)
	if !ok {
		t.Fatalf("expected \"all\" to map to a known event")
	}
	if ev.Group != GroupAll || ev.Track != -1 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestForRejectsUnknownLabels(t *testing.T) {
	if _, ok := For("", 0); ok {
		t.Fatalf("an empty label must not map to an event")
	}
	if _, ok := For("bogus", 0); ok {
		t.Fatalf("an unrecognized label must not map to an event")
	}
}

func TestFuncAdaptsPlainFunction(t *testing.T) {
	var got Event
	var n Notifier = Func(func(e Event) { got = e })
	n.Notify(Event{Group: GroupTransport, Subgroup: SubBeat, Track: -1})
	if got.Group != GroupTransport || got.Subgroup != SubBeat {
		t.Fatalf("Func must forward the event to the wrapped function, got %+v", got)
	}
}
