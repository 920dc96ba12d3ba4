package events

import "testing"

type testEvent string

func (e testEvent) EventType() string { return string(e) }

func TestFanoutForwardsToEveryEmitter(t *testing.T) {
	first := &Recorder{}
	second := &Recorder{}
	fan := Fanout{first, nil, second, NoopEmitter{}}

	fan.Emit(testEvent("raffle.joined"))
	fan.Emit(testEvent("raffle.ended"))

	for i, rec := range []*Recorder{first, second} {
		types := rec.Types()
		if len(types) != 2 || types[0] != "raffle.joined" || types[1] != "raffle.ended" {
			t.Fatalf("recorder %d: unexpected events %v", i, types)
		}
	}
}

func TestRecorderReset(t *testing.T) {
	rec := &Recorder{}
	rec.Emit(testEvent("reward.claimed"))
	if len(rec.Events()) != 1 {
		t.Fatalf("expected one event")
	}
	rec.Reset()
	if len(rec.Events()) != 0 {
		t.Fatalf("expected recorder to be empty after reset")
	}
}
