package demo

import (
	"errors"
	"testing"
)

type fakeFlags struct {
	on  bool
	err error
}

func (f *fakeFlags) DemoMode() bool { return f.on }
func (f *fakeFlags) SetDemoMode(on bool) error {
	if f.err != nil {
		return f.err
	}
	f.on = on
	return nil
}

func TestSetEnabled_PersistsAndNotifies(t *testing.T) {
	s := NewStore(&fakeFlags{})

	var got []bool
	s.Subscribe(func(on bool) { got = append(got, on) })

	if err := s.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}
	if !s.Enabled() {
		t.Error("flag should persist")
	}
	if err := s.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}

	want := []bool{true, false}
	if len(got) != len(want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notification %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSetEnabled_PersistFailureSkipsNotification(t *testing.T) {
	flags := &fakeFlags{err: errors.New("disk full")}
	s := NewStore(flags)

	notified := false
	s.Subscribe(func(bool) { notified = true })

	if err := s.SetEnabled(true); err == nil {
		t.Fatal("expected persistence error")
	}
	if notified {
		t.Error("subscribers must not hear about a change that didn't persist")
	}
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	s := NewStore(&fakeFlags{})

	calls := 0
	cancel := s.Subscribe(func(bool) { calls++ })

	s.SetEnabled(true)
	cancel()
	s.SetEnabled(false)

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (none after unsubscribe)", calls)
	}
}
