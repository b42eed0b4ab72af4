package connection

import (
	"testing"
	"time"
)

func TestShouldRunInitialSync(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		s    *State
		want bool
	}{
		{"never connected", &State{FirstConnectedAt: nil}, true},
		{"already connected once", &State{FirstConnectedAt: &now}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ShouldRunInitialSync(c.s); got != c.want {
				t.Errorf("ShouldRunInitialSync() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestTriggerLockIsStale(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-1 * time.Minute)
	stale := now.Add(-10 * time.Minute)

	cases := []struct {
		name string
		s    *State
		want bool
	}{
		{"not locked", &State{TriggerCreationInProgress: false}, false},
		{"locked, fresh", &State{TriggerCreationInProgress: true, TriggerCreationStartedAt: &fresh}, false},
		{"locked, stale", &State{TriggerCreationInProgress: true, TriggerCreationStartedAt: &stale}, true},
		{"locked, no timestamp", &State{TriggerCreationInProgress: true}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := TriggerLockIsStale(c.s, now); got != c.want {
				t.Errorf("TriggerLockIsStale() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestHasBothTriggers(t *testing.T) {
	inbox := "t-1"
	sent := "t-2"
	empty := ""

	cases := []struct {
		name string
		s    *State
		want bool
	}{
		{"neither", &State{}, false},
		{"inbox only", &State{InboxTriggerID: &inbox}, false},
		{"both", &State{InboxTriggerID: &inbox, SentTriggerID: &sent}, true},
		{"both but sent empty string", &State{InboxTriggerID: &inbox, SentTriggerID: &empty}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := HasBothTriggers(c.s); got != c.want {
				t.Errorf("HasBothTriggers() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestComputeSyncStatus(t *testing.T) {
	inbox, sent := "t-1", "t-2"

	cases := []struct {
		name       string
		s          *State
		hasCredits bool
		want       string
	}{
		{"not connected", &State{ConnectionEnabled: false}, true, SyncNotConnected},
		{"sync running", &State{ConnectionEnabled: true, SyncInProgress: true}, true, SyncInProgress},
		{"initial sync not done", &State{ConnectionEnabled: true, InitialSyncCompleted: false}, true, SyncStarted},
		{
			"done but missing a trigger",
			&State{ConnectionEnabled: true, InitialSyncCompleted: true, InboxTriggerID: &inbox},
			true, SyncReconnecting,
		},
		{
			"fully connected",
			&State{ConnectionEnabled: true, InitialSyncCompleted: true, InboxTriggerID: &inbox, SentTriggerID: &sent},
			true, SyncCompleted,
		},
		{
			"fully connected, credits exhausted still reads",
			&State{ConnectionEnabled: true, InitialSyncCompleted: true, InboxTriggerID: &inbox, SentTriggerID: &sent},
			false, SyncCompleted,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ComputeSyncStatus(c.s, c.hasCredits); got != c.want {
				t.Errorf("ComputeSyncStatus() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestConnected(t *testing.T) {
	inbox, sent := "t-1", "t-2"

	cases := []struct {
		name string
		s    *State
		want bool
	}{
		{"disabled", &State{ConnectionEnabled: false, InitialSyncCompleted: true, InboxTriggerID: &inbox, SentTriggerID: &sent}, false},
		{"sync incomplete", &State{ConnectionEnabled: true, InitialSyncCompleted: false, InboxTriggerID: &inbox, SentTriggerID: &sent}, false},
		{"missing trigger", &State{ConnectionEnabled: true, InitialSyncCompleted: true, InboxTriggerID: &inbox}, false},
		{"fully connected", &State{ConnectionEnabled: true, InitialSyncCompleted: true, InboxTriggerID: &inbox, SentTriggerID: &sent}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Connected(c.s); got != c.want {
				t.Errorf("Connected() = %v, want %v", got, c.want)
			}
		})
	}
}
