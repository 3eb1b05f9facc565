package state

import "testing"

func TestIsTransitionAllowed(t *testing.T) {
	testCases := []struct {
		name     string
		from     State
		to       State
		expected bool
	}{
		{name: "root to shower picker", from: SelectingWork, to: ShowerWork, expected: true},
		{name: "shower to services", from: ShowerWork, to: AdditionalServices, expected: true},
		{name: "services back to shower", from: AdditionalServices, to: ShowerWork, expected: true},
		{name: "quantity to address", from: MirrorQuantity, to: AddAddress, expected: true},
		{name: "address to comment", from: AddAddress, to: AddComment, expected: true},
		{name: "comment to add more", from: AddComment, to: AddMoreWork, expected: true},
		{name: "delete entry back to list", from: DeletingEntry, to: ViewingEntries, expected: true},
		{name: "work days back to settings", from: SettingWorkDays, to: Settings, expected: true},
		{name: "self transition", from: SelectingDate, to: SelectingDate, expected: true},
		{name: "anything to root", from: ConfirmDeleteEntry, to: SelectingWork, expected: true},
		{name: "unknown to root", from: State("whatever"), to: Root, expected: true},
		{name: "root to comment invalid", from: SelectingWork, to: AddComment, expected: false},
		{name: "address to add more invalid", from: AddAddress, to: AddMoreWork, expected: false},
		{name: "settings to confirm invalid", from: Settings, to: ConfirmDeleteEntry, expected: false},
		{name: "unknown state invalid", from: State("unknown"), to: ShowerWork, expected: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if actual := IsTransitionAllowed(tc.from, tc.to); actual != tc.expected {
				t.Errorf("IsTransitionAllowed(%s -> %s) = %t, expected %t", tc.from, tc.to, actual, tc.expected)
			}
		})
	}
}

func TestAllStatesCovered(t *testing.T) {
	states := All()
	if len(states) != 16 {
		t.Fatalf("expected 16 states, got %d", len(states))
	}

	seen := make(map[State]bool, len(states))
	for _, s := range states {
		if seen[s] {
			t.Fatalf("duplicate state %s", s)
		}
		seen[s] = true
	}
}
