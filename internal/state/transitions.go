package state

// validTransitions lists the non-root moves the dialog makes. Returning to Root is always allowed.
var validTransitions = map[State][]State{
	SelectingWork: {
		ShowerWork, MirrorWork, OtherWork, SelectingDate,
		ViewingEntries, ConfirmDeleteLast, Settings,
	},
	SelectingDate:      {ShowerWork, MirrorWork},
	ShowerWork:         {AdditionalServices, SelectingDate},
	MirrorWork:         {MirrorQuantity, SelectingDate},
	OtherWork:          {AddAddress, AddMoreWork, SelectingDate},
	AdditionalServices: {AddAddress, AddMoreWork, ShowerWork},
	MirrorQuantity:     {AddAddress, AddMoreWork, MirrorWork},
	AddAddress:         {AddComment},
	AddComment:         {AddMoreWork},
	ViewingEntries:     {DeletingEntry},
	DeletingEntry:      {ConfirmDeleteEntry, ViewingEntries},
	Settings:           {SettingWorkDays},
	SettingWorkDays:    {Settings},
}

// IsTransitionAllowed reports whether moving from one state to another is expected.
func IsTransitionAllowed(from, to State) bool {
	if to == Root || from == to {
		return true
	}

	for _, state := range validTransitions[from] {
		if state == to {
			return true
		}
	}

	return false
}
