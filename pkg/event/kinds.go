package event

// Kinds configures the integer event kind values used for every symbolic
// name spec §6 lists. Real deployments pin these; DefaultKinds returns the
// values this module was grounded against (the nostr-git NIP-34 family).
type Kinds struct {
	Announcement      int
	State             int
	Patch             int
	Issue             int
	StatusOpen        int
	StatusApplied     int
	StatusClosed      int
	StatusDraft       int
	PullRequest       int
	PullRequestUpdate int
	UserGraspList     int
	Stack             int
	MergeMetadata     int
	ConflictMetadata  int
	Label             int
	Profile           int
}

// DefaultKinds returns the kind numbers this implementation was built
// against. Callers deploying against a different relay convention should
// construct their own Kinds value.
func DefaultKinds() Kinds {
	return Kinds{
		Announcement:      30617,
		State:             30618,
		Patch:             1617,
		Issue:             1621,
		StatusOpen:        1630,
		StatusApplied:     1631,
		StatusClosed:      1632,
		StatusDraft:       1633,
		PullRequest:       1618,
		PullRequestUpdate: 1619,
		UserGraspList:     10617,
		Stack:             1620,
		MergeMetadata:     1634,
		ConflictMetadata:  1635,
		Label:             1985,
		Profile:           0,
	}
}

// StatusKinds returns the four status kinds in stable order, used by C8's
// coarse subscription filter.
func (k Kinds) StatusKinds() []int {
	return []int{k.StatusOpen, k.StatusApplied, k.StatusClosed, k.StatusDraft}
}

// IsAddressable reports whether events of this kind are replaceable by
// (author, d) per spec §3 ("Lifecycle and ownership").
func (k Kinds) IsAddressable(kind int) bool {
	switch kind {
	case k.Announcement, k.State, k.MergeMetadata, k.ConflictMetadata:
		return true
	default:
		return 30000 <= kind && kind < 40000
	}
}
