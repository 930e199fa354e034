package domain

// TransitionKind names an actor-initiated change to an Assignment.
type TransitionKind string

const (
	KindCreate         TransitionKind = "CREATE"
	KindSubmitQuote    TransitionKind = "SUBMIT_QUOTE"
	KindProviderReject TransitionKind = "PROVIDER_REJECT"
	KindAcceptQuote    TransitionKind = "ACCEPT_QUOTE"
	KindRejectQuote    TransitionKind = "REJECT_QUOTE"
	KindDelete         TransitionKind = "DELETE"
	KindPay            TransitionKind = "PAY"
	KindComplete       TransitionKind = "COMPLETE"
	KindDispute        TransitionKind = "DISPUTE"
)

// Transition declares which statuses a kind may start from and the status it
// leads to. An empty To means the status is left unchanged (PAY) or the
// record is removed (DELETE).
type Transition struct {
	Kind TransitionKind
	From []Status
	To   Status
}

// Allows reports whether the transition may start from s.
func (t Transition) Allows(s Status) bool {
	for _, f := range t.From {
		if f == s {
			return true
		}
	}
	return false
}

var transitions = map[TransitionKind]Transition{
	KindSubmitQuote:    {Kind: KindSubmitQuote, From: []Status{StatusPendingReview}, To: StatusQuoted},
	KindProviderReject: {Kind: KindProviderReject, From: []Status{StatusQuoted}, To: StatusPendingReview},
	KindAcceptQuote:    {Kind: KindAcceptQuote, From: []Status{StatusQuoted}, To: StatusConfirmed},
	KindRejectQuote:    {Kind: KindRejectQuote, From: []Status{StatusQuoted}, To: StatusPendingReview},
	KindDelete:         {Kind: KindDelete, From: []Status{StatusPendingReview, StatusQuoted}},
	KindPay:            {Kind: KindPay, From: []Status{StatusConfirmed}},
	KindComplete:       {Kind: KindComplete, From: []Status{StatusInProgress}, To: StatusCompleted},
	KindDispute:        {Kind: KindDispute, From: []Status{StatusInProgress, StatusCompleted}, To: StatusDisputed},
}

// LookupTransition returns the declared transition for kind. CREATE has no
// entry because it does not start from an existing status.
func LookupTransition(kind TransitionKind) (Transition, bool) {
	t, ok := transitions[kind]
	return t, ok
}

// AdvancesOnPayment reports whether a successful payment should move an
// assignment in status s to IN_PROGRESS. Only CONFIRMED qualifies: later
// statuses must never regress, and earlier ones cannot carry a payment.
func AdvancesOnPayment(s Status) bool {
	return s == StatusConfirmed
}
