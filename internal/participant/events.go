package participant

// EventKind names a post-commit side effect.
type EventKind string

const (
	// EventPublishMetrics refreshes the participant count gauge; emitted on
	// every successful save.
	EventPublishMetrics EventKind = "metrics.publish"
	// EventRefreshOrganizerView rebuilds the challenge-organizer materialized
	// view; emitted when OrganizerID changes.
	EventRefreshOrganizerView EventKind = "organizer_view.refresh"
	// EventFetchAvatar retrieves a remote avatar for a federated signup.
	EventFetchAvatar EventKind = "avatar.fetch"
	// EventSendConfirmationEmail delivers the confirmation link after a
	// credentials signup. Federated signups suppress it.
	EventSendConfirmationEmail EventKind = "email.confirmation"
	// EventSendOnboardingEmail fires once confirmation completes.
	EventSendOnboardingEmail EventKind = "email.onboarding"
	// EventSyncMailingList subscribes the confirmed address downstream.
	EventSyncMailingList EventKind = "mailing_list.sync"
)

// Event is a post-commit side effect the caller should dispatch after the
// save that produced it has committed. The core only records intent; it never
// performs the I/O itself.
type Event struct {
	Kind          EventKind         `json:"kind"`
	ParticipantID string            `json:"participant_id"`
	Payload       map[string]string `json:"payload,omitempty"`
}

func event(kind EventKind, participantID string, kv ...string) Event {
	e := Event{Kind: kind, ParticipantID: participantID}
	if len(kv) > 0 {
		e.Payload = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			e.Payload[kv[i]] = kv[i+1]
		}
	}
	return e
}
