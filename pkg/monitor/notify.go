package monitor

// Notifier receives the ids that should trigger a user-visible nearby
// alert. The engine decides when; the notifier decides how.
type Notifier interface {
	NotifyNearby(ids []string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ids []string)

func (f NotifierFunc) NotifyNearby(ids []string) { f(ids) }

// decideNotifications filters candidates to the ids that should fire
// an alert, adding them to notified. An id fires at most once per
// session: leaving and re-entering the radius does not re-fire until
// notified is cleared by a full restart. When disabled, nothing fires
// and notified is left untouched.
func decideNotifications(candidates []string, notified map[string]struct{}, enabled bool) []string {
	if !enabled {
		return nil
	}

	var fire []string
	for _, id := range candidates {
		if _, done := notified[id]; done {
			continue
		}
		notified[id] = struct{}{}
		fire = append(fire, id)
	}
	return fire
}
