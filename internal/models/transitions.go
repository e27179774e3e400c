package models

// Server-owned ticket transitions. The client never applies them; it only
// consults the map to decide whether requesting an action makes sense.
var transitionMap = map[string][]string{
	"call":   {StatusWaiting},
	"serve":  {StatusCalled},
	"cancel": {StatusWaiting, StatusCalled},
}

func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// CanCancel reports whether a cancel request is meaningful for a ticket in
// the given status. An unknown or empty status is treated as cancellable
// and left for the backend to judge.
func CanCancel(status string) bool {
	if status == "" {
		return true
	}
	if IsTerminal(status) {
		return false
	}
	if _, known := statusSet[status]; !known {
		return true
	}
	return ValidTransition("cancel", status)
}

var statusSet = map[string]struct{}{
	StatusWaiting:   {},
	StatusCalled:    {},
	StatusServed:    {},
	StatusCancelled: {},
}
