package scaler

// action is the outcome of one cascade evaluation.
type action int

const (
	actionNone action = iota
	actionScale
	actionClampMin
	actionClampMax
	actionClampBlocked
)

// evaluate applies the threshold cascade against a single
// dimension's load factor. It returns the replica count the cascade wants
// and which branch fired; the caller decides whether/how to apply it.
//
// The cascade's branches are tried in order and the first match wins —
// this function has no state and is reused identically for CPU and memory.
func evaluate(load float64, up, down float64, replicas, min, max int) (newReplicas int, result action) {
	switch {
	case load > up && replicas >= max:
		return replicas, actionClampBlocked
	case load > up:
		return replicas + 1, actionScale
	case load < down && replicas <= min:
		return replicas, actionClampBlocked
	case load < down:
		return replicas - 1, actionScale
	case replicas < min:
		return min, actionClampMin
	case replicas > max:
		return max, actionClampMax
	default:
		return replicas, actionNone
	}
}
