package chore

import "github.com/dukerupert/tenantry/internal/model"

var completionNext = map[string][]string{
	model.CompletionPending: {model.CompletionCompleted, model.CompletionMissed, model.CompletionExcused},
}

var swapNext = map[string][]string{
	model.SwapPending: {model.SwapApproved, model.SwapRejected, model.SwapCancelled, model.SwapExpired},
}

// CanTransitionCompletion reports whether a completion may move from one
// status to another. Only pending completions move, and only forward.
func CanTransitionCompletion(from, to string) bool {
	return contains(completionNext[from], to)
}

// CanTransitionSwap reports whether a swap request may move from one status
// to another.
func CanTransitionSwap(from, to string) bool {
	return contains(swapNext[from], to)
}

// IsTerminalSwap reports whether a swap in status can no longer change.
func IsTerminalSwap(status string) bool {
	return len(swapNext[status]) == 0
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
