package engine

import "github.com/rehive/adapter-framework/internal/domain/transaction"

// Policy holds the per-type behaviour switches of the engine.
type Policy struct {
	fastComplete map[transaction.Type]bool
}

// NewPolicy builds a policy where the listed types complete as soon as the
// platform accepts them, without a confirm round trip.
func NewPolicy(fastCompleteTypes []string) Policy {
	p := Policy{fastComplete: make(map[transaction.Type]bool, len(fastCompleteTypes))}
	for _, t := range fastCompleteTypes {
		p.fastComplete[transaction.Type(t)] = true
	}
	return p
}

// FastComplete reports whether t skips the Pending state.
func (p Policy) FastComplete(t transaction.Type) bool {
	return p.fastComplete[t]
}
