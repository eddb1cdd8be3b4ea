// Package queue publishes engine events to RabbitMQ and hosts the unlock
// audit-log consumer.  Everything here is post-commit and best-effort: a
// broker outage is logged, never surfaced to a client.
package queue

// LeadUnlockedEvent is published after an unlock transaction commits.
// It contains enough information for downstream consumers to log, notify,
// or trigger analytics without querying the primary database.  Events are
// published best-effort after commit and never influence the response.
type LeadUnlockedEvent struct {
    UserID       uint64   `json:"user_id"`
    LeadIDs      []string `json:"lead_ids"`
    TokenCost    int      `json:"token_cost"`
    BalanceAfter int64    `json:"balance_after"`
    UnlockedAt   string   `json:"unlocked_at"`
}

// CreditsGrantedEvent is published after an admin grant commits.
type CreditsGrantedEvent struct {
    ActorID      uint64 `json:"actor_id"`
    UserID       uint64 `json:"user_id"`
    Delta        int64  `json:"delta"`
    Reason       string `json:"reason"`
    BalanceAfter int64  `json:"balance_after"`
    GrantedAt    string `json:"granted_at"`
}
