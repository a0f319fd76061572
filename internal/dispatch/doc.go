// Package dispatch evaluates housekeeping rules against the merged event
// stream. One consumer goroutine drains a single ordered queue fed by all
// watch subscriptions, applies rules in configured order with per-path
// cooldowns, runs their actions, and records activity to history. Resync
// events trigger a bounded re-scan of the target instead of rule matching.
package dispatch
