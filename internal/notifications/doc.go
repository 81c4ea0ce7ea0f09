// Package notifications publishes queue item lifecycle transitions to
// attached subscribers. Delivery is best effort: each subscriber drains its
// own buffer, slow consumers drop events instead of stalling the scheduler,
// and no ordering is promised across subscribers.
package notifications
