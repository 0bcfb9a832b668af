// Package domain holds the payment entities of the orchestration core:
// assets, continuous streams, and discrete schedules, together with their
// validation and lifecycle rules. Entities are plain values; persistence and
// settlement live in their own packages.
package domain
