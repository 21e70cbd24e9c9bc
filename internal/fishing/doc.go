// Package fishing implements the fishing action loop.
//
// A Session runs one background loop per bot identity:
//   - cast, wait for a bite, classify the newest inventory item
//   - record the catch and optionally announce it in chat
//   - pause between casts, backing off after failed casts
//
// Sessions are started, stopped and inspected through the fish-start,
// fish-stop and fish-status tools.
package fishing
