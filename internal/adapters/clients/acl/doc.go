// Package acl implements the Anti-Corruption Layer for the remote quote service.
//
// The remote API's DTOs and HTTP failure modes stop here. Callers see only
// domain types and domain errors:
//   - transport failures, open circuits and non-2xx statuses → [domain.ErrUnavailable]
//   - bodies that decode but lack an id or text → [domain.ErrValidation]
//   - undecodable bodies → [domain.ErrValidation]
package acl
