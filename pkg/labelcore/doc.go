// Package labelcore implements the label lifecycle service: collision-free
// naming on create/duplicate/bulk-create, optimistic concurrency on update
// via an integer version token, write-triggered cache invalidation, and
// best-effort coordination of derived thumbnail artifacts.
//
// The durable store is the single source of truth; thumbnails and cache
// entries are projections of it that degrade and self-heal independently.
// Collaborators (Repository, BlobStore, Cache, Authorizer) are injected
// interfaces with implementations under repo/, storage/ and cache/.
package labelcore
