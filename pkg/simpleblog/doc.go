// Package simpleblog implements the core of a small blogging backend: identities
// with avatars, posts with optional images, and the rules that keep records and
// blob store objects consistent.
//
// The Service interface orchestrates a Repository (memory or Postgres), a
// BlobStore (memory, filesystem or S3) reached through a MediaManager, and a
// Hasher. HTTP transport, sessions and configuration live in subpackages.
//
// Asset ordering
//
// A record never points at an object the blob store has not confirmed. A
// replacement is uploaded and persisted before the object it replaces is
// deleted, and a failed delete only leaves an orphan behind. Orphans are
// collected by Reconciler.Sweep.
package simpleblog
