// Package artifact guards structured-output acceptance. The Gate validates
// candidate artifacts against their declared schema version before a run may
// finalize; the in-memory store enforces the accept-at-most-once rule per
// run/type/version; the generators produce the deterministic engine-authored
// artifacts (flowchart, minutes).
package artifact
