// Content moderation engine for community posts, comments and direct messages.
//
// This package (`github.com/spotter-social/spotter/automod`) evaluates user submissions against a catalog of custom rules and an optional external classifier, composes a single verdict, and applies account-level enforcement (warnings, reputation penalties, suspensions and bans). Every decision is written to an append-only audit log, and decisions made while the classifier was unavailable are queued for reconciliation once it recovers.
//
// The sub-packages hold the pieces: `catalog` (rule definitions), `keyword` (text normalization), `classifier` (external classifier client), `verdict` (decision types), `enforce` (account state and the enforcement ladder), `audit` (decision records and human review), and `engine` (the orchestration). See `cmd/spotter` for a daemon built on this package.
package automod
