// Package memory defines the engine's semantic-memory domain model and
// its supporting machinery.
//
// The central type is MemoryUnit: free-form content classified by
// category (preference, fact, event, workflow, context, code), context
// level (USER_PREFERENCE, PROJECT_CONTEXT, SESSION_STATE), and scope
// (global or project-bound), carrying importance, tags, provenance, and
// lifecycle state. Code units extracted by the indexer are MemoryUnits
// with category "code".
//
// Around that model the package provides:
//
//   - Classification: RegexCategoryClassifier assigns a category from
//     content when the caller supplies none, and ClassifyContextLevel
//     picks the retrieval bucket the same way.
//   - Confidence: a signal store plus calculator folding explicit
//     feedback, usage, and outcome signals into a memory's provenance
//     confidence — fixed per-type weights with exponential time decay,
//     so a score is always explainable from the signal log.
//   - Consolidation: the Consolidator interface and ConsolidationScheduler
//     merge clusters of near-duplicate ACTIVE memories into synthesized
//     memories, archiving sources with attribution rather than deleting
//     them.
//   - Session distillation: SessionBufferManager accumulates a live
//     session's query turns; SessionSummarizer distills a finished
//     session into one SESSION_STATE memory, optionally enriched with
//     facts from the rule-based extractor.
//   - Temporal resolution: ResolveTemporalReferences rewrites relative
//     phrases ("yesterday", "last week") into absolute dates before
//     queries are embedded or stored.
//
// Persistence is the orchestrator's job; nothing in this package talks to
// a store directly except through the narrow interfaces it declares.
package memory
