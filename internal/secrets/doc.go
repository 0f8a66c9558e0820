// Package secrets provides regex-based secret detection and redaction.
//
// Every memory and tool response the MCP layer returns passes through the
// Scrubber so stored credentials never reach a client transcript. The
// deeper gitleaks-backed detector in pkg/secrets covers source files on
// their way into the indexer; this package is the cheap in-process layer
// applied on every read path.
package secrets
