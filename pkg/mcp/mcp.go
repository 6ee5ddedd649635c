// Package mcp serves read-only access to a rule store over the Model
// Context Protocol.
//
// Tools never execute rules. They list rules, show a rule with its script,
// and summarize the security status of the store, so that an assistant can
// inspect what a rule would do before a human runs it.
package mcp

const (
	name         = "cleantools"
	instructions = `MCP Server 'cleantools' inspects file-cleaning rules and their integrity status.

Rules are scripts of "cl <path>" lines, which delete files, and "system <command>" lines, which run commands.
Encrypted rules are sealed by their original author. Their stored author is masked, e.g. "A****", and they
can only be verified when the original author is supplied.

Workflow:
1. Use 'list_rules' to see every rule with its status. An optional CEL filter narrows the list.
2. Use 'get_rule' with an EXACT name from 'list_rules' to read the script. Pass 'author' to verify an encrypted rule.
3. Use 'verify_rules' for a summary of rules that would be refused.

These tools never run rules.`

	scriptPreviewLen = 4000
)

// truncateString truncates a string to maxLen bytes, marking the cut.
func truncateString(str string, maxLen int) string {
	if len(str) > maxLen {
		return str[:maxLen] + "\n[OUTPUT TRUNCATED]"
	}

	return str
}
