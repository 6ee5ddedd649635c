// Package expr evaluates CEL (Common Expression Language) expressions
// against cleaning rules.
//
// Rule expressions have access to the variables:
//   - `name`, `version`, `author`, `description` (string)
//   - `status` (string): the security status, e.g. "valid"
//   - `encrypted` (bool)
//   - `allowed` (bool): whether the rule may run
//   - `targets` (list<string>): paths of every "cl" line
//   - `commands` (list<string>): every "system" command
//
// and to the functions pathBase, pathDir, pathExt and pathExists.
package expr
